// Package domain defines the core entities of the automation engine:
// tasks, their triggers and actions, and execution history.
package domain
