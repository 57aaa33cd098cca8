// Package task contains the execution engine: the executor that runs a
// single task's action under timeout, retry, and state-machine control, and
// the dispatcher that bridges alarms and browser events to task execution.
package task
