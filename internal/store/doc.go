// Package store implements the task repository: the sole authority over
// task persistence. Every read or write of task data flows through it, and
// it mirrors the persisted TaskStorage aggregate in an in-memory cache.
package store
