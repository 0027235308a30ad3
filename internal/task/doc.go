// Package task is an in-memory background task scheduler. Callers submit a
// body with a priority; a single dispatcher promotes pending tasks to running
// under a concurrency bound, serving high before medium before low and FIFO
// within a class. Progress, completion and failure are published on one typed
// event stream, and terminal tasks are evicted after a retention window.
//
// Tasks live only in memory and are lost on restart.
package task
