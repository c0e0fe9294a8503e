// Package async provides the concurrency primitives shared by the REST
// pipeline and the gateway client.
//
// # Primitives
//
//   - Channel: a FIFO queue with bounded and unbounded variants whose
//     completion does not panic blocked writers.
//   - Semaphore: a counting lock with FIFO wake-up order, used at a count of
//     one as a per-route mutex.
//   - Future: a value resolved exactly once by code outside the goroutine
//     that created it.
//   - EventEmitter: named, ordered, awaited fan-out to listeners.
//
// All types are safe for concurrent use.
package async
