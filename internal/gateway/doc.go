// Package gateway implements the Aula gateway client: a WebSocket connection
// that pushes typed events from the server and accepts presence updates.
//
// A connected Client runs two goroutines. The receive loop reassembles
// frames into JSON payloads and dispatches each one on its own goroutine, so
// a slow listener never stalls the connection; as a consequence, listeners
// for different event types may observe events out of arrival order. The
// send loop drains an unbounded queue one payload at a time, in enqueue
// order, and acknowledges each payload once it has been written.
package gateway
