// Package queue implements the persistent speech queue. Items are spoken
// strictly in FIFO order, one at a time, and the queue is written to the
// store after every mutation so it survives restarts.
package queue
