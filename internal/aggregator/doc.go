// Package aggregator serializes poller output into the snapshot store.
//
// Pollers hand their results to a [Mailbox], an unbounded FIFO that never
// blocks the sender. A single [Aggregator] drains the mailbox and applies each
// update through the store's only writer, so pollers never touch the
// snapshot lock while doing network I/O.
package aggregator
