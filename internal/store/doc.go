// Package store holds the latest known document for each monitored category.
//
// The main components are:
//
//   - [Store]: lock-guarded snapshot with one slot per [Category]
//   - [Writer]: the single write handle, claimed once by the aggregator
//   - [Snapshot]: a consistent copy handed to readers
//
// Documents are kept verbatim as [Document] values and are never mutated in
// place; a write swaps the whole value of one field. Readers take a full copy
// under the same lock, so they never observe a partially applied update.
package store
