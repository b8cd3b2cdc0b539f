package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Category identifies one slot of the [Snapshot].
type Category string

const (
	CategoryStatus     Category = "status"
	CategoryCapacities Category = "capacities"
	CategoryStats      Category = "stats"
	CategoryJobs       Category = "jobs"
)

// Categories lists every category in snapshot field order.
var Categories = []Category{CategoryStatus, CategoryCapacities, CategoryStats, CategoryJobs}

// String returns the category name.
func (c Category) String() string {
	return string(c)
}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryStatus, CategoryCapacities, CategoryStats, CategoryJobs:
		return true
	}
	return false
}

// Document is an opaque JSON document as returned by an upstream endpoint.
type Document = json.RawMessage

// EmptyDocument is the value every field holds before its first update.
var EmptyDocument = Document(`{}`)

// Update targets exactly one snapshot field with a new document.
type Update struct {
	Category Category
	Document Document
}

var (
	// ErrWriterClaimed is returned by [Store.Writer] once the writer has been handed out.
	ErrWriterClaimed = errors.New("store: writer already claimed")

	// ErrLockFailure marks the store as unusable after a write could not complete.
	ErrLockFailure = errors.New("store: snapshot lock failure")
)

// UnknownCategoryError is returned when an update names a category the
// snapshot has no field for.
type UnknownCategoryError struct {
	Category Category
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("store: unknown category %q", string(e.Category))
}

// Snapshot is a point-in-time copy of all categories.
//
// Date is the time of the read that produced the copy, not the time of any write.
type Snapshot struct {
	Date       time.Time `json:"date"`
	Status     Document  `json:"status"`
	Capacities Document  `json:"capacities"`
	Stats      Document  `json:"stats"`
	Jobs       Document  `json:"jobs"`
}

// Compact returns doc with insignificant whitespace removed. Key order and
// number formatting are preserved.
func Compact(doc []byte) (Document, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return nil, err
	}
	return Document(buf.Bytes()), nil
}
