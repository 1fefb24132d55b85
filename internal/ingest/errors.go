package ingest

import "fmt"

// NormalizationError reports a raw payload whose items could not be decoded.
// The offending record is skipped; losing its items silently would be worse
// than failing loudly for a single payload.
type NormalizationError struct {
	OrderID int64
	Cause   error
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize order %d: %v", e.OrderID, e.Cause)
}

func (e *NormalizationError) Unwrap() error { return e.Cause }

// SnapshotLoadError reports a failed initial snapshot fetch. The push
// subscription still starts; the board runs with whatever state it has.
type SnapshotLoadError struct {
	Cause error
}

func (e *SnapshotLoadError) Error() string {
	return fmt.Sprintf("snapshot load failed: %v", e.Cause)
}

func (e *SnapshotLoadError) Unwrap() error { return e.Cause }
