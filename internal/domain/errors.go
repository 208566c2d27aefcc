package domain

import "errors"

// Domain errors.
var (
	// ErrCollectionNotFound is returned when the requested root collection
	// does not exist in the library snapshot. Fatal for the run.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrCollectionAmbiguous is returned when more than one collection
	// matches the requested root name. Fatal for the run.
	ErrCollectionAmbiguous = errors.New("collection name is ambiguous")

	// ErrCollectionCycle is returned when the collection snapshot contains
	// a parent cycle. Fatal for the run.
	ErrCollectionCycle = errors.New("collection tree contains a cycle")

	// ErrDatabaseUnavailable is returned when the library database snapshot
	// could not be obtained. Fatal for the run.
	ErrDatabaseUnavailable = errors.New("library database unavailable")

	// ErrAttachmentUnresolved is returned when an attachment record carries
	// no usable source path. Recorded as a warning, never fatal.
	ErrAttachmentUnresolved = errors.New("attachment has no resolvable path")

	// ErrSourceFileMissing is returned when a resolved source path does not
	// exist on disk at copy time. Recorded as a warning, never fatal.
	ErrSourceFileMissing = errors.New("source file missing")

	// ErrCopyFailed is returned when the underlying filesystem copy fails.
	// Recorded as a warning, never fatal.
	ErrCopyFailed = errors.New("file copy failed")

	// ErrExportInProgress is returned when an export run is requested while
	// another run is still active.
	ErrExportInProgress = errors.New("export already in progress")
)

// ExportError wraps an error with item context.
type ExportError struct {
	ItemKey string
	Op      string
	Err     error
}

func (e *ExportError) Error() string {
	if e.ItemKey != "" {
		return e.Op + " [" + e.ItemKey + "]: " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *ExportError) Unwrap() error {
	return e.Err
}

// NewExportError creates a new ExportError.
func NewExportError(itemKey, op string, err error) *ExportError {
	return &ExportError{
		ItemKey: itemKey,
		Op:      op,
		Err:     err,
	}
}
