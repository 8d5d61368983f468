package dataset

import "errors"

// Error categories. Callers test with errors.Is; messages add the detail.
var (
	// ErrConfig reports an invalid path, column mapping or option.
	ErrConfig = errors.New("configuration error")
	// ErrInputMissing reports an absent metadata table or source file.
	ErrInputMissing = errors.New("input missing")
	// ErrIO reports a failed copy, write or directory operation.
	ErrIO = errors.New("i/o error")
	// ErrLabelMissing marks rows without a label. These rows are filtered,
	// never returned to the caller as a failure.
	ErrLabelMissing = errors.New("label missing")
)
