package domain

import "errors"

var (
	ErrBusy         = errors.New("a generation is already in flight")
	ErrNoRecord     = errors.New("no business record to regenerate")
	ErrRecordExists = errors.New("a business record is already shown; reset first")
)
