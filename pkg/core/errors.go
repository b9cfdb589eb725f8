package core

import "errors"

// Input validation errors. They are returned before any work is done and
// wrapped with context by the caller.
var (
	ErrFaceSizeNotPowerOfTwo = errors.New("face size is not a power of two")
	ErrFaceCount             = errors.New("expected 6 cubemap faces")
	ErrFaceNotSquare         = errors.New("cubemap face width and height differ")
	ErrFaceSizeMismatch      = errors.New("cubemap faces have different sizes")
	ErrEmptyImage            = errors.New("image has zero size")
	ErrMalformedImage        = errors.New("image pixel buffer does not match its dimensions")
	ErrInvalidBands          = errors.New("number of SH bands must be at least 1")
)
