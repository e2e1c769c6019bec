package pipeline

import "errors"

var (
	// ErrCaptureFailure means the captured image could not be read or decoded.
	ErrCaptureFailure = errors.New("capture failure")
	// ErrRemovalDegraded is recorded on an outcome when background removal
	// failed and the original image was used instead. It never fails an item.
	ErrRemovalDegraded = errors.New("background removal degraded")
	ErrOutOfRange      = errors.New("photo index out of range")
	// ErrProcessed means a photo already went through a run and can no longer be removed.
	ErrProcessed         = errors.New("photo already processed")
	ErrRunning           = errors.New("pipeline is running")
	ErrNoPhotos          = errors.New("no photos captured")
	ErrInvalidPhoto      = errors.New("invalid photo")
	ErrInvalidTransition = errors.New("invalid status transition")
)
