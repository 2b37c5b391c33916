package domain

import "errors"

var (
	ErrConfiguration        = errors.New("configuration error")
	ErrMalformedInput       = errors.New("malformed input")
	ErrDecryption           = errors.New("decryption failed")
	ErrUnsupportedOperation = errors.New("unsupported operation")
	ErrNetwork              = errors.New("network error")
	ErrReconstruction       = errors.New("reconstruction error")
)

// Retryable reports whether a caller may reasonably retry the operation that
// produced err.
func Retryable(err error) bool {
	return errors.Is(err, ErrNetwork) || errors.Is(err, ErrReconstruction)
}
