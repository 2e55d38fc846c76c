package sentinel

import "fmt"

// Compile-time check that Error implements the error interface.
var _ error = Error("")

// Error is an immutable error type backed by a string constant.
// Values compare with ==, so errors.Is works through wrapped chains.
type Error string

// Error implements the error interface.
func (e Error) Error() string {
	return string(e)
}

// With returns an error whose message is e followed by the formatted detail,
// for example "bad file descriptor: fd 7". The result unwraps to e.
func (e Error) With(format string, args ...any) error {
	return &detailed{base: e, detail: fmt.Sprintf(format, args...)}
}

// detailed carries call-site context for a sentinel.
type detailed struct {
	base   Error
	detail string
}

func (d *detailed) Error() string {
	if d.detail == "" {
		return string(d.base)
	}
	return string(d.base) + ": " + d.detail
}

func (d *detailed) Unwrap() error {
	return d.base
}
