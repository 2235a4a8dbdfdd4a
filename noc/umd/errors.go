package umd

import (
	"fmt"
	"time"

	"github.com/juju/errors"
)

// TimeoutError is returned when a transaction is considered hung.
type TimeoutError struct {
	ChipID  int
	NocID   int
	X, Y    int
	Address uint64
	Size    int
	IsRead  bool
	Elapsed time.Duration
}

func (e *TimeoutError) Error() string {
	op := "write"
	if e.IsRead {
		op = "read"
	}
	return fmt.Sprintf("timeout on %s of %d bytes at 0x%x, chip %d noc%d %d-%d (took %s)",
		op, e.Size, e.Address, e.ChipID, e.NocID, e.X, e.Y, e.Elapsed)
}

// IsTimeout reports whether err (or its cause) is a *TimeoutError.
func IsTimeout(err error) bool {
	_, ok := errors.Cause(err).(*TimeoutError)
	return ok
}

// AsTimeout returns the underlying *TimeoutError, if any.
func AsTimeout(err error) (*TimeoutError, bool) {
	te, ok := errors.Cause(err).(*TimeoutError)
	return te, ok
}

// A driver error with a Permanent method returning true will fail the same
// way through any tunnel, so it is not retried.
type permanent interface {
	Permanent() bool
}

func isPermanent(err error) bool {
	p, ok := errors.Cause(err).(permanent)
	return ok && p.Permanent()
}
