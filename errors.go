package ptuple

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCapacity  = errors.New("buffer cannot host the requested tuple")
	ErrCapacityExceeded = errors.New("tuple capacity exceeded")
	ErrInvalidTag       = errors.New("invalid tag")
	ErrInvalidValue     = errors.New("invalid value")
	ErrCorrupt          = errors.New("corrupt tuple")
	ErrNoField          = errors.New("no such field")
)

func tagError(tag uint16) error {
	return fmt.Errorf("%w: %d is above %d", ErrInvalidTag, tag, MaxTag)
}

func corrupt(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorrupt}, args...)...)
}
