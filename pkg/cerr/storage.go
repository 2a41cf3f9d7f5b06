package cerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/workledger/workledger/pkg/storage"
)

// Storage failures other than "not found" surface as Unavailable so that the
// service layer's bounded retry can pick them up. Deadline expiry on a store
// call is treated the same way.

func WrapStorageReadError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(Unavailable, fmt.Sprintf("storage timed out reading %s", target), err)
	}
	return NewError(Unavailable, fmt.Sprintf("storage unavailable reading %s", target), err)
}

func WrapStorageWriteError(target string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewError(Unavailable, fmt.Sprintf("storage timed out writing %s", target), err)
	}
	return NewError(Unavailable, fmt.Sprintf("storage unavailable writing %s", target), err)
}

func WrapStorageDeleteError(target string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return NewError(NotFound, fmt.Sprintf("%s not found", target), err)
	}
	return NewError(Unavailable, fmt.Sprintf("storage unavailable deleting %s", target), err)
}
