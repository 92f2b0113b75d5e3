package broker

import (
	"errors"
	"fmt"
)

// Sentinel errors callers can test with errors.Is. Write operations return
// ErrStorage-wrapped errors instead of swallowing them; the HTTP and
// gateway boundaries decide whether to absorb the failure.
var (
	// ErrStorage indicates a durable-store operation failed. No
	// notification is emitted for the failed write.
	ErrStorage = errors.New("storage operation failed")

	// ErrNotify indicates the notification fan-out failed after the
	// write committed. Operations do not propagate it; it exists for
	// logging and tests.
	ErrNotify = errors.New("notification fan-out failed")
)

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
