package publish

import (
	"errors"
	"fmt"
)

// ErrNotPublished is returned by Current when storage holds no manifest yet.
var ErrNotPublished = errors.New("no manifest has been published")

// PersistenceError means the manifest could not be written. Storage still
// holds the previous manifest and no reload signal was sent.
type PersistenceError struct {
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist manifest under %s: %v", e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// NotificationError means the manifest was durably written but the reload
// signal failed. It accompanies a degraded Result, never a nil one.
type NotificationError struct {
	Channel string
	Err     error
}

func (e *NotificationError) Error() string {
	return fmt.Sprintf("notify subscribers on %s: %v", e.Channel, e.Err)
}

func (e *NotificationError) Unwrap() error { return e.Err }
