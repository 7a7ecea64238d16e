package schedule

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidTimeFormat = errors.New("invalid time format, expected HH:MM")
	ErrInvalidDuration   = errors.New("duration must be a positive number of minutes")
	ErrInvalidIndex      = errors.New("timeline index out of range")
	ErrInvalidStatus     = errors.New("unknown item status")
	ErrInvalidPriority   = errors.New("unknown item priority")
	ErrDerivedTime       = errors.New("time is derived from previous items; only the first item's time can be set")
	ErrLoadFailed        = errors.New("timeline load failed")
	ErrPersistFailed     = errors.New("timeline persist failed")
	ErrNotFound          = errors.New("timeline item not found")
	ErrNotLoaded         = errors.New("timeline not loaded")
	// ErrConflict is returned by a Persister when the stored timeline version no
	// longer matches the one the store was loaded with.
	ErrConflict = errors.New("timeline was changed by someone else; reload and retry")
)

// PersistError reports a failed write batch. The batch was rolled back and the
// store kept its previous list.
type PersistError struct {
	Op        string
	FailedIDs []string
	Err       error
}

func (e *PersistError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s", e.Op, ErrPersistFailed.Error())
	if len(e.FailedIDs) > 0 {
		fmt.Fprintf(&b, " (items %s)", strings.Join(e.FailedIDs, ","))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *PersistError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPersistFailed}
	}
	return []error{ErrPersistFailed, e.Err}
}

// ItemError tags a persistence failure with the item it happened on.
type ItemError struct {
	ItemID string
	Err    error
}

func (e *ItemError) Error() string { return fmt.Sprintf("item %s: %v", e.ItemID, e.Err) }
func (e *ItemError) Unwrap() error { return e.Err }

func persistError(op string, err error) error {
	pe := &PersistError{Op: op, Err: err}
	var ie *ItemError
	if errors.As(err, &ie) {
		pe.FailedIDs = []string{ie.ItemID}
	}
	return pe
}
