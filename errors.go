package marstools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSelection is the class of failures where exactly one selected
	// object was required to pick a starting point.
	ErrSelection = errors.New("exactly one selected object required")

	// ErrNoSelection means nothing was selected.
	ErrNoSelection = fmt.Errorf("%w: nothing selected", ErrSelection)

	// ErrAmbiguousSelection means more than one object was selected.
	ErrAmbiguousSelection = fmt.Errorf("%w: several objects selected", ErrSelection)

	// ErrCycleDetected is matched by every *CycleError.
	ErrCycleDetected = errors.New("parent cycle detected")

	// ErrUnknownObject means an object was named or passed that the
	// provider does not hold.
	ErrUnknownObject = errors.New("object not in scene")
)

// CycleError reports a parent chain that revisits an object. Chain lists
// object names from the first repeated object around to itself.
type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return ErrCycleDetected.Error() + ": " + strings.Join(e.Chain, " -> ")
}

// Is makes errors.Is(err, ErrCycleDetected) true.
func (e *CycleError) Is(target error) bool {
	return target == ErrCycleDetected
}

// DanglingParentError reports a parent ID that names no object in the scene.
type DanglingParentError struct {
	Object   string
	ParentID int64
}

func (e *DanglingParentError) Error() string {
	return fmt.Sprintf("object %q: parent %d not in scene", e.Object, e.ParentID)
}

// Is makes errors.Is(err, ErrUnknownObject) true.
func (e *DanglingParentError) Is(target error) bool {
	return target == ErrUnknownObject
}
