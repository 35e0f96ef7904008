package registry

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrCycle               = errors.New("inheritance cycle")
	ErrUnresolvedReference = errors.New("unresolved reference")
	ErrInlineMode          = errors.New("mixin inline mode violated")
	ErrMalformedConstraint = errors.New("malformed constraint")
	ErrUnknownRule         = errors.New("unknown rule")
	ErrDuplicateID         = errors.New("duplicate id")
)

type CycleError struct {
	Chain []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("inheritance cycle: %s", strings.Join(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }

type UnresolvedReferenceError struct {
	Kind string // "architecture" or "mixin"
	ID   string
	From string
}

func (e *UnresolvedReferenceError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("unknown %s %q", e.Kind, e.ID)
	}
	return fmt.Sprintf("unknown %s %q referenced by %q", e.Kind, e.ID, e.From)
}

func (e *UnresolvedReferenceError) Unwrap() error { return ErrUnresolvedReference }

type InlineModeError struct {
	MixinID string
	Mode    InlineMode
	From    string
}

func (e *InlineModeError) Error() string {
	switch e.Mode {
	case InlineOnly:
		return fmt.Sprintf("mixin %q may only be applied inline in a file header, but %q lists it in mixins", e.MixinID, e.From)
	case InlineForbidden:
		return fmt.Sprintf("mixin %q may not be applied inline, but %q references it in its header", e.MixinID, e.From)
	default:
		return fmt.Sprintf("mixin %q: inline mode %q violated by %q", e.MixinID, e.Mode, e.From)
	}
}

func (e *InlineModeError) Unwrap() error { return ErrInlineMode }

// ConstraintError names the owner and position of a constraint that failed
// to decode.
type ConstraintError struct {
	Owner string
	Index int
	Rule  string
	Err   error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: constraint #%d (%s): %v", e.Owner, e.Index, e.Rule, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }
