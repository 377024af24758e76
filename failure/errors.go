// Package failure defines the error taxonomy shared by every command stage.
// All failures are ordinary values; none of them is fatal to the process.
package failure

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a rejected command for the rendering collaborator.
type Kind string

const (
	// KindParse means no classifier rule matched the command text.
	KindParse Kind = "parse_error"

	// KindUnknownElement means a target reference resolved to zero elements.
	KindUnknownElement Kind = "unknown_element"

	// KindAmbiguousReference means a target reference resolved to several elements.
	KindAmbiguousReference Kind = "ambiguous_reference"

	// KindCapabilityMismatch means the target lacks the capability the intent requires.
	KindCapabilityMismatch Kind = "capability_mismatch"

	// KindConstraintViolation means a payload violated a schema bound.
	KindConstraintViolation Kind = "constraint_violation"

	// KindAllocation means no free element ID could be allocated.
	KindAllocation Kind = "allocation_error"

	// KindInternal is reported for errors outside the taxonomy.
	KindInternal Kind = "internal_error"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Bound names a schema limit.
type Bound string

// Schema bounds that a ConstraintViolationError can name.
const (
	BoundMetricRange Bound = "metric_range"
	BoundLabelLength Bound = "max_label_len"
	BoundListItems   Bound = "max_list_items"
	BoundItemLength  Bound = "max_item_len"
	BoundIDFormat    Bound = "id_pattern"
)

// ErrEmptyCommand is returned for blank input. It is not part of the taxonomy
// and is never reported to renderers.
var ErrEmptyCommand = errors.New("empty command")

// ParseError reports that no classifier rule matched.
type ParseError struct {
	Text string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unrecognized command: %q", e.Text)
}

// UnknownElementError reports a reference that matched no element.
type UnknownElementError struct {
	Ref string
}

func (e *UnknownElementError) Error() string {
	return fmt.Sprintf("no element matches %q", e.Ref)
}

// Candidate is one element an ambiguous reference could mean.
type Candidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// AmbiguousReferenceError reports a reference that matched several elements.
// Candidates are in registry insertion order.
type AmbiguousReferenceError struct {
	Ref        string
	Candidates []Candidate
}

func (e *AmbiguousReferenceError) Error() string {
	parts := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		parts[i] = fmt.Sprintf("%s (%s)", c.Label, c.ID)
	}
	return fmt.Sprintf("%q is ambiguous: %s", e.Ref, strings.Join(parts, ", "))
}

// CandidateIDs returns the IDs of all candidates.
func (e *AmbiguousReferenceError) CandidateIDs() []string {
	ids := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		ids[i] = c.ID
	}
	return ids
}

// CapabilityMismatchError reports that an element cannot perform an operation.
type CapabilityMismatchError struct {
	ID         string
	Variant    string
	Operation  string
	Capability string
}

func (e *CapabilityMismatchError) Error() string {
	return fmt.Sprintf("%s %s does not support %s (requires %s)", e.Variant, e.ID, e.Operation, e.Capability)
}

// ConstraintViolationError reports which schema bound a payload violated.
type ConstraintViolationError struct {
	Bound  Bound
	Value  string
	Detail string
}

func (e *ConstraintViolationError) Error() string {
	return fmt.Sprintf("constraint %s violated by %s: %s", e.Bound, e.Value, e.Detail)
}

// AllocationError reports that the ID space is exhausted or every sampled ID collided.
type AllocationError struct {
	Attempts int
	Space    int
}

func (e *AllocationError) Error() string {
	if e.Attempts == 0 {
		return fmt.Sprintf("id space exhausted (%d ids in use)", e.Space)
	}
	return fmt.Sprintf("no free id after %d attempts", e.Attempts)
}

// KindOf maps an error onto the taxonomy. Unknown errors map to KindInternal
// and ok is false.
func KindOf(err error) (kind Kind, ok bool) {
	var (
		parseErr      *ParseError
		unknownErr    *UnknownElementError
		ambiguousErr  *AmbiguousReferenceError
		capabilityErr *CapabilityMismatchError
		constraintErr *ConstraintViolationError
		allocErr      *AllocationError
	)
	switch {
	case err == nil:
		return "", false
	case errors.As(err, &parseErr):
		return KindParse, true
	case errors.As(err, &unknownErr):
		return KindUnknownElement, true
	case errors.As(err, &ambiguousErr):
		return KindAmbiguousReference, true
	case errors.As(err, &capabilityErr):
		return KindCapabilityMismatch, true
	case errors.As(err, &constraintErr):
		return KindConstraintViolation, true
	case errors.As(err, &allocErr):
		return KindAllocation, true
	}
	return KindInternal, false
}
