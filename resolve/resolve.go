// Package resolve turns a target reference into exactly one element, or
// reports that it matched none or several. It never guesses.
package resolve

import (
	"github.com/c360studio/irta/element"
	"github.com/c360studio/irta/failure"
	"github.com/c360studio/irta/intent"
)

// Lookup is the read side of the registry the disambiguator needs.
type Lookup interface {
	Lookup(id string) (element.Snapshot, bool)
	FindByLabelFragment(text string) []string
}

// Resolve finds the element ref names. An explicit ID must exist; a label
// fragment must match exactly one label.
func Resolve(reg Lookup, ref intent.Ref) (element.Snapshot, error) {
	if ref.Explicit {
		snap, ok := reg.Lookup(ref.Text)
		if !ok {
			return element.Snapshot{}, &failure.UnknownElementError{Ref: ref.Text}
		}
		return snap, nil
	}

	ids := reg.FindByLabelFragment(ref.Text)
	switch len(ids) {
	case 0:
		return element.Snapshot{}, &failure.UnknownElementError{Ref: ref.Text}
	case 1:
		snap, ok := reg.Lookup(ids[0])
		if !ok {
			return element.Snapshot{}, &failure.UnknownElementError{Ref: ids[0]}
		}
		return snap, nil
	}

	candidates := make([]failure.Candidate, 0, len(ids))
	for _, id := range ids {
		snap, ok := reg.Lookup(id)
		if !ok {
			continue
		}
		candidates = append(candidates, failure.Candidate{ID: id, Label: snap.Label})
	}
	return element.Snapshot{}, &failure.AmbiguousReferenceError{Ref: ref.Text, Candidates: candidates}
}
