// Package intent classifies command text into intents using an ordered table
// of declarative rules. The first rule that fully matches wins; there is no
// scoring. Target references are extracted but not resolved here.
package intent

import (
	"fmt"

	"github.com/c360studio/irta/element"
)

// Kind is the coarse category of a classified command.
type Kind string

const (
	// KindCreate allocates a new element.
	KindCreate Kind = "create"

	// KindUpdate sets a value on an existing element.
	KindUpdate Kind = "update"

	// KindInteract appends to or toggles an existing element.
	KindInteract Kind = "interact"

	// KindUnrecognized means no rule matched.
	KindUnrecognized Kind = "unrecognized"
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	return string(k)
}

// Ref is a reference to a target element: an explicit ID or a label fragment.
type Ref struct {
	Text     string `json:"text"`
	Explicit bool   `json:"explicit"`
}

func (r Ref) String() string {
	if r.Explicit {
		return r.Text
	}
	return fmt.Sprintf("%q", r.Text)
}

// Intent is the result of classifying one command.
type Intent struct {
	Kind Kind `json:"kind"`

	// Rule names the rule that matched.
	Rule string `json:"rule,omitempty"`

	// Variant and Label are set for KindCreate.
	Variant element.Variant `json:"variant,omitempty"`
	Label   string          `json:"label,omitempty"`

	// Target and Operation are set for KindUpdate and KindInteract.
	Target    Ref               `json:"target"`
	Operation element.Operation `json:"-"`
}

// IsMutation reports whether the intent targets an existing element.
func (in Intent) IsMutation() bool {
	return in.Kind == KindUpdate || in.Kind == KindInteract
}

func (in Intent) String() string {
	switch in.Kind {
	case KindCreate:
		return fmt.Sprintf("create %s %q", in.Variant, in.Label)
	case KindUpdate, KindInteract:
		return fmt.Sprintf("%s %s on %s", in.Kind, in.Operation, in.Target)
	default:
		return string(in.Kind)
	}
}
