// Package status provides codelist status values, immutable status
// snapshots, and the inference engine that derives each code's effective
// status from the nearest explicit ancestor decisions.
package status

import "fmt"

// Status is the effective state of one code in a draft codelist. It is a
// closed set of six values spanning two axes: polarity (none, included,
// excluded, conflict) and origin (explicit, inherited).
type Status int

const (
	// Unresolved means no decision, explicit or inherited, applies ("?").
	Unresolved Status = iota
	// Included means explicitly marked included ("+").
	Included
	// Excluded means explicitly marked excluded ("-").
	Excluded
	// InheritedIncluded means included via an ancestor decision ("(+)").
	InheritedIncluded
	// InheritedExcluded means excluded via an ancestor decision ("(-)").
	InheritedExcluded
	// Conflict means contradictory decisions are inherited from different
	// ancestor branches ("!").
	Conflict
)

// String returns the wire symbol for the status.
func (s Status) String() string {
	switch s {
	case Unresolved:
		return "?"
	case Included:
		return "+"
	case Excluded:
		return "-"
	case InheritedIncluded:
		return "(+)"
	case InheritedExcluded:
		return "(-)"
	case Conflict:
		return "!"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Parse converts a wire symbol to a Status.
func Parse(symbol string) (Status, error) {
	switch symbol {
	case "?":
		return Unresolved, nil
	case "+":
		return Included, nil
	case "-":
		return Excluded, nil
	case "(+)":
		return InheritedIncluded, nil
	case "(-)":
		return InheritedExcluded, nil
	case "!":
		return Conflict, nil
	}
	return Unresolved, fmt.Errorf("unknown status symbol %q", symbol)
}

// IsExplicit reports whether the status is a direct user decision.
// Explicit statuses survive propagation verbatim until the user changes
// or clears them.
func (s Status) IsExplicit() bool {
	return s == Included || s == Excluded
}

// IsIncluded reports whether the status resolves to included polarity.
func (s Status) IsIncluded() bool {
	return s == Included || s == InheritedIncluded
}

// IsExcluded reports whether the status resolves to excluded polarity.
func (s Status) IsExcluded() bool {
	return s == Excluded || s == InheritedExcluded
}

// Assignable reports whether the status may be set directly by a user
// action. Derived statuses cannot be assigned.
func (s Status) Assignable() bool {
	return s == Unresolved || s == Included || s == Excluded
}
