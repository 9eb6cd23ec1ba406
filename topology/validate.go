package topology

import (
	"fmt"
	"regexp"
)

// GraphError is a structural defect in the topology: something the user must
// fix on the canvas before an export can proceed. Node carries the offending
// node name so the UI can select it.
type GraphError struct {
	Node string
	Msg  string
}

func (e *GraphError) Error() string {
	if e.Node == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Node, e.Msg)
}

var namePattern = regexp.MustCompile(`^[0-9A-Za-z][0-9A-Za-z ._-]*$`)

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%q is not a valid component name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(%q) = %d > 100 is too long", s, len(s))
	}
	return nil
}

// Validate checks the graph's structural invariants and returns every
// violation it finds, never just the first, so one editing pass can fix them
// all. An empty slice means the graph is exportable.
func Validate(g *Graph) []error {
	var errs []error

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if err := NameValidator(n.Name); err != nil {
			errs = append(errs, &GraphError{Node: n.Name, Msg: err.Error()})
			continue
		}
		if seen[n.Name] {
			errs = append(errs, &GraphError{Node: n.Name, Msg: "duplicate node name"})
			continue
		}
		seen[n.Name] = true
		if !n.Kind.Valid() {
			errs = append(errs, &GraphError{Node: n.Name, Msg: fmt.Sprintf("unknown component kind %q", n.Kind)})
		}
	}

	// Dangling links are an export-time error, never silently dropped.
	for _, l := range g.Links {
		if g.TryGetNode(l.From) == nil {
			errs = append(errs, &GraphError{Node: l.From, Msg: fmt.Sprintf("link %s <-> %s references missing node %s", l.From, l.To, l.From)})
		}
		if g.TryGetNode(l.To) == nil {
			errs = append(errs, &GraphError{Node: l.To, Msg: fmt.Sprintf("link %s <-> %s references missing node %s", l.From, l.To, l.To)})
		}
	}

	return errs
}
