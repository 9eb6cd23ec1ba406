package export

import (
	"errors"
	"fmt"
	"net/netip"
)

// CapacityError means an APN group needs more host addresses than its subnet
// can hold. Exports fail outright rather than wrap addresses around.
type CapacityError struct {
	APN      string
	Subnet   netip.Prefix
	Demand   int
	Capacity int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("apn group %q: %d UEs exceed subnet %s capacity of %d hosts (overflow %d)",
		e.APN, e.Demand, e.Subnet, e.Capacity, e.Overflow())
}

func (e *CapacityError) Overflow() int {
	return e.Demand - e.Capacity
}

// MappingError means a node's property value cannot be coerced to the shape
// its config mapper declares and no safe default can stand in for it.
type MappingError struct {
	Node string
	Key  string
	Msg  string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s: property %s: %s", e.Node, e.Key, e.Msg)
}

// Warning is a recovered problem: the export still succeeds, with the
// substituted value, and the warning rides along on the result.
type Warning struct {
	Node string
	Msg  string
}

func (w Warning) String() string {
	if w.Node == "" {
		return w.Msg
	}
	return w.Node + ": " + w.Msg
}

// Diagnostics accumulates errors and warnings across a pipeline stage.
// Stages collect everything they find before aborting, so the user sees the
// complete batch instead of fixing problems one at a time.
type Diagnostics struct {
	Errors   []error
	Warnings []Warning
}

func (d *Diagnostics) AddError(err error) {
	d.Errors = append(d.Errors, err)
}

func (d *Diagnostics) Warnf(node string, format string, args ...any) {
	d.Warnings = append(d.Warnings, Warning{Node: node, Msg: fmt.Sprintf(format, args...)})
}

func (d *Diagnostics) HasErrors() bool {
	return len(d.Errors) > 0
}

// Err joins the accumulated fatal errors into one, or returns nil when the
// stage passed.
func (d *Diagnostics) Err() error {
	if len(d.Errors) == 0 {
		return nil
	}
	return errors.Join(d.Errors...)
}
