package booking

import (
	"fmt"
	"strings"
)

// Operation names a calendar operation subject to gating.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
	OpList   Operation = "list"
	OpSearch Operation = "search"
	OpGet    Operation = "get"
)

// Gate is one check an operation must pass before writing.
type Gate string

const (
	GateBusinessHours Gate = "business_hours"
	GateConflict      Gate = "conflict"
	GateConfirmation  Gate = "confirmation"
)

// Policy maps each operation to its required gates. Operations missing
// from the map pass no gates.
type Policy map[Operation][]Gate

// DefaultPolicy gates creation fully, asks for confirmation on update and
// lets delete and reads through.
func DefaultPolicy() Policy {
	return Policy{
		OpCreate: {GateBusinessHours, GateConflict, GateConfirmation},
		OpUpdate: {GateConfirmation},
		OpDelete: {},
	}
}

// Requires reports whether op must pass gate.
func (p Policy) Requires(op Operation, gate Gate) bool {
	for _, g := range p[op] {
		if g == gate {
			return true
		}
	}
	return false
}

// ParseGates validates gate names from configuration.
func ParseGates(names []string) ([]Gate, error) {
	gates := make([]Gate, 0, len(names))
	for _, name := range names {
		g := Gate(strings.ToLower(strings.TrimSpace(name)))
		switch g {
		case GateBusinessHours, GateConflict, GateConfirmation:
			gates = append(gates, g)
		default:
			return nil, fmt.Errorf("unknown gate %q", name)
		}
	}
	return gates, nil
}
