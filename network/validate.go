package network

import (
	"errors"
	"fmt"
	"log/slog"
)

// Validation sentinels, one per rule. A *ValidationError unwraps to exactly
// one of them.
var (
	ErrNoNodes            = errors.New("network: no nodes declared")
	ErrBlankNodeID        = errors.New("network: blank node identifier")
	ErrDuplicateNodeID    = errors.New("network: duplicate node identifier")
	ErrDemandNotNumeric   = errors.New("network: demand is not numeric")
	ErrArcFieldMissing    = errors.New("network: arc field missing")
	ErrUnknownEndpoint    = errors.New("network: arc endpoint not declared")
	ErrArcFieldNotNumeric = errors.New("network: arc field is not numeric")
)

// ValidationError describes the first rule a Draft violates.
// Node is set for node rules, Arc (index into Draft.Arcs, else -1) and Field
// for arc rules.
type ValidationError struct {
	Rule  error
	Node  string
	Arc   int
	Field string
	Value any
}

func (e *ValidationError) Error() string {
	switch {
	case e.Arc >= 0 && e.Field != "":
		return fmt.Sprintf("%v: arc #%d field %q (value %v)", e.Rule, e.Arc, e.Field, e.Value)
	case e.Arc >= 0:
		return fmt.Sprintf("%v: arc #%d", e.Rule, e.Arc)
	case e.Node != "":
		return fmt.Sprintf("%v: node %q (value %v)", e.Rule, e.Node, e.Value)
	default:
		return e.Rule.Error()
	}
}

// Unwrap exposes the rule sentinel to errors.Is.
func (e *ValidationError) Unwrap() error { return e.Rule }

func nodeViolation(rule error, node string, value any) *ValidationError {
	return &ValidationError{Rule: rule, Node: node, Arc: -1, Value: value}
}

func arcViolation(rule error, arc int, field string, value any) *ValidationError {
	return &ValidationError{Rule: rule, Arc: arc, Field: field, Value: value}
}

// Validate checks the structural rules of d and stops at the first violation.
//
// Rules, in order:
//  1. at least one node exists (ErrNoNodes);
//  2. no node identifier is blank (ErrBlankNodeID);
//  3. node identifiers are unique (ErrDuplicateNodeID);
//  4. every demand parses as a finite number (ErrDemandNotNumeric);
//  5. every arc carries all RequiredArcFields (ErrArcFieldMissing);
//  6. both endpoints name declared nodes (ErrUnknownEndpoint);
//  7. all NumericArcFields parse as finite numbers (ErrArcFieldNotNumeric).
//
// Rule 3 is an extra rule on top of the draft format, which itself allows a
// repeated id. A Network keys nodes by id, so repeats are rejected here.
//
// Passing validation does not imply solvability: negative capacities or
// min_flow > capacity are accepted here.
//
// Complexity: O(V + E).
func Validate(d *Draft) error {
	if d == nil || len(d.Nodes) == 0 {
		return &ValidationError{Rule: ErrNoNodes, Arc: -1}
	}

	// Stage 1: node identifiers and demands.
	seen := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if isBlank(n.ID) {
			return nodeViolation(ErrBlankNodeID, n.ID, n.Demand)
		}
		if _, dup := seen[n.ID]; dup {
			return nodeViolation(ErrDuplicateNodeID, n.ID, n.Demand)
		}
		seen[n.ID] = struct{}{}
		if _, ok := numeric(n.Demand); !ok {
			return nodeViolation(ErrDemandNotNumeric, n.ID, n.Demand)
		}
	}

	// Stage 2: arcs, each checked fully before moving to the next.
	for i, a := range d.Arcs {
		for _, key := range RequiredArcFields {
			if v, ok := a[key]; !ok || v == nil {
				return arcViolation(ErrArcFieldMissing, i, key, nil)
			}
		}
		for _, key := range []string{FieldFrom, FieldTo} {
			if _, ok := seen[endpoint(a[key])]; !ok {
				return arcViolation(ErrUnknownEndpoint, i, key, a[key])
			}
		}
		for _, key := range NumericArcFields {
			if _, ok := numeric(a[key]); !ok {
				return arcViolation(ErrArcFieldNotNumeric, i, key, a[key])
			}
		}
	}

	return nil
}

// Valid is the boolean form of Validate: the violation, if any, is logged
// on logger (nil means slog.Default) and false is returned.
func Valid(d *Draft, logger *slog.Logger) bool {
	err := Validate(d)
	if err == nil {
		return true
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("network rejected", slog.String("error", err.Error()))

	return false
}
