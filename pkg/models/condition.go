package models

import (
	"fmt"
	"strings"
)

// Operator is the fixed set of clause comparisons a condition may use.
// Anything outside this set is rejected at authoring time.
type Operator string

const (
	OperatorEquals      Operator = "eq"
	OperatorNotEquals   Operator = "neq"
	OperatorGreaterThan Operator = "gt"
	OperatorLessThan    Operator = "lt"
	OperatorContains    Operator = "contains"
	OperatorIsSet       Operator = "set"
	OperatorIsNotSet    Operator = "not_set"
)

// CombineMode controls how the clauses of one expression are combined.
type CombineMode string

const (
	CombineAll CombineMode = "and"
	CombineAny CombineMode = "or"
)

// ConditionClause compares one application-data field against a literal.
// Field is a dotted path into the application snapshot ("payment.amount").
type ConditionClause struct {
	Field    string   `json:"field"    validate:"required"`
	Operator Operator `json:"operator" validate:"required,oneof=eq neq gt lt contains set not_set"`
	Value    any      `json:"value,omitempty"`
}

// ConditionExpression is a structured predicate over application data. A nil
// or empty expression always evaluates to true, which makes unconditional
// transitions the default. Evaluation is deterministic and side-effect free,
// so the executor may re-evaluate freely during a cascade.
type ConditionExpression struct {
	Mode    CombineMode       `json:"mode,omitempty" validate:"omitempty,oneof=and or"`
	Clauses []ConditionClause `json:"clauses"`
}

// Validate rejects malformed expressions at workflow-authoring time so
// evaluation never has to deal with unknown operators.
func (c *ConditionExpression) Validate() error {
	if c == nil {
		return nil
	}

	if c.Mode != "" && c.Mode != CombineAll && c.Mode != CombineAny {
		return fmt.Errorf("unknown combine mode %q", c.Mode)
	}

	for i, clause := range c.Clauses {
		if clause.Field == "" {
			return fmt.Errorf("clause %d: field is required", i)
		}

		switch clause.Operator {
		case OperatorEquals, OperatorNotEquals, OperatorGreaterThan,
			OperatorLessThan, OperatorContains, OperatorIsSet, OperatorIsNotSet:
		default:
			return fmt.Errorf("clause %d: unknown operator %q", i, clause.Operator)
		}
	}

	return nil
}

// Evaluate reports whether the expression matches the given application
// snapshot. A missing field fails "set"-style checks and never matches
// equality or ordering comparisons; evaluation never errors on absent data.
func (c *ConditionExpression) Evaluate(data map[string]any) bool {
	if c == nil || len(c.Clauses) == 0 {
		return true
	}

	mode := c.Mode
	if mode == "" {
		mode = CombineAll
	}

	for _, clause := range c.Clauses {
		matched := clause.evaluate(data)

		if mode == CombineAny && matched {
			return true
		}

		if mode == CombineAll && !matched {
			return false
		}
	}

	return mode == CombineAll
}

func (cl ConditionClause) evaluate(data map[string]any) bool {
	value, present := lookupField(data, cl.Field)

	switch cl.Operator {
	case OperatorIsSet:
		return present && value != nil
	case OperatorIsNotSet:
		return !present || value == nil
	}

	if !present {
		return false
	}

	switch cl.Operator {
	case OperatorEquals:
		return looselyEqual(value, cl.Value)
	case OperatorNotEquals:
		return !looselyEqual(value, cl.Value)
	case OperatorGreaterThan:
		return compareOrdered(value, cl.Value) > 0
	case OperatorLessThan:
		return compareOrdered(value, cl.Value) < 0
	case OperatorContains:
		return contains(value, cl.Value)
	}

	return false
}

// lookupField walks a dotted path through nested maps.
func lookupField(data map[string]any, path string) (any, bool) {
	current := any(data)

	for _, segment := range strings.Split(path, ".") {
		asMap, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}

		current, ok = asMap[segment]
		if !ok {
			return nil, false
		}
	}

	return current, true
}

// looselyEqual compares values the way JSON round-trips deliver them:
// numbers compare numerically regardless of concrete type, everything else
// via fmt representation when the types differ.
func looselyEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	aNum, aOK := toFloat(a)
	bNum, bOK := toFloat(b)

	if aOK && bOK {
		return aNum == bNum
	}

	if aOK != bOK {
		return false
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// compareOrdered returns -1, 0, or 1 for comparable values, and 0 for
// incomparable pairs so that both gt and lt fail on them.
func compareOrdered(a, b any) int {
	aNum, aOK := toFloat(a)
	bNum, bOK := toFloat(b)

	if aOK && bOK {
		switch {
		case aNum > bNum:
			return 1
		case aNum < bNum:
			return -1
		default:
			return 0
		}
	}

	aStr, aIsStr := a.(string)
	bStr, bIsStr := b.(string)

	if aIsStr && bIsStr {
		return strings.Compare(aStr, bStr)
	}

	return 0
}

func contains(haystack, needle any) bool {
	switch v := haystack.(type) {
	case string:
		needleStr, ok := needle.(string)

		return ok && strings.Contains(v, needleStr)
	case []any:
		for _, item := range v {
			if looselyEqual(item, needle) {
				return true
			}
		}

		return false
	case []string:
		needleStr, ok := needle.(string)
		if !ok {
			return false
		}

		for _, item := range v {
			if item == needleStr {
				return true
			}
		}

		return false
	default:
		return false
	}
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}
