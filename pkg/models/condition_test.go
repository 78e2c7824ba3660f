package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionExpression_Evaluate_Empty(t *testing.T) {
	var nilCondition *ConditionExpression

	assert.True(t, nilCondition.Evaluate(map[string]any{"anything": 1}))
	assert.True(t, (&ConditionExpression{}).Evaluate(nil))
	assert.True(t, (&ConditionExpression{Clauses: []ConditionClause{}}).Evaluate(nil))
}

func TestConditionExpression_Evaluate(t *testing.T) {
	data := map[string]any{
		"documents_complete": true,
		"gpa":                3.4,
		"essay_word_count":   float64(650),
		"residency":          "in_state",
		"tags":               []any{"priority", "transfer"},
		"payment": map[string]any{
			"amount": 75,
			"status": "completed",
		},
	}

	tests := []struct {
		name   string
		clause ConditionClause
		want   bool
	}{
		{"eq bool", ConditionClause{Field: "documents_complete", Operator: OperatorEquals, Value: true}, true},
		{"eq bool miss", ConditionClause{Field: "documents_complete", Operator: OperatorEquals, Value: false}, false},
		{"eq numeric cross-type", ConditionClause{Field: "essay_word_count", Operator: OperatorEquals, Value: 650}, true},
		{"eq string", ConditionClause{Field: "residency", Operator: OperatorEquals, Value: "in_state"}, true},
		{"neq", ConditionClause{Field: "residency", Operator: OperatorNotEquals, Value: "out_of_state"}, true},
		{"gt", ConditionClause{Field: "gpa", Operator: OperatorGreaterThan, Value: 3.0}, true},
		{"gt fails", ConditionClause{Field: "gpa", Operator: OperatorGreaterThan, Value: 3.5}, false},
		{"lt", ConditionClause{Field: "gpa", Operator: OperatorLessThan, Value: 4.0}, true},
		{"contains string", ConditionClause{Field: "residency", Operator: OperatorContains, Value: "state"}, true},
		{"contains slice", ConditionClause{Field: "tags", Operator: OperatorContains, Value: "priority"}, true},
		{"contains slice miss", ConditionClause{Field: "tags", Operator: OperatorContains, Value: "athlete"}, false},
		{"set", ConditionClause{Field: "gpa", Operator: OperatorIsSet}, true},
		{"not_set on present", ConditionClause{Field: "gpa", Operator: OperatorIsNotSet}, false},
		{"nested path", ConditionClause{Field: "payment.status", Operator: OperatorEquals, Value: "completed"}, true},
		{"nested numeric", ConditionClause{Field: "payment.amount", Operator: OperatorGreaterThan, Value: 50}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			condition := &ConditionExpression{Clauses: []ConditionClause{tt.clause}}
			assert.Equal(t, tt.want, condition.Evaluate(data))
		})
	}
}

func TestConditionExpression_Evaluate_MissingFields(t *testing.T) {
	data := map[string]any{"present": 1}

	tests := []struct {
		name   string
		clause ConditionClause
		want   bool
	}{
		{"eq missing", ConditionClause{Field: "absent", Operator: OperatorEquals, Value: 1}, false},
		{"neq missing", ConditionClause{Field: "absent", Operator: OperatorNotEquals, Value: 1}, false},
		{"gt missing", ConditionClause{Field: "absent", Operator: OperatorGreaterThan, Value: 0}, false},
		{"contains missing", ConditionClause{Field: "absent", Operator: OperatorContains, Value: "x"}, false},
		{"set missing", ConditionClause{Field: "absent", Operator: OperatorIsSet}, false},
		{"not_set missing", ConditionClause{Field: "absent", Operator: OperatorIsNotSet}, true},
		{"path through non-map", ConditionClause{Field: "present.deeper", Operator: OperatorIsSet}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			condition := &ConditionExpression{Clauses: []ConditionClause{tt.clause}}
			assert.Equal(t, tt.want, condition.Evaluate(data))
		})
	}
}

func TestConditionExpression_Evaluate_CombineModes(t *testing.T) {
	data := map[string]any{"a": 1, "b": 2}

	matchA := ConditionClause{Field: "a", Operator: OperatorEquals, Value: 1}
	missB := ConditionClause{Field: "b", Operator: OperatorEquals, Value: 99}

	andExpr := &ConditionExpression{Clauses: []ConditionClause{matchA, missB}}
	assert.False(t, andExpr.Evaluate(data), "default mode is and")

	orExpr := &ConditionExpression{Mode: CombineAny, Clauses: []ConditionClause{matchA, missB}}
	assert.True(t, orExpr.Evaluate(data))

	orNone := &ConditionExpression{Mode: CombineAny, Clauses: []ConditionClause{missB}}
	assert.False(t, orNone.Evaluate(data))
}

func TestConditionExpression_Validate(t *testing.T) {
	valid := &ConditionExpression{
		Mode: CombineAll,
		Clauses: []ConditionClause{
			{Field: "gpa", Operator: OperatorGreaterThan, Value: 2.0},
		},
	}
	require.NoError(t, valid.Validate())

	var nilCondition *ConditionExpression
	require.NoError(t, nilCondition.Validate())

	badOperator := &ConditionExpression{
		Clauses: []ConditionClause{{Field: "gpa", Operator: "matches"}},
	}
	assert.ErrorContains(t, badOperator.Validate(), "unknown operator")

	emptyField := &ConditionExpression{
		Clauses: []ConditionClause{{Operator: OperatorIsSet}},
	}
	assert.ErrorContains(t, emptyField.Validate(), "field is required")

	badMode := &ConditionExpression{Mode: "xor"}
	assert.ErrorContains(t, badMode.Validate(), "combine mode")
}
