// Package models provides condition evaluation for automation branch steps.
package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ConditionOperator is the comparison applied by a condition step.
type ConditionOperator string

const (
	OpEquals       ConditionOperator = "equals"
	OpNotEquals    ConditionOperator = "not_equals"
	OpContains     ConditionOperator = "contains"
	OpNotContains  ConditionOperator = "not_contains"
	OpGreaterThan  ConditionOperator = "greater_than"
	OpLessThan     ConditionOperator = "less_than"
	OpIsEmpty      ConditionOperator = "is_empty"
	OpIsNotEmpty   ConditionOperator = "is_not_empty"
	OpInSegment    ConditionOperator = "in_segment"
	OpNotInSegment ConditionOperator = "not_in_segment"
	OpHasTag       ConditionOperator = "has_tag"
	OpNotHasTag    ConditionOperator = "not_has_tag"
)

// IsValid checks if the operator is one of the known comparisons.
func (o ConditionOperator) IsValid() bool {
	switch o {
	case OpEquals, OpNotEquals, OpContains, OpNotContains,
		OpGreaterThan, OpLessThan, OpIsEmpty, OpIsNotEmpty,
		OpInSegment, OpNotInSegment, OpHasTag, OpNotHasTag:
		return true
	default:
		return false
	}
}

// ContactSnapshot is the contact state a condition evaluates against. The
// caller fetches it fresh from the directory and segment collaborators.
type ContactSnapshot struct {
	Fields   map[string]any `json:"fields"`
	Tags     []string       `json:"tags"`
	Segments []string       `json:"segments"`
}

// EvaluateCondition applies the operator semantics to the contact snapshot.
// Pure function, no I/O.
func EvaluateCondition(config *ConditionConfig, contact ContactSnapshot) (bool, error) {
	fieldValue, fieldSet := contact.Fields[config.Field]

	switch config.Operator {
	case OpEquals:
		return fieldSet && coerceString(fieldValue) == coerceString(config.Value), nil
	case OpNotEquals:
		return !fieldSet || coerceString(fieldValue) != coerceString(config.Value), nil
	case OpContains:
		return fieldSet && strings.Contains(coerceString(fieldValue), coerceString(config.Value)), nil
	case OpNotContains:
		return !fieldSet || !strings.Contains(coerceString(fieldValue), coerceString(config.Value)), nil
	case OpGreaterThan:
		left, right, ok := coerceNumbers(fieldValue, config.Value)

		return ok && left > right, nil
	case OpLessThan:
		left, right, ok := coerceNumbers(fieldValue, config.Value)

		return ok && left < right, nil
	case OpIsEmpty:
		return !fieldSet || fieldValue == nil || coerceString(fieldValue) == "", nil
	case OpIsNotEmpty:
		return fieldSet && fieldValue != nil && coerceString(fieldValue) != "", nil
	case OpInSegment:
		return slices.Contains(contact.Segments, coerceString(config.Value)), nil
	case OpNotInSegment:
		return !slices.Contains(contact.Segments, coerceString(config.Value)), nil
	case OpHasTag:
		return slices.Contains(contact.Tags, coerceString(config.Value)), nil
	case OpNotHasTag:
		return !slices.Contains(contact.Tags, coerceString(config.Value)), nil
	default:
		return false, fmt.Errorf("unknown condition operator: %q", config.Operator)
	}
}

func coerceString(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}

// coerceNumbers converts both operands to float64. Non-numeric operands make
// the comparison false rather than an error, matching how contact field values
// of the wrong shape are treated as non-matching.
func coerceNumbers(left, right any) (float64, float64, bool) {
	l, ok := coerceNumber(left)
	if !ok {
		return 0, 0, false
	}

	r, ok := coerceNumber(right)
	if !ok {
		return 0, 0, false
	}

	return l, r, true
}

func coerceNumber(value any) (float64, bool) {
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
	case string:
		parsed, err := strconv.ParseFloat(v, 64)

		return parsed, err == nil
	default:
		return 0, false
	}
}
