// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package condition implements the operator table (§4.6) used by the graph
// interpreter's Condition nodes. The flat engine does not use it: its
// leaves apply their own per-kind operators in internal/engine.
package condition

import (
	"net"
	"regexp"
	"strings"

	"grimm.is/edgesentry/internal/graph"
	"grimm.is/edgesentry/internal/logging"
	"grimm.is/edgesentry/internal/reqctx"
)

// Evaluate applies operator to field against operand per the table in
// §4.6. A type mismatch, an unparsable regex, or an unparsable CIDR always
// evaluates to false rather than erroring — condition evaluation never
// fails a request (§7 propagation policy).
func Evaluate(field reqctx.Value, operator string, operand graph.ConditionValue) bool {
	switch operator {
	case "equals":
		return equalValues(field, operand)
	case "not_equals":
		switch {
		case field.Kind == reqctx.KindString && operand.Kind == graph.ConditionValueString,
			field.Kind == reqctx.KindNumber && operand.Kind == graph.ConditionValueNumber,
			field.Kind == reqctx.KindBool && operand.Kind == graph.ConditionValueBool,
			field.Kind == reqctx.KindIP && operand.Kind == graph.ConditionValueString:
			return !equalValues(field, operand)
		}
		return false
	case "contains":
		return stringOp(field, operand, strings.Contains)
	case "not_contains":
		if operand.Kind != graph.ConditionValueString || (field.Kind != reqctx.KindString && field.Kind != reqctx.KindIP) {
			return false
		}
		return !strings.Contains(field.String(), operand.Str)
	case "starts_with":
		return stringOp(field, operand, strings.HasPrefix)
	case "ends_with":
		return stringOp(field, operand, strings.HasSuffix)
	case "matches":
		if field.Kind != reqctx.KindString && field.Kind != reqctx.KindIP {
			return false
		}
		re, err := regexp.Compile(operand.Str)
		if err != nil {
			logging.Warn("condition regex compile failed", "pattern", operand.Str, "error", err)
			return false
		}
		return re.MatchString(field.String())
	case "greater_than":
		return numericOp(field, operand, func(a, b float64) bool { return a > b })
	case "less_than":
		return numericOp(field, operand, func(a, b float64) bool { return a < b })
	case ">=":
		return numericOp(field, operand, func(a, b float64) bool { return a >= b })
	case "<=":
		return numericOp(field, operand, func(a, b float64) bool { return a <= b })
	case "in":
		return membership(field, operand)
	case "not_in":
		if operand.Kind != graph.ConditionValueList {
			return false
		}
		return !membership(field, operand)
	case "in_cidr":
		return inCIDR(field, operand)
	case "exists":
		return field.Kind != reqctx.KindNone
	case "not_exists":
		return field.Kind == reqctx.KindNone
	default:
		return false
	}
}

func equalValues(field reqctx.Value, operand graph.ConditionValue) bool {
	switch {
	case field.Kind == reqctx.KindString && operand.Kind == graph.ConditionValueString:
		return field.Str == operand.Str
	case field.Kind == reqctx.KindNumber && operand.Kind == graph.ConditionValueNumber:
		return field.Number == operand.Number
	case field.Kind == reqctx.KindBool && operand.Kind == graph.ConditionValueBool:
		return field.Bool == operand.Bool
	case field.Kind == reqctx.KindIP && operand.Kind == graph.ConditionValueString:
		return field.IP == operand.Str
	default:
		return false
	}
}

func stringOp(field reqctx.Value, operand graph.ConditionValue, f func(s, substr string) bool) bool {
	if operand.Kind != graph.ConditionValueString {
		return false
	}
	if field.Kind != reqctx.KindString && field.Kind != reqctx.KindIP {
		return false
	}
	return f(field.String(), operand.Str)
}

func numericOp(field reqctx.Value, operand graph.ConditionValue, f func(a, b float64) bool) bool {
	if field.Kind != reqctx.KindNumber || operand.Kind != graph.ConditionValueNumber {
		return false
	}
	return f(field.Number, operand.Number)
}

func membership(field reqctx.Value, operand graph.ConditionValue) bool {
	if operand.Kind != graph.ConditionValueList {
		return false
	}
	needle := field.String()
	for _, v := range operand.List {
		if v == needle {
			return true
		}
	}
	return false
}

func inCIDR(field reqctx.Value, operand graph.ConditionValue) bool {
	if field.Kind != reqctx.KindIP && field.Kind != reqctx.KindString {
		return false
	}
	ip := net.ParseIP(field.String())
	if ip == nil {
		return false
	}
	cidrs := operand.CidrList
	if operand.Kind == graph.ConditionValueList {
		cidrs = operand.List
	}
	for _, c := range cidrs {
		_, network, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
