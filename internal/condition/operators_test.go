// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package condition

import (
	"testing"

	"grimm.is/edgesentry/internal/graph"
	"grimm.is/edgesentry/internal/reqctx"
)

func TestEqualsTypeMismatchIsFalse(t *testing.T) {
	if Evaluate(reqctx.NewString("80"), "equals", graph.NewConditionNumber(80)) {
		t.Fatal("expected mismatched types to evaluate false")
	}
}

func TestStartsWith(t *testing.T) {
	if !Evaluate(reqctx.NewString("/admin/login"), "starts_with", graph.NewConditionString("/admin")) {
		t.Fatal("expected starts_with match")
	}
}

func TestMatchesRegexCompileFailureIsFalse(t *testing.T) {
	if Evaluate(reqctx.NewString("anything"), "matches", graph.NewConditionString("(unterminated")) {
		t.Fatal("expected compile failure to evaluate false")
	}
}

func TestInCIDR(t *testing.T) {
	op := graph.NewConditionCidrList([]string{"10.0.0.0/8"})
	if !Evaluate(reqctx.NewIP("10.5.1.2"), "in_cidr", op) {
		t.Fatal("expected 10.5.1.2 to be in 10.0.0.0/8")
	}
	if Evaluate(reqctx.NewIP("11.0.0.1"), "in_cidr", op) {
		t.Fatal("expected 11.0.0.1 to be outside 10.0.0.0/8")
	}
}

func TestExistsNotExists(t *testing.T) {
	if !Evaluate(reqctx.NewString("x"), "exists", graph.ConditionValue{}) {
		t.Fatal("expected exists to be true for a present value")
	}
	if !Evaluate(reqctx.None, "not_exists", graph.ConditionValue{}) {
		t.Fatal("expected not_exists to be true for an absent value")
	}
}

func TestNumericComparison(t *testing.T) {
	if !Evaluate(reqctx.NewNumber(5), "greater_than", graph.NewConditionNumber(3)) {
		t.Fatal("expected 5 > 3")
	}
	if Evaluate(reqctx.NewNumber(2), "greater_than", graph.NewConditionNumber(3)) {
		t.Fatal("expected 2 > 3 to be false")
	}
}

func TestMembership(t *testing.T) {
	list := graph.NewConditionList([]string{"a", "b", "c"})
	if !Evaluate(reqctx.NewString("b"), "in", list) {
		t.Fatal("expected b to be in list")
	}
	if Evaluate(reqctx.NewString("z"), "in", list) {
		t.Fatal("expected z to not be in list")
	}
}
