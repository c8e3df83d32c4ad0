// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package engine

import (
	"testing"

	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

func req(path, clientIP string) *reqctx.Request {
	return reqctx.NewRequest(reqctx.Request{PathVal: path, ClientIPVal: clientIP}, nil, nil)
}

// S1/S2: admin block rule.
func TestAdminPathBlocked(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	if err := e.AddRule("admin", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"path","operator":"starts_with","value":"/admin"}]},
		"action": {"type": "block", "response_code": 403}
	}`)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	v := e.Evaluate(req("/admin/login", "1.2.3.4"))
	if v.Kind != ruletypes.VerdictBlock || v.StatusCode != 403 {
		t.Fatalf("expected block 403, got %+v", v)
	}
	if v.Message != "Blocked by rule: admin" {
		t.Errorf("unexpected message: %q", v.Message)
	}
}

func TestNonMatchingPathAllowed(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("admin", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"path","operator":"starts_with","value":"/admin"}]},
		"action": {"type": "block", "response_code": 403}
	}`))

	result := e.EvaluateWithDetails(req("/public", "1.2.3.4"))
	if result.Verdict.Kind != ruletypes.VerdictAllow {
		t.Fatalf("expected allow, got %+v", result.Verdict)
	}
	if result.MatchedRule != "" {
		t.Errorf("expected no matched rule, got %q", result.MatchedRule)
	}
	if len(result.Trace) != 1 || result.Trace[0].ActionTaken != "" {
		t.Errorf("expected one unmatched trace entry, got %+v", result.Trace)
	}
}

// S3: CIDR range.
func TestCIDRRangeBlocksInsideRangeOnly(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("cidr", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"ip","operator":"in_range","values":["10.0.0.0/8"]}]},
		"action": {"type": "block", "response_code": 403}
	}`))

	if v := e.Evaluate(req("/", "10.5.1.2")); v.Kind != ruletypes.VerdictBlock {
		t.Errorf("expected block for in-range IP, got %+v", v)
	}
	if v := e.Evaluate(req("/", "11.0.0.1")); v.Kind != ruletypes.VerdictAllow {
		t.Errorf("expected allow for out-of-range IP, got %+v", v)
	}
}

// IP.equals does a literal dotted-string compare, not an address-normalized
// one: a zero-padded octet form never matches a configured plain form.
func TestIPEqualsIsLiteralStringCompareNotNormalized(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("blocklist", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"ip","operator":"equals","values":["127.0.0.1"]}]},
		"action": {"type": "block", "response_code": 403}
	}`))

	if v := e.Evaluate(req("/", "127.0.0.1")); v.Kind != ruletypes.VerdictBlock {
		t.Errorf("expected block for exact literal match, got %+v", v)
	}
	if v := e.Evaluate(req("/", "127.000.000.001")); v.Kind != ruletypes.VerdictAllow {
		t.Errorf("expected allow for a zero-padded octet form that is not a literal string match, got %+v", v)
	}
}

// S4: Header leaf key-vs-value bug is preserved bit-for-bit.
func TestHeaderLeafComparesValueAgainstKey(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("apikey", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"header","key":"X-Api-Key","operator":"equals"}]},
		"action": {"type": "block", "response_code": 403}
	}`))

	matching := reqctx.NewRequest(reqctx.Request{
		PathVal:     "/",
		HeaderOrder: []string{"X-Api-Key"},
		Headers:     map[string]string{"X-Api-Key": "X-Api-Key"},
	}, nil, nil)
	if v := e.Evaluate(matching); v.Kind != ruletypes.VerdictBlock {
		t.Errorf("expected block when header value equals its own key, got %+v", v)
	}

	mismatching := reqctx.NewRequest(reqctx.Request{
		PathVal:     "/",
		HeaderOrder: []string{"X-Api-Key"},
		Headers:     map[string]string{"X-Api-Key": "secret-value"},
	}, nil, nil)
	if v := e.Evaluate(mismatching); v.Kind != ruletypes.VerdictAllow {
		t.Errorf("expected allow when header value differs from its key, got %+v", v)
	}
}

// S5: rate-limit leaf with penalty box.
func TestRateLimitLeafBlocksThenPenaltyBoxes(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("rl", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"ratelimit","window":"1s","max_requests":2,"block_ttl_seconds":60}]},
		"action": {"type": "block", "response_code": 429}
	}`))

	r := req("/", "9.9.9.9")
	if v := e.Evaluate(r); v.Kind != ruletypes.VerdictAllow {
		t.Fatalf("request 1: expected allow, got %+v", v)
	}
	if v := e.Evaluate(r); v.Kind != ruletypes.VerdictAllow {
		t.Fatalf("request 2: expected allow, got %+v", v)
	}
	if v := e.Evaluate(r); v.Kind != ruletypes.VerdictBlock {
		t.Fatalf("request 3: expected block (threshold exceeded), got %+v", v)
	}
	if v := e.Evaluate(r); v.Kind != ruletypes.VerdictBlock {
		t.Fatalf("request 4: expected block (penalty box), got %+v", v)
	}
}

func TestRateLimitLeafNoClientIPFailsOpen(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("rl", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"ratelimit","window":"1s","max_requests":0,"block_ttl_seconds":60}]},
		"action": {"type": "block", "response_code": 429}
	}`))

	if v := e.Evaluate(req("/", "")); v.Kind != ruletypes.VerdictAllow {
		t.Errorf("expected fail-open allow with no client IP, got %+v", v)
	}
}

// Invariant 2: disabled-rule invisibility.
func TestDisabledRuleIsInvisible(t *testing.T) {
	withRule := New(ratelimit.NewRegistry(), "origin")
	_ = withRule.AddRule("admin", []byte(`{
		"enabled": false,
		"conditions": {"operator": "and", "rules": [{"type":"path","operator":"starts_with","value":"/admin"}]},
		"action": {"type": "block", "response_code": 403}
	}`))
	without := New(ratelimit.NewRegistry(), "origin")

	r := req("/admin/login", "1.2.3.4")
	if withRule.Evaluate(r) != without.Evaluate(r) {
		t.Errorf("disabled rule should behave identically to an absent rule")
	}
}

// Invariant 1: duplicate rule names rejected.
func TestDuplicateRuleNameRejected(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	body := []byte(`{"enabled":true,"conditions":{"operator":"and","rules":[]},"action":{"type":"allow"}}`)
	if err := e.AddRule("dup", body); err != nil {
		t.Fatalf("unexpected error on first add: %v", err)
	}
	if err := e.AddRule("dup", body); err == nil {
		t.Error("expected error on duplicate rule name")
	}
	if e.RuleCount() != 1 {
		t.Errorf("expected rule count 1, got %d", e.RuleCount())
	}
}

// Invariant 3 (De Morgan): NOT over a tree behaves as none-matched.
func TestNotCombinatorIsNoneMatched(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin")
	_ = e.AddRule("not-admin", []byte(`{
		"enabled": true,
		"conditions": {"operator": "not", "rules": [{"type":"path","operator":"starts_with","value":"/admin"}]},
		"action": {"type": "block", "response_code": 403}
	}`))

	if v := e.Evaluate(req("/admin", "1.2.3.4")); v.Kind != ruletypes.VerdictAllow {
		t.Errorf("NOT should not match when the child matched, got %+v", v)
	}
	if v := e.Evaluate(req("/public", "1.2.3.4")); v.Kind != ruletypes.VerdictBlock {
		t.Errorf("NOT should match when the child did not match, got %+v", v)
	}
}

// Unknown action type forwards with the default backend and is marked
// unrecognized (§7).
func TestUnknownActionTypeForwardsWithDefaultBackend(t *testing.T) {
	e := New(ratelimit.NewRegistry(), "origin-default")
	_ = e.AddRule("weird", []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [{"type":"path","operator":"equals","value":"/x"}]},
		"action": {"type": "quarantine"}
	}`))

	result := e.EvaluateWithDetails(req("/x", "1.2.3.4"))
	if result.Verdict.Kind != ruletypes.VerdictForward || result.Verdict.Backend != "origin-default" {
		t.Fatalf("expected forward to default backend, got %+v", result.Verdict)
	}
	if result.Recognized {
		t.Error("expected action to be marked unrecognized")
	}
	if result.Trace[len(result.Trace)-1].ActionTaken != "unknown_action" {
		t.Errorf("expected unknown_action trace entry, got %+v", result.Trace[len(result.Trace)-1])
	}
}
