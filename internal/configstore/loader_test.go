// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configstore

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"testing"

	"grimm.is/edgesentry/internal/errors"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

const challengeRuleJSON = `{"v":"1.0","r":["r1"],"d":{"r1":{"enabled":true,"conditions":{"operator":"and","rules":[{"type":"path","operator":"equals","value":"/x"}]},"action":{"type":"challenge","challenge_type":"captcha"}}}}`

func gzipBase64(s string) string {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte(s))
	_ = gw.Close()
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

// S6: a gzip-compressed packed blob loads one rule that challenges on match.
func TestLoadGzipPackedBlobChallengeRule(t *testing.T) {
	store := MapStore{KeyRulesPacked: gzipBase64(challengeRuleJSON)}

	e, backends, err := BuildEngine(store, ratelimit.NewRegistry(), "origin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backends) != 0 {
		t.Errorf("expected no backends, got %v", backends)
	}
	if e.RuleCount() != 1 {
		t.Fatalf("expected 1 rule, got %d", e.RuleCount())
	}

	v := e.Evaluate(reqctx.NewRequest(reqctx.Request{PathVal: "/x"}, nil, nil))
	if v.Kind != ruletypes.VerdictChallenge || v.ChallengeType != "captcha" {
		t.Fatalf("expected challenge/captcha, got %+v", v)
	}
}

func TestLoadRawPackedBlob(t *testing.T) {
	raw := "raw:" + base64.StdEncoding.EncodeToString([]byte(challengeRuleJSON))
	store := MapStore{KeyRulesPacked: raw}

	e, _, err := BuildEngine(store, ratelimit.NewRegistry(), "origin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.RuleCount() != 1 {
		t.Fatalf("expected 1 rule, got %d", e.RuleCount())
	}
}

func TestLoadLegacyFormat(t *testing.T) {
	ruleJSON := `{"enabled":true,"conditions":{"operator":"and","rules":[{"type":"path","operator":"equals","value":"/y"}]},"action":{"type":"block","response_code":403}}`
	store := MapStore{
		KeyRuleList: "rA, rB",
		"rA":        ruleJSON,
	}

	e, _, err := BuildEngine(store, ratelimit.NewRegistry(), "origin")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if e.RuleCount() != 1 {
		t.Fatalf("expected 1 rule (rB silently skipped), got %d", e.RuleCount())
	}
}

func TestLoadNeitherPackedNorLegacyIsConfigNotFound(t *testing.T) {
	_, _, _, err := NewLoader().Load(MapStore{})
	if err == nil || errors.GetKind(err) != errors.KindConfigNotFound {
		t.Fatalf("expected KindConfigNotFound, got %v", err)
	}
}

func TestLoadCorruptBase64IsLoadError(t *testing.T) {
	store := MapStore{KeyRulesPacked: "not-valid-base64!!!"}
	_, _, _, err := NewLoader().Load(store)
	if err == nil || errors.GetKind(err) != errors.KindLoad {
		t.Fatalf("expected KindLoad, got %v", err)
	}
}
