// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package ruletypes

import (
	"encoding/json"
	"testing"
)

func TestParseRuleAdminBlock(t *testing.T) {
	doc := []byte(`{
		"enabled": true,
		"conditions": {"operator": "and", "rules": [
			{"type": "path", "operator": "starts_with", "value": "/admin"}
		]},
		"action": {"type": "block", "response_code": 403}
	}`)

	r, err := ParseRule("admin", doc)
	if err != nil {
		t.Fatalf("ParseRule failed: %v", err)
	}
	if r.Name != "admin" {
		t.Fatalf("expected name admin, got %q", r.Name)
	}
	if !r.Enabled {
		t.Fatal("expected enabled rule")
	}
	if r.Conditions.Operator != CombinatorAnd {
		t.Fatalf("expected and combinator, got %q", r.Conditions.Operator)
	}
	if len(r.Conditions.Rules) != 1 || r.Conditions.Rules[0].Type != ConditionPath {
		t.Fatalf("expected one path leaf, got %+v", r.Conditions.Rules)
	}
	if r.Action.Type != ActionBlock || r.Action.ResponseCode != 403 {
		t.Fatalf("unexpected action: %+v", r.Action)
	}
}

func TestDeviceLeafRoundTrip(t *testing.T) {
	doc := []byte(`{"type":"device","operator":"is","value":"mobile"}`)
	var leaf ConditionRule
	if err := json.Unmarshal(doc, &leaf); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if leaf.DeviceValue != DeviceMobile {
		t.Fatalf("expected mobile device value, got %q", leaf.DeviceValue)
	}

	out, err := json.Marshal(leaf)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var roundTripped ConditionRule
	if err := json.Unmarshal(out, &roundTripped); err != nil {
		t.Fatalf("unmarshal round trip: %v", err)
	}
	if roundTripped.DeviceValue != DeviceMobile {
		t.Fatalf("round trip lost device value: %+v", roundTripped)
	}
}

func TestBackendConfigDefaultsUseTLS(t *testing.T) {
	var b BackendConfig
	if err := json.Unmarshal([]byte(`{"host":"origin.example.com","port":443}`), &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !b.UseTLS {
		t.Fatal("expected use_tls to default to true when absent")
	}

	var b2 BackendConfig
	if err := json.Unmarshal([]byte(`{"host":"h","port":80,"use_tls":false}`), &b2); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if b2.UseTLS {
		t.Fatal("expected explicit use_tls=false to be honored")
	}
}
