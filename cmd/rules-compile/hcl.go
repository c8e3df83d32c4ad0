// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package main

import (
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/zclconf/go-cty/cty"

	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/ruletypes"
)

// ruleCtx exposes a handful of named constants to rule-authoring HCL
// files, so an author can write `window = rate.window_1s` instead of
// repeating the literal string, the same evaluation-context idiom the
// teacher's own HCL decoding passes into hclsimple.
var ruleCtx = &hcl.EvalContext{
	Variables: map[string]cty.Value{
		"rate": cty.ObjectVal(map[string]cty.Value{
			"window_1s":  cty.StringVal(string(ratelimit.Window1s)),
			"window_10s": cty.StringVal(string(ratelimit.Window10s)),
			"window_60s": cty.StringVal(string(ratelimit.Window60s)),
		}),
		"device": cty.ObjectVal(map[string]cty.Value{
			"mobile":  cty.StringVal(string(ruletypes.DeviceMobile)),
			"tablet":  cty.StringVal(string(ruletypes.DeviceTablet)),
			"desktop": cty.StringVal(string(ruletypes.DeviceDesktop)),
		}),
	},
}

// hclDocument is the root of a rule-authoring HCL file, decoded with
// hclsimple the same way the teacher's internal/config package decodes its
// firewall configuration.
type hclDocument struct {
	Rules    []hclRule    `hcl:"rule,block"`
	Backends []hclBackend `hcl:"backend,block"`
}

type hclRule struct {
	Name       string          `hcl:"name,label"`
	Enabled    bool            `hcl:"enabled"`
	Combinator string          `hcl:"combinator,optional"`
	Conditions []hclCondition  `hcl:"condition,block"`
	Action     hclAction       `hcl:"action,block"`
}

type hclCondition struct {
	Type            string `hcl:"type,label"`
	Operator        string `hcl:"operator,optional"`
	Value           string `hcl:"value,optional"`
	Values          []string `hcl:"values,optional"`
	Key             string `hcl:"key,optional"`
	Window          string `hcl:"window,optional"`
	MaxRequests     int    `hcl:"max_requests,optional"`
	BlockTTLSeconds int    `hcl:"block_ttl_seconds,optional"`
	CounterName     string `hcl:"counter_name,optional"`
	PenaltyboxName  string `hcl:"penaltybox_name,optional"`
}

type hclAction struct {
	Type            string `hcl:"type,label"`
	ResponseCode    int    `hcl:"response_code,optional"`
	ResponseMessage string `hcl:"response_message,optional"`
	ChallengeType   string `hcl:"challenge_type,optional"`
	Backend         string `hcl:"backend,optional"`
}

type hclBackend struct {
	Name                  string `hcl:"name,label"`
	Host                  string `hcl:"host"`
	Port                  int    `hcl:"port"`
	UseTLS                bool   `hcl:"use_tls,optional"`
	ConnectTimeoutMs      int    `hcl:"connect_timeout_ms,optional"`
	FirstByteTimeoutMs    int    `hcl:"first_byte_timeout_ms,optional"`
	BetweenBytesTimeoutMs int    `hcl:"between_bytes_timeout_ms,optional"`
}

// decodeHCL parses an author-facing HCL rule file into the flat
// ruletypes model, honoring the same blocks-as-repeated-labels idiom the
// teacher uses for its own firewall policy HCL.
func decodeHCL(path string) ([]ruletypes.Rule, map[string]ruletypes.BackendConfig, error) {
	var doc hclDocument
	if err := hclsimple.DecodeFile(path, ruleCtx, &doc); err != nil {
		return nil, nil, err
	}

	rules := make([]ruletypes.Rule, 0, len(doc.Rules))
	for _, hr := range doc.Rules {
		combinator := ruletypes.Combinator(hr.Combinator)
		if combinator == "" {
			combinator = ruletypes.CombinatorAnd
		}

		conditions := make([]ruletypes.ConditionRule, 0, len(hr.Conditions))
		for _, hc := range hr.Conditions {
			conditions = append(conditions, ruletypes.ConditionRule{
				Type:            ruletypes.ConditionKind(hc.Type),
				Operator:        ruletypes.Operator(hc.Operator),
				Value:           hc.Value,
				Values:          hc.Values,
				DeviceValue:     ruletypes.DeviceClass(hc.Value),
				Key:             hc.Key,
				Window:          ratelimit.Window(hc.Window),
				MaxRequests:     uint32(hc.MaxRequests),
				BlockTTLSeconds: uint32(hc.BlockTTLSeconds),
				CounterName:     hc.CounterName,
				PenaltyboxName:  hc.PenaltyboxName,
			})
		}

		rules = append(rules, ruletypes.Rule{
			Name:    hr.Name,
			Enabled: hr.Enabled,
			Conditions: ruletypes.ConditionTree{
				Operator: combinator,
				Rules:    conditions,
			},
			Action: ruletypes.Action{
				Type:            hr.Action.Type,
				ResponseCode:    uint16(hr.Action.ResponseCode),
				ResponseMessage: hr.Action.ResponseMessage,
				ChallengeType:   hr.Action.ChallengeType,
				Backend:         hr.Action.Backend,
			},
		})
	}

	backends := make(map[string]ruletypes.BackendConfig, len(doc.Backends))
	for _, hb := range doc.Backends {
		backends[hb.Name] = ruletypes.BackendConfig{
			Host:                  hb.Host,
			Port:                  hb.Port,
			UseTLS:                hb.UseTLS,
			ConnectTimeoutMs:      hb.ConnectTimeoutMs,
			FirstByteTimeoutMs:    hb.FirstByteTimeoutMs,
			BetweenBytesTimeoutMs: hb.BetweenBytesTimeoutMs,
		}
	}

	return rules, backends, nil
}
