// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package graph

import (
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

// NodeKindType discriminates which NodeKind variant a Node carries (§3).
type NodeKindType string

const (
	KindRequest   NodeKindType = "request"
	KindCondition NodeKindType = "condition"
	KindAnd       NodeKindType = "and"
	KindOr        NodeKindType = "or"
	KindNot       NodeKindType = "not"
	KindRateLimit NodeKindType = "ratelimit"
	KindAction    NodeKindType = "action"
	KindForward   NodeKindType = "forward"
	KindHeader    NodeKindType = "header"
	KindComment   NodeKindType = "comment"
)

// RateLimitMode selects a RateLimit node's behavior (§4.5).
type RateLimitMode string

const (
	ModeCheckRate            RateLimitMode = "check_rate"
	ModeCheckRateAndPenalize RateLimitMode = "check_rate_and_penalize"
	ModeInPenaltyBox         RateLimitMode = "in_penalty_box"
	ModeAddToPenaltyBox      RateLimitMode = "add_to_penalty_box"
)

// HeaderOp selects what a Header terminal node does to the forwarded
// request's headers.
type HeaderOp string

const (
	HeaderOpSet    HeaderOp = "set"
	HeaderOpRemove HeaderOp = "remove"
)

// ConditionValueKind discriminates which ConditionValue variant is set.
type ConditionValueKind int

const (
	ConditionValueString ConditionValueKind = iota
	ConditionValueNumber
	ConditionValueBool
	ConditionValueList
	ConditionValueCidrList
)

// ConditionValue is the typed operand a Condition node compares a
// RequestField's resolved Value against (SPEC_FULL §3). Every field besides
// Kind is tagged with omitempty: only the field matching Kind is ever populated,
// so the rest are already at their Go zero value and round-trip through
// JSON without a custom (Un)MarshalJSON.
type ConditionValue struct {
	Kind     ConditionValueKind `json:"kind"`
	Str      string             `json:"str,omitempty"`
	Number   float64            `json:"number,omitempty"`
	Bool     bool               `json:"bool,omitempty"`
	List     []string           `json:"list,omitempty"`
	CidrList []string           `json:"cidr_list,omitempty"`
}

func NewConditionString(s string) ConditionValue { return ConditionValue{Kind: ConditionValueString, Str: s} }
func NewConditionNumber(n float64) ConditionValue { return ConditionValue{Kind: ConditionValueNumber, Number: n} }
func NewConditionBool(b bool) ConditionValue      { return ConditionValue{Kind: ConditionValueBool, Bool: b} }
func NewConditionList(l []string) ConditionValue  { return ConditionValue{Kind: ConditionValueList, List: l} }
func NewConditionCidrList(l []string) ConditionValue {
	return ConditionValue{Kind: ConditionValueCidrList, CidrList: l}
}

// NodeKind is every variant of node payload flattened onto one struct,
// discriminated by Type, the same tagged-union-as-struct idiom used by
// ruletypes.ConditionRule.
type NodeKind struct {
	Type NodeKindType `json:"type"`

	// Condition
	Field    reqctx.RequestField `json:"field,omitempty"`
	Operator string              `json:"operator,omitempty"`
	Value    ConditionValue      `json:"value"`

	// And / Or
	InputCount int `json:"input_count,omitempty"`

	// RateLimit
	Mode              RateLimitMode    `json:"mode,omitempty"`
	CounterName       string           `json:"counter_name,omitempty"`
	PenaltyboxName    string           `json:"penaltybox_name,omitempty"`
	Window            ratelimit.Window `json:"window,omitempty"`
	Threshold         uint32           `json:"threshold,omitempty"`
	PenaltyTTLSeconds uint32           `json:"penalty_ttl_seconds,omitempty"`

	// Action
	Action ruletypes.Action `json:"action"`

	// Forward
	Backend string `json:"backend,omitempty"`

	// Header
	HeaderOp    HeaderOp `json:"header_op,omitempty"`
	HeaderName  string   `json:"header_name,omitempty"`
	HeaderValue string   `json:"header_value,omitempty"`

	// Comment
	Text string `json:"text,omitempty"`
}

// Inputs returns the number of input ports this node kind exposes,
// mirroring original_source/core/src/nodes.rs NodeKind::inputs().
func (k NodeKind) Inputs() int {
	switch k.Type {
	case KindRequest, KindComment:
		return 0
	case KindCondition, KindNot, KindForward:
		return 1
	case KindAnd, KindOr:
		return k.InputCount
	case KindRateLimit:
		return 1
	case KindAction:
		return 1
	case KindHeader:
		return 1
	default:
		return 0
	}
}

// Outputs returns the number of output ports this node kind exposes.
func (k NodeKind) Outputs() int {
	switch k.Type {
	case KindRequest, KindCondition, KindAnd, KindOr, KindNot, KindRateLimit:
		return 1
	case KindAction, KindForward, KindHeader, KindComment:
		return 0
	default:
		return 0
	}
}

// IsTerminal reports whether this node kind ends evaluation when triggered
// (§4.4 step 3: Action/Forward nodes are terminals).
func (k NodeKind) IsTerminal() bool {
	return k.Type == KindAction || k.Type == KindForward
}
