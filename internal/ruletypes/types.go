// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package ruletypes defines the flat-rule data model: conditions, actions,
// and backend configuration, plus their JSON wire schema (spec §3, §6).
package ruletypes

import (
	"encoding/json"

	"grimm.is/edgesentry/internal/ratelimit"
)

// ConditionKind identifies which ConditionRule variant a leaf carries.
type ConditionKind string

const (
	ConditionPath       ConditionKind = "path"
	ConditionIP         ConditionKind = "ip"
	ConditionDevice     ConditionKind = "device"
	ConditionUserAgent  ConditionKind = "useragent"
	ConditionHeader     ConditionKind = "header"
	ConditionRateLimit  ConditionKind = "ratelimit"
)

// Operator is the string operator named on a ConditionRule leaf. Which
// operators are legal depends on the leaf kind (§3).
type Operator string

const (
	OpEquals       Operator = "equals"
	OpStartsWith   Operator = "starts_with"
	OpContains     Operator = "contains"
	OpMatchesRegex Operator = "matches_regex"
	OpInRange      Operator = "in_range"
	OpIs           Operator = "is"
	OpIsNot        Operator = "is_not"
	OpExists       Operator = "exists"
	OpNotExists    Operator = "not_exists"
)

// DeviceClass is a recognized value for the Device leaf.
type DeviceClass string

const (
	DeviceMobile  DeviceClass = "mobile"
	DeviceTablet  DeviceClass = "tablet"
	DeviceDesktop DeviceClass = "desktop"
)

// Combinator is the top-level boolean operator of a Condition tree.
type Combinator string

const (
	CombinatorAnd Combinator = "and"
	CombinatorOr  Combinator = "or"
	CombinatorNot Combinator = "not"
)

// ConditionRule is a single typed predicate leaf. Go has no tagged union,
// so every variant's fields live on one struct discriminated by Type, the
// same flattened-enum shape the wire JSON schema uses (§3, §6).
type ConditionRule struct {
	Type ConditionKind `json:"type"`

	// Path, UserAgent
	Operator Operator `json:"operator,omitempty"`
	Value    string   `json:"value,omitempty"`

	// IP
	Values []string `json:"values,omitempty"`

	// Device
	DeviceValue DeviceClass `json:"device_value,omitempty"`

	// Header
	Key string `json:"key,omitempty"`

	// RateLimit
	Window          ratelimit.Window `json:"window,omitempty"`
	MaxRequests     uint32           `json:"max_requests,omitempty"`
	BlockTTLSeconds uint32           `json:"block_ttl_seconds,omitempty"`
	CounterName     string           `json:"counter_name,omitempty"`
	PenaltyboxName  string           `json:"penaltybox_name,omitempty"`
}

// UnmarshalJSON accepts "value" as the carrier for the Device leaf too,
// matching the wire schema's single "value" field per condition type
// (§3 lists Device{op, value} using the same "value" key as Path/UserAgent).
func (c *ConditionRule) UnmarshalJSON(data []byte) error {
	type alias ConditionRule
	aux := struct {
		Value string `json:"value,omitempty"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if c.Type == ConditionDevice {
		c.DeviceValue = DeviceClass(aux.Value)
	} else {
		c.Value = aux.Value
	}
	return nil
}

// MarshalJSON renders the Device leaf's value back onto the shared "value"
// key so round-tripping matches the wire schema.
func (c ConditionRule) MarshalJSON() ([]byte, error) {
	type alias ConditionRule
	value := c.Value
	if c.Type == ConditionDevice {
		value = string(c.DeviceValue)
	}
	aux := struct {
		Value string `json:"value,omitempty"`
		alias
	}{Value: value, alias: alias(c)}
	aux.alias.Value = ""
	return json.Marshal(aux)
}

// ConditionTree is the top-level combinator plus its leaves (§3). Flat form
// does not nest trees; depth beyond one is expressed with multiple rules or
// the graph form.
type ConditionTree struct {
	Operator Combinator      `json:"operator"`
	Rules    []ConditionRule `json:"rules"`
}

// Recognized action types (§3). Anything else behaves as ActionAllow.
const (
	ActionBlock     = "block"
	ActionChallenge = "challenge"
	ActionRoute     = "route"
	ActionAllow     = "allow"
	ActionLog       = "log"
)

// Action describes what to do when a rule's condition tree matches.
type Action struct {
	Type            string  `json:"type"`
	ResponseCode    uint16  `json:"response_code,omitempty"`
	ResponseMessage string  `json:"response_message,omitempty"`
	ChallengeType   string  `json:"challenge_type,omitempty"`
	Backend         string  `json:"backend,omitempty"`
}

// Rule is a named record: an enabled flag, a condition tree, and an action.
// The name itself is carried by the packed blob's "d" map key, not by this
// struct, matching the wire schema (§6); ParseRule attaches it for
// in-memory use.
type Rule struct {
	Name       string        `json:"-"`
	Enabled    bool          `json:"enabled"`
	Conditions ConditionTree `json:"conditions"`
	Action     Action        `json:"action"`
}

// ParseRule decodes one rule JSON document per the wire schema (§6).
func ParseRule(name string, data []byte) (Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return Rule{}, err
	}
	r.Name = name
	return r, nil
}

// BackendConfig is the connection configuration for a named origin backend
// (§3). UseTLS defaults to true: UnmarshalJSON applies that default when
// the field is absent from the wire JSON.
type BackendConfig struct {
	Host                  string `json:"host"`
	Port                  int    `json:"port"`
	UseTLS                bool   `json:"use_tls"`
	ConnectTimeoutMs      int    `json:"connect_timeout_ms,omitempty"`
	FirstByteTimeoutMs    int    `json:"first_byte_timeout_ms,omitempty"`
	BetweenBytesTimeoutMs int    `json:"between_bytes_timeout_ms,omitempty"`
}

// UnmarshalJSON applies BackendConfig's use_tls=true default when the key
// is absent from the document, rather than silently defaulting to false as
// json.Unmarshal would for a bare bool field.
func (b *BackendConfig) UnmarshalJSON(data []byte) error {
	type alias BackendConfig
	aux := struct {
		UseTLS *bool `json:"use_tls,omitempty"`
		*alias
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.UseTLS == nil {
		b.UseTLS = true
	} else {
		b.UseTLS = *aux.UseTLS
	}
	return nil
}
