// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package logging

import (
	"time"

	"github.com/google/uuid"

	"grimm.is/edgesentry/internal/reqctx"
)

// HeaderPair preserves header insertion order for the structured log
// record's request/response header lists (§4.7).
type HeaderPair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RequestDetails captures the incoming request for the log record (§4.7).
type RequestDetails struct {
	Method        string       `json:"method"`
	URL           string       `json:"url"`
	Path          string       `json:"path"`
	QueryString   string       `json:"query_string"`
	ClientIP      string       `json:"client_ip"`
	ServerIP      string       `json:"server_ip"`
	ContentLength int          `json:"content_length"`
	HasBody       bool         `json:"has_body"`
	Version       string       `json:"version"`
	ContentType   string       `json:"content_type"`
	Headers       []HeaderPair `json:"headers"`
}

// ResponseDetails captures the outbound response, once produced (§4.7).
type ResponseDetails struct {
	StatusCode    int          `json:"status_code"`
	ContentLength int          `json:"content_length,omitempty"`
	ContentType   string       `json:"content_type,omitempty"`
	Headers       []HeaderPair `json:"headers,omitempty"`
}

// ConditionMatch records one leaf's evaluation outcome within a rule trace.
type ConditionMatch struct {
	Type     string `json:"type"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
	Matched  bool   `json:"matched"`
}

// RuleMatch records one rule's evaluation within the trace (§4.7).
type RuleMatch struct {
	Name            string            `json:"name"`
	Enabled         bool              `json:"enabled"`
	Operator        string            `json:"operator"`
	Conditions      []ConditionMatch  `json:"conditions"`
	ActionTaken     string            `json:"action_taken"`
	ActionType      string            `json:"action_type"`
	ResponseCode    uint16            `json:"response_code,omitempty"`
	ResponseMessage string            `json:"response_message,omitempty"`
	ChallengeType   string            `json:"challenge_type,omitempty"`
}

// RequestRecord is the complete per-request structured audit record (§4.7).
type RequestRecord struct {
	RequestID        string     `json:"request_id"`
	Timestamp        string     `json:"timestamp"`
	ProcessingTimeMs int64      `json:"processing_time_ms"`
	Request          RequestDetails    `json:"request"`
	Response         *ResponseDetails  `json:"response,omitempty"`
	RulesEvaluated   []RuleMatch       `json:"rules_evaluated"`
	FinalAction      string            `json:"final_action"`
	Blocked          bool              `json:"blocked"`

	start time.Time
}

// NewRequestRecord builds a record from facade at request entry, assigning
// a time-ordered UUIDv7 request id the way the original Rust WafLog::new
// does with Uuid::new_v7.
func NewRequestRecord(facade reqctx.Facade, start time.Time) *RequestRecord {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}

	var headers []HeaderPair
	for _, name := range facade.HeaderNames() {
		if v, ok := facade.Header(name); ok {
			headers = append(headers, HeaderPair{Name: name, Value: v})
		}
	}

	return &RequestRecord{
		RequestID: id.String(),
		Timestamp: start.UTC().Format(time.RFC3339Nano),
		start:     start,
		Request: RequestDetails{
			Method:        facade.Method(),
			URL:           facade.URL(),
			Path:          facade.Path(),
			QueryString:   facade.Query(),
			ClientIP:      facade.ClientIP(),
			ServerIP:      facade.ServerIP(),
			ContentLength: facade.ContentLength(),
			HasBody:       facade.HasBody(),
			Version:       facade.Version(),
			ContentType:   facade.ContentType(),
			Headers:       headers,
		},
		FinalAction: "initializing",
	}
}

// AddRuleEvaluation appends one rule's trace entry.
func (r *RequestRecord) AddRuleEvaluation(m RuleMatch) {
	r.RulesEvaluated = append(r.RulesEvaluated, m)
}

// SetResponse attaches the outbound response details.
func (r *RequestRecord) SetResponse(resp ResponseDetails) {
	r.Response = &resp
}

// SetFinalAction records the ultimate decision string (e.g. "forwarded",
// "blocked", "unknown_action", "rule_init_error").
func (r *RequestRecord) SetFinalAction(action string, blocked bool) {
	r.FinalAction = action
	r.Blocked = blocked
}

// Finalize computes processing_time_ms from the start time passed to
// NewRequestRecord. Call this immediately before writing the record.
func (r *RequestRecord) Finalize() {
	r.ProcessingTimeMs = time.Since(r.start).Milliseconds()
}
