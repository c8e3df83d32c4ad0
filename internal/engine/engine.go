// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package engine implements the flat rule-list evaluator: an ordered
// sequence of named rules, each a boolean combination of typed conditions
// plus an action, evaluated in insertion order with first-match-wins
// semantics (spec §4.3).
package engine

import (
	"fmt"
	"net"
	"regexp"
	"strconv"
	"time"

	"grimm.is/edgesentry/internal/errors"
	"grimm.is/edgesentry/internal/logging"
	"grimm.is/edgesentry/internal/metrics"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

// Engine holds an ordered, named rule set and the rate-limit cell registry
// it shares with any graph interpreter running in the same process
// (invariant 6, §3).
type Engine struct {
	names          map[string]int
	rules          []ruletypes.Rule
	registry       *ratelimit.Registry
	defaultBackend string
	recorder       *metrics.Collector
}

// New builds an empty engine backed by registry. registry must be the same
// instance used by any graph interpreter in this process so named
// rate-limit cells are shared.
func New(registry *ratelimit.Registry, defaultBackend string) *Engine {
	return &Engine{
		names:          make(map[string]int),
		registry:       registry,
		defaultBackend: defaultBackend,
	}
}

// SetRecorder attaches a metrics collector; every subsequent Evaluate or
// EvaluateWithDetails call reports a metrics.Evaluation observation to it.
// Metrics are optional — an Engine with no recorder simply skips this.
func (e *Engine) SetRecorder(recorder *metrics.Collector) {
	e.recorder = recorder
}

// AddRule parses data as one rule document and appends it under name.
// Rule names must be unique within the set (invariant 1, §3).
func (e *Engine) AddRule(name string, data []byte) error {
	if _, exists := e.names[name]; exists {
		return errors.Errorf(errors.KindConflict, "rule name %q already registered", name)
	}
	r, err := ruletypes.ParseRule(name, data)
	if err != nil {
		return errors.Wrapf(err, errors.KindRuleParse, "parse rule %q", name)
	}
	e.names[name] = len(e.rules)
	e.rules = append(e.rules, r)
	return nil
}

// RuleCount returns the number of rules currently loaded, enabled or not.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Result is the full evaluation outcome produced by EvaluateWithDetails:
// the verdict, the name of the matched rule (empty when nothing matched),
// and a trace entry per rule considered, in evaluation order.
type Result struct {
	Verdict     ruletypes.Verdict
	MatchedRule string
	Recognized  bool
	Trace       []logging.RuleMatch
}

// Evaluate runs the rule set against req and returns only the verdict,
// discarding the trace. Most callers that don't need a log record should
// use this.
func (e *Engine) Evaluate(req reqctx.Facade) ruletypes.Verdict {
	return e.EvaluateWithDetails(req).Verdict
}

// EvaluateWithDetails iterates rules in insertion order (§4.3 step 1),
// skipping disabled rules (invariant 2), evaluating each rule's condition
// tree (step 2) and stopping at the first match (step 3). If nothing
// matches, it returns Allow plus a trace of every enabled rule considered
// (step 4). The rule slice is snapshotted implicitly by value-range over
// e.rules, so a rule set mutated by a concurrent AddRule call (which this
// package does not support concurrently, by design — §5) never aliases a
// mid-evaluation iteration.
func (e *Engine) EvaluateWithDetails(req reqctx.Facade) Result {
	start := time.Now()
	result := e.evaluateWithDetails(req)
	if e.recorder != nil {
		e.recorder.Observe(metrics.Evaluation{Verdict: result.Verdict.Kind, Form: "flat", Duration: time.Since(start)})
	}
	return result
}

func (e *Engine) evaluateWithDetails(req reqctx.Facade) Result {
	snapshot := e.rules
	trace := make([]logging.RuleMatch, 0, len(snapshot))

	for _, rule := range snapshot {
		if !rule.Enabled {
			continue
		}

		conditions, matched := e.evaluateTree(rule.Conditions, req)
		trace = append(trace, logging.RuleMatch{
			Name:       rule.Name,
			Enabled:    rule.Enabled,
			Operator:   string(rule.Conditions.Operator),
			Conditions: conditions,
		})

		if !matched {
			continue
		}

		verdict, recognized := ruletypes.VerdictFromAction(rule.Action, e.defaultBackend)
		last := &trace[len(trace)-1]
		last.ActionType = rule.Action.Type
		if recognized {
			last.ActionTaken = string(verdict.Kind)
		} else {
			last.ActionTaken = "unknown_action"
		}
		last.ResponseCode = rule.Action.ResponseCode
		last.ResponseMessage = rule.Action.ResponseMessage
		last.ChallengeType = rule.Action.ChallengeType

		if verdict.Kind == ruletypes.VerdictBlock && verdict.Message == "" {
			verdict.Message = fmt.Sprintf("Blocked by rule: %s", rule.Name)
		}

		return Result{Verdict: verdict, MatchedRule: rule.Name, Recognized: recognized, Trace: trace}
	}

	return Result{Verdict: ruletypes.Allow, Trace: trace}
}

// evaluateTree evaluates every leaf (never short-circuiting, so the trace
// always reflects every condition) then combines with the tree's
// combinator: AND=all match, OR=any match, NOT=none match (§4.3 step 2).
func (e *Engine) evaluateTree(tree ruletypes.ConditionTree, req reqctx.Facade) ([]logging.ConditionMatch, bool) {
	conditions := make([]logging.ConditionMatch, 0, len(tree.Rules))
	anyMatch, allMatch := false, true

	for _, leaf := range tree.Rules {
		matched := e.evaluateLeaf(leaf, req)
		conditions = append(conditions, logging.ConditionMatch{
			Type:     string(leaf.Type),
			Operator: string(leaf.Operator),
			Value:    leaf.Value,
			Matched:  matched,
		})
		if matched {
			anyMatch = true
		} else {
			allMatch = false
		}
	}

	switch tree.Operator {
	case ruletypes.CombinatorOr:
		return conditions, anyMatch
	case ruletypes.CombinatorNot:
		return conditions, !anyMatch
	default: // CombinatorAnd, and any unrecognized value falls back to AND
		return conditions, allMatch && len(tree.Rules) > 0
	}
}

// evaluateLeaf dispatches on the ConditionRule's Type (§4.3 per-leaf
// evaluation). Every failure path (unparsable regex, unparsable CIDR,
// unsupported operator) evaluates to false rather than erroring —
// condition evaluation never fails a request (§7).
func (e *Engine) evaluateLeaf(leaf ruletypes.ConditionRule, req reqctx.Facade) bool {
	switch leaf.Type {
	case ruletypes.ConditionPath:
		return evaluateStringOp(leaf.Operator, req.Path(), leaf.Value)
	case ruletypes.ConditionUserAgent:
		return evaluateStringOp(leaf.Operator, req.UserAgent(), leaf.Value)
	case ruletypes.ConditionIP:
		return evaluateIP(leaf, req.ClientIP())
	case ruletypes.ConditionDevice:
		return evaluateDevice(leaf, req.Device().Class)
	case ruletypes.ConditionHeader:
		return evaluateHeader(leaf, req)
	case ruletypes.ConditionRateLimit:
		return e.evaluateRateLimit(leaf, req.ClientIP())
	default:
		return false
	}
}

func evaluateStringOp(op ruletypes.Operator, actual, want string) bool {
	switch op {
	case ruletypes.OpEquals:
		return actual == want
	case ruletypes.OpStartsWith:
		return len(actual) >= len(want) && actual[:len(want)] == want
	case ruletypes.OpContains:
		return containsSubstring(actual, want)
	case ruletypes.OpMatchesRegex:
		re, err := regexp.Compile(want)
		if err != nil {
			logging.Warn("rule regex compile failed", "pattern", want, "error", err)
			return false
		}
		return re.MatchString(actual)
	default:
		return false
	}
}

func containsSubstring(s, substr string) bool {
	if substr == "" {
		return true
	}
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

// evaluateIP implements the Path leaf's sibling semantics for IP: equals is
// a literal dotted-string compare against each configured value, matching if
// any is equal (deliberately preserving the source's string-literal semantics rather
// than parsing both sides as addresses — §9 open question 2: IPv4
// "127.0.0.1" vs "127.000.000.001" will not compare equal, and that is
// intended). in_range parses every entry as a CIDR and matches if the
// client IP falls within any of them.
func evaluateIP(leaf ruletypes.ConditionRule, clientIP string) bool {
	switch leaf.Operator {
	case ruletypes.OpEquals:
		for _, v := range leaf.Values {
			if clientIP == v {
				return true
			}
		}
		return false
	case ruletypes.OpInRange:
		ip := net.ParseIP(clientIP)
		if ip == nil {
			return false
		}
		for _, cidr := range leaf.Values {
			_, network, err := net.ParseCIDR(cidr)
			if err != nil {
				continue
			}
			if network.Contains(ip) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evaluateDevice(leaf ruletypes.ConditionRule, class ruletypes.DeviceClass) bool {
	switch leaf.Operator {
	case ruletypes.OpIs:
		return class == leaf.DeviceValue
	case ruletypes.OpIsNot:
		return class != leaf.DeviceValue
	default:
		return false
	}
}

// evaluateHeader preserves the source's header key-vs-value bug bit for
// bit (§3, §9 open question 1): for equals/contains the compared-against
// value is the header's own key, not the configured leaf value.
func evaluateHeader(leaf ruletypes.ConditionRule, req reqctx.Facade) bool {
	value, present := req.Header(leaf.Key)
	switch leaf.Operator {
	case ruletypes.OpExists:
		return present
	case ruletypes.OpNotExists:
		return !present
	case ruletypes.OpEquals:
		return present && value == leaf.Key
	case ruletypes.OpContains:
		return present && containsSubstring(value, leaf.Key)
	default:
		return false
	}
}

// evaluateRateLimit implements the flat-form RateLimit leaf's combined
// semantics (§4.5): penalty-box membership short-circuits to true; else
// increment the counter and, on crossing max_requests, add the entry to
// the penalty box and return true. entry is the client IP; if absent, the
// check returns false without side effects (§4.5 keying).
func (e *Engine) evaluateRateLimit(leaf ruletypes.ConditionRule, clientIP string) bool {
	if clientIP == "" {
		return false
	}

	counterName := leaf.CounterName
	if counterName == "" {
		counterName = defaultCellName("counter", leaf.Window, leaf.MaxRequests, leaf.BlockTTLSeconds)
	}
	boxName := leaf.PenaltyboxName
	if boxName == "" {
		boxName = defaultCellName("box", leaf.Window, leaf.MaxRequests, leaf.BlockTTLSeconds)
	}

	now := time.Now()
	box := e.registry.PenaltyBox(boxName)
	if box.Contains(clientIP, now) {
		return true
	}

	counter := e.registry.Counter(counterName, leaf.Window.Duration())
	count := counter.Increment(clientIP, now)
	if count > int(leaf.MaxRequests) {
		box.Add(clientIP, time.Duration(leaf.BlockTTLSeconds)*time.Second, now)
		if e.recorder != nil {
			e.recorder.RateLimitHit(counterName)
		}
		return true
	}
	return false
}

// defaultCellName derives a deterministic cell name from the leaf's
// parameters so unnamed limiters sharing the same shape collapse onto one
// cell (§3: "Names default to a deterministic string derived from the
// parameters").
func defaultCellName(kind string, window ratelimit.Window, maxRequests, blockTTL uint32) string {
	return kind + ":" + string(window) + ":" + strconv.FormatUint(uint64(maxRequests), 10) + ":" + strconv.FormatUint(uint64(blockTTL), 10)
}
