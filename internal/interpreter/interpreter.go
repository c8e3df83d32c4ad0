// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package interpreter executes a graph.Graph against a request context,
// producing a ruletypes.Verdict (spec §4.4).
package interpreter

import (
	"time"

	"grimm.is/edgesentry/internal/condition"
	"grimm.is/edgesentry/internal/graph"
	"grimm.is/edgesentry/internal/ratelimit"
	"grimm.is/edgesentry/internal/reqctx"
	"grimm.is/edgesentry/internal/ruletypes"
)

// HeaderMutation records a side-effectful Header node's requested change,
// applied by the host when it forwards the request (§4.4).
type HeaderMutation struct {
	Op    graph.HeaderOp
	Name  string
	Value string
}

type outputKey struct {
	node graph.NodeID
	port graph.Port
}

// ExecutionState is the per-request scratch space (node outputs, header
// mutations) plus a reference to the process-wide rate-limit cell
// registry, which must be the SAME Registry the flat engine uses so a
// counter or penalty box named identically in either rule form observes
// one monotonic sequence (invariant 6, §3).
type ExecutionState struct {
	Registry        *ratelimit.Registry
	outputs         map[outputKey]reqctx.Value
	HeaderMutations []HeaderMutation
}

// NewExecutionState creates execution scratch space backed by registry.
func NewExecutionState(registry *ratelimit.Registry) *ExecutionState {
	return &ExecutionState{Registry: registry, outputs: make(map[outputKey]reqctx.Value)}
}

func (s *ExecutionState) getOutput(node graph.NodeID, port graph.Port) reqctx.Value {
	v, ok := s.outputs[outputKey{node, port}]
	if !ok {
		return reqctx.None
	}
	return v
}

func (s *ExecutionState) setOutput(node graph.NodeID, port graph.Port, v reqctx.Value) {
	s.outputs[outputKey{node, port}] = v
}

// Execute runs g against req, consulting state for rate-limit cells and
// node outputs, and returns the resulting Verdict (§4.4).
func Execute(g *graph.Graph, req reqctx.Facade, state *ExecutionState) (ruletypes.Verdict, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		// A cycle in a deserialized graph is defense-in-depth only — Connect
		// already rejects cycle-closing edges — and resolves to Allow (§4.4 step 1).
		return ruletypes.Allow, nil
	}

	for _, id := range order {
		node, ok := g.GetNode(id)
		if !ok {
			continue
		}
		inputs := gatherInputs(g, state, id, node.Kind.Inputs())
		output := executeNode(*node, req, state, inputs, time.Now())
		if node.Kind.Outputs() > 0 {
			state.setOutput(id, 0, output)
		}

		if node.Kind.IsTerminal() {
			trigger := reqctx.None
			if len(inputs) > 0 {
				trigger = inputs[0]
			}
			if trigger.Truthy() {
				return verdictForTerminal(node.Kind), nil
			}
		}
	}

	return ruletypes.Allow, nil
}

func gatherInputs(g *graph.Graph, state *ExecutionState, id graph.NodeID, count int) []reqctx.Value {
	inputs := make([]reqctx.Value, count)
	for p := 0; p < count; p++ {
		found := false
		for _, e := range g.IncomingEdges(id) {
			if int(e.ToPort) == p {
				inputs[p] = state.getOutput(e.FromNode, e.FromPort)
				found = true
				break
			}
		}
		if !found {
			inputs[p] = reqctx.None
		}
	}
	return inputs
}

func executeNode(node graph.Node, req reqctx.Facade, state *ExecutionState, inputs []reqctx.Value, now time.Time) reqctx.Value {
	switch node.Kind.Type {
	case graph.KindRequest:
		return reqctx.NewBool(true)

	case graph.KindCondition:
		fieldVal := req.Field(node.Kind.Field)
		return reqctx.NewBool(condition.Evaluate(fieldVal, node.Kind.Operator, node.Kind.Value))

	case graph.KindAnd:
		for _, in := range inputs {
			if !in.Truthy() {
				return reqctx.NewBool(false)
			}
		}
		return reqctx.NewBool(true)

	case graph.KindOr:
		for _, in := range inputs {
			if in.Truthy() {
				return reqctx.NewBool(true)
			}
		}
		return reqctx.NewBool(false)

	case graph.KindNot:
		if len(inputs) == 0 {
			return reqctx.NewBool(true)
		}
		return reqctx.NewBool(!inputs[0].Truthy())

	case graph.KindRateLimit:
		return executeRateLimit(node, req, state, inputs, now)

	case graph.KindHeader:
		if len(inputs) > 0 && inputs[0].Truthy() {
			state.HeaderMutations = append(state.HeaderMutations, HeaderMutation{
				Op: node.Kind.HeaderOp, Name: node.Kind.HeaderName, Value: node.Kind.HeaderValue,
			})
		}
		return reqctx.None

	case graph.KindComment:
		return reqctx.None

	default:
		return reqctx.None
	}
}

func executeRateLimit(node graph.Node, req reqctx.Facade, state *ExecutionState, inputs []reqctx.Value, now time.Time) reqctx.Value {
	entry := req.ClientIP()
	if entry == "" {
		return reqctx.NewBool(false)
	}

	counterName := node.Kind.CounterName
	boxName := node.Kind.PenaltyboxName
	if boxName == "" {
		boxName = counterName
	}

	switch node.Kind.Mode {
	case graph.ModeCheckRate:
		counter := state.Registry.Counter(counterName, node.Kind.Window.Duration())
		count := counter.Increment(entry, now)
		return reqctx.NewBool(uint32(count) > node.Kind.Threshold)

	case graph.ModeCheckRateAndPenalize:
		counter := state.Registry.Counter(counterName, node.Kind.Window.Duration())
		count := counter.Increment(entry, now)
		if uint32(count) > node.Kind.Threshold {
			state.Registry.PenaltyBox(boxName).Add(entry, time.Duration(node.Kind.PenaltyTTLSeconds)*time.Second, now)
			return reqctx.NewBool(true)
		}
		return reqctx.NewBool(false)

	case graph.ModeInPenaltyBox:
		return reqctx.NewBool(state.Registry.PenaltyBox(boxName).Contains(entry, now))

	case graph.ModeAddToPenaltyBox:
		if len(inputs) > 0 && inputs[0].Truthy() {
			state.Registry.PenaltyBox(boxName).Add(entry, time.Duration(node.Kind.PenaltyTTLSeconds)*time.Second, now)
		}
		return reqctx.None

	default:
		return reqctx.NewBool(false)
	}
}

func verdictForTerminal(kind graph.NodeKind) ruletypes.Verdict {
	switch kind.Type {
	case graph.KindForward:
		return ruletypes.Verdict{Kind: ruletypes.VerdictForward, Backend: kind.Backend}
	case graph.KindAction:
		v, _ := ruletypes.VerdictFromAction(kind.Action, "")
		return v
	default:
		return ruletypes.Allow
	}
}
