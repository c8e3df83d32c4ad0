// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package graph implements the node-graph rule form: Node/Edge storage,
// its structural invariants, and topological ordering (spec §3, §4.4).
package graph

import (
	"encoding/json"
	"fmt"

	"grimm.is/edgesentry/internal/errors"
)

// NodeID addresses a node. IDs are assigned sequentially by Graph.AddNode
// and are never reused, even after RemoveNode (invariant 2, §3; §9 note 4).
type NodeID uint32

// Port is an input or output port index on a node.
type Port uint8

// Node is one vertex in a rule graph.
type Node struct {
	ID   NodeID   `json:"id"`
	Kind NodeKind `json:"kind"`
	PosX float32  `json:"pos_x,omitempty"`
	PosY float32  `json:"pos_y,omitempty"`
}

// Edge connects an output port of one node to an input port of another.
// Each input port accepts at most one incoming edge; connecting a second
// edge to the same input replaces the first (§3).
type Edge struct {
	FromNode NodeID `json:"from_node"`
	FromPort Port   `json:"from_port"`
	ToNode   NodeID `json:"to_node"`
	ToPort   Port   `json:"to_port"`
}

// Graph owns an ordered list of nodes and edges plus a monotonic node-id
// counter (§3).
type Graph struct {
	Name        string
	Description string
	Nodes       []Node
	Edges       []Edge
	nextID      NodeID
}

// New creates an empty graph.
func New(name string) *Graph {
	return &Graph{Name: name}
}

// graphDoc is the JSON wire shape for a serialized graph, the same packed-
// blob idiom internal/configstore uses for the flat form (§6). next_id is
// carried explicitly since Graph keeps its id counter unexported; without
// it, a round-tripped graph could reassign an id RemoveNode had retired,
// violating invariant 2.
type graphDoc struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Nodes       []Node `json:"nodes"`
	Edges       []Edge `json:"edges"`
	NextID      NodeID `json:"next_id"`
}

// MarshalJSON renders the graph to its wire form (§3, §8 round-trip
// property 7).
func (g Graph) MarshalJSON() ([]byte, error) {
	return json.Marshal(graphDoc{
		Name:        g.Name,
		Description: g.Description,
		Nodes:       g.Nodes,
		Edges:       g.Edges,
		NextID:      g.nextID,
	})
}

// UnmarshalJSON restores a graph from its wire form, including the node-id
// counter so ids already retired by RemoveNode cannot be reissued.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	g.Name = doc.Name
	g.Description = doc.Description
	g.Nodes = doc.Nodes
	g.Edges = doc.Edges
	g.nextID = doc.NextID
	return nil
}

// Serialize renders the graph to JSON (§8 testable property 7:
// parse(serialize(g)) == g for every well-formed graph).
func (g *Graph) Serialize() ([]byte, error) {
	return json.Marshal(g)
}

// Parse decodes a graph previously produced by Serialize.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, errors.KindLoad, "parse graph JSON")
	}
	return &g, nil
}

// AddNode appends node, assigning it the next sequential id.
func (g *Graph) AddNode(kind NodeKind) NodeID {
	id := g.nextID
	g.nextID++
	g.Nodes = append(g.Nodes, Node{ID: id, Kind: kind})
	return id
}

// RemoveNode deletes node id and every edge touching it. next_id is never
// rewound, so a removed id can never be reassigned (§9 note 4).
func (g *Graph) RemoveNode(id NodeID) {
	nodes := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID != id {
			nodes = append(nodes, n)
		}
	}
	g.Nodes = nodes

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if e.FromNode != id && e.ToNode != id {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// GetNode looks up a node by id.
func (g *Graph) GetNode(id NodeID) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}

func (g *Graph) hasNode(id NodeID) bool {
	_, ok := g.GetNode(id)
	return ok
}

// Connect links fromNode's output port to toNode's input port. It rejects
// references to nonexistent nodes and any edge that would create a cycle,
// including a self-loop (invariants 3 and 4, §3).
func (g *Graph) Connect(fromNode NodeID, fromPort Port, toNode NodeID, toPort Port) error {
	if !g.hasNode(fromNode) {
		return errors.Errorf(errors.KindNotFound, "node not found: %d", fromNode)
	}
	if !g.hasNode(toNode) {
		return errors.Errorf(errors.KindNotFound, "node not found: %d", toNode)
	}
	if fromNode == toNode {
		return errors.New(errors.KindValidation, "cycle detected")
	}
	if g.reachable(toNode, fromNode) {
		return errors.New(errors.KindValidation, "cycle detected")
	}

	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if !(e.ToNode == toNode && e.ToPort == toPort) {
			edges = append(edges, e)
		}
	}
	g.Edges = append(edges, Edge{FromNode: fromNode, FromPort: fromPort, ToNode: toNode, ToPort: toPort})
	return nil
}

// reachable reports whether to is reachable from "from" by following
// outgoing edges, used to reject a connect that would close a cycle.
func (g *Graph) reachable(from, to NodeID) bool {
	visited := map[NodeID]bool{}
	stack := []NodeID{from}
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if n == to {
			return true
		}
		if visited[n] {
			continue
		}
		visited[n] = true
		for _, e := range g.OutgoingEdges(n) {
			stack = append(stack, e.ToNode)
		}
	}
	return false
}

// Disconnect removes any edge feeding toNode's toPort.
func (g *Graph) Disconnect(toNode NodeID, toPort Port) {
	edges := g.Edges[:0]
	for _, e := range g.Edges {
		if !(e.ToNode == toNode && e.ToPort == toPort) {
			edges = append(edges, e)
		}
	}
	g.Edges = edges
}

// IncomingEdges returns every edge feeding into node's inputs.
func (g *Graph) IncomingEdges(node NodeID) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.ToNode == node {
			out = append(out, e)
		}
	}
	return out
}

// OutgoingEdges returns every edge leaving node's outputs.
func (g *Graph) OutgoingEdges(node NodeID) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.FromNode == node {
			out = append(out, e)
		}
	}
	return out
}

// TopologicalSort orders nodes via DFS with temporary/permanent marks so
// that every node appears after every node it depends on (§4.4 step 1).
// A cycle — which Connect should already have prevented, but a graph
// deserialized from an untrusted payload might still carry one — is
// reported as a KindValidation "cycle detected" error rather than
// panicking; callers (the interpreter) treat that as Allow.
func (g *Graph) TopologicalSort() ([]NodeID, error) {
	var result []NodeID
	visited := map[NodeID]bool{}
	tempVisited := map[NodeID]bool{}

	var visit func(id NodeID) error
	visit = func(id NodeID) error {
		if tempVisited[id] {
			return errors.New(errors.KindValidation, "cycle detected")
		}
		if visited[id] {
			return nil
		}
		tempVisited[id] = true
		for _, e := range g.IncomingEdges(id) {
			if err := visit(e.FromNode); err != nil {
				return err
			}
		}
		delete(tempVisited, id)
		visited[id] = true
		result = append(result, id)
		return nil
	}

	for _, n := range g.Nodes {
		if !visited[n.ID] {
			if err := visit(n.ID); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// Validate checks the graph-wide structural invariants beyond what
// AddNode/Connect already enforce incrementally: Action nodes have no
// outgoing edges, Request nodes have no incoming edges (invariant 5, §3).
func (g *Graph) Validate() error {
	for _, n := range g.Nodes {
		switch n.Kind.Type {
		case KindAction:
			if len(g.OutgoingEdges(n.ID)) > 0 {
				return fmt.Errorf("action node %d has outgoing edges", n.ID)
			}
		case KindRequest:
			if len(g.IncomingEdges(n.ID)) > 0 {
				return fmt.Errorf("request node %d has incoming edges", n.ID)
			}
		}
	}
	return nil
}
