// Package graph holds the agents created by a bootstrap run and the follow
// edges between them.
package graph

import (
	"fmt"
	"sort"
	"sync"

	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/model/persona"
)

// Agent is one simulated user.
type Agent struct {
	ID           int                 `json:"agentId" yaml:"agentId"`
	UserID       *int                `json:"userId,omitempty" yaml:"userId,omitempty"`
	Profile      persona.Profile     `json:"profile" yaml:"profile"`
	SystemPrompt string              `json:"systemPrompt,omitempty" yaml:"systemPrompt,omitempty"`
	Actions      []engine.ActionType `json:"actions,omitempty" yaml:"actions,omitempty"`
}

// Edge is a follow relation from Source to Target, both agent ids.
type Edge struct {
	Source int `json:"source" yaml:"source"`
	Target int `json:"target" yaml:"target"`
}

// AgentGraph is safe for concurrent use. Agents and edges are only ever added.
type AgentGraph struct {
	mu     sync.RWMutex
	agents map[int]Agent
	edges  []Edge
}

// New returns an empty graph.
func New() *AgentGraph {
	return &AgentGraph{agents: make(map[int]Agent)}
}

// AddAgent inserts agent. Agent ids must be unique within a graph.
func (g *AgentGraph) AddAgent(agent Agent) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.agents[agent.ID]; exists {
		return fmt.Errorf("agent %d already in graph", agent.ID)
	}
	g.agents[agent.ID] = agent
	return nil
}

// AddEdge records that source follows target. Both must already be nodes.
// Self edges and repeated edges are kept as given.
func (g *AgentGraph) AddEdge(source, target int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.agents[source]; !ok {
		return fmt.Errorf("edge source %d not in graph", source)
	}
	if _, ok := g.agents[target]; !ok {
		return fmt.Errorf("edge target %d not in graph", target)
	}
	g.edges = append(g.edges, Edge{Source: source, Target: target})
	return nil
}

func (g *AgentGraph) NumNodes() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.agents)
}

func (g *AgentGraph) NumEdges() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.edges)
}

// Agent looks up an agent by id.
func (g *AgentGraph) Agent(id int) (Agent, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	a, ok := g.agents[id]
	return a, ok
}

// Agents returns every agent ordered by id.
func (g *AgentGraph) Agents() []Agent {
	g.mu.RLock()
	out := make([]Agent, 0, len(g.agents))
	for _, a := range g.agents {
		out = append(out, a)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns the edges in insertion order.
func (g *AgentGraph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]Edge(nil), g.edges...)
}
