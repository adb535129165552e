package bootstrap

import (
	"time"

	"github.com/zhouzirui/weibo-seed/internal/graph"
)

// Identity ties a dataset id to the runtime user id and agent id of one agent.
type Identity struct {
	DatasetID string `json:"datasetId"`
	UserID    int    `json:"userId"`
	AgentID   int    `json:"agentId"`
}

// Mapping resolves dataset ids to registered agents. It is built once after
// registration and is read-only afterwards.
type Mapping struct {
	identities []Identity
	byDataset  map[string]Identity
	byAgent    map[int]Identity
}

func newMapping(capacity int) *Mapping {
	return &Mapping{
		identities: make([]Identity, 0, capacity),
		byDataset:  make(map[string]Identity, capacity),
		byAgent:    make(map[int]Identity, capacity),
	}
}

// add registers id. replace controls whether an earlier owner of the same
// dataset id is displaced; it reports whether the dataset id was already taken.
func (m *Mapping) add(id Identity, replace bool) (duplicate bool) {
	m.identities = append(m.identities, id)
	m.byAgent[id.AgentID] = id
	if _, taken := m.byDataset[id.DatasetID]; taken {
		if replace {
			m.byDataset[id.DatasetID] = id
		}
		return true
	}
	m.byDataset[id.DatasetID] = id
	return false
}

// Lookup returns the agent owning datasetID.
func (m *Mapping) Lookup(datasetID string) (Identity, bool) {
	id, ok := m.byDataset[datasetID]
	return id, ok
}

// ByAgent returns the identity of agentID.
func (m *Mapping) ByAgent(agentID int) (Identity, bool) {
	id, ok := m.byAgent[agentID]
	return id, ok
}

// Identities returns one entry per registered agent, in record order.
func (m *Mapping) Identities() []Identity {
	return append([]Identity(nil), m.identities...)
}

func (m *Mapping) Len() int {
	return len(m.identities)
}

// Summary aggregates the non-fatal outcomes of a run.
type Summary struct {
	DiscardedRecords int `json:"discardedRecords"`
	DuplicateIDs     int `json:"duplicateIds"`
	Registered       int `json:"registered"`
	Follows          int `json:"follows"`
	SkippedFollows   int `json:"skippedFollows"`
	FailedFollows    int `json:"failedFollows"`
	Posts            int `json:"posts"`
	SkippedPosts     int `json:"skippedPosts"`
	FailedPosts      int `json:"failedPosts"`
}

// Result is everything a completed run produced.
type Result struct {
	RunID       string
	DatasetPath string
	StartedAt   time.Time
	FinishedAt  time.Time
	Graph       *graph.AgentGraph
	Mapping     *Mapping
	Summary     Summary
}
