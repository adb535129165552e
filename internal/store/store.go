// Package store persists bootstrap runs so they can be inspected after the
// seeding process exits.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/graph"
	"github.com/zhouzirui/weibo-seed/internal/model/persona"
	"github.com/zhouzirui/weibo-seed/internal/service/bootstrap"
)

var (
	ErrRunNotFound   = errors.New("run not found")
	ErrRunIDRequired = errors.New("run id is required")
)

// RunInfo is the listing view of a run.
type RunInfo struct {
	ID          string            `json:"runId"`
	DatasetPath string            `json:"datasetPath"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
	Summary     bootstrap.Summary `json:"summary"`
}

// Persona is one registered agent as persisted.
type Persona struct {
	AgentID      int                 `json:"agentId"`
	UserID       int                 `json:"userId"`
	DatasetID    string              `json:"datasetId"`
	Profile      persona.Profile     `json:"profile"`
	SystemPrompt string              `json:"systemPrompt"`
	Actions      []engine.ActionType `json:"actions"`
}

// Run is a completed bootstrap run.
type Run struct {
	RunInfo
	Personas []Persona    `json:"personas"`
	Edges    []graph.Edge `json:"edges"`
}

// Store persists runs.
type Store interface {
	SaveRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	ListRuns(ctx context.Context) ([]RunInfo, error)
	Close() error
}

// FromResult converts a bootstrap result into its persisted form. Raw
// dataset records are not kept.
func FromResult(res *bootstrap.Result) Run {
	run := Run{
		RunInfo: RunInfo{
			ID:          res.RunID,
			DatasetPath: res.DatasetPath,
			StartedAt:   res.StartedAt,
			FinishedAt:  res.FinishedAt,
			Summary:     res.Summary,
		},
		Edges: res.Graph.Edges(),
	}

	for _, agent := range res.Graph.Agents() {
		id, ok := res.Mapping.ByAgent(agent.ID)
		if !ok {
			continue
		}
		profile := agent.Profile
		profile.Raw = nil
		run.Personas = append(run.Personas, Persona{
			AgentID:      id.AgentID,
			UserID:       id.UserID,
			DatasetID:    id.DatasetID,
			Profile:      profile,
			SystemPrompt: agent.SystemPrompt,
			Actions:      agent.Actions,
		})
	}
	return run
}
