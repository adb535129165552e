// Package bootstrap seeds a simulation engine from a persona dataset.
//
// A run has three phases separated by barriers: every agent is registered
// before any follow is issued, and every follow is issued before any post is
// replayed. Dataset ids are resolved to runtime user ids through the mapping
// built at the end of registration.
package bootstrap

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/weibo-seed/internal/alias"
	"github.com/zhouzirui/weibo-seed/internal/dataset"
	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/graph"
	"github.com/zhouzirui/weibo-seed/internal/model/persona"
	"github.com/zhouzirui/weibo-seed/internal/service/ai"
)

const tracerName = "github.com/zhouzirui/weibo-seed/internal/service/bootstrap"

// Bootstrapper drives the registration, follow and replay phases against a platform.
type Bootstrapper struct {
	platform engine.Platform
	resolver *alias.Resolver
	builder  *persona.Builder
	prompts  *ai.PromptRenderer
	actions  []engine.ActionType
	cfg      Config
	logger   *zap.Logger
	tracer   trace.Tracer
}

// Option customises a Bootstrapper.
type Option func(*Bootstrapper)

func WithConfig(cfg Config) Option {
	return func(b *Bootstrapper) { b.cfg = cfg }
}

// WithResolver replaces the resolver built from the default alias table.
func WithResolver(r *alias.Resolver) Option {
	return func(b *Bootstrapper) { b.resolver = r }
}

func WithLogger(logger *zap.Logger) Option {
	return func(b *Bootstrapper) { b.logger = logger }
}

func WithTracer(t trace.Tracer) Option {
	return func(b *Bootstrapper) { b.tracer = t }
}

// WithActions sets the action set attached to every agent.
func WithActions(actions []engine.ActionType) Option {
	return func(b *Bootstrapper) { b.actions = actions }
}

// New returns a Bootstrapper for platform. platform may be nil when only
// BuildGraph is used.
func New(platform engine.Platform, opts ...Option) (*Bootstrapper, error) {
	b := &Bootstrapper{
		platform: platform,
		prompts:  ai.NewPromptRenderer(),
		actions:  engine.DefaultActions(),
		cfg:      DefaultConfig(),
	}
	for _, opt := range opts {
		opt(b)
	}

	cfg, err := b.cfg.normalize()
	if err != nil {
		return nil, err
	}
	b.cfg = cfg
	if b.resolver == nil {
		b.resolver = alias.NewResolver(alias.DefaultTable())
	}
	if b.logger == nil {
		b.logger = zap.NewNop()
	}
	b.logger = b.logger.Named("bootstrap")
	if b.tracer == nil {
		b.tracer = otel.Tracer(tracerName)
	}
	b.builder = persona.NewBuilder(b.resolver)
	return b, nil
}

// Config returns the effective configuration.
func (b *Bootstrapper) Config() Config {
	return b.cfg
}

// seed is one valid record prepared for registration.
type seed struct {
	index     int
	record    *dataset.Object
	agent     graph.Agent
	datasetID string
}

// Run seeds the platform with ds into a fresh graph.
func (b *Bootstrapper) Run(ctx context.Context, ds *dataset.Dataset) (*Result, error) {
	return b.RunWithGraph(ctx, ds, graph.New())
}

// RunWithGraph seeds the platform with ds, numbering new agents after the
// nodes already in g.
func (b *Bootstrapper) RunWithGraph(ctx context.Context, ds *dataset.Dataset, g *graph.AgentGraph) (_ *Result, err error) {
	if b.platform == nil {
		return nil, fmt.Errorf("bootstrap: no platform configured")
	}

	ctx, span := b.tracer.Start(ctx, "bootstrap.Run",
		trace.WithAttributes(
			attribute.String("dataset.path", ds.Path),
			attribute.Int("dataset.entries", len(ds.Entries)),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "bootstrap failed")
		}
		span.End()
	}()

	result := &Result{
		RunID:       uuid.NewString(),
		DatasetPath: ds.Path,
		StartedAt:   time.Now().UTC(),
		Graph:       g,
	}
	result.Summary.DiscardedRecords = len(ds.Rejected())
	span.SetAttributes(attribute.String("run.id", result.RunID))

	logger := b.logger.With(zap.String("runId", result.RunID), zap.String("dataset", ds.Path))
	for _, rej := range ds.Rejected() {
		logger.Warn("record discarded", zap.Int("index", rej.Index), zap.String("kind", rej.Kind))
	}

	seeds, err := b.prepare(ctx, ds, g.NumNodes())
	if err != nil {
		return nil, err
	}
	dups, err := b.checkDuplicates(ds.Path, seeds)
	if err != nil {
		return nil, err
	}
	result.Summary.DuplicateIDs = dups

	mapping, err := b.register(ctx, ds.Path, seeds, g)
	if err != nil {
		return nil, err
	}
	result.Mapping = mapping
	result.Summary.Registered = mapping.Len()
	logger.Info("registration finished", zap.Int("agents", mapping.Len()))

	if err := b.follow(ctx, ds.Path, seeds, mapping, g, &result.Summary); err != nil {
		return nil, err
	}
	logger.Info("follow graph built",
		zap.Int("follows", result.Summary.Follows),
		zap.Int("skipped", result.Summary.SkippedFollows),
		zap.Int("failed", result.Summary.FailedFollows),
	)

	if err := b.replay(ctx, ds.Path, seeds, &result.Summary); err != nil {
		return nil, err
	}
	logger.Info("content replayed",
		zap.Int("posts", result.Summary.Posts),
		zap.Int("skipped", result.Summary.SkippedPosts),
		zap.Int("failed", result.Summary.FailedPosts),
	)

	result.FinishedAt = time.Now().UTC()
	return result, nil
}

// BuildGraph derives agents from ds without contacting the platform. Agents
// carry no user id.
func (b *Bootstrapper) BuildGraph(ctx context.Context, ds *dataset.Dataset) (*graph.AgentGraph, error) {
	g := graph.New()
	seeds, err := b.prepare(ctx, ds, 0)
	if err != nil {
		return nil, err
	}
	for _, s := range seeds {
		if err := g.AddAgent(s.agent); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// prepare builds the profile, prompt and ids of every valid record.
func (b *Bootstrapper) prepare(ctx context.Context, ds *dataset.Dataset, baseAgentID int) ([]seed, error) {
	seeds := make([]seed, 0, len(ds.Entries))
	for _, entry := range ds.Entries {
		if !entry.Valid() {
			continue
		}
		agentID := baseAgentID + len(seeds)
		profile := b.builder.Build(entry.Record, fmt.Sprintf("weibo_user_%d", agentID))

		prompt, err := b.prompts.BuildSystemPrompt(ctx, profile)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", entry.Index, err)
		}

		datasetID := profile.DatasetID
		if datasetID == "" {
			datasetID = strconv.Itoa(agentID)
		}

		seeds = append(seeds, seed{
			index:     entry.Index,
			record:    entry.Record,
			datasetID: datasetID,
			agent: graph.Agent{
				ID:           agentID,
				Profile:      profile,
				SystemPrompt: prompt,
				Actions:      append([]engine.ActionType(nil), b.actions...),
			},
		})
	}
	return seeds, nil
}

// checkDuplicates counts repeated dataset ids, failing under the reject policy.
func (b *Bootstrapper) checkDuplicates(path string, seeds []seed) (int, error) {
	first := make(map[string]int, len(seeds))
	dups := 0
	for _, s := range seeds {
		prev, seen := first[s.datasetID]
		if !seen {
			first[s.datasetID] = s.index
			continue
		}
		dups++
		if b.cfg.DuplicatePolicy == DuplicateReject {
			return dups, &DuplicateIDError{Path: path, DatasetID: s.datasetID, FirstIndex: prev, Index: s.index}
		}
		b.logger.Warn("duplicate dataset id",
			zap.String("datasetId", s.datasetID),
			zap.Int("firstIndex", prev),
			zap.Int("index", s.index),
			zap.String("policy", string(b.cfg.DuplicatePolicy)),
		)
	}
	return dups, nil
}

// register signs up every agent concurrently. The graph and mapping are
// populated only after all sign-ups returned, in record order.
func (b *Bootstrapper) register(ctx context.Context, path string, seeds []seed, g *graph.AgentGraph) (_ *Mapping, err error) {
	ctx, span := b.tracer.Start(ctx, "bootstrap.register", trace.WithAttributes(attribute.Int("agents", len(seeds))))
	defer endSpan(span, &err)

	userIDs := make([]int, len(seeds))
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.Concurrency)
	for i := range seeds {
		s := seeds[i]
		eg.Go(func() error {
			regErr := func(cause error) error {
				return &RegistrationError{Path: path, Index: s.index, DatasetID: s.datasetID, AgentID: s.agent.ID, Err: cause}
			}
			if err := egctx.Err(); err != nil {
				return regErr(err)
			}

			callCtx, cancel := context.WithTimeout(egctx, b.cfg.CallTimeout)
			defer cancel()
			p := s.agent.Profile
			res, err := engine.NewAction(s.agent.ID, b.platform).SignUp(callCtx, p.Username, p.DisplayName, p.Bio)
			if err != nil {
				return regErr(err)
			}
			if res.UserID == nil {
				return regErr(ErrMissingUserID)
			}
			userIDs[i] = *res.UserID
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	replace := b.cfg.DuplicatePolicy != DuplicateFirstWins
	mapping := newMapping(len(seeds))
	for i, s := range seeds {
		userID := userIDs[i]
		agent := s.agent
		agent.UserID = &userID
		if err := g.AddAgent(agent); err != nil {
			return nil, err
		}
		mapping.add(Identity{DatasetID: s.datasetID, UserID: userID, AgentID: agent.ID}, replace)
	}
	return mapping, nil
}

// follow issues the recorded follows in record order. An edge is added only
// after its follow call succeeded.
func (b *Bootstrapper) follow(ctx context.Context, path string, seeds []seed, mapping *Mapping, g *graph.AgentGraph, sum *Summary) (err error) {
	ctx, span := b.tracer.Start(ctx, "bootstrap.follow")
	defer endSpan(span, &err)

	for _, s := range seeds {
		targets, ok := persona.FollowTargets(b.resolver, s.record)
		if !ok {
			continue
		}
		action := engine.NewAction(s.agent.ID, b.platform)
		for _, target := range targets {
			if err := ctx.Err(); err != nil {
				return err
			}
			to, found := mapping.Lookup(target)
			if !found {
				sum.SkippedFollows++
				continue
			}

			callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
			callErr := action.Follow(callCtx, to.UserID)
			cancel()
			if callErr != nil {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := b.actionFailed(path, s, engine.ActionFollow, callErr); err != nil {
					return err
				}
				sum.FailedFollows++
				continue
			}

			if err := g.AddEdge(action.AgentID(), to.AgentID); err != nil {
				return err
			}
			sum.Follows++
		}
	}
	span.SetAttributes(attribute.Int("follows", sum.Follows))
	return nil
}

// replay publishes each agent's historical posts, in order within an agent
// and concurrently across agents.
func (b *Bootstrapper) replay(ctx context.Context, path string, seeds []seed, sum *Summary) (err error) {
	ctx, span := b.tracer.Start(ctx, "bootstrap.replay")
	defer endSpan(span, &err)

	var posted, skipped, failed atomic.Int64
	eg, egctx := errgroup.WithContext(ctx)
	eg.SetLimit(b.cfg.Concurrency)
	for _, s := range seeds {
		eg.Go(func() error {
			posts, ok := persona.Posts(b.resolver, s.record)
			if !ok {
				return nil
			}
			action := engine.NewAction(s.agent.ID, b.platform)
			created := 0
			for _, raw := range posts {
				text := persona.CleanPost(raw)
				if text == "" {
					skipped.Add(1)
					continue
				}
				if err := egctx.Err(); err != nil {
					return err
				}

				callCtx, cancel := context.WithTimeout(egctx, b.cfg.CallTimeout)
				callErr := action.CreatePost(callCtx, text)
				cancel()
				created++

				if callErr != nil {
					if err := egctx.Err(); err != nil {
						return err
					}
					if err := b.actionFailed(path, s, engine.ActionCreatePost, callErr); err != nil {
						return err
					}
					failed.Add(1)
				} else {
					posted.Add(1)
				}
				if created >= b.cfg.MaxPostsPerAgent {
					break
				}
			}
			return nil
		})
	}
	err = eg.Wait()

	sum.Posts = int(posted.Load())
	sum.SkippedPosts = int(skipped.Load())
	sum.FailedPosts = int(failed.Load())
	span.SetAttributes(attribute.Int("posts", sum.Posts))
	return err
}

// actionFailed applies the failure policy to a failed follow or post call.
// A nil return means the run continues.
func (b *Bootstrapper) actionFailed(path string, s seed, action engine.ActionType, cause error) error {
	if b.cfg.FailurePolicy == FailureAbort {
		return &ActionCallError{Path: path, Index: s.index, AgentID: s.agent.ID, Action: action, Err: cause}
	}
	b.logger.Warn("engine action failed",
		zap.String("action", string(action)),
		zap.Int("agentId", s.agent.ID),
		zap.Int("index", s.index),
		zap.Error(cause),
	)
	return nil
}

func endSpan(span trace.Span, err *error) {
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
}
