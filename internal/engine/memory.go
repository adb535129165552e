package engine

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Call records one action received by a MemoryPlatform.
type Call struct {
	Action   ActionType
	AgentID  int
	Username string
	Target   int
	Content  string
}

// MemoryPlatform is an in-process platform. It assigns user ids sequentially
// from 1 and keeps a log of every call, which makes it suitable for tests and
// dry runs.
type MemoryPlatform struct {
	// Fail, when set, is consulted before a call is applied; a non-nil error
	// is returned to the caller and the call is not applied.
	Fail       func(Call) error
	// OmitUserID, when set, makes SignUp answer without a user id for the agent.
	OmitUserID func(agentID int) bool
	// Stall, when set, makes matching calls block until their context ends.
	Stall      func(Call) bool
	// Delay is waited before each call is applied, honouring ctx.
	Delay      time.Duration

	mu         sync.RWMutex
	nextUserID int
	users      map[int]int
	known      map[int]bool
	calls      []Call
	follows    map[int][]int
	posts      map[int][]string
	exited     bool
}

// NewMemoryPlatform returns an empty platform.
func NewMemoryPlatform() *MemoryPlatform {
	return &MemoryPlatform{
		nextUserID: 1,
		users:      make(map[int]int),
		known:      make(map[int]bool),
		follows:    make(map[int][]int),
		posts:      make(map[int][]string),
	}
}

// SignUp registers agentID and assigns it the next user id.
func (p *MemoryPlatform) SignUp(ctx context.Context, agentID int, req SignUpRequest) (SignUpResult, error) {
	call := Call{Action: ActionSignUp, AgentID: agentID, Username: req.Username}
	if err := p.before(ctx, call); err != nil {
		return SignUpResult{}, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)

	if p.OmitUserID != nil && p.OmitUserID(agentID) {
		return SignUpResult{}, nil
	}
	userID := p.nextUserID
	p.nextUserID++
	p.users[agentID] = userID
	p.known[userID] = true
	return SignUpResult{UserID: &userID}, nil
}

// Follow records a follow from agentID to followeeUserID. Repeated follows are
// accepted and logged again.
func (p *MemoryPlatform) Follow(ctx context.Context, agentID int, followeeUserID int) error {
	call := Call{Action: ActionFollow, AgentID: agentID, Target: followeeUserID}
	if err := p.before(ctx, call); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)

	if _, ok := p.users[agentID]; !ok {
		return fmt.Errorf("follow from agent %d: %w", agentID, ErrUnknownAgent)
	}
	if !p.known[followeeUserID] {
		return fmt.Errorf("follow user %d: %w", followeeUserID, ErrUnknownUser)
	}
	p.follows[agentID] = append(p.follows[agentID], followeeUserID)
	return nil
}

// CreatePost stores content as a post by agentID.
func (p *MemoryPlatform) CreatePost(ctx context.Context, agentID int, content string) error {
	call := Call{Action: ActionCreatePost, AgentID: agentID, Content: content}
	if err := p.before(ctx, call); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)

	if _, ok := p.users[agentID]; !ok {
		return fmt.Errorf("post from agent %d: %w", agentID, ErrUnknownAgent)
	}
	p.posts[agentID] = append(p.posts[agentID], content)
	return nil
}

// Exit marks the platform as released by the seeding client.
func (p *MemoryPlatform) Exit(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, Call{Action: ActionExit})
	p.exited = true
	return nil
}

func (p *MemoryPlatform) before(ctx context.Context, call Call) error {
	if p.Delay > 0 {
		timer := time.NewTimer(p.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	if p.Stall != nil && p.Stall(call) {
		<-ctx.Done()
		return ctx.Err()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.Fail != nil {
		if err := p.Fail(call); err != nil {
			p.mu.Lock()
			p.calls = append(p.calls, call)
			p.mu.Unlock()
			return err
		}
	}
	return nil
}

// Calls returns a copy of the call log.
func (p *MemoryPlatform) Calls() []Call {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]Call(nil), p.calls...)
}

// CallsOf returns the logged calls of one action type.
func (p *MemoryPlatform) CallsOf(action ActionType) []Call {
	var out []Call
	for _, c := range p.Calls() {
		if c.Action == action {
			out = append(out, c)
		}
	}
	return out
}

// UserID returns the user id assigned to agentID.
func (p *MemoryPlatform) UserID(agentID int) (int, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, ok := p.users[agentID]
	return id, ok
}

// Follows returns the user ids agentID follows, in call order.
func (p *MemoryPlatform) Follows(agentID int) []int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]int(nil), p.follows[agentID]...)
}

// Posts returns the posts created by agentID, in call order.
func (p *MemoryPlatform) Posts(agentID int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]string(nil), p.posts[agentID]...)
}

// Exited reports whether Exit was called.
func (p *MemoryPlatform) Exited() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exited
}
