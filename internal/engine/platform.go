// Package engine describes the simulation platform the bootstrapper drives.
// The platform itself lives outside this repository; this package holds the
// client-side contract and an in-process implementation for tests and dry runs.
package engine

import (
	"context"
	"errors"
)

// ActionType names an action an agent can perform on the platform.
type ActionType string

const (
	ActionSignUp        ActionType = "sign_up"
	ActionCreatePost    ActionType = "create_post"
	ActionRepost        ActionType = "repost"
	ActionCreateComment ActionType = "create_comment"
	ActionLikePost      ActionType = "like_post"
	ActionFollow        ActionType = "follow"
	ActionSearchPosts   ActionType = "search_posts"
	ActionSearchUser    ActionType = "search_user"
	ActionTrend         ActionType = "trend"
	ActionRefresh       ActionType = "refresh"
	ActionDoNothing     ActionType = "do_nothing"
	ActionExit          ActionType = "exit"
)

// DefaultActions is the action set granted to seeded Weibo agents.
func DefaultActions() []ActionType {
	return []ActionType{
		ActionCreatePost,
		ActionRepost,
		ActionCreateComment,
		ActionLikePost,
		ActionFollow,
		ActionSearchPosts,
		ActionSearchUser,
		ActionTrend,
		ActionRefresh,
		ActionDoNothing,
	}
}

var (
	ErrUnknownAgent = errors.New("agent is not signed up")
	ErrUnknownUser  = errors.New("user not found")
)

// SignUpRequest carries the public identity of a new user.
type SignUpRequest struct {
	Username string `json:"user_name"`
	Name     string `json:"name"`
	Bio      string `json:"bio"`
}

// SignUpResult is the platform's answer to a sign-up. UserID is nil when the
// platform answered without assigning an identifier.
type SignUpResult struct {
	UserID *int `json:"user_id"`
}

// Platform is the action channel of a running simulation.
type Platform interface {
	SignUp(ctx context.Context, agentID int, req SignUpRequest) (SignUpResult, error)
	Follow(ctx context.Context, agentID int, followeeUserID int) error
	CreatePost(ctx context.Context, agentID int, content string) error
}

// Exiter is implemented by platforms that can be told the seeding client is done.
type Exiter interface {
	Exit(ctx context.Context) error
}

// Action binds a Platform to one agent, giving the per-agent call surface.
type Action struct {
	agentID  int
	platform Platform
}

// NewAction returns the action surface for agentID.
func NewAction(agentID int, platform Platform) Action {
	return Action{agentID: agentID, platform: platform}
}

// AgentID returns the agent the action is bound to.
func (a Action) AgentID() int {
	return a.agentID
}

// SignUp registers the agent as a platform user.
func (a Action) SignUp(ctx context.Context, username, name, bio string) (SignUpResult, error) {
	return a.platform.SignUp(ctx, a.agentID, SignUpRequest{Username: username, Name: name, Bio: bio})
}

// Follow makes the agent follow targetUserID.
func (a Action) Follow(ctx context.Context, targetUserID int) error {
	return a.platform.Follow(ctx, a.agentID, targetUserID)
}

// CreatePost publishes text as the agent.
func (a Action) CreatePost(ctx context.Context, text string) error {
	return a.platform.CreatePost(ctx, a.agentID, text)
}
