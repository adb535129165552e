package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/weibo-seed/internal/engine"
)

func TestMemoryPlatformAssignsSequentialUserIDs(t *testing.T) {
	p := engine.NewMemoryPlatform()
	ctx := context.Background()

	first, err := engine.NewAction(10, p).SignUp(ctx, "a", "A", "bio")
	require.NoError(t, err)
	second, err := engine.NewAction(11, p).SignUp(ctx, "b", "B", "bio")
	require.NoError(t, err)

	require.NotNil(t, first.UserID)
	require.NotNil(t, second.UserID)
	assert.Equal(t, 1, *first.UserID)
	assert.Equal(t, 2, *second.UserID)

	id, ok := p.UserID(11)
	assert.True(t, ok)
	assert.Equal(t, 2, id)
}

func TestMemoryPlatformFollowAndPost(t *testing.T) {
	p := engine.NewMemoryPlatform()
	ctx := context.Background()
	a := engine.NewAction(0, p)
	b := engine.NewAction(1, p)
	_, _ = a.SignUp(ctx, "a", "A", "")
	res, _ := b.SignUp(ctx, "b", "B", "")

	require.NoError(t, a.Follow(ctx, *res.UserID))
	require.NoError(t, a.Follow(ctx, *res.UserID))
	require.NoError(t, a.CreatePost(ctx, "hello"))

	assert.Equal(t, []int{2, 2}, p.Follows(0))
	assert.Equal(t, []string{"hello"}, p.Posts(0))
	assert.Len(t, p.CallsOf(engine.ActionFollow), 2)

	err := a.Follow(ctx, 99)
	assert.ErrorIs(t, err, engine.ErrUnknownUser)

	err = engine.NewAction(5, p).CreatePost(ctx, "x")
	assert.ErrorIs(t, err, engine.ErrUnknownAgent)
}

func TestMemoryPlatformInjectedFailures(t *testing.T) {
	boom := errors.New("boom")
	p := engine.NewMemoryPlatform()
	p.OmitUserID = func(agentID int) bool { return agentID == 3 }
	p.Fail = func(c engine.Call) error {
		if c.Action == engine.ActionCreatePost && c.Content == "bad" {
			return boom
		}
		return nil
	}
	ctx := context.Background()

	res, err := engine.NewAction(3, p).SignUp(ctx, "c", "C", "")
	require.NoError(t, err)
	assert.Nil(t, res.UserID)

	_, _ = engine.NewAction(4, p).SignUp(ctx, "d", "D", "")
	assert.ErrorIs(t, engine.NewAction(4, p).CreatePost(ctx, "bad"), boom)
	assert.Empty(t, p.Posts(4))
	assert.Len(t, p.CallsOf(engine.ActionCreatePost), 1)
}

func TestMemoryPlatformDelayHonoursContext(t *testing.T) {
	p := engine.NewMemoryPlatform()
	p.Delay = time.Second
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := p.SignUp(ctx, 0, engine.SignUpRequest{Username: "slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, p.Calls())
}

func TestDefaultActions(t *testing.T) {
	actions := engine.DefaultActions()
	assert.Len(t, actions, 10)
	assert.Contains(t, actions, engine.ActionFollow)
	assert.NotContains(t, actions, engine.ActionSignUp)
}

func TestMemoryPlatformStallHonoursContext(t *testing.T) {
	p := engine.NewMemoryPlatform()
	p.Stall = func(c engine.Call) bool { return c.Action == engine.ActionCreatePost }
	ctx := context.Background()

	a := engine.NewAction(4, p)
	assert.Equal(t, 4, a.AgentID())
	_, err := a.SignUp(ctx, "a", "A", "")
	require.NoError(t, err)

	callCtx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	err = a.CreatePost(callCtx, "stuck")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, p.Posts(4))
}
