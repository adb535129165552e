package wschannel_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/zhouzirui/weibo-seed/internal/engine"
	"github.com/zhouzirui/weibo-seed/internal/engine/wschannel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startEngine(t *testing.T, platform *engine.MemoryPlatform) (*wschannel.Server, *wschannel.Client) {
	t.Helper()
	server := wschannel.NewServer(platform, nil)
	srv := httptest.NewServer(server)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	opts := wschannel.DefaultOptions()
	opts.MaxRetries = 1
	client, err := wschannel.Dial(context.Background(), url, nil, opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return server, client
}

func TestClientRoundTrip(t *testing.T) {
	platform := engine.NewMemoryPlatform()
	server, client := startEngine(t, platform)
	ctx := context.Background()

	a, err := client.SignUp(ctx, 0, engine.SignUpRequest{Username: "alice", Name: "Alice", Bio: "hi"})
	require.NoError(t, err)
	require.NotNil(t, a.UserID)
	b, err := client.SignUp(ctx, 1, engine.SignUpRequest{Username: "bob", Name: "Bob"})
	require.NoError(t, err)
	require.NotNil(t, b.UserID)

	require.NoError(t, client.Follow(ctx, 0, *b.UserID))
	require.NoError(t, client.CreatePost(ctx, 1, "first post"))

	assert.Equal(t, []int{*b.UserID}, platform.Follows(0))
	assert.Equal(t, []string{"first post"}, platform.Posts(1))

	require.NoError(t, client.Exit(ctx))
	select {
	case <-server.Done():
	case <-time.After(time.Second):
		t.Fatal("server did not observe exit")
	}
	assert.True(t, platform.Exited())
}

func TestClientSignUpWithoutUserID(t *testing.T) {
	platform := engine.NewMemoryPlatform()
	platform.OmitUserID = func(int) bool { return true }
	_, client := startEngine(t, platform)

	res, err := client.SignUp(context.Background(), 7, engine.SignUpRequest{Username: "ghost"})
	require.NoError(t, err)
	assert.Nil(t, res.UserID)
}

func TestClientRemoteError(t *testing.T) {
	platform := engine.NewMemoryPlatform()
	_, client := startEngine(t, platform)

	err := client.Follow(context.Background(), 0, 42)
	var remote *wschannel.RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, engine.ActionFollow, remote.Action)
	assert.Contains(t, remote.Message, "not signed up")
}

func TestClientConcurrentCalls(t *testing.T) {
	platform := engine.NewMemoryPlatform()
	_, client := startEngine(t, platform)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	ids := make([]int, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := client.SignUp(ctx, i, engine.SignUpRequest{Username: "u"})
			errs[i] = err
			if err == nil && res.UserID != nil {
				ids[i] = *res.UserID
			}
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		got, ok := platform.UserID(i)
		require.True(t, ok)
		assert.Equal(t, got, ids[i])
		assert.False(t, seen[ids[i]], "user id %d assigned twice", ids[i])
		seen[ids[i]] = true
	}
}

func TestClientCallHonoursContext(t *testing.T) {
	platform := engine.NewMemoryPlatform()
	platform.Delay = time.Second
	_, client := startEngine(t, platform)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := client.CreatePost(ctx, 0, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestClientClosed(t *testing.T) {
	_, client := startEngine(t, engine.NewMemoryPlatform())
	require.NoError(t, client.Close())
	<-client.Done()

	err := client.CreatePost(context.Background(), 0, "late")
	assert.ErrorIs(t, err, wschannel.ErrClosed)
}

func TestDialFailure(t *testing.T) {
	opts := wschannel.DefaultOptions()
	opts.MaxRetries = 1
	opts.ConnectionTimeout = 200 * time.Millisecond

	_, err := wschannel.Dial(context.Background(), "ws://127.0.0.1:1/engine", nil, opts, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect after 1 attempts")
}
