package wschannel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/engine"
)

// ErrClosed is returned for calls made on, or pending when, the connection closed.
var ErrClosed = errors.New("wschannel: connection closed")

// Options 连接配置选项
type Options struct {
	ConnectionTimeout time.Duration // 握手超时时间
	ReadTimeout       time.Duration // 读取超时时间
	WriteTimeout      time.Duration // 写入超时时间
	PingInterval      time.Duration // Ping间隔
	MaxRetries        int           // 最大重试次数
}

// DefaultOptions 默认连接选项
func DefaultOptions() *Options {
	return &Options{
		ConnectionTimeout: 30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      30 * time.Second,
		PingInterval:      30 * time.Second,
		MaxRetries:        3,
	}
}

// Client implements engine.Platform over one websocket connection.
type Client struct {
	conn   *websocket.Conn
	opts   *Options
	logger *zap.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan Response
	err     error

	done      chan struct{}
	closeOnce sync.Once
}

var _ engine.Platform = (*Client)(nil)

// Dial connects to the engine at url, retrying with a linear backoff.
func Dial(ctx context.Context, url string, header http.Header, opts *Options, logger *zap.Logger) (*Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("wschannel")

	attempts := opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		conn, err := dial(ctx, url, header, opts)
		if err == nil {
			return newClient(conn, opts, logger), nil
		}
		lastErr = err
		logger.Warn("engine dial failed", zap.String("url", url), zap.Int("attempt", i+1), zap.Error(err))

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if i == attempts-1 {
			break
		}

		retryDelay := time.Duration(i+1) * time.Second
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts, last error: %w", attempts, lastErr)
}

func dial(ctx context.Context, url string, header http.Header, opts *Options) (*websocket.Conn, error) {
	dialer := &websocket.Dialer{
		HandshakeTimeout: opts.ConnectionTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}
	return conn, nil
}

func newClient(conn *websocket.Conn, opts *Options, logger *zap.Logger) *Client {
	c := &Client{
		conn:    conn,
		opts:    opts,
		logger:  logger,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}

	conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		return nil
	})

	go c.readLoop()
	go c.pingLoop()
	return c
}

// SignUp registers agentID with the engine.
func (c *Client) SignUp(ctx context.Context, agentID int, req engine.SignUpRequest) (engine.SignUpResult, error) {
	resp, err := c.call(ctx, agentID, engine.ActionSignUp, req)
	if err != nil {
		return engine.SignUpResult{}, err
	}
	var result engine.SignUpResult
	if len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, &result); err != nil {
			return engine.SignUpResult{}, fmt.Errorf("decode sign_up response: %w", err)
		}
	}
	return result, nil
}

// Follow asks the engine to make agentID follow followeeUserID.
func (c *Client) Follow(ctx context.Context, agentID int, followeeUserID int) error {
	_, err := c.call(ctx, agentID, engine.ActionFollow, followPayload{FolloweeID: followeeUserID})
	return err
}

// CreatePost publishes content as agentID.
func (c *Client) CreatePost(ctx context.Context, agentID int, content string) error {
	_, err := c.call(ctx, agentID, engine.ActionCreatePost, postPayload{Content: content})
	return err
}

// Exit tells the engine the seeding client is finished.
func (c *Client) Exit(ctx context.Context) error {
	_, err := c.call(ctx, 0, engine.ActionExit, nil)
	return err
}

func (c *Client) call(ctx context.Context, agentID int, action engine.ActionType, payload any) (Response, error) {
	req := Request{
		ID:        uuid.NewString(),
		AgentID:   agentID,
		Action:    action,
		Timestamp: time.Now().UnixMilli(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Response{}, fmt.Errorf("encode %s payload: %w", action, err)
		}
		req.Payload = raw
	}

	ch := make(chan Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return Response{}, err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	if err := c.write(req); err != nil {
		c.forget(req.ID)
		return Response{}, fmt.Errorf("send %s: %w", action, err)
	}

	select {
	case <-ctx.Done():
		c.forget(req.ID)
		return Response{}, ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return Response{}, c.closedErr()
		}
		if !resp.OK {
			return resp, &RemoteError{Action: action, AgentID: agentID, Message: resp.Error}
		}
		return resp, nil
	}
}

func (c *Client) write(req Request) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteTimeout))
	return c.conn.WriteJSON(req)
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// readLoop 读取响应并分发给等待中的调用
func (c *Client) readLoop() {
	for {
		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Warn("engine connection read failed", zap.Error(err))
			}
			c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(c.opts.ReadTimeout))

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		delete(c.pending, resp.ID)
		c.mu.Unlock()

		if !ok {
			c.logger.Debug("dropping response without pending call", zap.String("id", resp.ID))
			continue
		}
		ch <- resp
	}
}

// pingLoop 定期发送ping消息
func (c *Client) pingLoop() {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.opts.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Warn("engine ping failed", zap.Error(err))
				c.fail(fmt.Errorf("%w: %v", ErrClosed, err))
				return
			}
		}
	}
}

// fail closes the connection and releases every pending call.
func (c *Client) fail(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		pending := c.pending
		c.pending = make(map[string]chan Response)
		c.mu.Unlock()

		for _, ch := range pending {
			close(ch)
		}
		close(c.done)
		c.conn.Close()
	})
}

// Close sends a close frame and tears the connection down.
func (c *Client) Close() error {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	c.fail(ErrClosed)
	return nil
}

// Done is closed once the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
