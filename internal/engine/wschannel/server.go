package wschannel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/zhouzirui/weibo-seed/internal/engine"
)

// Server exposes an engine.Platform to websocket clients. It is the engine
// side of the channel and backs the fake engine used in local runs and tests.
type Server struct {
	platform engine.Platform
	logger   *zap.Logger
	upgrader websocket.Upgrader

	done     chan struct{}
	doneOnce sync.Once
}

// NewServer 创建新的引擎端处理器
func NewServer(platform engine.Platform, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		platform: platform,
		logger:   logger.Named("wschannel"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		done: make(chan struct{}),
	}
}

// Done is closed after a client sends the exit action.
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// ServeHTTP upgrades the request and serves envelopes until the client leaves.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	var (
		writeMu sync.Mutex
		wg      sync.WaitGroup
	)
	reply := func(resp Response) {
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteJSON(resp); err != nil {
			s.logger.Debug("write response failed", zap.String("id", resp.ID), zap.Error(err))
		}
	}

	for {
		var req Request
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read failed", zap.Error(err))
			}
			break
		}

		wg.Add(1)
		go func(req Request) {
			defer wg.Done()
			reply(s.dispatch(ctx, req))
		}(req)
	}

	cancel()
	wg.Wait()
}

func (s *Server) dispatch(ctx context.Context, req Request) Response {
	resp := Response{ID: req.ID}
	data, err := s.apply(ctx, req)
	resp.Timestamp = time.Now().UnixMilli()
	if err != nil {
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Data = data
	return resp
}

func (s *Server) apply(ctx context.Context, req Request) (json.RawMessage, error) {
	switch req.Action {
	case engine.ActionSignUp:
		var p engine.SignUpRequest
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid sign_up payload: %w", err)
		}
		result, err := s.platform.SignUp(ctx, req.AgentID, p)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)

	case engine.ActionFollow:
		var p followPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid follow payload: %w", err)
		}
		return nil, s.platform.Follow(ctx, req.AgentID, p.FolloweeID)

	case engine.ActionCreatePost:
		var p postPayload
		if err := json.Unmarshal(req.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid create_post payload: %w", err)
		}
		return nil, s.platform.CreatePost(ctx, req.AgentID, p.Content)

	case engine.ActionExit:
		if exiter, ok := s.platform.(engine.Exiter); ok {
			if err := exiter.Exit(ctx); err != nil {
				return nil, err
			}
		}
		s.doneOnce.Do(func() { close(s.done) })
		return nil, nil

	default:
		return nil, fmt.Errorf("unsupported action %q", req.Action)
	}
}
