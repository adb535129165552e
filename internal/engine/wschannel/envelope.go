// Package wschannel carries engine actions over a websocket. Each request
// envelope gets a uuid; responses carry the same id and may arrive in any
// order, so many agents can share one connection.
package wschannel

import (
	"encoding/json"
	"fmt"

	"github.com/zhouzirui/weibo-seed/internal/engine"
)

// Request is sent by the seeding client.
type Request struct {
	ID        string            `json:"id"`
	AgentID   int               `json:"agentId"`
	Action    engine.ActionType `json:"action"`
	Payload   json.RawMessage   `json:"payload,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// Response answers exactly one Request.
type Response struct {
	ID        string          `json:"id"`
	OK        bool            `json:"ok"`
	Data      json.RawMessage `json:"data,omitempty"`
	Error     string          `json:"error,omitempty"`
	Timestamp int64           `json:"timestamp"`
}

type followPayload struct {
	FolloweeID int `json:"followee_id"`
}

type postPayload struct {
	Content string `json:"content"`
}

// RemoteError is an action the engine received and refused.
type RemoteError struct {
	Action  engine.ActionType
	AgentID int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("engine rejected %s for agent %d: %s", e.Action, e.AgentID, e.Message)
}
