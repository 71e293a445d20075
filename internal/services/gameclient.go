package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

// PlayerIDHeader carries the player id on command requests.
const PlayerIDHeader = "x-player-id"

// ErrUnreachable wraps transport failures talking to the game server.
var ErrUnreachable = errors.New("game server unreachable")

// CommandRequest is the body of a game server command.
type CommandRequest struct {
	Text string `json:"text"`
}

// CommandResponse is the game server's reply to a command. State is kept
// raw so proxies can forward fields the scene engine does not model.
type CommandResponse struct {
	OK       bool            `json:"ok"`
	Messages []string        `json:"messages,omitempty"`
	State    json.RawMessage `json:"state,omitempty"`
	Error    string          `json:"error,omitempty"`

	snapshot *scene.Snapshot
}

// Snapshot returns the parsed state, or nil when the reply carried none.
func (r *CommandResponse) Snapshot() *scene.Snapshot {
	if r == nil {
		return nil
	}
	return r.snapshot
}

// GameServer sends player commands to the authoritative game server.
type GameServer interface {
	SendCommand(ctx context.Context, text, playerID string) (*CommandResponse, error)
}

// GameClient is the HTTP GameServer implementation.
type GameClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGameClient creates a client for the game server at baseURL.
func NewGameClient(baseURL string, timeout time.Duration) *GameClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &GameClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SendCommand posts one command. An empty playerID asks the server to
// create a new player; the returned state then names it.
func (c *GameClient) SendCommand(ctx context.Context, text, playerID string) (*CommandResponse, error) {
	headers := map[string]string{}
	if playerID != "" {
		headers[PlayerIDHeader] = playerID
	}

	status, body, err := postJSON(ctx, c.httpClient, c.baseURL+"/command", headers, CommandRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreachable, err)
	}

	var resp CommandResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		if status != http.StatusOK {
			return nil, statusError(status, body)
		}
		return nil, fmt.Errorf("failed to parse command response: %w", err)
	}
	if status != http.StatusOK && resp.Error == "" {
		return nil, statusError(status, body)
	}

	if len(resp.State) > 0 && string(resp.State) != "null" {
		var snap scene.Snapshot
		if err := json.Unmarshal(resp.State, &snap); err != nil {
			return nil, fmt.Errorf("failed to parse game state: %w", err)
		}
		resp.snapshot = &snap
	}
	return &resp, nil
}

// MockGameServer is a mock implementation of GameServer for testing
type MockGameServer struct {
	SendCommandFunc func(ctx context.Context, text, playerID string) (*CommandResponse, error)
	Commands        []string
}

// SendCommand records the command and returns the configured reply
func (m *MockGameServer) SendCommand(ctx context.Context, text, playerID string) (*CommandResponse, error) {
	m.Commands = append(m.Commands, text)
	if m.SendCommandFunc != nil {
		return m.SendCommandFunc(ctx, text, playerID)
	}
	return &CommandResponse{OK: true}, nil
}

// NewCommandResponse builds a reply around an already parsed snapshot.
func NewCommandResponse(messages []string, snap *scene.Snapshot) (*CommandResponse, error) {
	resp := &CommandResponse{OK: true, Messages: messages, snapshot: snap}
	if snap != nil {
		raw, err := json.Marshal(snap)
		if err != nil {
			return nil, err
		}
		resp.State = raw
	}
	return resp, nil
}
