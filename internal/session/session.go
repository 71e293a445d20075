// Package session ties a scene controller and the prefetcher together for
// each player.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jwebster45206/scene-engine/internal/prefetch"
	"github.com/jwebster45206/scene-engine/internal/scenesync"
	"github.com/jwebster45206/scene-engine/pkg/scene"
)

const publishTimeout = 2 * time.Second

// Publisher forwards scene changes to remote listeners.
type Publisher interface {
	PublishSceneView(ctx context.Context, playerID string, view scenesync.View) error
	PublishPrefetchCompleted(ctx context.Context, playerID string, result prefetch.Result) error
}

// Session is one player's scene engine.
type Session struct {
	playerID   string
	controller *scenesync.Controller
	prefetcher *prefetch.Prefetcher
	publisher  Publisher
	logger     *slog.Logger
}

// New creates a session. publisher may be nil.
func New(playerID string, pipeline *scenesync.Pipeline, prefetcher *prefetch.Prefetcher, publisher Publisher, logger *slog.Logger) *Session {
	s := &Session{
		playerID:   playerID,
		controller: scenesync.NewController(pipeline, logger.With("player_id", playerID)),
		prefetcher: prefetcher,
		publisher:  publisher,
		logger:     logger,
	}
	if publisher != nil {
		s.controller.Subscribe(s.publishView)
	}
	return s
}

// PlayerID returns the player the session belongs to.
func (s *Session) PlayerID() string {
	return s.playerID
}

// View returns the player's current scene view.
func (s *Session) View() scenesync.View {
	return s.controller.View()
}

// Subscribe registers a local observer of view changes.
func (s *Session) Subscribe(o scenesync.Observer) {
	s.controller.Subscribe(o)
}

// Sync applies a new game state: the foreground scene settles first, then
// the adjacent scenes are prefetched in the background. The returned batch
// is nil when there is nothing to prefetch.
func (s *Session) Sync(ctx context.Context, snap *scene.Snapshot) (scenesync.Outcome, *prefetch.Batch) {
	outcome := s.controller.Apply(ctx, snap)
	s.logger.Debug("Scene synced", "player_id", s.playerID, "outcome", outcome.String())

	adjacent := snap.AdjacentDescriptors()
	if len(adjacent) == 0 {
		return outcome, nil
	}

	batch := s.prefetcher.Start(ctx, adjacent)
	if s.publisher != nil {
		go func() {
			res := batch.Wait()
			pubCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			if err := s.publisher.PublishPrefetchCompleted(pubCtx, s.playerID, res); err != nil {
				s.logger.Debug("Failed to publish prefetch result", "player_id", s.playerID, "error", err)
			}
		}()
	}
	return outcome, batch
}

func (s *Session) publishView(v scenesync.View) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := s.publisher.PublishSceneView(ctx, s.playerID, v); err != nil {
		s.logger.Debug("Failed to publish scene view", "player_id", s.playerID, "error", err)
	}
}

// Manager hands out one session per player. All sessions share the
// pipeline, so players standing in the same scene share its image.
type Manager struct {
	pipeline   *scenesync.Pipeline
	prefetcher *prefetch.Prefetcher
	publisher  Publisher
	logger     *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty manager. publisher may be nil.
func NewManager(pipeline *scenesync.Pipeline, prefetcher *prefetch.Prefetcher, publisher Publisher, logger *slog.Logger) *Manager {
	return &Manager{
		pipeline:   pipeline,
		prefetcher: prefetcher,
		publisher:  publisher,
		logger:     logger,
		sessions:   make(map[string]*Session),
	}
}

// Session returns the player's session, creating it on first use.
func (m *Manager) Session(playerID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sessions[playerID]; ok {
		return s
	}
	s := New(playerID, m.pipeline, m.prefetcher, m.publisher, m.logger)
	m.sessions[playerID] = s
	m.logger.Info("Scene session created", "player_id", playerID)
	return s
}

// Lookup returns an existing session without creating one.
func (m *Manager) Lookup(playerID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[playerID]
	return s, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
