// Package lobby manages pre-game lobbies: code generation, join/leave,
// readiness and the handoff that turns a full lobby into a running game.
// Lobbies persist as single documents with the same optimistic-concurrency
// discipline as games.
package lobby

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/scala40/pkg/engine"
	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/rng"
	"github.com/vctt94/scala40/pkg/scala40"
)

// Status is the lobby lifecycle state.
type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusStarting Status = "starting"
	StatusInGame   Status = "in_game"
	StatusClosed   Status = "closed"
)

// DefaultTTL is how long a lobby accepts joins before expiring.
const DefaultTTL = 2 * time.Hour

var (
	ErrClosed        = errors.New("lobby: closed or expired")
	ErrInGame        = errors.New("lobby: game already started")
	ErrFull          = errors.New("lobby: full")
	ErrAlreadyJoined = errors.New("lobby: already joined")
	ErrNotMember     = errors.New("lobby: not a member")
	ErrNotHost       = errors.New("lobby: only the host may start")
	ErrTooFewPlayers = errors.New("lobby: need at least two players")
	ErrNotAllReady   = errors.New("lobby: not all players are ready")
	ErrNotFound      = errors.New("lobby: not found")
)

// Entry is one seated player.
type Entry struct {
	UserID   string    `json:"userId"`
	Ready    bool      `json:"ready"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Lobby is the persisted lobby document. Entry order becomes the seating
// order of the game.
type Lobby struct {
	Code      string           `json:"code"`
	HostID    string           `json:"hostId"`
	Entries   []*Entry         `json:"entries"`
	Status    Status           `json:"status"`
	ChatID    string           `json:"chatId,omitempty"`
	Settings  scala40.Settings `json:"settings"`
	GameID    string           `json:"gameId,omitempty"`
	CreatedAt time.Time        `json:"createdAt"`
	ExpiresAt time.Time        `json:"expiresAt"`
	Version   uint64           `json:"-"`
}

// Entry returns the entry for userID, or nil.
func (l *Lobby) Entry(userID string) *Entry {
	for _, e := range l.Entries {
		if e.UserID == userID {
			return e
		}
	}
	return nil
}

func (l *Lobby) expired(now time.Time) bool {
	return now.After(l.ExpiresAt)
}

// GameStarter is the slice of the engine the lobby needs: it turns a full
// lobby into a dealt, persisted game.
type GameStarter interface {
	CreateGame(ctx context.Context, params engine.CreateGameParams) (*scala40.Game, error)
}

// Config holds the manager dependencies.
type Config struct {
	Store repo.Store
	Games GameStarter
	Log   slog.Logger
	// TTL overrides DefaultTTL when positive.
	TTL time.Duration
}

// Manager runs the lobby lifecycle on top of the document store.
type Manager struct {
	store repo.Store
	games GameStarter
	log   slog.Logger
	ttl   time.Duration
}

// NewManager creates a lobby manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("lobby: store is required")
	}
	if cfg.Games == nil {
		return nil, fmt.Errorf("lobby: game starter is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{store: cfg.Store, games: cfg.Games, log: log, ttl: ttl}, nil
}

// Create opens a lobby with the given host already seated. Code collisions
// are retried with fresh codes.
func (m *Manager) Create(ctx context.Context, hostID, chatID string, settings scala40.Settings) (*Lobby, error) {
	now := time.Now().UTC()
	for attempt := 0; attempt < 5; attempt++ {
		l := &Lobby{
			Code:      rng.LobbyCode(),
			HostID:    hostID,
			Status:    StatusWaiting,
			ChatID:    chatID,
			Settings:  settings.Normalize(),
			CreatedAt: now,
			ExpiresAt: now.Add(m.ttl),
			Entries:   []*Entry{{UserID: hostID, JoinedAt: now}},
		}
		ver, err := m.save(ctx, l, 0)
		if errors.Is(err, repo.ErrVersionConflict) {
			continue // code collision, roll a new one
		}
		if err != nil {
			return nil, err
		}
		l.Version = ver
		m.log.Infof("lobby %s created by %s", l.Code, hostID)
		return l, nil
	}
	return nil, fmt.Errorf("lobby: could not allocate a free code")
}

// Get loads a lobby by code.
func (m *Manager) Get(ctx context.Context, code string) (*Lobby, error) {
	doc, ver, err := m.store.Get(ctx, repo.KindLobby, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lobby: failed to load %s: %w", code, err)
	}
	var l Lobby
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, fmt.Errorf("lobby: %s does not decode: %w", code, err)
	}
	l.Version = ver
	return &l, nil
}

// Join seats a player. Fails on closed, expired, full or started lobbies.
func (m *Manager) Join(ctx context.Context, code, userID string) (*Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		if err := joinable(l); err != nil {
			return err
		}
		if l.Entry(userID) != nil {
			return ErrAlreadyJoined
		}
		if len(l.Entries) >= scala40.MaxPlayers {
			return ErrFull
		}
		l.Entries = append(l.Entries, &Entry{UserID: userID, JoinedAt: time.Now().UTC()})
		return nil
	})
}

// Leave unseats a player. A departing host hands the lobby to the next seat;
// the last player out closes it.
func (m *Manager) Leave(ctx context.Context, code, userID string) (*Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		if l.Status == StatusInGame || l.Status == StatusStarting {
			return ErrInGame
		}
		idx := -1
		for i, e := range l.Entries {
			if e.UserID == userID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return ErrNotMember
		}
		l.Entries = append(l.Entries[:idx], l.Entries[idx+1:]...)
		if len(l.Entries) == 0 {
			l.Status = StatusClosed
			return nil
		}
		if l.HostID == userID {
			l.HostID = l.Entries[0].UserID
			m.log.Infof("lobby %s: host handed to %s", l.Code, l.HostID)
		}
		return nil
	})
}

// ToggleReady flips a player's ready flag.
func (m *Manager) ToggleReady(ctx context.Context, code, userID string) (*Lobby, error) {
	return m.update(ctx, code, func(l *Lobby) error {
		if err := joinable(l); err != nil {
			return err
		}
		e := l.Entry(userID)
		if e == nil {
			return ErrNotMember
		}
		e.Ready = !e.Ready
		return nil
	})
}

// Start turns the lobby into a game. Only the host may start, everyone must
// be ready, and at least two players must be seated. The lobby is claimed
// with a conditional write before the game is created, so concurrent starts
// cannot double-deal.
func (m *Manager) Start(ctx context.Context, code, callerID string) (string, error) {
	l, err := m.update(ctx, code, func(l *Lobby) error {
		if err := joinable(l); err != nil {
			return err
		}
		if l.HostID != callerID {
			return ErrNotHost
		}
		if len(l.Entries) < scala40.MinPlayers {
			return ErrTooFewPlayers
		}
		for _, e := range l.Entries {
			if !e.Ready {
				return ErrNotAllReady
			}
		}
		l.Status = StatusStarting
		return nil
	})
	if err != nil {
		return "", err
	}

	players := make([]string, len(l.Entries))
	for i, e := range l.Entries {
		players[i] = e.UserID
	}
	g, err := m.games.CreateGame(ctx, engine.CreateGameParams{
		LobbyID:   l.Code,
		PlayerIDs: players,
		Settings:  l.Settings,
	})
	if err != nil {
		// Hand the lobby back so the host can try again.
		if _, rerr := m.update(ctx, code, func(l *Lobby) error {
			l.Status = StatusWaiting
			return nil
		}); rerr != nil {
			m.log.Warnf("lobby %s: failed to reopen after start error: %v", code, rerr)
		}
		return "", fmt.Errorf("lobby: failed to start game: %w", err)
	}

	if _, err := m.update(ctx, code, func(l *Lobby) error {
		l.Status = StatusInGame
		l.GameID = g.GameID
		return nil
	}); err != nil {
		return "", err
	}
	m.log.Infof("lobby %s started game %s with %d players", code, g.GameID, len(players))
	return g.GameID, nil
}

func joinable(l *Lobby) error {
	switch l.Status {
	case StatusClosed:
		return ErrClosed
	case StatusInGame, StatusStarting:
		return ErrInGame
	}
	if l.expired(time.Now().UTC()) {
		return ErrClosed
	}
	return nil
}

// update runs the read-modify-write cycle with conflict retries.
func (m *Manager) update(ctx context.Context, code string, fn func(*Lobby) error) (*Lobby, error) {
	var out *Lobby
	err := repo.WithRetry(ctx, func() error {
		l, err := m.Get(ctx, code)
		if err != nil {
			return err
		}
		if err := fn(l); err != nil {
			return err
		}
		ver, err := m.save(ctx, l, l.Version)
		if err != nil {
			return err
		}
		l.Version = ver
		out = l
		return nil
	})
	if errors.Is(err, repo.ErrVersionConflict) {
		return nil, fmt.Errorf("lobby: %s kept changing underneath us: %w", code, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (m *Manager) save(ctx context.Context, l *Lobby, expected uint64) (uint64, error) {
	doc, err := json.Marshal(l)
	if err != nil {
		return 0, fmt.Errorf("lobby: failed to marshal %s: %w", l.Code, err)
	}
	ver, err := m.store.Put(ctx, repo.KindLobby, l.Code, doc, expected)
	if err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return 0, err
		}
		return 0, fmt.Errorf("lobby: failed to persist %s: %w", l.Code, err)
	}
	return ver, nil
}
