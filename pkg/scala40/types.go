package scala40

import "time"

// MeldType tags a table meld as a sequence or a combination.
type MeldType string

const (
	MeldSequence    MeldType = "sequence"
	MeldCombination MeldType = "combination"
)

// TurnPhase is the per-turn state machine position. TURN_END is transient
// and never persisted: a committed game is always awaiting something.
type TurnPhase string

const (
	PhaseAwaitDraw TurnPhase = "await_draw"
	PhaseAwaitPlay TurnPhase = "await_play"
	// PhaseAwaitDiscard is part of the document schema but the engine never
	// enters it: play actions stay legal until the discard, so players
	// remain in await_play. Imported documents may still carry it.
	PhaseAwaitDiscard TurnPhase = "await_discard"
)

// Status is the match status.
type Status string

const (
	StatusPlaying  Status = "playing"
	StatusHandEnd  Status = "hand_end"
	StatusFinished Status = "finished"
)

// Default thresholds.
const (
	DefaultOpeningThreshold = 40
	DefaultEliminationScore = 101
	// NeverActedPenalty is the flat score charged to players who never
	// opened when a close-in-hand lands (closeInHandBonus variant).
	NeverActedPenalty = 100
)

// Settings are the per-game configuration flags recognised by the engine.
type Settings struct {
	EliminationScore    int  `json:"eliminationScore"`
	OpeningThreshold    int  `json:"openingThreshold"`
	OpenWithDiscard     bool `json:"openWithDiscard"`
	CloseInHandBonus    bool `json:"closeInHandBonus"`
	OpeningWithoutJoker bool `json:"openingWithoutJoker"`
}

// DefaultSettings returns the standard tournament configuration.
func DefaultSettings() Settings {
	return Settings{
		EliminationScore: DefaultEliminationScore,
		OpeningThreshold: DefaultOpeningThreshold,
	}
}

// Normalize fills zero values with defaults.
func (s Settings) Normalize() Settings {
	if s.EliminationScore == 0 {
		s.EliminationScore = DefaultEliminationScore
	}
	if s.OpeningThreshold == 0 {
		s.OpeningThreshold = DefaultOpeningThreshold
	}
	return s
}

// Meld is a set of cards on the table. Owner is the player who first laid
// it down and matters only for display; anybody who has opened may attach.
type Meld struct {
	ID    string   `json:"meldId"`
	Owner string   `json:"owner"`
	Type  MeldType `json:"type"`
	Cards []Card   `json:"cards"`
}

// HasJoker reports whether the meld already carries its one allowed joker.
func (m *Meld) HasJoker() bool {
	for _, c := range m.Cards {
		if c.IsJoker() {
			return true
		}
	}
	return false
}

// Player is the per-player state within a game.
type Player struct {
	UserID string `json:"userId"`
	// Hand order is the player's preferred display order and is preserved
	// across actions.
	Hand         []Card `json:"hand"`
	HasOpened    bool   `json:"hasOpened"`
	IsEliminated bool   `json:"isEliminated"`
	// HandPoints is the penalty charged for the last completed hand.
	HandPoints int `json:"handPoints"`
}

// TurnScratch carries the obligations that only live until the turn's
// discard. It is cleared when the turn ends.
type TurnScratch struct {
	// DrawnFromDiscard is the card picked from the discard pile this turn,
	// if any. It may not be discarded back and must not be left unused.
	DrawnFromDiscard *Card `json:"drawnFromDiscard,omitempty"`
	// PendingJoker is a joker withdrawn by substitution that must be melded
	// before the turn can end.
	PendingJoker *Card `json:"pendingJoker,omitempty"`
	// OpenedThisTurn and PlaysSinceOpen feed the close-in-hand rules.
	OpenedThisTurn bool `json:"openedThisTurn,omitempty"`
	PlaysSinceOpen int  `json:"playsSinceOpen,omitempty"`
}

// Game is the complete state of a Scala 40 match, stored as one document.
type Game struct {
	GameID  string    `json:"gameId"`
	LobbyID string    `json:"lobbyId,omitempty"`
	Players []*Player `json:"players"`

	// Stock top is element 0; discard top is the last element.
	Stock       []Card  `json:"stock"`
	DiscardPile []Card  `json:"discardPile"`
	Melds       []*Meld `json:"tableMelds"`

	CurrentTurnUserID  string      `json:"currentTurnUserId"`
	TurnPhase          TurnPhase   `json:"turnPhase"`
	Turn               TurnScratch `json:"turn"`
	RoundNumber        int         `json:"roundNumber"`
	FirstRoundComplete bool        `json:"firstRoundComplete"`
	RoundStarterUserID string      `json:"roundStarterUserId"`
	DealerUserID       string      `json:"dealerUserId"`
	HandNumber         int         `json:"handNumber"`

	Scores map[string]int `json:"scores"`
	Status Status         `json:"status"`
	Winner string         `json:"winner,omitempty"`

	Settings Settings `json:"settings"`

	// Seed is fixed at creation; ShuffleCount advances on every shuffle so
	// that the full game history is reproducible from the document alone.
	Seed         int64 `json:"seed"`
	ShuffleCount int64 `json:"shuffleCount"`

	// Idempotency: the last applied action nonce and its serialized result.
	LastNonce  string `json:"lastNonce,omitempty"`
	LastResult []byte `json:"lastResult,omitempty"`

	UpdatedAt time.Time `json:"updatedAt"`
	Version   uint64    `json:"version"`
}

// Player returns the player with the given id, or nil.
func (g *Game) Player(userID string) *Player {
	for _, p := range g.Players {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

// ActivePlayers returns the non-eliminated players in seating order.
func (g *Game) ActivePlayers() []*Player {
	out := make([]*Player, 0, len(g.Players))
	for _, p := range g.Players {
		if !p.IsEliminated {
			out = append(out, p)
		}
	}
	return out
}

// ActiveIDs returns the ids of non-eliminated players in seating order.
func (g *Game) ActiveIDs() []string {
	out := make([]string, 0, len(g.Players))
	for _, p := range g.Players {
		if !p.IsEliminated {
			out = append(out, p.UserID)
		}
	}
	return out
}

// MeldByID returns the table meld with the given id, or nil.
func (g *Game) MeldByID(id string) *Meld {
	for _, m := range g.Melds {
		if m.ID == id {
			return m
		}
	}
	return nil
}
