// Package sim drives complete games through the engine with a deterministic
// baseline bot. Given the same seed it always produces the same game, which
// makes it the workhorse for reproducibility and integrity testing and for
// the simulate CLI command.
package sim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/decred/slog"

	"github.com/vctt94/scala40/pkg/engine"
	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/scala40"
	"github.com/vctt94/scala40/pkg/statemachine"
)

// DefaultMaxTurns caps a single game. A match that has not finished by then
// is reported as unfinished rather than looping forever.
const DefaultMaxTurns = 5000

// Config holds the runner dependencies.
type Config struct {
	Engine *engine.Engine
	Store  repo.Store
	Log    slog.Logger
	// MaxTurns overrides DefaultMaxTurns when positive.
	MaxTurns int
}

// Runner plays games with the baseline bot.
type Runner struct {
	eng      *engine.Engine
	store    repo.Store
	log      slog.Logger
	maxTurns int
}

// NewRunner creates a runner.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Engine == nil || cfg.Store == nil {
		return nil, fmt.Errorf("sim: engine and store are required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Runner{eng: cfg.Engine, store: cfg.Store, log: log, maxTurns: maxTurns}, nil
}

// Result summarises one simulated game.
type Result struct {
	GameID   string
	Winner   string
	Turns    int
	Hands    int
	Finished bool
	Scores   map[string]int
}

// match is the state-machine entity for one running game.
type match struct {
	ctx    context.Context
	r      *Runner
	gameID string
	turns  int
	err    error
	final  *scala40.Game
}

// PlayGame runs the bot for every seat until the match finishes or the turn
// budget runs out.
func (r *Runner) PlayGame(ctx context.Context, gameID string) (*Result, error) {
	m := &match{ctx: ctx, r: r, gameID: gameID}
	machine := statemachine.New(m, stateTakeTurn)
	machine.Run(r.maxTurns)
	if m.err != nil {
		return nil, m.err
	}

	g := m.final
	if g == nil {
		var err error
		g, err = r.loadGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
	}
	res := &Result{
		GameID:   gameID,
		Winner:   g.Winner,
		Turns:    m.turns,
		Hands:    g.HandNumber,
		Finished: g.Status == scala40.StatusFinished,
		Scores:   g.Scores,
	}
	if res.Finished {
		r.log.Infof("game %s: %s won after %d hands, %d turns",
			gameID, res.Winner, res.Hands, res.Turns)
	} else {
		r.log.Warnf("game %s: unfinished after %d turns", gameID, res.Turns)
	}
	return res, nil
}

// stateTakeTurn plays one full turn for whoever is on turn, then repeats
// until the match ends.
func stateTakeTurn(m *match) statemachine.StateFn[match] {
	g, err := m.r.loadGame(m.ctx, m.gameID)
	if err != nil {
		m.err = err
		return nil
	}
	if g.Status == scala40.StatusFinished {
		m.final = g
		return nil
	}

	if err := m.r.playTurn(m.ctx, g); err != nil {
		m.err = fmt.Errorf("turn %d (%s): %w", m.turns, g.CurrentTurnUserID, err)
		return nil
	}
	m.turns++
	return stateTakeTurn
}

// playTurn is the baseline policy: draw from stock, open as soon as the hand
// carries 40 clean points, lay every meld it can find, then discard the most
// expensive card the rules allow.
func (r *Runner) playTurn(ctx context.Context, g *scala40.Game) error {
	playerID := g.CurrentTurnUserID
	p := g.Player(playerID)

	resp, err := r.eng.Apply(ctx, engine.Request{
		GameID: g.GameID, PlayerID: playerID, Action: engine.ActionDrawStock,
	})
	if err != nil {
		return fmt.Errorf("draw: %w", err)
	}
	hand := resp.PrivateView.Hand
	opened := p.HasOpened

	melds := findMelds(hand)
	// A discard must always remain.
	melds = capMelds(melds, len(hand)-1)

	if !opened && len(melds) > 0 {
		points := 0
		for _, cards := range melds {
			points += scala40.CheckMeld(cards).Points
		}
		if points >= g.Settings.Normalize().OpeningThreshold {
			resp, err = r.eng.Apply(ctx, engine.Request{
				GameID: g.GameID, PlayerID: playerID, Action: engine.ActionOpen,
				Melds: melds,
			})
			if err != nil {
				return fmt.Errorf("open: %w", err)
			}
			hand = resp.PrivateView.Hand
			opened = true
		}
	} else if opened {
		for _, cards := range melds {
			resp, err = r.eng.Apply(ctx, engine.Request{
				GameID: g.GameID, PlayerID: playerID, Action: engine.ActionLayMeld,
				Cards: cards,
			})
			if err != nil {
				return fmt.Errorf("lay_meld: %w", err)
			}
			hand = resp.PrivateView.Hand
		}
	}

	if opened {
		hand, err = r.attachAll(ctx, g.GameID, playerID, hand)
		if err != nil {
			return err
		}
	}

	return r.discardBest(ctx, g.GameID, playerID, hand)
}

// attachAll feeds the table with every hand card that fits somewhere,
// keeping one card back for the discard.
func (r *Runner) attachAll(ctx context.Context, gameID, playerID string, hand []scala40.Card) ([]scala40.Card, error) {
	for len(hand) > 1 {
		g, err := r.loadGame(ctx, gameID)
		if err != nil {
			return nil, err
		}
		attached := false
		for _, c := range sortedByPoints(hand) {
			m := scala40.DiscardAttaches(c, g.Melds)
			if m == nil {
				continue
			}
			resp, err := r.eng.Apply(ctx, engine.Request{
				GameID: gameID, PlayerID: playerID, Action: engine.ActionAttach,
				Card: c, MeldID: m.ID,
			})
			if err != nil {
				return nil, fmt.Errorf("attach: %w", err)
			}
			hand = resp.PrivateView.Hand
			attached = true
			break
		}
		if !attached {
			return hand, nil
		}
	}
	return hand, nil
}

// discardBest tries the most expensive cards first and falls back to the
// engine's auto-play when every candidate is refused.
func (r *Runner) discardBest(ctx context.Context, gameID, playerID string, hand []scala40.Card) error {
	for _, c := range sortedByPoints(hand) {
		_, err := r.eng.Apply(ctx, engine.Request{
			GameID: gameID, PlayerID: playerID, Action: engine.ActionDiscard,
			Card: c,
		})
		if err == nil {
			return nil
		}
		var ee *engine.Error
		if !errors.As(err, &ee) {
			return fmt.Errorf("discard: %w", err)
		}
	}
	_, err := r.eng.Apply(ctx, engine.Request{
		GameID: gameID, PlayerID: playerID, Action: engine.ActionAutoPlay,
	})
	if err != nil {
		return fmt.Errorf("auto_play: %w", err)
	}
	return nil
}

func (r *Runner) loadGame(ctx context.Context, id string) (*scala40.Game, error) {
	doc, ver, err := r.store.Get(ctx, repo.KindGame, id)
	if err != nil {
		return nil, fmt.Errorf("sim: failed to load game %s: %w", id, err)
	}
	var g scala40.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, fmt.Errorf("sim: game %s does not decode: %w", id, err)
	}
	g.Version = ver
	return &g, nil
}

// findMelds greedily extracts jokerless melds from the hand: maximal
// same-suit runs first, then same-rank combinations from what remains. The
// scan order is fixed, so the same hand always yields the same melds.
func findMelds(hand []scala40.Card) [][]scala40.Card {
	avail := append([]scala40.Card(nil), hand...)
	var out [][]scala40.Card

	// Runs per suit, low ace only.
	for _, suit := range scala40.Suits {
		byRank := make(map[int]scala40.Card)
		for _, c := range sortedCanonical(avail) {
			if c.Suit == suit && !c.IsJoker() {
				if _, ok := byRank[c.Rank]; !ok {
					byRank[c.Rank] = c
				}
			}
		}
		run := []scala40.Card{}
		flush := func() {
			if len(run) >= 3 {
				meld := append([]scala40.Card(nil), run...)
				out = append(out, meld)
				for _, c := range meld {
					avail, _ = scala40.RemoveCard(avail, c)
				}
			}
			run = run[:0]
		}
		for rank := scala40.Ace; rank <= scala40.King; rank++ {
			if c, ok := byRank[rank]; ok {
				run = append(run, c)
			} else {
				flush()
			}
		}
		flush()
	}

	// Combinations from the leftovers.
	for rank := scala40.Ace; rank <= scala40.King; rank++ {
		bySuit := make(map[scala40.Suit]scala40.Card)
		for _, c := range sortedCanonical(avail) {
			if c.Rank == rank && !c.IsJoker() {
				if _, ok := bySuit[c.Suit]; !ok {
					bySuit[c.Suit] = c
				}
			}
		}
		if len(bySuit) < 3 {
			continue
		}
		var meld []scala40.Card
		for _, suit := range scala40.Suits {
			if c, ok := bySuit[suit]; ok {
				meld = append(meld, c)
			}
		}
		out = append(out, meld)
		for _, c := range meld {
			avail, _ = scala40.RemoveCard(avail, c)
		}
	}
	return out
}

// capMelds drops trailing melds until they use at most budget cards.
func capMelds(melds [][]scala40.Card, budget int) [][]scala40.Card {
	used := 0
	for i, cards := range melds {
		if used+len(cards) > budget {
			return melds[:i]
		}
		used += len(cards)
	}
	return melds
}

// sortedByPoints orders cards by descending point value, breaking ties by
// the compact encoding so the order is stable across runs.
func sortedByPoints(cards []scala40.Card) []scala40.Card {
	out := append([]scala40.Card(nil), cards...)
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Points(false), out[j].Points(false)
		if pi != pj {
			return pi > pj
		}
		return out[i].String() < out[j].String()
	})
	return out
}

// sortedCanonical orders cards by suit, rank and deck for deterministic
// scanning.
func sortedCanonical(cards []scala40.Card) []scala40.Card {
	out := append([]scala40.Card(nil), cards...)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Suit != out[j].Suit {
			return out[i].Suit < out[j].Suit
		}
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Deck < out[j].Deck
	})
	return out
}
