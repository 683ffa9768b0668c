package engine

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/scala40"
)

func newTestEngine(t *testing.T) (*Engine, repo.Store) {
	t.Helper()
	store := repo.NewMemory()
	e, err := New(Config{Store: store, StrictIntegrity: true})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return e, store
}

func cards(specs ...string) []scala40.Card {
	out := make([]scala40.Card, len(specs))
	for i, s := range specs {
		out[i] = scala40.MustCard(s)
	}
	return out
}

// seat describes one player in a hand-crafted fixture.
type seat struct {
	id     string
	hand   []scala40.Card
	opened bool
	score  int
	elim   bool
}

// buildGame assembles a consistent mid-hand game: the named cards go to
// hands, melds and the discard pile, everything else becomes the stock. The
// first seat is the current player and the round starter.
func buildGame(t *testing.T, seats []seat, melds []*scala40.Meld, discard []scala40.Card, phase scala40.TurnPhase, firstRound bool) *scala40.Game {
	t.Helper()

	stock := scala40.NewDeck()
	take := func(cs []scala40.Card) {
		for _, c := range cs {
			var ok bool
			stock, ok = scala40.RemoveCard(stock, c)
			require.True(t, ok, "fixture uses card %s twice", c)
		}
	}
	for _, s := range seats {
		take(s.hand)
	}
	for _, m := range melds {
		take(m.Cards)
	}
	take(discard)

	g := &scala40.Game{
		GameID:             "g-fixture",
		Stock:              stock,
		DiscardPile:        discard,
		Melds:              melds,
		CurrentTurnUserID:  seats[0].id,
		TurnPhase:          phase,
		RoundStarterUserID: seats[0].id,
		DealerUserID:       seats[len(seats)-1].id,
		RoundNumber:        1,
		FirstRoundComplete: firstRound,
		HandNumber:         1,
		Scores:             make(map[string]int),
		Status:             scala40.StatusPlaying,
		Settings:           scala40.DefaultSettings(),
		Seed:               42,
		ShuffleCount:       1,
	}
	if firstRound {
		g.RoundNumber = 2
	}
	for _, s := range seats {
		g.Players = append(g.Players, &scala40.Player{
			UserID:       s.id,
			Hand:         s.hand,
			HasOpened:    s.opened,
			IsEliminated: s.elim,
		})
		g.Scores[s.id] = s.score
	}
	return g
}

func saveGame(t *testing.T, store repo.Store, g *scala40.Game) {
	t.Helper()
	doc, err := json.Marshal(g)
	require.NoError(t, err)
	_, err = store.Put(context.Background(), repo.KindGame, g.GameID, doc, 0)
	require.NoError(t, err)
}

func loadVersion(t *testing.T, store repo.Store, id string) uint64 {
	t.Helper()
	_, ver, err := store.Get(context.Background(), repo.KindGame, id)
	require.NoError(t, err)
	return ver
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}

func TestCreateGameDealsFirstHand(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()

	g, err := e.CreateGame(ctx, CreateGameParams{
		PlayerIDs: []string{"alice", "bob", "carol"},
		Seed:      42,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, g.HandNumber)
	assert.Equal(t, "alice", g.CurrentTurnUserID, "seat 0 acts first")
	assert.Equal(t, "carol", g.DealerUserID)
	assert.Equal(t, scala40.PhaseAwaitDraw, g.TurnPhase)
	for _, p := range g.Players {
		assert.Len(t, p.Hand, scala40.CardsPerPlayer)
	}
	assert.Len(t, g.DiscardPile, 1)
	assert.Empty(t, scala40.CheckIntegrity(g))

	// Same seed, same deal.
	g2, err := e.CreateGame(ctx, CreateGameParams{
		GameID:    "g-two",
		PlayerIDs: []string{"alice", "bob", "carol"},
		Seed:      42,
	})
	require.NoError(t, err)
	assert.Equal(t, g.Players[0].Hand, g2.Players[0].Hand)
	assert.Equal(t, g.Stock, g2.Stock)
}

func TestDrawStock(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	g, err := e.CreateGame(ctx, CreateGameParams{PlayerIDs: []string{"alice", "bob"}, Seed: 42})
	require.NoError(t, err)

	resp, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawStock})
	require.NoError(t, err)
	assert.Equal(t, scala40.PhaseAwaitPlay, resp.NewPhase)
	assert.Len(t, resp.PrivateView.Hand, scala40.CardsPerPlayer+1)
	assert.Equal(t, []EventType{EventDraw}, eventTypes(resp.Events))

	// Drawing twice is out of phase.
	_, err = e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawStock})
	assert.True(t, IsKind(err, WrongPhase), "got %v", err)

	// Out-of-turn callers are rejected before anything else.
	_, err = e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "bob", Action: ActionDrawStock})
	assert.True(t, IsKind(err, NotYourTurn), "got %v", err)
}

func TestDrawDiscardRequiresOpened(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("2♣0", "9♦0", "4♠0")},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitDraw, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawDiscard})
	assert.True(t, IsKind(err, NotOpened), "got %v", err)

	// The open-with-discard variant lifts the restriction.
	g.GameID = "g-variant"
	g.Settings.OpenWithDiscard = true
	saveGame(t, store, g)
	resp, err := e.Apply(ctx, Request{GameID: "g-variant", PlayerID: "alice", Action: ActionDrawDiscard})
	require.NoError(t, err)
	require.NotNil(t, resp.PrivateView.DrawnFromDiscard)
	assert.Equal(t, scala40.MustCard("8♥0"), *resp.PrivateView.DrawnFromDiscard)
}

func TestOpeningThresholdBoundary(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	// Exactly 40 points: four kings.
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("K♠0", "K♥0", "K♦0", "K♣0", "2♣0")},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, false)
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionOpen,
		Melds: [][]scala40.Card{cards("K♠0", "K♥0", "K♦0", "K♣0")},
	})
	require.NoError(t, err)
	assert.Equal(t, []EventType{EventOpen}, eventTypes(resp.Events))
	assert.True(t, resp.PublicView.Players[0].HasOpened)
	require.Len(t, resp.PublicView.Melds, 1)
	assert.Equal(t, scala40.MeldCombination, resp.PublicView.Melds[0].Type)

	// 39 points: queens plus a low run.
	g2 := buildGame(t, []seat{
		{id: "alice", hand: cards("Q♠0", "Q♥0", "Q♦0", "2♣0", "3♣0", "4♣0", "9♦0")},
		{id: "bob", hand: cards("3♠0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, false)
	g2.GameID = "g-39"
	saveGame(t, store, g2)
	verBefore := loadVersion(t, store, "g-39")

	_, err = e.Apply(ctx, Request{
		GameID: "g-39", PlayerID: "alice", Action: ActionOpen,
		Melds: [][]scala40.Card{cards("Q♠0", "Q♥0", "Q♦0"), cards("2♣0", "3♣0", "4♣0")},
	})
	require.Error(t, err)
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, OpeningBelowThreshold, ee.Kind)
	assert.Equal(t, 39, ee.Points)
	assert.Equal(t, verBefore, loadVersion(t, store, "g-39"), "rejected actions commit nothing")
}

func TestOpenRejectsWrapMeld(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("K♠0", "A♠0", "2♠0", "9♦0")},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, false)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionOpen,
		Melds: [][]scala40.Card{cards("K♠0", "A♠0", "2♠0")},
	})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, IllegalMeld, ee.Kind)
	assert.Equal(t, scala40.ReasonWrap, ee.Code)
}

func TestLayMeldRequiresOpened(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("5♥0", "6♥0", "7♥0", "9♦0")},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionLayMeld,
		Cards: cards("5♥0", "6♥0", "7♥0"),
	})
	assert.True(t, IsKind(err, NotOpened), "got %v", err)
}

func TestLayMeldLeavesACardToDiscard(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("8♠0", "8♥0", "8♦0", "8♣0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦1"), opened: true},
	}, nil, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	// Laying the whole hand would leave nothing to discard.
	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionLayMeld,
		Cards: cards("8♠0", "8♥0", "8♦0", "8♣0"),
	})
	assert.True(t, IsKind(err, NoCards), "got %v", err)

	// The rejection changed nothing; the turn can still complete normally.
	resp, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionAutoPlay})
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
}

func TestOpenLeavesACardToDiscard(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("K♠0", "K♥0", "K♦0", "K♣0")},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionOpen,
		Melds: [][]scala40.Card{cards("K♠0", "K♥0", "K♦0", "K♣0")},
	})
	assert.True(t, IsKind(err, NoCards), "got %v", err)
}

func TestAttachLeavesACardToDiscard(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "bob", Type: scala40.MeldSequence, Cards: cards("A♠0", "2♠0", "3♠0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("4♠0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, []*scala40.Meld{meld}, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionAttach,
		Card: scala40.MustCard("4♠0"), MeldID: "m1.1",
	})
	assert.True(t, IsKind(err, NoCards), "got %v", err)
}

func TestSubstituteJokerLeavesACardToDiscard(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "alice", Type: scala40.MeldSequence, Cards: cards("5♥0", "J0", "7♥0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("6♥1"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, []*scala40.Meld{meld}, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionSubstituteJoker,
		Card: scala40.MustCard("6♥1"), MeldID: "m1.1",
	})
	assert.True(t, IsKind(err, NoCards), "got %v", err)
}

func TestAttachToSequence(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "bob", Type: scala40.MeldSequence, Cards: cards("A♠0", "2♠0", "3♠0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("4♠0", "9♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, []*scala40.Meld{meld}, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionAttach,
		Card: scala40.MustCard("4♠0"), MeldID: "m1.1",
	})
	require.NoError(t, err)
	require.Len(t, resp.PublicView.Melds, 1)
	assert.Equal(t, cards("A♠0", "2♠0", "3♠0", "4♠0"), resp.PublicView.Melds[0].Cards)

	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionAttach,
		Card: scala40.MustCard("9♦0"), MeldID: "m1.1",
	})
	var ee *Error
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, IllegalMeld, ee.Kind)
}

func TestJokerMustBeUsed(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "alice", Type: scala40.MeldSequence, Cards: cards("5♥0", "J0", "7♥0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("6♥1", "8♠0", "8♦0", "9♣0", "2♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♥1"), opened: true},
	}, []*scala40.Meld{meld}, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	// Withdraw the joker with the exact card it stood for.
	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionSubstituteJoker,
		Card: scala40.MustCard("6♥1"), MeldID: "m1.1",
	})
	require.NoError(t, err)
	assert.Equal(t, cards("5♥0", "6♥1", "7♥0"), resp.PublicView.Melds[0].Cards)
	require.NotNil(t, resp.PrivateView.PendingJoker)

	// The turn cannot end with the joker unresolved.
	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("9♣0"),
	})
	assert.True(t, IsKind(err, JokerMustBeUsed), "got %v", err)

	// Melding the joker resolves the obligation; the discard then lands.
	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionLayMeld,
		Cards: cards("8♠0", "8♦0", "J0"),
	})
	require.NoError(t, err)
	resp, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("9♣0"),
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
}

func TestDiscardPickedUpCard(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("8♥1", "2♣0", "9♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, nil, cards("4♦0", "8♥0"), scala40.PhaseAwaitDraw, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawDiscard})
	require.NoError(t, err)

	// Straight back is rejected.
	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("8♥0"),
	})
	assert.True(t, IsKind(err, DiscardIsPickedUpCard), "got %v", err)

	// A different card leaves the picked card unused.
	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("2♣0"),
	})
	assert.True(t, IsKind(err, PickedCardMustBePlayed), "got %v", err)

	// Declaring the other-deck twin makes the discard legal.
	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("8♥0"), DeclareDuplicate: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
}

func TestCannotCloseFirstRound(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("5♥0", "6♥0", "7♥0", "2♣0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0")},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, false)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionLayMeld,
		Cards: cards("5♥0", "6♥0", "7♥0"),
	})
	require.NoError(t, err)

	_, err = e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("2♣0"),
	})
	assert.True(t, IsKind(err, CannotCloseFirstRound), "got %v", err)
}

func TestDiscardAttachesToTable(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "bob", Type: scala40.MeldSequence, Cards: cards("4♥0", "5♥0", "6♥0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("7♥0", "9♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
		{id: "carol", hand: cards("2♠0", "10♣0")},
	}, []*scala40.Meld{meld}, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	// Three players at the table: a discard that feeds the table is illegal
	// unless it closes.
	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("7♥0"),
	})
	assert.True(t, IsKind(err, DiscardAttachesToTable), "got %v", err)

	// Down to one card the same discard closes the hand and is accepted.
	g2 := buildGame(t, []seat{
		{id: "alice", hand: cards("7♥0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
		{id: "carol", hand: cards("2♠0", "10♣0")},
	}, []*scala40.Meld{{ID: "m1.1", Owner: "bob", Type: scala40.MeldSequence, Cards: cards("4♥0", "5♥0", "6♥0")}},
		cards("8♥0"), scala40.PhaseAwaitPlay, true)
	g2.GameID = "g-close"
	saveGame(t, store, g2)

	resp, err := e.Apply(ctx, Request{
		GameID: "g-close", PlayerID: "alice", Action: ActionDiscard,
		Card: scala40.MustCard("7♥0"),
	})
	require.NoError(t, err)
	types := eventTypes(resp.Events)
	assert.Contains(t, types, EventClosure)
	assert.Contains(t, types, EventHandEnd)
	assert.Contains(t, types, EventHandStart, "the next hand starts in the same commit")
	assert.Equal(t, scala40.StatusPlaying, resp.PublicView.Status)
	assert.Equal(t, 2, resp.PublicView.HandNumber)
	// Closer pays nothing; the others pay their hands.
	assert.Equal(t, 0, resp.PublicView.Players[0].Score)
	assert.Equal(t, 11, resp.PublicView.Players[1].Score)
	assert.Equal(t, 12, resp.PublicView.Players[2].Score)
}

func TestStockExhaustionReshuffle(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: cards("2♣0", "9♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, nil, nil, scala40.PhaseAwaitDraw, true)
	// Empty the stock: 14 cards become the discard pile, the rest park in
	// bob's hand so conservation holds.
	rest := g.Stock
	g.DiscardPile = append([]scala40.Card(nil), rest[:14]...)
	top := g.DiscardPile[13]
	g.Players[1].Hand = append(g.Players[1].Hand, rest[14:]...)
	g.Stock = nil
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawStock})
	require.NoError(t, err)
	types := eventTypes(resp.Events)
	assert.Equal(t, []EventType{EventReshuffle, EventDraw}, types)
	// 14 discards: the top stays behind, 13 become the stock, one is drawn.
	assert.Equal(t, 12, resp.PublicView.StockSize)
	require.NotNil(t, resp.PublicView.DiscardTop)
	assert.Equal(t, top, *resp.PublicView.DiscardTop)
}

func TestEliminationCascade(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	// Before scoring: A=85, B=40, C=90, D=95. D closes; A +18, B +5, C +14.
	g := buildGame(t, []seat{
		{id: "dave", hand: cards("2♣0"), opened: true, score: 95},
		{id: "alice", hand: cards("10♠0", "8♦0"), opened: true, score: 85}, // +18
		{id: "bob", hand: cards("5♣0"), opened: true, score: 40},           // +5
		{id: "carol", hand: cards("4♠0", "K♦0"), opened: true, score: 90},  // +14
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "dave", Action: ActionDiscard,
		Card: scala40.MustCard("2♣0"),
	})
	require.NoError(t, err)

	eliminations := 0
	for _, ev := range resp.Events {
		if ev.Type == EventElimination {
			eliminations++
		}
	}
	assert.Equal(t, 2, eliminations, "alice and carol cross 101 together")
	assert.Equal(t, scala40.StatusPlaying, resp.PublicView.Status, "two players remain")

	// The next hand deals only to the survivors.
	for _, p := range resp.PublicView.Players {
		switch p.UserID {
		case "bob", "dave":
			assert.Equal(t, scala40.CardsPerPlayer, p.HandSize)
			assert.False(t, p.IsEliminated)
		default:
			assert.Equal(t, 0, p.HandSize)
			assert.True(t, p.IsEliminated)
		}
	}
}

func TestMatchEnd(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "dave", hand: cards("2♣0"), opened: true, score: 0},
		{id: "bob", hand: cards("K♦0"), opened: true, score: 95},
	}, nil, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "dave", Action: ActionDiscard,
		Card: scala40.MustCard("2♣0"),
	})
	require.NoError(t, err)
	assert.Contains(t, eventTypes(resp.Events), EventMatchEnd)
	assert.Equal(t, scala40.StatusFinished, resp.PublicView.Status)
	assert.Equal(t, "dave", resp.PublicView.Winner)

	// A finished game refuses further actions.
	_, err = e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "bob", Action: ActionDrawStock})
	assert.True(t, IsKind(err, WrongPhase), "got %v", err)
}

func TestNonceReplay(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()
	g, err := e.CreateGame(ctx, CreateGameParams{PlayerIDs: []string{"alice", "bob"}, Seed: 42})
	require.NoError(t, err)

	req := Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawStock, Nonce: "n-1"}
	first, err := e.Apply(ctx, req)
	require.NoError(t, err)
	ver := loadVersion(t, store, g.GameID)

	// Redelivery returns the stored result without a second draw.
	second, err := e.Apply(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, first.NewPhase, second.NewPhase)
	assert.Equal(t, first.PrivateView.Hand, second.PrivateView.Hand)
	assert.Equal(t, ver, loadVersion(t, store, g.GameID), "replay commits nothing")
}

// conflictStore fails every Put with a version conflict.
type conflictStore struct {
	repo.Store
}

func (s *conflictStore) Put(ctx context.Context, kind, id string, doc json.RawMessage, expected uint64) (uint64, error) {
	return 0, repo.ErrVersionConflict
}

func TestExhaustedRetriesSurfaceStaleState(t *testing.T) {
	mem := repo.NewMemory()
	defer mem.Close()
	ctx := context.Background()

	// Seed the document through the working store, then wedge writes.
	e, err := New(Config{Store: mem})
	require.NoError(t, err)
	g, err := e.CreateGame(ctx, CreateGameParams{PlayerIDs: []string{"alice", "bob"}, Seed: 42})
	require.NoError(t, err)

	wedged, err := New(Config{Store: &conflictStore{Store: mem}})
	require.NoError(t, err)
	_, err = wedged.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionDrawStock})
	assert.True(t, IsKind(err, StaleState), "got %v", err)
}

func TestAutoPlay(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	g, err := e.CreateGame(ctx, CreateGameParams{PlayerIDs: []string{"alice", "bob"}, Seed: 42})
	require.NoError(t, err)

	// No player id: the engine substitutes for whoever is on turn.
	resp, err := e.Apply(ctx, Request{GameID: g.GameID, Action: ActionAutoPlay})
	require.NoError(t, err)
	types := eventTypes(resp.Events)
	assert.Contains(t, types, EventDraw)
	assert.Contains(t, types, EventDiscard)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
	assert.Equal(t, scala40.PhaseAwaitDraw, resp.NewPhase)
}

func TestAutoPlayResolvesPendingJoker(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	meld := &scala40.Meld{ID: "m1.1", Owner: "alice", Type: scala40.MeldSequence, Cards: cards("5♥0", "J0", "7♥0")}
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("6♥1", "9♣0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, []*scala40.Meld{meld}, cards("8♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{
		GameID: g.GameID, PlayerID: "alice", Action: ActionSubstituteJoker,
		Card: scala40.MustCard("6♥1"), MeldID: "m1.1",
	})
	require.NoError(t, err)

	resp, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionAutoPlay})
	require.NoError(t, err)
	assert.Contains(t, eventTypes(resp.Events), EventWarning)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
	// The joker went back to the hand and was the highest discard.
	require.NotNil(t, resp.PublicView.DiscardTop)
	assert.True(t, resp.PublicView.DiscardTop.IsJoker())
}

func TestAutoPlayForcesDiscardWhenNoneLegal(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	// Alice drew 9♣0 from the discard pile: it may not go back, and every
	// other card is blocked until it is melded. No discard passes.
	g := buildGame(t, []seat{
		{id: "alice", hand: cards("9♣0", "2♦0"), opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, nil, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	drawn := scala40.MustCard("9♣0")
	g.Turn.DrawnFromDiscard = &drawn
	saveGame(t, store, g)

	resp, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionAutoPlay})
	require.NoError(t, err)
	assert.Contains(t, eventTypes(resp.Events), EventWarning)
	// The cheapest card is forced out.
	require.NotNil(t, resp.PublicView.DiscardTop)
	assert.Equal(t, scala40.MustCard("2♦0"), *resp.PublicView.DiscardTop)
	assert.Equal(t, "bob", resp.PublicView.CurrentTurnUserID)
	assert.Equal(t, scala40.PhaseAwaitDraw, resp.NewPhase)
}

func TestAutoPlayWithEmptyHandErrors(t *testing.T) {
	e, store := newTestEngine(t)
	ctx := context.Background()

	g := buildGame(t, []seat{
		{id: "alice", hand: nil, opened: true},
		{id: "bob", hand: cards("3♣0", "8♦0"), opened: true},
	}, nil, cards("9♥0"), scala40.PhaseAwaitPlay, true)
	saveGame(t, store, g)

	_, err := e.Apply(ctx, Request{GameID: g.GameID, PlayerID: "alice", Action: ActionAutoPlay})
	assert.True(t, IsKind(err, NoCards), "got %v", err)
}

func TestFirstRoundCompletion(t *testing.T) {
	e, _ := newTestEngine(t)
	ctx := context.Background()
	g, err := e.CreateGame(ctx, CreateGameParams{PlayerIDs: []string{"alice", "bob"}, Seed: 42})
	require.NoError(t, err)

	// One full trip around the table flips firstRoundComplete.
	resp, err := e.Apply(ctx, Request{GameID: g.GameID, Action: ActionAutoPlay})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.PublicView.RoundNumber)

	resp, err = e.Apply(ctx, Request{GameID: g.GameID, Action: ActionAutoPlay})
	require.NoError(t, err)
	assert.Equal(t, 2, resp.PublicView.RoundNumber)
	assert.Equal(t, "alice", resp.PublicView.CurrentTurnUserID)
}
