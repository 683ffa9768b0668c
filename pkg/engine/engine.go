package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/decred/slog"

	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/rng"
	"github.com/vctt94/scala40/pkg/scala40"
)

// Action is an action name accepted at the engine boundary.
type Action string

const (
	ActionDrawStock       Action = "draw_stock"
	ActionDrawDiscard     Action = "draw_discard"
	ActionOpen            Action = "open"
	ActionLayMeld         Action = "lay_meld"
	ActionAttach          Action = "attach"
	ActionSubstituteJoker Action = "substitute_joker"
	ActionDiscard         Action = "discard"
	ActionAutoPlay        Action = "auto_play"
)

// Request is one action against one game. The payload fields used depend on
// the action: Melds for open, Cards for lay_meld, Card and MeldID for attach
// and substitute_joker, Card for discard.
type Request struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	// Nonce is the client-supplied idempotency token. A request whose nonce
	// matches the last applied one returns the stored result unchanged.
	Nonce  string `json:"nonce,omitempty"`
	Action Action `json:"action"`

	Melds  [][]scala40.Card `json:"melds,omitempty"`
	Cards  []scala40.Card   `json:"cards,omitempty"`
	Card   scala40.Card     `json:"card,omitzero"`
	MeldID string           `json:"meldId,omitempty"`
	// DeclareDuplicate asserts that the discard equals the picked-up card
	// but the hand holds its other-deck twin.
	DeclareDuplicate bool `json:"declareDuplicate,omitempty"`
}

// Response is the result of a committed action.
type Response struct {
	OK          bool              `json:"ok"`
	NewPhase    scala40.TurnPhase `json:"newPhase"`
	PublicView  *PublicView       `json:"publicView"`
	PrivateView *PrivateView      `json:"privateView,omitempty"`
	Events      []Event           `json:"events"`
}

// Config holds the engine dependencies.
type Config struct {
	Store repo.Store
	Log   slog.Logger
	// StrictIntegrity runs the integrity checker on load and before every
	// commit, refusing to touch a violating document. Always on in tests
	// and simulation; a flag in production.
	StrictIntegrity bool
}

// Engine applies actions to persisted games. It holds no game state of its
// own: every handler invocation reads the document, validates, mutates a
// local copy and writes it back with the version it read.
type Engine struct {
	store  repo.Store
	log    slog.Logger
	strict bool
}

// New creates an engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("engine: store is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.Disabled
	}
	return &Engine{store: cfg.Store, log: log, strict: cfg.StrictIntegrity}, nil
}

// CreateGameParams configures a new game.
type CreateGameParams struct {
	GameID    string
	LobbyID   string
	PlayerIDs []string
	Settings  scala40.Settings
	// Seed fixes the shuffle stream; 0 draws a fresh one from the crypto
	// source. Every later shuffle derives from it, so the whole game is
	// reproducible from the stored document.
	Seed int64
}

// CreateGame deals the first hand and persists the new game. The seat order
// is the given player order; the first player acts first.
func (e *Engine) CreateGame(ctx context.Context, params CreateGameParams) (*scala40.Game, error) {
	n := len(params.PlayerIDs)
	if n < scala40.MinPlayers || n > scala40.MaxPlayers {
		return nil, fmt.Errorf("engine: invalid player count %d", n)
	}

	gameID := params.GameID
	if gameID == "" {
		gameID = rng.NewID()
	}
	seed := params.Seed
	if seed == 0 {
		seed = rng.Seed()
	}

	g := &scala40.Game{
		GameID:   gameID,
		LobbyID:  params.LobbyID,
		Scores:   make(map[string]int, n),
		Settings: params.Settings.Normalize(),
		Seed:     seed,
	}
	for _, id := range params.PlayerIDs {
		g.Players = append(g.Players, &scala40.Player{UserID: id})
		g.Scores[id] = 0
	}
	// The last seat deals first, so seat 0 opens the match.
	g.DealerUserID = params.PlayerIDs[n-1]

	evlog := &eventLog{gameID: gameID}
	if err := e.startHand(g, evlog); err != nil {
		return nil, err
	}
	g.UpdatedAt = time.Now().UTC()

	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game: %w", err)
	}
	ver, err := e.store.Put(ctx, repo.KindGame, gameID, doc, 0)
	if err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, errorf(StaleState, "game %s already exists", gameID)
		}
		return nil, errorf(Unavailable, "failed to persist game: %v", err)
	}
	g.Version = ver
	e.logEvents(evlog)
	e.log.Infof("created game %s with %d players, seed %d", gameID, n, seed)
	return g, nil
}

// Apply runs one action with the read-validate-write cycle, retrying the
// whole cycle on version conflicts. Exhausted retries surface as StaleState.
func (e *Engine) Apply(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := repo.WithRetry(ctx, func() error {
		r, err := e.applyOnce(ctx, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if errors.Is(err, repo.ErrVersionConflict) {
		return nil, errorf(StaleState, "game %s: concurrent writers kept winning", req.GameID)
	}
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (e *Engine) applyOnce(ctx context.Context, req Request) (*Response, error) {
	g, ver, err := e.loadGame(ctx, req.GameID)
	if err != nil {
		return nil, err
	}

	// Duplicate delivery short-circuits to the stored result.
	if req.Nonce != "" && g.LastNonce == req.Nonce && len(g.LastResult) > 0 {
		var prev Response
		if jerr := json.Unmarshal(g.LastResult, &prev); jerr == nil {
			e.log.Debugf("game %s: nonce %s replayed", g.GameID, req.Nonce)
			return &prev, nil
		}
	}

	if g.Status == scala40.StatusFinished {
		return nil, errorf(WrongPhase, "game %s is finished", g.GameID)
	}

	actorID := req.PlayerID
	if req.Action == ActionAutoPlay && actorID == "" {
		actorID = g.CurrentTurnUserID
	}
	p := g.Player(actorID)
	if p == nil {
		return nil, errorf(NotFound, "player %s is not seated at game %s", actorID, g.GameID)
	}
	if actorID != g.CurrentTurnUserID {
		return nil, errorf(NotYourTurn, "current player is %s", g.CurrentTurnUserID)
	}

	evlog := &eventLog{gameID: g.GameID}
	switch req.Action {
	case ActionDrawStock:
		err = e.drawStock(g, p, evlog)
	case ActionDrawDiscard:
		err = e.drawDiscard(g, p, evlog)
	case ActionOpen:
		err = e.open(g, p, req.Melds, evlog)
	case ActionLayMeld:
		err = e.layMeld(g, p, req.Cards, evlog)
	case ActionAttach:
		err = e.attach(g, p, req.Card, req.MeldID, evlog)
	case ActionSubstituteJoker:
		err = e.substituteJoker(g, p, req.Card, req.MeldID, evlog)
	case ActionDiscard:
		err = e.discard(g, p, req.Card, req.DeclareDuplicate, evlog)
	case ActionAutoPlay:
		err = e.autoPlay(g, p, evlog)
	default:
		err = fmt.Errorf("unknown action %q", req.Action)
	}
	if err != nil {
		// Rejected actions mutate nothing: the next attempt reloads the
		// document and this local copy is discarded.
		rejected := &eventLog{gameID: g.GameID}
		rejected.add(EventInvalidAction, actorID, map[string]interface{}{
			"action": string(req.Action),
			"reason": err.Error(),
		})
		e.logEvents(rejected)
		return nil, err
	}

	if e.strict {
		if violations := scala40.CheckIntegrity(g); len(violations) > 0 {
			e.log.Errorf("game %s: refusing to commit %s: %v", g.GameID, req.Action, violations)
			return nil, &Error{Kind: CorruptState,
				Detail: fmt.Sprintf("%s would corrupt the state: %s", req.Action, violations[0])}
		}
	}

	g.UpdatedAt = time.Now().UTC()
	resp := &Response{
		OK:          true,
		NewPhase:    g.TurnPhase,
		PublicView:  BuildPublicView(g),
		PrivateView: BuildPrivateView(g, req.PlayerID),
		Events:      evlog.events,
	}
	if req.Nonce != "" {
		g.LastNonce = req.Nonce
		blob, jerr := json.Marshal(resp)
		if jerr != nil {
			return nil, fmt.Errorf("failed to marshal result: %w", jerr)
		}
		g.LastResult = blob
	}

	doc, err := json.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal game: %w", err)
	}
	newVer, err := e.store.Put(ctx, repo.KindGame, g.GameID, doc, ver)
	if err != nil {
		if errors.Is(err, repo.ErrVersionConflict) {
			return nil, err // retried by Apply
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, errorf(NotFound, "game %s vanished", g.GameID)
		}
		return nil, errorf(Unavailable, "failed to persist game: %v", err)
	}
	g.Version = newVer
	e.logEvents(evlog)
	return resp, nil
}

func (e *Engine) loadGame(ctx context.Context, id string) (*scala40.Game, uint64, error) {
	doc, ver, err := e.store.Get(ctx, repo.KindGame, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, 0, errorf(NotFound, "game %s not found", id)
	}
	if err != nil {
		return nil, 0, errorf(Unavailable, "failed to load game %s: %v", id, err)
	}

	var g scala40.Game
	if err := json.Unmarshal(doc, &g); err != nil {
		return nil, 0, errorf(CorruptState, "game %s does not decode: %v", id, err)
	}
	g.Version = ver

	if e.strict {
		if violations := scala40.CheckIntegrity(&g); len(violations) > 0 {
			return nil, 0, &Error{Kind: CorruptState,
				Detail: fmt.Sprintf("game %s: %s", id, violations[0])}
		}
	}
	return &g, ver, nil
}

// shuffleSrc derives the next shuffle's source from the game seed. The
// counter advances with every shuffle, so replaying the same actions over
// the same seed reproduces every permutation.
func (e *Engine) shuffleSrc(g *scala40.Game) *rng.Seeded {
	src := rng.NewSeeded(g.Seed + g.ShuffleCount)
	g.ShuffleCount++
	return src
}

// startHand shuffles, deals to the surviving players and resets the per-hand
// state. The seat after the dealer acts first and anchors the round counter.
func (e *Engine) startHand(g *scala40.Game, evlog *eventLog) error {
	deck := scala40.ShuffleCards(scala40.NewDeck(), e.shuffleSrc(g))
	active := g.ActivePlayers()
	hands, stock, first, err := scala40.Deal(deck, len(active))
	if err != nil {
		return fmt.Errorf("failed to deal: %w", err)
	}

	for _, p := range g.Players {
		p.Hand = nil
		p.HasOpened = false
		p.HandPoints = 0
	}
	for i, p := range active {
		p.Hand = hands[i]
	}
	g.Stock = stock
	g.DiscardPile = []scala40.Card{first}
	g.Melds = nil

	g.HandNumber++
	starter := nextActiveAfter(g, g.DealerUserID)
	g.CurrentTurnUserID = starter
	g.RoundStarterUserID = starter
	g.RoundNumber = 1
	g.FirstRoundComplete = false
	g.TurnPhase = scala40.PhaseAwaitDraw
	g.Turn = scala40.TurnScratch{}
	g.Status = scala40.StatusPlaying

	evlog.add(EventHandStart, "", map[string]interface{}{
		"handNumber": g.HandNumber,
		"dealer":     g.DealerUserID,
		"starter":    starter,
		"discardTop": first.String(),
	})
	return nil
}

func (e *Engine) drawStock(g *scala40.Game, p *scala40.Player, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitDraw {
		return errorf(WrongPhase, "draw not allowed in %s", g.TurnPhase)
	}

	if len(g.Stock) == 0 {
		stock, top, err := scala40.ReshuffleDiscard(g.DiscardPile, e.shuffleSrc(g))
		if err != nil {
			return errorf(StockEmpty, "stock and discard both exhausted: %v", err)
		}
		g.Stock = stock
		g.DiscardPile = []scala40.Card{top}
		evlog.add(EventReshuffle, "", map[string]interface{}{
			"stockSize":  len(stock),
			"discardTop": top.String(),
		})
	}

	c, rest, err := scala40.DrawTop(g.Stock)
	if err != nil {
		return errorf(StockEmpty, "%v", err)
	}
	g.Stock = rest
	p.Hand = append(p.Hand, c)
	g.TurnPhase = scala40.PhaseAwaitPlay
	evlog.add(EventDraw, p.UserID, map[string]interface{}{
		"source": "stock",
		"card":   c.String(),
	})
	return nil
}

func (e *Engine) drawDiscard(g *scala40.Game, p *scala40.Player, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitDraw {
		return errorf(WrongPhase, "draw not allowed in %s", g.TurnPhase)
	}
	if len(g.DiscardPile) == 0 {
		return errorf(NoCards, "discard pile is empty")
	}
	if !p.HasOpened && !g.Settings.OpenWithDiscard {
		return errorf(NotOpened, "drawing from discard requires an opened hand")
	}

	c, rest, err := scala40.DrawDiscard(g.DiscardPile)
	if err != nil {
		return errorf(NoCards, "%v", err)
	}
	g.DiscardPile = rest
	p.Hand = append(p.Hand, c)
	g.Turn.DrawnFromDiscard = &c
	g.TurnPhase = scala40.PhaseAwaitPlay
	evlog.add(EventDraw, p.UserID, map[string]interface{}{
		"source": "discard",
		"card":   c.String(),
	})
	return nil
}

func (e *Engine) open(g *scala40.Game, p *scala40.Player, melds [][]scala40.Card, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitPlay {
		return errorf(WrongPhase, "open not allowed in %s", g.TurnPhase)
	}
	if p.HasOpened {
		return errorf(WrongPhase, "already opened")
	}

	// An unopened player who drew from discard (open-with-discard variant)
	// committed to using that card in the opening.
	if drawn := g.Turn.DrawnFromDiscard; drawn != nil {
		used := false
		for _, cards := range melds {
			if scala40.ContainsCard(cards, *drawn) {
				used = true
				break
			}
		}
		if !used {
			return errorf(PickedCardMustBePlayed, "opening must use the card drawn from discard (%s)", drawn)
		}
	}

	var flat []scala40.Card
	for _, cards := range melds {
		flat = append(flat, cards...)
	}
	hand, pendingUsed, terr := e.takeCards(g, p, flat)
	if terr != nil {
		return terr
	}
	// Every turn ends with a discard, so no play may empty the hand.
	if len(hand) == 0 {
		return errorf(NoCards, "a card must remain for the closing discard")
	}

	check := scala40.CheckOpening(melds, g.Settings.OpeningThreshold, g.Settings.OpeningWithoutJoker)
	if !check.Valid {
		if check.Reason != scala40.ReasonNone {
			return meldError(check.Reason, "opening contains an invalid meld")
		}
		return &Error{Kind: OpeningBelowThreshold, Points: check.Points,
			Detail: fmt.Sprintf("opening totals %d points, need %d", check.Points, g.Settings.OpeningThreshold)}
	}

	p.Hand = hand
	ids := make([]string, 0, len(melds))
	for i, cards := range melds {
		m := &scala40.Meld{
			ID:    newMeldID(g),
			Owner: p.UserID,
			Type:  check.Types[i],
			Cards: append([]scala40.Card(nil), cards...),
		}
		g.Melds = append(g.Melds, m)
		ids = append(ids, m.ID)
	}
	p.HasOpened = true
	g.Turn.OpenedThisTurn = true
	g.Turn.PlaysSinceOpen = 0
	e.settleScratch(g, p, pendingUsed)

	evlog.add(EventOpen, p.UserID, map[string]interface{}{
		"points": check.Points,
		"melds":  ids,
	})
	return nil
}

func (e *Engine) layMeld(g *scala40.Game, p *scala40.Player, cards []scala40.Card, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitPlay {
		return errorf(WrongPhase, "lay_meld not allowed in %s", g.TurnPhase)
	}
	if !p.HasOpened {
		return errorf(NotOpened, "laying melds requires an opened hand")
	}

	hand, pendingUsed, terr := e.takeCards(g, p, cards)
	if terr != nil {
		return terr
	}
	if len(hand) == 0 {
		return errorf(NoCards, "a card must remain for the closing discard")
	}
	check := scala40.CheckMeld(cards)
	if !check.Valid {
		return meldError(check.Reason, "invalid meld")
	}

	p.Hand = hand
	m := &scala40.Meld{
		ID:    newMeldID(g),
		Owner: p.UserID,
		Type:  check.Type,
		Cards: append([]scala40.Card(nil), cards...),
	}
	g.Melds = append(g.Melds, m)
	if g.Turn.OpenedThisTurn {
		g.Turn.PlaysSinceOpen++
	}
	e.settleScratch(g, p, pendingUsed)

	evlog.add(EventLayMeld, p.UserID, map[string]interface{}{
		"meldId": m.ID,
		"type":   string(m.Type),
		"cards":  cardStrings(m.Cards),
	})
	return nil
}

func (e *Engine) attach(g *scala40.Game, p *scala40.Player, card scala40.Card, meldID string, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitPlay {
		return errorf(WrongPhase, "attach not allowed in %s", g.TurnPhase)
	}
	if !p.HasOpened {
		return errorf(NotOpened, "attaching requires an opened hand")
	}
	m := g.MeldByID(meldID)
	if m == nil {
		return errorf(NotFound, "meld %s not on the table", meldID)
	}

	res := scala40.CanAttach(card, m)
	if !res.Valid {
		return meldError(res.Reason, "card %s does not attach to meld %s", card, meldID)
	}
	hand, pendingUsed, terr := e.takeCards(g, p, []scala40.Card{card})
	if terr != nil {
		return terr
	}
	if len(hand) == 0 {
		return errorf(NoCards, "a card must remain for the closing discard")
	}

	p.Hand = hand
	// Keep the stored sequence order readable: low end in front.
	if m.Type == scala40.MeldSequence && res.Front {
		m.Cards = append([]scala40.Card{card}, m.Cards...)
	} else {
		m.Cards = append(m.Cards, card)
	}
	if g.Turn.OpenedThisTurn {
		g.Turn.PlaysSinceOpen++
	}
	e.settleScratch(g, p, pendingUsed)

	evlog.add(EventAttach, p.UserID, map[string]interface{}{
		"meldId": meldID,
		"card":   card.String(),
	})
	return nil
}

func (e *Engine) substituteJoker(g *scala40.Game, p *scala40.Player, card scala40.Card, meldID string, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitPlay {
		return errorf(WrongPhase, "substitute_joker not allowed in %s", g.TurnPhase)
	}
	if !p.HasOpened {
		return errorf(NotOpened, "substituting a joker requires an opened hand")
	}
	if g.Turn.PendingJoker != nil {
		return errorf(JokerMustBeUsed, "a withdrawn joker is already unresolved")
	}
	m := g.MeldByID(meldID)
	if m == nil {
		return errorf(NotFound, "meld %s not on the table", meldID)
	}
	if !scala40.ContainsCard(p.Hand, card) {
		return meldError(scala40.ReasonUnknownCard, "card %s not held", card)
	}
	// The withdrawn joker leaves the hand again this turn, so the substitute
	// may not be the last held card.
	if len(p.Hand) == 1 {
		return errorf(NoCards, "a card must remain for the closing discard")
	}

	res := scala40.CanSubstituteJoker(card, m)
	if !res.Valid {
		return meldError(res.Reason, "card %s does not free the joker in meld %s", card, meldID)
	}

	var joker scala40.Card
	for i, mc := range m.Cards {
		if mc.IsJoker() {
			joker = mc
			m.Cards[i] = card
			break
		}
	}
	p.Hand, _ = scala40.RemoveCard(p.Hand, card)
	g.Turn.PendingJoker = &joker
	if g.Turn.OpenedThisTurn {
		g.Turn.PlaysSinceOpen++
	}
	if drawn := g.Turn.DrawnFromDiscard; drawn != nil && !scala40.ContainsCard(p.Hand, *drawn) {
		g.Turn.DrawnFromDiscard = nil
	}

	evlog.add(EventSubstituteJoker, p.UserID, map[string]interface{}{
		"meldId": meldID,
		"card":   card.String(),
		"joker":  joker.String(),
	})
	return nil
}

func (e *Engine) discard(g *scala40.Game, p *scala40.Player, card scala40.Card, declareDuplicate bool, evlog *eventLog) error {
	if g.TurnPhase != scala40.PhaseAwaitPlay && g.TurnPhase != scala40.PhaseAwaitDiscard {
		return errorf(WrongPhase, "discard not allowed before drawing")
	}
	if err := checkDiscard(g, p, card, declareDuplicate); err != nil {
		return err
	}

	hand, _ := scala40.RemoveCard(p.Hand, card)
	closing := len(hand) == 0
	p.Hand = hand
	g.DiscardPile = append(g.DiscardPile, card)
	evlog.add(EventDiscard, p.UserID, map[string]interface{}{
		"card":    card.String(),
		"closing": closing,
	})

	if closing {
		return e.closeHand(g, p, evlog)
	}
	advanceTurn(g)
	return nil
}

// checkDiscard validates the discard of card without touching any state.
// Shared by the discard handler and the auto-play candidate filter.
func checkDiscard(g *scala40.Game, p *scala40.Player, card scala40.Card, declareDuplicate bool) *Error {
	if !scala40.ContainsCard(p.Hand, card) {
		return meldError(scala40.ReasonUnknownCard, "card %s not held", card)
	}
	if g.Turn.PendingJoker != nil {
		return errorf(JokerMustBeUsed, "the withdrawn joker must be melded this turn")
	}

	if drawn := g.Turn.DrawnFromDiscard; drawn != nil {
		if card == *drawn {
			twin := false
			for _, h := range p.Hand {
				if h != card && h.SameFace(card) {
					twin = true
					break
				}
			}
			if !declareDuplicate || !twin {
				return errorf(DiscardIsPickedUpCard, "cannot discard the card just drawn from discard")
			}
		} else {
			return errorf(PickedCardMustBePlayed, "the card drawn from discard (%s) must be melded this turn", drawn)
		}
	}

	closing := len(p.Hand) == 1
	if closing {
		if !p.HasOpened {
			return errorf(NotOpened, "closing requires an opened hand")
		}
		if !g.FirstRoundComplete {
			return errorf(CannotCloseFirstRound, "closing is forbidden before the first round completes")
		}
		if g.Turn.OpenedThisTurn && g.Turn.PlaysSinceOpen > 0 {
			return errorf(WrongPhase, "cannot open and close in the same turn")
		}
	}

	if !closing && len(g.ActivePlayers()) >= 3 {
		if m := scala40.DiscardAttaches(card, g.Melds); m != nil {
			return errorf(DiscardAttachesToTable, "card %s attaches to meld %s", card, m.ID)
		}
	}
	return nil
}

// closeHand scores the finished hand, marks eliminations and either ends
// the match or deals the next hand in the same commit.
func (e *Engine) closeHand(g *scala40.Game, closer *scala40.Player, evlog *eventLog) error {
	closeInHand := g.Settings.CloseInHandBonus && g.Turn.OpenedThisTurn
	res := scala40.ScoreHand(g.Players, closer.UserID, closeInHand, g.Scores, g.Settings.EliminationScore)

	evlog.add(EventClosure, closer.UserID, map[string]interface{}{
		"closeInHand": closeInHand,
	})
	for _, id := range res.Eliminated {
		evlog.add(EventElimination, id, map[string]interface{}{
			"score": g.Scores[id],
		})
	}
	evlog.add(EventHandEnd, "", map[string]interface{}{
		"handNumber": g.HandNumber,
		"points":     res.Points,
	})

	g.Turn = scala40.TurnScratch{}
	if winner := scala40.MatchWinner(g.Players); winner != "" {
		g.Status = scala40.StatusFinished
		g.Winner = winner
		evlog.add(EventMatchEnd, winner, map[string]interface{}{
			"scores": g.Scores,
		})
		return nil
	}

	g.DealerUserID = nextActiveAfter(g, g.DealerUserID)
	return e.startHand(g, evlog)
}

// autoPlay substitutes for an inactive player: draw from stock if needed,
// resolve any pending joker by returning it to the hand, then discard the
// highest-valued legal card. With no legal discard the smallest card is
// forced through with a warning.
func (e *Engine) autoPlay(g *scala40.Game, p *scala40.Player, evlog *eventLog) error {
	if g.TurnPhase == scala40.PhaseAwaitDraw {
		if err := e.drawStock(g, p, evlog); err != nil {
			return err
		}
	}

	if g.Turn.PendingJoker != nil {
		p.Hand = append(p.Hand, *g.Turn.PendingJoker)
		g.Turn.PendingJoker = nil
		evlog.add(EventWarning, p.UserID, map[string]interface{}{
			"reason": "pending joker returned to hand",
		})
	}

	if len(p.Hand) == 0 {
		return errorf(NoCards, "player %s holds no card to discard", p.UserID)
	}

	var best *scala40.Card
	bestPts := -1
	for i := range p.Hand {
		c := p.Hand[i]
		if checkDiscard(g, p, c, false) != nil {
			continue
		}
		if pts := c.Points(false); pts > bestPts {
			best = &c
			bestPts = pts
		}
	}
	if best != nil {
		return e.discard(g, p, *best, false, evlog)
	}

	// Nothing passes the discard rules; force the cheapest card out.
	worst := p.Hand[0]
	for _, c := range p.Hand[1:] {
		if c.Points(false) < worst.Points(false) {
			worst = c
		}
	}
	evlog.add(EventWarning, p.UserID, map[string]interface{}{
		"reason": "no legal discard, forcing",
		"card":   worst.String(),
	})
	p.Hand, _ = scala40.RemoveCard(p.Hand, worst)
	g.DiscardPile = append(g.DiscardPile, worst)
	evlog.add(EventDiscard, p.UserID, map[string]interface{}{
		"card":    worst.String(),
		"closing": false,
	})
	advanceTurn(g)
	return nil
}

// takeCards removes the given cards from the player's hand, consuming the
// pending joker when one of them is it. Nothing is committed on failure.
func (e *Engine) takeCards(g *scala40.Game, p *scala40.Player, cards []scala40.Card) ([]scala40.Card, bool, *Error) {
	hand := append([]scala40.Card(nil), p.Hand...)
	pendingUsed := false
	for _, c := range cards {
		if h, ok := scala40.RemoveCard(hand, c); ok {
			hand = h
			continue
		}
		if g.Turn.PendingJoker != nil && !pendingUsed && c == *g.Turn.PendingJoker {
			pendingUsed = true
			continue
		}
		return nil, false, meldError(scala40.ReasonUnknownCard, "card %s not held", c)
	}
	return hand, pendingUsed, nil
}

// settleScratch clears per-turn obligations that the committed play
// satisfied: a consumed pending joker and a melded discard-drawn card.
func (e *Engine) settleScratch(g *scala40.Game, p *scala40.Player, pendingUsed bool) {
	if pendingUsed {
		g.Turn.PendingJoker = nil
	}
	if drawn := g.Turn.DrawnFromDiscard; drawn != nil && !scala40.ContainsCard(p.Hand, *drawn) {
		g.Turn.DrawnFromDiscard = nil
	}
}

// advanceTurn hands the turn to the next surviving seat. Reaching the round
// starter again completes a round.
func advanceTurn(g *scala40.Game) {
	g.Turn = scala40.TurnScratch{}
	next := nextActiveAfter(g, g.CurrentTurnUserID)
	g.CurrentTurnUserID = next
	g.TurnPhase = scala40.PhaseAwaitDraw
	if next == g.RoundStarterUserID {
		g.RoundNumber++
		g.FirstRoundComplete = true
	}
}

// nextActiveAfter returns the first non-eliminated player after userID in
// seating order, wrapping around. Falls back to the first active seat when
// userID is unknown.
func nextActiveAfter(g *scala40.Game, userID string) string {
	start := -1
	for i, p := range g.Players {
		if p.UserID == userID {
			start = i
			break
		}
	}
	n := len(g.Players)
	for off := 1; off <= n; off++ {
		p := g.Players[(start+off+n)%n]
		if !p.IsEliminated {
			return p.UserID
		}
	}
	return userID
}

// newMeldID builds a deterministic meld id: hand number plus the meld's
// ordinal within the hand. Melds are never removed within a hand, so the
// ordinal is stable.
func newMeldID(g *scala40.Game) string {
	return fmt.Sprintf("m%d.%d", g.HandNumber, len(g.Melds)+1)
}

func (e *Engine) logEvents(evlog *eventLog) {
	for _, ev := range evlog.events {
		blob, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		e.log.Debugf("event %s", blob)
	}
}
