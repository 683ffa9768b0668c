package scala40

import "fmt"

// Violation is one structural invariant breach found in a game state.
type Violation struct {
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Code, v.Detail)
}

func violationf(code, format string, args ...interface{}) Violation {
	return Violation{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// CheckIntegrity is a pure observer over a game state. It returns the
// possibly-empty list of invariant violations: card conservation against the
// canonical 108-card multiset, validity of every table meld, turn-pointer
// and phase consistency, meld ownership, and score bounds. Intended to run
// after every mutation in tests and simulation, and behind a flag in
// production.
func CheckIntegrity(g *Game) []Violation {
	var out []Violation

	out = append(out, checkConservation(g)...)
	out = append(out, checkMelds(g)...)
	out = append(out, checkTurn(g)...)
	out = append(out, checkScores(g)...)

	return out
}

// checkConservation verifies that hands, stock, discard and table melds
// together hold exactly the canonical 108-card multiset.
func checkConservation(g *Game) []Violation {
	var out []Violation

	counts := make(map[Card]int, TotalCards)
	total := 0
	add := func(cards []Card) {
		for _, c := range cards {
			counts[c]++
			total++
		}
	}
	for _, p := range g.Players {
		add(p.Hand)
	}
	add(g.Stock)
	add(g.DiscardPile)
	for _, m := range g.Melds {
		add(m.Cards)
	}
	// A discard-drawn card already sits in the hand; the scratch holds a
	// copy. A pending joker lives only in the scratch until re-melded.
	if g.Turn.PendingJoker != nil {
		add([]Card{*g.Turn.PendingJoker})
	}

	if total != TotalCards {
		out = append(out, violationf("cardCount", "have %d cards, want %d", total, TotalCards))
	}

	for _, c := range NewDeck() {
		counts[c]--
	}
	for c, n := range counts {
		switch {
		case n > 0:
			out = append(out, violationf("duplicateCard", "%s appears %d extra time(s)", c, n))
		case n < 0:
			out = append(out, violationf("missingCard", "%s missing %d time(s)", c, -n))
		}
	}
	return out
}

func checkMelds(g *Game) []Violation {
	var out []Violation
	for _, m := range g.Melds {
		check := CheckMeld(m.Cards)
		if !check.Valid {
			out = append(out, violationf("invalidMeld", "meld %s invalid: %s", m.ID, check.Reason))
			continue
		}
		if check.Type != m.Type {
			out = append(out, violationf("meldTypeMismatch", "meld %s tagged %s but validates as %s", m.ID, m.Type, check.Type))
		}
		owner := g.Player(m.Owner)
		switch {
		case owner == nil:
			out = append(out, violationf("unknownMeldOwner", "meld %s owned by unknown player %s", m.ID, m.Owner))
		case !owner.HasOpened:
			out = append(out, violationf("unopenedMeldOwner", "meld %s owned by unopened player %s", m.ID, m.Owner))
		}
	}
	return out
}

func checkTurn(g *Game) []Violation {
	var out []Violation

	if g.Status != StatusPlaying {
		return out
	}

	cur := g.Player(g.CurrentTurnUserID)
	switch {
	case cur == nil:
		out = append(out, violationf("unknownCurrentPlayer", "current turn points at unknown player %s", g.CurrentTurnUserID))
	case cur.IsEliminated:
		out = append(out, violationf("eliminatedCurrentPlayer", "current turn points at eliminated player %s", g.CurrentTurnUserID))
	}

	switch g.TurnPhase {
	case PhaseAwaitDraw:
		if g.Turn.DrawnFromDiscard != nil {
			out = append(out, violationf("phaseMismatch", "awaiting draw with a discard-drawn card recorded"))
		}
		if g.Turn.PendingJoker != nil {
			out = append(out, violationf("phaseMismatch", "awaiting draw with a pending joker"))
		}
	case PhaseAwaitPlay, PhaseAwaitDiscard:
	default:
		out = append(out, violationf("invalidPhase", "unknown turn phase %q", g.TurnPhase))
	}

	if g.Turn.DrawnFromDiscard != nil && cur != nil {
		if !ContainsCard(cur.Hand, *g.Turn.DrawnFromDiscard) {
			out = append(out, violationf("phantomDrawnCard", "discard-drawn card %s not in current hand", *g.Turn.DrawnFromDiscard))
		}
	}

	return out
}

func checkScores(g *Game) []Violation {
	var out []Violation
	elim := g.Settings.Normalize().EliminationScore
	for _, p := range g.Players {
		score := g.Scores[p.UserID]
		if score < 0 {
			out = append(out, violationf("negativeScore", "player %s has score %d", p.UserID, score))
		}
		if p.IsEliminated && score < elim {
			out = append(out, violationf("prematureElimination", "player %s eliminated at score %d < %d", p.UserID, score, elim))
		}
		if g.Status == StatusPlaying && !p.IsEliminated && score >= elim {
			out = append(out, violationf("missedElimination", "player %s at score %d >= %d but not eliminated", p.UserID, score, elim))
		}
	}
	return out
}
