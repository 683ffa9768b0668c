package engine

import "github.com/vctt94/scala40/pkg/scala40"

// PublicPlayer is the per-player slice of the public view.
type PublicPlayer struct {
	UserID       string `json:"userId"`
	HandSize     int    `json:"handSize"`
	HasOpened    bool   `json:"hasOpened"`
	IsEliminated bool   `json:"isEliminated"`
	Score        int    `json:"score"`
}

// PublicView is what every player at the table may see.
type PublicView struct {
	GameID            string             `json:"gameId"`
	Players           []PublicPlayer     `json:"players"`
	DiscardTop        *scala40.Card      `json:"discardTop,omitempty"`
	StockSize         int                `json:"stockSize"`
	Melds             []*scala40.Meld    `json:"tableMelds"`
	CurrentTurnUserID string             `json:"currentTurnUserId"`
	TurnPhase         scala40.TurnPhase  `json:"turnPhase"`
	RoundNumber       int                `json:"roundNumber"`
	HandNumber        int                `json:"handNumber"`
	Status            scala40.Status     `json:"status"`
	Winner            string             `json:"winner,omitempty"`
}

// PrivateView is visible only to the requesting player.
type PrivateView struct {
	UserID           string         `json:"userId"`
	Hand             []scala40.Card `json:"hand"`
	DrawnFromDiscard *scala40.Card  `json:"drawnFromDiscard,omitempty"`
	PendingJoker     *scala40.Card  `json:"pendingJoker,omitempty"`
}

// BuildPublicView projects the game onto its public surface. Hands are
// reduced to sizes; the stock to its size; the discard to its top.
func BuildPublicView(g *scala40.Game) *PublicView {
	v := &PublicView{
		GameID:            g.GameID,
		Players:           make([]PublicPlayer, 0, len(g.Players)),
		StockSize:         len(g.Stock),
		Melds:             g.Melds,
		CurrentTurnUserID: g.CurrentTurnUserID,
		TurnPhase:         g.TurnPhase,
		RoundNumber:       g.RoundNumber,
		HandNumber:        g.HandNumber,
		Status:            g.Status,
		Winner:            g.Winner,
	}
	for _, p := range g.Players {
		v.Players = append(v.Players, PublicPlayer{
			UserID:       p.UserID,
			HandSize:     len(p.Hand),
			HasOpened:    p.HasOpened,
			IsEliminated: p.IsEliminated,
			Score:        g.Scores[p.UserID],
		})
	}
	if n := len(g.DiscardPile); n > 0 {
		top := g.DiscardPile[n-1]
		v.DiscardTop = &top
	}
	return v
}

// BuildPrivateView projects the game onto what userID alone may see. Returns
// nil for players not seated at the game.
func BuildPrivateView(g *scala40.Game, userID string) *PrivateView {
	p := g.Player(userID)
	if p == nil {
		return nil
	}
	v := &PrivateView{UserID: userID, Hand: p.Hand}
	if g.CurrentTurnUserID == userID {
		v.DrawnFromDiscard = g.Turn.DrawnFromDiscard
		v.PendingJoker = g.Turn.PendingJoker
	}
	return v
}
