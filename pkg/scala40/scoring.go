package scala40

// HandPoints sums the penalty value of a leftover hand: jokers 25, aces 11,
// faces 10, everything else its rank.
func HandPoints(hand []Card) int {
	total := 0
	for _, c := range hand {
		total += c.Points(false)
	}
	return total
}

// HandResult is the outcome of scoring one completed hand.
type HandResult struct {
	CloserID string `json:"closerId"`
	// CloseInHand is set when the closer went out in a single turn with the
	// bonus variant enabled.
	CloseInHand bool `json:"closeInHand"`
	// Points is each player's penalty for this hand (closer included, at 0).
	Points map[string]int `json:"points"`
	// Eliminated lists the players whose running total crossed the
	// elimination score this hand, in seating order.
	Eliminated []string `json:"eliminated,omitempty"`
}

// ScoreHand charges every non-closing active player the value of their
// remaining hand and folds the charges into the running scores. With the
// close-in-hand bonus, players who had opened pay double and players who
// never opened pay a flat 100 instead of their hand value.
//
// scores is mutated in place; players' HandPoints fields are updated too.
func ScoreHand(players []*Player, closerID string, closeInHand bool, scores map[string]int, eliminationScore int) HandResult {
	res := HandResult{
		CloserID:    closerID,
		CloseInHand: closeInHand,
		Points:      make(map[string]int, len(players)),
	}

	for _, p := range players {
		if p.IsEliminated {
			continue
		}
		pts := 0
		if p.UserID != closerID {
			switch {
			case closeInHand && !p.HasOpened:
				pts = NeverActedPenalty
			case closeInHand:
				pts = 2 * HandPoints(p.Hand)
			default:
				pts = HandPoints(p.Hand)
			}
		}
		p.HandPoints = pts
		res.Points[p.UserID] = pts
		scores[p.UserID] += pts
		if scores[p.UserID] >= eliminationScore {
			p.IsEliminated = true
			res.Eliminated = append(res.Eliminated, p.UserID)
		}
	}
	return res
}

// MatchWinner returns the sole surviving player, or "" when the match is
// still contested.
func MatchWinner(players []*Player) string {
	winner := ""
	for _, p := range players {
		if p.IsEliminated {
			continue
		}
		if winner != "" {
			return ""
		}
		winner = p.UserID
	}
	return winner
}
