package ui

import (
	"fmt"
	"strings"

	"github.com/vctt94/scala40/pkg/engine"
	"github.com/vctt94/scala40/pkg/scala40"
)

func renderCard(c scala40.Card) string {
	s := c.String()
	switch {
	case c.IsJoker():
		return jokerStyle.Render(s)
	case c.Suit == scala40.Hearts || c.Suit == scala40.Diamonds:
		return redSuitStyle.Render(s)
	default:
		return blackSuitStyle.Render(s)
	}
}

// renderHand draws the hand with the cursor and multi-select marks.
func renderHand(hand []scala40.Card, cursor int, marked map[int]bool) string {
	var b strings.Builder
	for i, c := range hand {
		cell := renderCard(c)
		if marked[i] {
			cell = markedStyle.Render("*") + cell
		}
		if i == cursor {
			cell = cursorStyle.Render("[") + cell + cursorStyle.Render("]")
		} else {
			cell = " " + cell + " "
		}
		b.WriteString(cell)
	}
	return b.String()
}

func renderCards(cards []scala40.Card) string {
	parts := make([]string, len(cards))
	for i, c := range cards {
		parts[i] = renderCard(c)
	}
	return strings.Join(parts, " ")
}

// renderMelds lists the table melds with their selection numbers.
func renderMelds(melds []*scala40.Meld) string {
	if len(melds) == 0 {
		return blurredStyle.Render("  (no melds on the table)") + "\n"
	}
	var b strings.Builder
	for i, m := range melds {
		fmt.Fprintf(&b, "  %d. %s [%s, %s]\n",
			i+1, renderCards(m.Cards), m.Owner, m.Type)
	}
	return b.String()
}

func renderPlayers(v *engine.PublicView) string {
	var b strings.Builder
	for _, p := range v.Players {
		line := fmt.Sprintf("  %s: %d cards, score %d", p.UserID, p.HandSize, p.Score)
		if p.HasOpened {
			line += " (opened)"
		}
		if p.IsEliminated {
			line += " (eliminated)"
		}
		if p.UserID == v.CurrentTurnUserID {
			line = focusedStyle.Render(line + " <- turn")
		} else {
			line = blurredStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	return b.String()
}

// renderStaged shows the melds collected so far for an opening.
func renderStaged(staged [][]scala40.Card) string {
	if len(staged) == 0 {
		return ""
	}
	points := 0
	var b strings.Builder
	b.WriteString("Staged for opening:\n")
	for _, cards := range staged {
		check := scala40.CheckMeld(cards)
		points += check.Points
		fmt.Fprintf(&b, "  %s (%d pts)\n", renderCards(cards), check.Points)
	}
	fmt.Fprintf(&b, "  total %d pts\n", points)
	return b.String()
}

func renderEvents(events []engine.Event) string {
	if len(events) == 0 {
		return ""
	}
	var b strings.Builder
	for _, ev := range events {
		fmt.Fprintf(&b, "  %s", ev.Type)
		if ev.UserID != "" {
			fmt.Fprintf(&b, " (%s)", ev.UserID)
		}
		b.WriteString("\n")
	}
	return b.String()
}
