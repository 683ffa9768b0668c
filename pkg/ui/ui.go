// Package ui is a terminal front end for hotseat games: every seat is played
// from the same keyboard, with a pass-the-device screen between turns so no
// hand is shown to the wrong player.
package ui

import (
	"context"
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vctt94/scala40/pkg/engine"
	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/scala40"
)

// screenState represents the current screen in the UI.
type screenState int

const (
	statePass screenState = iota
	stateTurn
	statePickMeld
	stateGameOver
)

// Model contains all the state for the UI.
type Model struct {
	ctx    context.Context
	eng    *engine.Engine
	store  repo.Store
	gameID string

	state  screenState
	viewer string

	public  *engine.PublicView
	private *engine.PrivateView

	cursor int
	marked map[int]bool
	staged [][]scala40.Card

	// pendingAction waits for a meld number on the pick screen.
	pendingAction engine.Action
	pendingCard   scala40.Card

	message string
	err     error
}

// NewModel creates a model for the given game.
func NewModel(ctx context.Context, eng *engine.Engine, store repo.Store, gameID string) Model {
	return Model{
		ctx:    ctx,
		eng:    eng,
		store:  store,
		gameID: gameID,
		state:  statePass,
		marked: make(map[int]bool),
	}
}

func (m Model) Init() tea.Cmd {
	return loadStateCmd(m.ctx, m.store, m.gameID, "")
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch m.state {
		case statePass:
			switch msg.String() {
			case "ctrl+c", "q":
				return m, tea.Quit
			case "enter":
				if m.public == nil {
					break
				}
				m.viewer = m.public.CurrentTurnUserID
				m.state = stateTurn
				m.message = ""
				m.err = nil
				cmds = append(cmds, loadStateCmd(m.ctx, m.store, m.gameID, m.viewer))
			}

		case stateTurn:
			cmds = append(cmds, m.handleTurnKey(msg)...)

		case statePickMeld:
			switch s := msg.String(); {
			case s == "ctrl+c":
				return m, tea.Quit
			case s == "esc" || s == "q":
				m.state = stateTurn
			case s >= "1" && s <= "9":
				idx := int(s[0] - '1')
				if m.public == nil || idx >= len(m.public.Melds) {
					m.message = "no such meld"
					break
				}
				m.state = stateTurn
				cmds = append(cmds, applyCmd(m.ctx, m.eng, engine.Request{
					GameID:   m.gameID,
					PlayerID: m.viewer,
					Action:   m.pendingAction,
					Card:     m.pendingCard,
					MeldID:   m.public.Melds[idx].ID,
				}))
			}

		case stateGameOver:
			switch msg.String() {
			case "ctrl+c", "q", "enter":
				return m, tea.Quit
			}
		}

	case stateMsg:
		m.public = msg.public
		m.private = msg.private
		if m.public.Status == scala40.StatusFinished {
			m.state = stateGameOver
		}
		m.clampCursor()

	case actionMsg:
		resp := msg.resp
		m.err = nil
		m.public = resp.PublicView
		m.private = resp.PrivateView
		m.message = describeEvents(resp.Events)
		m.clampCursor()

		switch {
		case m.public.Status == scala40.StatusFinished:
			m.state = stateGameOver
		case m.public.CurrentTurnUserID != m.viewer:
			// Turn is over; hide the hand before the next player looks.
			m.resetSelection()
			m.state = statePass
		}

	case errorMsg:
		m.err = error(msg)
	}

	return m, tea.Batch(cmds...)
}

// handleTurnKey processes one keypress on the turn screen.
func (m *Model) handleTurnKey(msg tea.KeyMsg) []tea.Cmd {
	if m.private == nil {
		return nil
	}
	hand := m.private.Hand

	req := engine.Request{GameID: m.gameID, PlayerID: m.viewer}
	switch msg.String() {
	case "ctrl+c", "q":
		return []tea.Cmd{tea.Quit}
	case "left", "h":
		m.cursor = max(0, m.cursor-1)
	case "right", "l":
		m.cursor = min(len(hand)-1, m.cursor+1)
	case " ":
		if len(hand) > 0 {
			m.marked[m.cursor] = !m.marked[m.cursor]
		}
	case "u":
		m.resetSelection()
	case "d":
		req.Action = engine.ActionDrawStock
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	case "f":
		req.Action = engine.ActionDrawDiscard
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	case "s":
		cards := m.markedCards()
		if check := scala40.CheckMeld(cards); !check.Valid {
			m.message = fmt.Sprintf("not a meld: %s", check.Reason)
			break
		}
		m.staged = append(m.staged, cards)
		m.marked = make(map[int]bool)
	case "o":
		if len(m.staged) == 0 {
			m.message = "stage melds with space and 's' first"
			break
		}
		req.Action = engine.ActionOpen
		req.Melds = m.staged
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	case "m":
		cards := m.markedCards()
		if len(cards) == 0 {
			m.message = "mark cards with space first"
			break
		}
		req.Action = engine.ActionLayMeld
		req.Cards = cards
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	case "a":
		if len(hand) == 0 {
			break
		}
		m.pendingAction = engine.ActionAttach
		m.pendingCard = hand[m.cursor]
		m.state = statePickMeld
	case "j":
		if len(hand) == 0 {
			break
		}
		m.pendingAction = engine.ActionSubstituteJoker
		m.pendingCard = hand[m.cursor]
		m.state = statePickMeld
	case "enter", "x":
		if len(hand) == 0 {
			break
		}
		req.Action = engine.ActionDiscard
		req.Card = hand[m.cursor]
		req.DeclareDuplicate = msg.String() == "x"
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	case "p":
		req.Action = engine.ActionAutoPlay
		return []tea.Cmd{applyCmd(m.ctx, m.eng, req)}
	}
	return nil
}

// markedCards returns the marked hand cards in hand order.
func (m Model) markedCards() []scala40.Card {
	idxs := make([]int, 0, len(m.marked))
	for i, ok := range m.marked {
		if ok && i < len(m.private.Hand) {
			idxs = append(idxs, i)
		}
	}
	sort.Ints(idxs)
	cards := make([]scala40.Card, len(idxs))
	for i, idx := range idxs {
		cards[i] = m.private.Hand[idx]
	}
	return cards
}

func (m *Model) resetSelection() {
	m.marked = make(map[int]bool)
	m.staged = nil
	m.cursor = 0
}

func (m *Model) clampCursor() {
	if m.private == nil || len(m.private.Hand) == 0 {
		m.cursor = 0
		return
	}
	if m.cursor >= len(m.private.Hand) {
		m.cursor = len(m.private.Hand) - 1
	}
}

func describeEvents(events []engine.Event) string {
	s := renderEvents(events)
	if s == "" {
		return ""
	}
	return "Last action:\n" + s
}

// View renders the current screen.
func (m Model) View() string {
	var s string

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n\n"
	}

	switch m.state {
	case statePass:
		s += titleStyle.Render("Scala 40") + "\n\n"
		if m.public != nil {
			s += renderPlayers(m.public)
			s += infoStyle.Render(fmt.Sprintf("Hand %d, round %d",
				m.public.HandNumber, m.public.RoundNumber)) + "\n"
			if m.message != "" {
				s += "\n" + m.message
			}
			s += "\n" + focusedStyle.Render(fmt.Sprintf(
				"Pass the device to %s and press Enter", m.public.CurrentTurnUserID)) + "\n"
		}
		s += helpStyle.Render("Enter to reveal the hand, 'q' to quit")

	case stateTurn, statePickMeld:
		if m.public == nil || m.private == nil {
			return "loading..."
		}
		s += titleStyle.Render(fmt.Sprintf("Scala 40 - %s's turn", m.viewer)) + "\n\n"
		s += renderPlayers(m.public)

		discard := "empty"
		if m.public.DiscardTop != nil {
			discard = renderCard(*m.public.DiscardTop)
		}
		s += infoStyle.Render(fmt.Sprintf("Stock: %d | Discard: %s | Phase: %s",
			m.public.StockSize, discard, m.public.TurnPhase)) + "\n\n"

		s += "Table:\n" + renderMelds(m.public.Melds) + "\n"

		if staged := renderStaged(m.staged); staged != "" {
			s += staged + "\n"
		}

		s += "Your hand:\n  " + renderHand(m.private.Hand, m.cursor, m.marked) + "\n"
		if m.private.DrawnFromDiscard != nil {
			s += infoStyle.Render(fmt.Sprintf("Picked up %s: meld it this turn",
				renderCard(*m.private.DrawnFromDiscard))) + "\n"
		}
		if m.private.PendingJoker != nil {
			s += infoStyle.Render(fmt.Sprintf("Freed joker %s: play it this turn",
				renderCard(*m.private.PendingJoker))) + "\n"
		}

		if m.message != "" {
			s += "\n" + m.message
		}

		if m.state == statePickMeld {
			s += "\n" + focusedStyle.Render("Press the meld number (Esc to cancel)") + "\n"
		} else {
			s += helpStyle.Render(
				"d draw  f take discard  space mark  s stage  o open  m lay meld\n" +
					"a attach  j swap joker  enter discard  x discard duplicate  p auto  q quit")
		}

	case stateGameOver:
		s += titleStyle.Render("Match over") + "\n\n"
		if m.public != nil {
			s += focusedStyle.Render(fmt.Sprintf("Winner: %s", m.public.Winner)) + "\n\n"
			s += renderPlayers(m.public)
		}
		s += helpStyle.Render("Press Enter to exit")
	}

	return s
}

// Run starts the hotseat UI for gameID and blocks until the player quits.
func Run(ctx context.Context, eng *engine.Engine, store repo.Store, gameID string) error {
	p := tea.NewProgram(NewModel(ctx, eng, store, gameID), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
