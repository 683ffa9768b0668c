package ui

import (
	"context"
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/vctt94/scala40/pkg/engine"
	"github.com/vctt94/scala40/pkg/repo"
	"github.com/vctt94/scala40/pkg/scala40"
)

// Messages delivered back into the Update loop.
type (
	errorMsg error

	// stateMsg carries a freshly loaded read-only projection of the game.
	stateMsg struct {
		public  *engine.PublicView
		private *engine.PrivateView
	}

	// actionMsg carries the result of a committed action.
	actionMsg struct {
		resp *engine.Response
	}
)

// loadStateCmd reads the game document and projects it for userID.
func loadStateCmd(ctx context.Context, store repo.Store, gameID, userID string) tea.Cmd {
	return func() tea.Msg {
		doc, _, err := store.Get(ctx, repo.KindGame, gameID)
		if err != nil {
			return errorMsg(fmt.Errorf("failed to load game: %w", err))
		}
		var g scala40.Game
		if err := json.Unmarshal(doc, &g); err != nil {
			return errorMsg(fmt.Errorf("game does not decode: %w", err))
		}
		return stateMsg{
			public:  engine.BuildPublicView(&g),
			private: engine.BuildPrivateView(&g, userID),
		}
	}
}

// applyCmd submits one action to the engine.
func applyCmd(ctx context.Context, eng *engine.Engine, req engine.Request) tea.Cmd {
	return func() tea.Msg {
		resp, err := eng.Apply(ctx, req)
		if err != nil {
			return errorMsg(err)
		}
		return actionMsg{resp: resp}
	}
}
