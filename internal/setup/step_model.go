package setup

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

// ModelStep picks the chat model name. Empty input keeps the provider's
// default.
type ModelStep struct {
	input    textinput.Model
	provider string
}

func NewModelStep() Step {
	return &ModelStep{}
}

func (s *ModelStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *ModelStep) initProvider(state *SetupState) {
	s.provider = state.Provider
	switch s.provider {
	case "gemini":
		s.input = newKeyInput("gemini-2.0-flash", false)
	case "openrouter":
		s.input = newKeyInput("google/gemma-3-27b-it:free", false)
	case "ollama":
		s.input = newKeyInput("qwen3:8b", false)
	}
}

func (s *ModelStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	if s.provider == "" {
		s.initProvider(state)
		return s, textinput.Blink
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		switch s.provider {
		case "gemini":
			state.GeminiModel = s.input.Value()
		case "openrouter":
			state.OpenRouterModel = s.input.Value()
		case "ollama":
			state.OllamaModel = s.input.Value()
		}
		return nil, nil
	}
	return s, cmd
}

func (s *ModelStep) View(state *SetupState) string {
	return fmt.Sprintf("Chat model for %s:\n\n%s\n\n(press enter to accept the default)\n", s.provider, s.input.View())
}
