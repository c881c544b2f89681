package setup

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
)

func newKeyInput(placeholder string, masked bool) textinput.Model {
	input := textinput.New()
	input.Focus()
	input.CharLimit = 255
	input.Width = 40
	input.Placeholder = placeholder
	if masked {
		input.EchoMode = textinput.EchoPassword
		input.EchoCharacter = '*'
	}
	return input
}

// GeminiKeyStep always runs: embeddings, memory and session retrieval need
// a Gemini key even when another provider handles chat.
type GeminiKeyStep struct {
	input textinput.Model
	ready bool
}

func NewGeminiKeyStep() Step {
	return &GeminiKeyStep{}
}

func (s *GeminiKeyStep) Init() tea.Cmd {
	s.input = newKeyInput("AIza...", true)
	s.ready = true
	return textinput.Blink
}

func (s *GeminiKeyStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		if s.input.Value() == "" {
			return s, cmd
		}
		state.GeminiAPIKey = s.input.Value()
		return nil, nil
	}
	return s, cmd
}

func (s *GeminiKeyStep) View(state *SetupState) string {
	return fmt.Sprintf("Enter your Gemini API Key (used for embeddings and memory):\n\n%s\n\n(press enter to confirm)\n", s.input.View())
}

// ProviderDetailStep collects the provider-specific credential: an API key
// for OpenRouter, a base URL for Ollama. Gemini needs nothing extra.
type ProviderDetailStep struct {
	input    textinput.Model
	provider string
}

func NewProviderDetailStep() Step {
	return &ProviderDetailStep{}
}

func (s *ProviderDetailStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *ProviderDetailStep) initProvider(state *SetupState) bool {
	s.provider = state.Provider
	switch s.provider {
	case "openrouter":
		s.input = newKeyInput("sk-or-v1-...", true)
	case "ollama":
		s.input = newKeyInput("http://localhost:11434", false)
	default:
		return false
	}
	return true
}

func (s *ProviderDetailStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	if s.provider == "" {
		if !s.initProvider(state) {
			return nil, nil
		}
		return s, textinput.Blink
	}

	var cmd tea.Cmd
	s.input, cmd = s.input.Update(msg)

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		switch s.provider {
		case "openrouter":
			if s.input.Value() == "" {
				return s, cmd
			}
			state.OpenRouterKey = s.input.Value()
		case "ollama":
			state.OllamaBaseURL = s.input.Value()
			if state.OllamaBaseURL == "" {
				state.OllamaBaseURL = "http://localhost:11434"
			}
		}
		return nil, nil
	}
	return s, cmd
}

func (s *ProviderDetailStep) View(state *SetupState) string {
	switch s.provider {
	case "openrouter":
		return fmt.Sprintf("Enter your OpenRouter API Key:\n\n%s\n\n(press enter to confirm)\n", s.input.View())
	case "ollama":
		return fmt.Sprintf("Enter your Ollama base URL:\n\n%s\n\n(press enter to accept the default)\n", s.input.View())
	default:
		return "Loading...\n"
	}
}
