package setup

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"

	fs "github.com/sandevgo/recall/configs"
	"github.com/sandevgo/recall/internal/config"
	"github.com/sandevgo/recall/pkg/env"
)

// envFile mirrors SetupState with env tags so the .env content can be
// produced by reflection rather than hand-formatted strings.
type envFile struct {
	Provider        string `env:"LLM_PROVIDER"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	GeminiModel     string `env:"GEMINI_MODEL"`
	OpenRouterKey   string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel string `env:"OPENROUTER_MODEL"`
	OllamaBaseURL   string `env:"OLLAMA_BASE_URL"`
	OllamaModel     string `env:"OLLAMA_MODEL"`
	MemoryEnabled   string `env:"MEMORY_ENABLED"`
}

// SaveEnvStep writes the collected configuration to .env file
type SaveEnvStep struct {
	err   error
	saved bool
}

func NewSaveEnvStep() Step {
	return &SaveEnvStep{}
}

func (s *SaveEnvStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *SaveEnvStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	if s.saved {
		return nil, nil
	}

	// Perform save synchronously (fast operation)
	path := config.GetRuntimePath()

	if err := os.MkdirAll(path, 0755); err != nil {
		s.err = fmt.Errorf("failed to create runtime directory: %w", err)
		return s, nil
	}

	envPath := filepath.Join(path, ".env")

	// Check if .env already exists
	if _, err := os.Stat(envPath); err == nil {
		s.err = fmt.Errorf(".env file already exists at %s", envPath)
		return s, nil
	}

	content, err := env.MarshalEnv(&envFile{
		Provider:        state.Provider,
		GeminiAPIKey:    state.GeminiAPIKey,
		GeminiModel:     state.GeminiModel,
		OpenRouterKey:   state.OpenRouterKey,
		OpenRouterModel: state.OpenRouterModel,
		OllamaBaseURL:   state.OllamaBaseURL,
		OllamaModel:     state.OllamaModel,
		MemoryEnabled:   strconv.FormatBool(state.MemoryEnabled),
	})
	if err != nil {
		s.err = err
		return s, nil
	}

	if err := os.WriteFile(envPath, []byte(content), 0600); err != nil {
		s.err = err
		return s, nil
	}

	s.saved = true
	return nil, nil // Signal completion
}

func (s *SaveEnvStep) View(state *SetupState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.saved {
		return "Configuration saved successfully!\n"
	}
	return "Saving configuration...\n"
}

// InitializeFilesStep writes the embedded system prompt into the runtime
// directory so users can edit it later.
type InitializeFilesStep struct {
	err  error
	done bool
}

func NewInitializeFilesStep() Step {
	return &InitializeFilesStep{}
}

func (s *InitializeFilesStep) Init() tea.Cmd {
	return func() tea.Msg { return nextMsg{} }
}

func (s *InitializeFilesStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	if s.done {
		return nil, nil
	}

	path := config.GetRuntimePath()

	if err := os.MkdirAll(path, 0755); err != nil {
		s.err = fmt.Errorf("failed to create runtime directory: %w", err)
		return s, nil
	}

	data, err := fs.FS.ReadFile("SYSTEM.md")
	if err != nil {
		s.err = fmt.Errorf("failed to read embedded SYSTEM.md: %w", err)
		return s, nil
	}

	dst := filepath.Join(path, "SYSTEM.md")
	if _, err := os.Stat(dst); err == nil {
		// Never clobber an edited prompt.
		s.done = true
		return nil, nil
	}

	if err := os.WriteFile(dst, data, 0644); err != nil {
		s.err = fmt.Errorf("failed to write %s: %w", dst, err)
		return s, nil
	}

	s.done = true
	return nil, nil
}

func (s *InitializeFilesStep) View(state *SetupState) string {
	if s.err != nil {
		return errorStyle.Render(fmt.Sprintf("Error: %v", s.err)) + "\n\n(press ctrl+c to quit)\n"
	}
	if s.done {
		return "Runtime files initialized successfully!\n"
	}
	return "Initializing runtime files...\n"
}
