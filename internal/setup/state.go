package setup

// SetupState accumulates answers across wizard steps before they are
// written out as the runtime .env.
type SetupState struct {
	Provider        string
	GeminiAPIKey    string
	GeminiModel     string
	OpenRouterKey   string
	OpenRouterModel string
	OllamaBaseURL   string
	OllamaModel     string
	MemoryEnabled   bool
}

func NewSetupState() *SetupState {
	return &SetupState{
		MemoryEnabled: true,
	}
}
