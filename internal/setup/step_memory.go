package setup

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// MemoryStep toggles cross-session memory: fact extraction and retrieval
// from past conversations.
type MemoryStep struct {
	choices []string
	cursor  int
}

func NewMemoryStep() Step {
	return &MemoryStep{
		choices: []string{"Enabled (remember facts across sessions)", "Disabled (each session starts blank)"},
	}
}

func (s *MemoryStep) Init() tea.Cmd {
	return nil
}

func (s *MemoryStep) Update(msg tea.Msg, state *SetupState, width, height int) (Step, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if s.cursor > 0 {
				s.cursor--
			}
		case "down", "j":
			if s.cursor < len(s.choices)-1 {
				s.cursor++
			}
		case "enter":
			state.MemoryEnabled = s.cursor == 0
			return nil, nil
		}
	}
	return s, nil
}

func (s *MemoryStep) View(state *SetupState) string {
	var b strings.Builder
	b.WriteString("Long-term memory:\n\n")
	for i, choice := range s.choices {
		cursor := " "
		if s.cursor == i {
			cursor = ">"
			b.WriteString(selStyle.Render(fmt.Sprintf("%s %s", cursor, choice)) + "\n")
		} else {
			b.WriteString(itemStyle.Render(fmt.Sprintf("%s %s", cursor, choice)) + "\n")
		}
	}
	b.WriteString("\n(press ctrl+c to quit)\n")
	return b.String()
}
