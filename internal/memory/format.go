package memory

import (
	"strings"

	"github.com/sandevgo/recall/internal/core"
)

const (
	factsHeader = "=== REMEMBERED FACTS ABOUT THE USER ==="
	factsFooter = "=== END OF REMEMBERED FACTS ==="
)

// Most personally identifying categories render first.
var categoryPriority = []string{
	core.CategoryPersonal,
	core.CategoryPreference,
	core.CategoryInterest,
	core.CategoryProject,
	core.CategoryTechnical,
	core.CategoryGeneral,
}

// FormatFacts renders facts as a bulleted block wrapped in header/footer
// markers so the model can tell remembered facts from conversation text.
// Facts are grouped by category priority; within a group, input order
// (similarity order) is preserved.
func FormatFacts(facts []core.MemoryFact) string {
	if len(facts) == 0 {
		return ""
	}

	byCategory := make(map[string][]core.MemoryFact, len(categoryPriority))
	for _, f := range facts {
		byCategory[f.Category] = append(byCategory[f.Category], f)
	}

	var b strings.Builder
	b.WriteString(factsHeader)
	b.WriteByte('\n')
	for _, cat := range categoryPriority {
		for _, f := range byCategory[cat] {
			b.WriteString("- ")
			b.WriteString(f.Fact)
			b.WriteByte('\n')
		}
	}
	b.WriteString(factsFooter)
	return b.String()
}
