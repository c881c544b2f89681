package tokens

import (
	"unicode"

	"github.com/sandevgo/recall/internal/core"
)

const (
	// Non-CJK text averages about four characters per token.
	charsPerToken = 4

	// Role marker and message framing cost per message.
	roleOverheadTokens = 4

	// Flat surcharge per binary attachment, regardless of size.
	attachmentTokens = 258
)

// Estimator is the calibrated heuristic token counter. It never does I/O
// and never fails; exact fidelity with any particular tokenizer is not a
// goal.
type Estimator struct{}

func NewEstimator() *Estimator {
	return &Estimator{}
}

// EstimateText counts CJK characters as one token each and everything else
// at charsPerToken characters per token, rounding up. Empty text is zero.
func (e *Estimator) EstimateText(text string) int {
	if text == "" {
		return 0
	}

	cjk := 0
	other := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			other++
		}
	}

	return cjk + (other+charsPerToken-1)/charsPerToken
}

// EstimateMessage adds the role-marker overhead and attachment surcharges
// on top of the text estimate.
func (e *Estimator) EstimateMessage(msg core.Message) int {
	return e.EstimateText(msg.Content) + roleOverheadTokens + len(msg.Attachments)*attachmentTokens
}

func (e *Estimator) EstimateMessages(msgs []core.Message) int {
	total := 0
	for _, m := range msgs {
		total += e.EstimateMessage(m)
	}
	return total
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
