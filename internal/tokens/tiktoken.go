package tokens

import (
	"context"
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenCounter is a local exact counter backed by a BPE encoding.
// It satisfies core.TokenCounter without any network dependency.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding ("cl100k_base" fits most
// current chat models).
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encoding, err)
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (t *TiktokenCounter) CountTokens(_ context.Context, text string) (int, error) {
	return len(t.enc.Encode(text, nil, nil)), nil
}
