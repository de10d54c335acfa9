package tokentrack

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const charsPerToken = 4

var (
	encodingOnce sync.Once
	encoding     *tiktoken.Tiktoken
)

// CountTokens estimates the token count of text. It uses the cl100k_base
// encoding when available and falls back to a chars/4 heuristic otherwise.
// Used when a provider response carries no usage metadata; fallback counts
// are attributed entirely to the completion side.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encodingOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			encoding = enc
		}
	})
	if encoding == nil {
		return (len(text) + charsPerToken - 1) / charsPerToken
	}
	return len(encoding.Encode(text, nil, nil))
}
