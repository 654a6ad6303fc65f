package reader

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// DefaultChunkSize is the number of characters in one retrievable unit.
const DefaultChunkSize = 1750

// chunkSeparators are tried in order: paragraphs, lines, words, then single
// characters for text with no break at all.
var chunkSeparators = []string{"\n\n", "\n", " ", ""}

// NewSplitter returns langchaingo's recursive character splitter cutting
// chunks of at most size runes. overlap outside [0, size) is treated as 0.
func NewSplitter(size, overlap int) textsplitter.TextSplitter {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	return nonBlank{textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(size),
		textsplitter.WithChunkOverlap(overlap),
		textsplitter.WithSeparators(chunkSeparators),
	)}
}

// nonBlank trims chunks and drops the ones left empty, so a page with no
// text produces no documents.
type nonBlank struct {
	textsplitter.TextSplitter
}

func (s nonBlank) SplitText(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	chunks, err := s.TextSplitter.SplitText(text)
	if err != nil {
		return nil, err
	}

	out := chunks[:0]
	for _, c := range chunks {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out, nil
}
