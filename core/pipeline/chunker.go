package pipeline

import (
	"log/slog"
	"unicode"

	"github.com/siherrmann/excerpter/model"
)

// Split cuts text into chunks of at most maxLen runes.
// Every window, the final one included, is cut after its last full stop. A window
// without a full stop is taken whole and marked degenerate, unless it is the final
// remainder. Surrounding whitespace is trimmed from every chunk and empty chunks
// are dropped, so the chunks plus the trimmed whitespace reconstruct text exactly.
// A maxLen <= 0 returns the whole text as a single chunk.
func Split(text string, maxLen int) []model.Chunk {
	runes := []rune(text)
	whole := maxLen <= 0
	if whole {
		maxLen = len(runes)
	}

	var chunks []model.Chunk
	base := 0
	for base < len(runes) {
		window := min(maxLen, len(runes)-base)
		final := base+maxLen >= len(runes)
		consumed := window
		degenerate := false

		if !whole {
			cut := lastFullStop(runes[base : base+window])
			if cut >= 0 {
				consumed = cut + 1
			} else if !final {
				degenerate = true
			}
		}

		part := runes[base : base+consumed]
		lead, trail := 0, len(part)
		for lead < trail && unicode.IsSpace(part[lead]) {
			lead++
		}
		for trail > lead && unicode.IsSpace(part[trail-1]) {
			trail--
		}

		if trail > lead {
			chunks = append(chunks, model.Chunk{
				Text:       string(part[lead:trail]),
				Offset:     base + lead,
				Degenerate: degenerate,
			})
		}

		base += consumed
	}

	return chunks
}

// SplitLogged is Split with a warning for every degenerate chunk
func SplitLogged(logger *slog.Logger, text string, maxLen int) []model.Chunk {
	chunks := Split(text, maxLen)
	for _, chunk := range chunks {
		if chunk.Degenerate {
			logger.Warn(
				"Chunk cut without a full stop",
				slog.Int("offset", chunk.Offset),
				slog.Int("length", chunk.Len()),
				slog.Int("max_length", maxLen),
			)
		}
	}
	return chunks
}

func lastFullStop(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' {
			return i
		}
	}
	return -1
}
