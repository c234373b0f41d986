package pipeline

// ExtractContext widens the span [start, end) of text to whole sentences,
// adding up to before sentences in front and after sentences behind it.
// Offsets are rune offsets and are clamped to the text.
//
// A sentence ends at a full stop that follows a non full stop. Backwards a
// boundary also needs a space after the full stop. When there are fewer
// boundaries in front than requested the earliest one is used, and without any
// the excerpt starts at start. Behind the span the whole tail is taken when
// less than two runes remain.
func ExtractContext(text string, start int, end int, before int, after int) string {
	runes := []rune(text)
	n := len(runes)

	start = clamp(start, 0, n)
	end = clamp(end, start, n)
	if before < 0 {
		before = 0
	}
	if after < 0 {
		after = 0
	}

	begin := start
	ends := sentenceStartsBefore(runes, start)
	if len(ends) > 0 {
		begin = ends[len(ends)-min(len(ends), before+1)]
	}

	stop := end
	if n-end < 2 {
		stop = n
	} else {
		bounds := sentenceEndsAfter(runes, end)
		if len(bounds) > 0 {
			stop = bounds[min(len(bounds)-1, after)]
		}
	}

	return string(runes[begin:stop])
}

// sentenceStartsBefore returns the offsets right behind every ". " that
// closes a sentence inside runes[:limit].
func sentenceStartsBefore(runes []rune, limit int) []int {
	var starts []int
	last := 0
	for i := 1; i+1 < limit; i++ {
		if runes[i] != '.' || runes[i+1] != ' ' || runes[i-1] == '.' || i-1 < last {
			continue
		}
		last = i + 2
		starts = append(starts, last)
	}
	return starts
}

// sentenceEndsAfter returns the offsets right behind every sentence closing
// full stop that ends at or after from.
func sentenceEndsAfter(runes []rune, from int) []int {
	var ends []int
	for i := max(from-1, 1); i < len(runes); i++ {
		if runes[i] == '.' && runes[i-1] != '.' {
			ends = append(ends, i+1)
		}
	}
	return ends
}

func clamp(value int, low int, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
