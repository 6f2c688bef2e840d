package worker

// splitText cuts text into overlapping rune windows. Each window is at most
// size runes and starts overlap runes before the previous window's end. The
// loop stops once a window reaches the end of the text, so the tail is never
// re-emitted as an extra mostly-duplicate chunk.
func splitText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= size {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			return chunks
		}
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlap
	}
}
