// Package chunk splits knowledge base documents into parent windows and
// overlapping child chunks for indexing. Children are what the indexes
// see; parents give responders wider context around a hit.
package chunk

import "strings"

// ParentSeparators split documents into parent windows on structural
// boundaries only.
var ParentSeparators = []string{"\n\n", "\n"}

// ChildSeparators split parent windows into child chunks, degrading from
// structural boundaries to sentence and word boundaries. The final empty
// string is the hard per-character fallback.
var ChildSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", ", ", " ", ""}

// SplitText recursively splits text into pieces of at most size
// characters with roughly overlap characters shared between adjacent
// pieces. Separators are tried in order; a piece still too large after
// the last separator is split on raw character boundaries.
func SplitText(text string, size, overlap int, separators []string) []string {
	if size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size / 2
	}

	pieces := splitRecursive(text, size, separators)
	return mergePieces(pieces, size, overlap)
}

// splitRecursive breaks text into pieces no larger than size, without
// merging. Each piece keeps its trailing separator so no content is lost.
func splitRecursive(text string, size int, separators []string) []string {
	if len(text) <= size {
		if text == "" {
			return nil
		}
		return []string{text}
	}

	sep := ""
	var remaining []string
	found := false
	for i, s := range separators {
		if s == "" {
			found = true
			break
		}
		if strings.Contains(text, s) {
			sep = s
			remaining = separators[i+1:]
			found = true
			break
		}
	}

	if !found || sep == "" {
		return splitByChars(text, size)
	}

	splits := strings.SplitAfter(text, sep)
	result := make([]string, 0, len(splits))
	for _, piece := range splits {
		if piece == "" {
			continue
		}
		if len(piece) <= size {
			result = append(result, piece)
		} else {
			result = append(result, splitRecursive(piece, size, remaining)...)
		}
	}
	return result
}

// splitByChars is the hard fallback: fixed-size windows on rune
// boundaries.
func splitByChars(text string, size int) []string {
	runes := []rune(text)
	result := make([]string, 0, (len(runes)/size)+1)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		result = append(result, string(runes[start:end]))
	}
	return result
}

// mergePieces greedily packs pieces into chunks of at most size
// characters. When a chunk closes, pieces are retained from its tail
// until the carried length drops to the overlap budget, so adjacent
// chunks share context.
func mergePieces(pieces []string, size, overlap int) []string {
	var (
		chunks []string
		window []string
		winLen int
	)

	flush := func() {
		if winLen == 0 {
			return
		}
		chunk := strings.TrimSpace(strings.Join(window, ""))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
	}

	for _, piece := range pieces {
		if winLen+len(piece) > size && winLen > 0 {
			flush()
			// Drop pieces from the front until only the overlap remains.
			for winLen > overlap || (winLen+len(piece) > size && winLen > 0) {
				winLen -= len(window[0])
				window = window[1:]
			}
		}
		window = append(window, piece)
		winLen += len(piece)
	}
	flush()

	return chunks
}

// Truncate returns at most max characters of text, on rune boundaries.
func Truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}
