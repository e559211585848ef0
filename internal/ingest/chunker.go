package ingest

import "fmt"

// Chunk splits text into segments of at most size runes where consecutive
// segments share exactly overlap runes. The segments cover the whole input:
// dropping the first overlap runes of every segment after the first and
// concatenating reconstructs the original text. Input no longer than size
// yields a single segment; empty input is an error, never an empty result.
func Chunk(text string, size, overlap int) ([]Segment, error) {
	if size <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("overlap must be in [0, size), got %d", overlap)
	}
	if text == "" {
		return nil, ErrNoText
	}

	runes := []rune(text)
	total := len(runes)

	if total <= size {
		return []Segment{{Ordinal: 0, Text: text}}, nil
	}

	step := size - overlap
	var segments []Segment
	for start := 0; start < total; start += step {
		end := start + size
		if end > total {
			end = total
		}
		segments = append(segments, Segment{
			Ordinal: len(segments),
			Text:    string(runes[start:end]),
		})
		if end == total {
			break
		}
	}
	return segments, nil
}

// Rejoin is the inverse of Chunk: it strips the shared overlap from each
// segment after the first and concatenates the remainder.
func Rejoin(segments []Segment, overlap int) string {
	var out []rune
	for i, seg := range segments {
		runes := []rune(seg.Text)
		if i > 0 && overlap < len(runes) {
			runes = runes[overlap:]
		} else if i > 0 {
			continue
		}
		out = append(out, runes...)
	}
	return string(out)
}
