package chunking

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 100
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text on the coarsest separator that keeps pieces under
// ChunkSize runes, then merges neighbouring pieces back up to ChunkSize with
// up to Overlap runes repeated between consecutive chunks.
type Splitter struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize:  chunkSize,
		Overlap:    overlap,
		Separators: defaultSeparators,
	}
}

func (s *Splitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	seps := s.Separators
	if len(seps) == 0 {
		seps = defaultSeparators
	}
	return s.splitRecursive(text, seps)
}

func (s *Splitter) splitRecursive(text string, seps []string) []string {
	sep := seps[len(seps)-1]
	var rest []string
	for i, candidate := range seps {
		if candidate == "" {
			sep = ""
			break
		}
		if strings.Contains(text, candidate) {
			sep = candidate
			rest = seps[i+1:]
			break
		}
	}

	var parts []string
	if sep == "" {
		parts = strings.Split(text, "")
	} else {
		parts = strings.Split(text, sep)
	}

	var out, pending []string
	for _, part := range parts {
		if part == "" {
			continue
		}
		if utf8.RuneCountInString(part) < s.ChunkSize {
			pending = append(pending, part)
			continue
		}
		if len(pending) > 0 {
			out = append(out, s.merge(pending, sep)...)
			pending = nil
		}
		if len(rest) == 0 {
			out = appendChunk(out, part)
		} else {
			out = append(out, s.splitRecursive(part, rest)...)
		}
	}
	if len(pending) > 0 {
		out = append(out, s.merge(pending, sep)...)
	}
	return out
}

func (s *Splitter) merge(parts []string, sep string) []string {
	sepLen := utf8.RuneCountInString(sep)
	var out []string
	var current []string
	total := 0

	joinedLen := func(extra int) int {
		if len(current) > 0 {
			return total + extra + sepLen
		}
		return total + extra
	}

	for _, part := range parts {
		n := utf8.RuneCountInString(part)
		if joinedLen(n) > s.ChunkSize && len(current) > 0 {
			out = appendChunk(out, strings.Join(current, sep))
			for total > s.Overlap || (total > 0 && joinedLen(n) > s.ChunkSize) {
				total -= utf8.RuneCountInString(current[0])
				if len(current) > 1 {
					total -= sepLen
				}
				current = current[1:]
			}
		}
		if len(current) > 0 {
			total += sepLen
		}
		current = append(current, part)
		total += n
	}
	if len(current) > 0 {
		out = appendChunk(out, strings.Join(current, sep))
	}
	return out
}

func appendChunk(out []string, chunk string) []string {
	chunk = strings.TrimSpace(chunk)
	if chunk == "" {
		return out
	}
	return append(out, chunk)
}
