package parser

import (
	"strings"
	"unicode/utf8"

	"deckgen/internal/models"
)

const (
	DefaultMinChunkSize = 1000
	DefaultMaxChunkSize = 5000
)

// ChunkText greedily packs items into chunks of at most maxSize runes.
// Items longer than maxSize are split on sentence boundaries, and sentences
// longer than maxSize on whitespace. Chunks shorter than minSize are merged
// into a neighbour whenever the result still fits.
func ChunkText(items []models.TextItem, minSize, maxSize int) []models.DocumentChunk {
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	if minSize < 0 || minSize > maxSize {
		minSize = 0
	}

	var raw []string
	acc := &accumulator{maxSize: maxSize, out: &raw}
	for _, item := range items {
		text := item.Text
		if len(item.Rows) > 0 {
			text = tableText(item.Rows)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if runeLen(text) <= maxSize {
			acc.add(text)
			continue
		}

		for _, sentence := range strings.SplitAfter(text, models.SentenceSeparator) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			if runeLen(sentence) <= maxSize {
				acc.add(sentence)
				continue
			}
			acc.flush()
			raw = append(raw, splitWords(sentence, maxSize)...)
		}
	}
	acc.flush()

	merged := mergeSmall(raw, minSize, maxSize)
	chunks := make([]models.DocumentChunk, len(merged))
	for i, text := range merged {
		chunks[i] = models.DocumentChunk{Index: i, Text: text}
	}
	return chunks
}

// accumulator joins parts with single spaces until the next part would overflow
type accumulator struct {
	maxSize int
	parts   []string
	size    int
	out     *[]string
}

func (a *accumulator) add(part string) {
	n := runeLen(part)
	if len(a.parts) > 0 && a.size+1+n > a.maxSize {
		a.flush()
	}
	if len(a.parts) > 0 {
		a.size++
	}
	a.parts = append(a.parts, part)
	a.size += n
}

func (a *accumulator) flush() {
	if len(a.parts) == 0 {
		return
	}
	*a.out = append(*a.out, strings.Join(a.parts, " "))
	a.parts = nil
	a.size = 0
}

// splitWords splits text on whitespace into word bounded pieces of at most maxSize runes.
// A single word longer than maxSize is cut by runes.
func splitWords(text string, maxSize int) []string {
	var out []string
	acc := &accumulator{maxSize: maxSize, out: &out}
	for _, word := range strings.Fields(text) {
		for runeLen(word) > maxSize {
			acc.flush()
			runes := []rune(word)
			out = append(out, string(runes[:maxSize]))
			word = string(runes[maxSize:])
		}
		if word != "" {
			acc.add(word)
		}
	}
	acc.flush()
	return out
}

func mergeSmall(chunks []string, minSize, maxSize int) []string {
	var out []string
	pending := ""
	for _, c := range chunks {
		if pending != "" {
			if runeLen(pending)+1+runeLen(c) <= maxSize {
				c = pending + " " + c
			} else {
				out = append(out, pending)
			}
			pending = ""
		}
		if runeLen(c) < minSize {
			if last := len(out) - 1; last >= 0 && runeLen(out[last])+1+runeLen(c) <= maxSize {
				out[last] += " " + c
				continue
			}
			pending = c
			continue
		}
		out = append(out, c)
	}
	if pending != "" {
		if last := len(out) - 1; last >= 0 && runeLen(out[last])+1+runeLen(pending) <= maxSize {
			out[last] += " " + pending
		} else {
			out = append(out, pending)
		}
	}
	return out
}

func tableText(rows [][]string) string {
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, strings.Join(row, models.TableCellSeparator))
	}
	return strings.Join(lines, "\n")
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
