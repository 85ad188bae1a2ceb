// Package chunk splits long documents into bounded, overlapping segments
// aligned on sentence boundaries.
package chunk

import (
	"iter"
	"regexp"
	"strings"
)

// Default bounds used by the update pipeline.
const (
	DefaultMaxWords         = 3000
	DefaultOverlapSentences = 1
)

// sentenceEnd matches the whitespace following a sentence terminator.
var sentenceEnd = regexp.MustCompile(`[.!?;:]\s+`)

// Chunk is one segment of a document. Start and End index the sentence range
// [Start, End) the chunk owns; Overlap sentences preceding Start are carried
// as context. Oversized sentences produce word-window chunks with Window set.
type Chunk struct {
	Text    string
	Start   int
	End     int
	Overlap int
	Window  bool
}

// Words returns the chunk's word count.
func (c Chunk) Words() int {
	return len(strings.Fields(c.Text))
}

// Splitter produces chunks bounded by MaxWords with OverlapSentences of
// trailing context copied from the previous chunk.
type Splitter struct {
	MaxWords         int
	OverlapSentences int
}

// NewSplitter returns a Splitter with the pipeline defaults applied to
// non-positive arguments. A negative overlap is treated as zero.
func NewSplitter(maxWords, overlap int) Splitter {
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}
	if overlap < 0 {
		overlap = 0
	}
	return Splitter{MaxWords: maxWords, OverlapSentences: overlap}
}

// Sentences normalizes whitespace and splits text after each terminator
// (. ! ? ; :) that is followed by whitespace.
func Sentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	var out []string
	last := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// loc[0] is the terminator; the sentence keeps it.
		out = append(out, text[last:loc[0]+1])
		last = loc[1]
	}
	if last < len(text) {
		out = append(out, text[last:])
	}
	return out
}

// All returns a restartable sequence over the chunks of text.
func (s Splitter) All(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		s.walk(Sentences(text), yield)
	}
}

// Split returns every chunk of text as strings.
func (s Splitter) Split(text string) []string {
	var out []string
	for c := range s.All(text) {
		out = append(out, c.Text)
	}
	return out
}

// Split chunks text with the given bounds.
func Split(text string, maxWords, overlap int) []string {
	return NewSplitter(maxWords, overlap).Split(text)
}

func (s Splitter) walk(sentences []string, yield func(Chunk) bool) {
	maxWords := s.MaxWords
	if maxWords <= 0 {
		maxWords = DefaultMaxWords
	}

	var (
		start   = 0 // first owned sentence of the open chunk
		overlap = 0 // context sentences before start
		count   = 0 // words in the open chunk, overlap included
		open    = false
	)

	emit := func(end int) bool {
		c := Chunk{
			Text:    strings.Join(sentences[start-overlap:end], " "),
			Start:   start,
			End:     end,
			Overlap: overlap,
		}
		return yield(c)
	}

	for i, sent := range sentences {
		words := strings.Fields(sent)
		n := len(words)

		if n > maxWords {
			// The open chunk is left as is; the oversized sentence is
			// windowed on its own and never used as overlap.
			if open {
				if !emit(i) {
					return
				}
				open = false
			}
			for j := 0; j < n; j += maxWords {
				end := min(j+maxWords, n)
				c := Chunk{
					Text:   strings.Join(words[j:end], " "),
					Start:  i,
					End:    i + 1,
					Window: true,
				}
				if !yield(c) {
					return
				}
			}
			start, overlap, count = i+1, 0, 0
			continue
		}

		if !open {
			start, overlap, count, open = i, 0, n, true
			continue
		}

		if count+n > maxWords {
			if !emit(i) {
				return
			}
			overlap = s.overlapFor(sentences, start-overlap, i, n, maxWords)
			start = i
			count = n
			for _, o := range sentences[i-overlap : i] {
				count += len(strings.Fields(o))
			}
			continue
		}

		count += n
	}

	if open {
		emit(len(sentences))
	}
}

// overlapFor picks how many of the sentences before i to carry into the next
// chunk: at most OverlapSentences, never reaching back before the previous
// chunk's first sentence, and dropped from the front until the new chunk
// fits in maxWords.
func (s Splitter) overlapFor(sentences []string, prevFirst, i, n, maxWords int) int {
	k := min(max(s.OverlapSentences, 0), i-prevFirst)
	for k > 0 {
		total := n
		for _, o := range sentences[i-k : i] {
			total += len(strings.Fields(o))
		}
		if total <= maxWords {
			break
		}
		k--
	}
	return k
}
