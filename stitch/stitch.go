// Package stitch removes redundant text from the seam between a story
// document and a freshly generated continuation. Models asked to continue a
// document frequently restate part of it — sometimes the whole document,
// usually just the trailing words — and appending that verbatim would make
// the story repeat itself. All functions here are pure: same input, same
// output, no state.
package stitch

import (
	"regexp"
	"strings"
)

// maxOverlapWords bounds the seam comparison window. Model repetition
// happens at the seam, not deep inside the new text, so a small constant
// window beats exhaustive substring matching.
const maxOverlapWords = 5

// Trim returns raw with any leading material that repeats the tail of
// document removed.
//
// Two passes: if raw opens with the entire document as a literal prefix,
// that prefix is dropped first. Then the last words of the document are
// compared case-insensitively against the first words of raw, for overlap
// lengths from 1 up to maxOverlapWords, and the longest match is dropped
// from the front of raw. When no overlap is found raw comes back
// unmodified — including when it is empty. The comparison is word-for-word
// on whitespace-delimited tokens and is punctuation-sensitive.
func Trim(document, raw string) string {
	if strings.HasPrefix(raw, document) && document != "" {
		raw = strings.TrimSpace(raw[len(document):])
	}

	docWords := strings.Fields(document)
	rawWords := strings.Fields(raw)

	limit := maxOverlapWords
	if len(docWords) < limit {
		limit = len(docWords)
	}
	if len(rawWords) < limit {
		limit = len(rawWords)
	}

	overlap := 0
	for i := 1; i <= limit; i++ {
		if wordsEqualFold(docWords[len(docWords)-i:], rawWords[:i]) {
			overlap = i
		}
	}

	if overlap == 0 {
		return raw
	}
	return strings.Join(rawWords[overlap:], " ")
}

// StripSpeakerLabel removes leading repetitions of a speaker label from
// raw. Models prompted with "Name:"-style transcripts often open their
// reply by echoing the label, sometimes more than once ("Name: Name:
// ..."). The match is case-insensitive, anchored at the start, and
// tolerates surrounding whitespace. The colon is required: prose that
// merely opens with the contributor's name is left alone. An empty label
// is a no-op.
func StripSpeakerLabel(raw, label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return raw
	}
	re, err := regexp.Compile(`(?i)^(\s*` + regexp.QuoteMeta(label) + `\s*:\s*)+`)
	if err != nil {
		return raw
	}
	return re.ReplaceAllString(raw, "")
}

// Clean is the full per-turn pipeline: strip the contributor's speaker
// label, then trim seam overlap against the accumulated document.
func Clean(document, raw, label string) string {
	return Trim(document, StripSpeakerLabel(raw, label))
}

func wordsEqualFold(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !strings.EqualFold(a[i], b[i]) {
			return false
		}
	}
	return true
}
