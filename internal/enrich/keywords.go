package enrich

import (
	"sort"
	"strings"
	"unicode"
)

const (
	minKeywordLength   = 4
	minKeywordMentions = 2
	maxKeywords        = 20
)

// stopWords are common tokens that carry no topical signal. The list
// stays ASCII and lowercase; tokens are lowercased before lookup.
var stopWords = map[string]struct{}{
	"about": {}, "after": {}, "again": {}, "alright": {}, "also": {},
	"anything": {}, "because": {}, "been": {}, "before": {}, "being": {},
	"calling": {}, "could": {}, "does": {}, "doing": {}, "done": {},
	"dont": {}, "down": {}, "else": {}, "every": {}, "from": {},
	"going": {}, "good": {}, "great": {}, "have": {}, "having": {},
	"hello": {}, "help": {}, "here": {}, "into": {}, "just": {},
	"know": {}, "like": {}, "little": {}, "looking": {}, "make": {},
	"maybe": {}, "more": {}, "much": {}, "need": {}, "okay": {},
	"only": {}, "other": {}, "over": {}, "perfect": {}, "phone": {},
	"please": {}, "really": {}, "right": {}, "some": {}, "something": {},
	"sorry": {}, "sounds": {}, "sure": {}, "take": {}, "thank": {},
	"thanks": {}, "that": {}, "thats": {}, "them": {}, "then": {},
	"there": {}, "they": {}, "thing": {}, "think": {}, "this": {},
	"time": {}, "today": {}, "want": {}, "welcome": {}, "well": {},
	"were": {}, "what": {}, "when": {}, "where": {}, "which": {},
	"will": {}, "with": {}, "would": {}, "yeah": {}, "your": {},
	"youre": {},
}

// Keyword is one extracted transcript term and how often it appeared.
type Keyword struct {
	Word  string
	Count int
}

// ExtractKeywords pulls topical terms out of a transcript. Tokens are
// lowercased with punctuation stripped; stop-words and pure numerals
// are dropped; a term must be at least 4 characters and appear at
// least twice. The result is capped at 20, most frequent first, ties
// broken alphabetically so output is stable.
func ExtractKeywords(transcript string) []Keyword {
	counts := map[string]int{}
	for _, raw := range strings.Fields(strings.ToLower(transcript)) {
		word := stripPunct(raw)
		if len(word) < minKeywordLength || isNumeral(word) {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		counts[word]++
	}

	kws := make([]Keyword, 0, len(counts))
	for w, n := range counts {
		if n >= minKeywordMentions {
			kws = append(kws, Keyword{Word: w, Count: n})
		}
	}
	sort.Slice(kws, func(i, j int) bool {
		if kws[i].Count != kws[j].Count {
			return kws[i].Count > kws[j].Count
		}
		return kws[i].Word < kws[j].Word
	})
	if len(kws) > maxKeywords {
		kws = kws[:maxKeywords]
	}
	return kws
}

func stripPunct(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

func isNumeral(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}

// sentimentScore maps the classifier's label onto the numeric scale the
// keyword counters average over.
func sentimentScore(sentiment string) float64 {
	switch sentiment {
	case "Positive":
		return 1
	case "Negative":
		return -1
	default:
		return 0
	}
}
