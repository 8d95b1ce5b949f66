package search

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Per-token keyword weights. The best signal per token wins.
const (
	exactKeywordWeight = 1.0
	wordBoundaryWeight = 0.66
	substringWeight    = 0.33
)

var stopWords = map[string]bool{
	"the": true, "and": true, "are": true, "you": true, "your": true,
	"what": true, "how": true, "why": true, "who": true, "when": true,
	"where": true, "which": true, "with": true, "about": true, "tell": true,
	"does": true, "did": true, "have": true, "has": true, "for": true,
	"can": true, "could": true, "would": true, "this": true, "that": true,
	"from": true, "any": true, "was": true, "were": true, "been": true,
	"some": true, "there": true, "their": true, "them": true, "into": true,
	"more": true, "please": true, "know": true, "use": true, "used": true,
}

// Tokenize lowercases text and splits it into terms longer than two characters.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '+' && r != '#'
	})

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".")
		if len([]rune(f)) > 2 {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// contentTokens drops stop words, keeping the first occurrence of each term.
func contentTokens(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tok := range Tokenize(text) {
		if stopWords[tok] || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// keywordScore averages the best per-token signal over tokens.
func keywordScore(searchText string, keywords []string, tokens []string) (float64, []string) {
	if len(tokens) == 0 {
		return 0, nil
	}

	keywordSet := make(map[string]bool, len(keywords))
	for _, k := range keywords {
		keywordSet[strings.ToLower(strings.TrimSpace(k))] = true
	}

	var total float64
	var matched []string
	for _, tok := range tokens {
		var s float64
		switch {
		case keywordSet[tok]:
			s = exactKeywordWeight
		case containsWord(searchText, tok):
			s = wordBoundaryWeight
		case strings.Contains(searchText, tok):
			s = substringWeight
		}
		if s > 0 {
			total += s
			matched = append(matched, tok)
		}
	}
	return total / float64(len(tokens)), matched
}

// containsWord reports whether word occurs in text delimited by non-word runes.
func containsWord(text, word string) bool {
	if word == "" {
		return false
	}
	for start := 0; start < len(text); {
		i := strings.Index(text[start:], word)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(word)
		if !isWordByteBefore(text, i) && !isWordByteAt(text, end) {
			return true
		}
		start = i + 1
	}
	return false
}

func isWordByteBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(text[:i])
	return isWordRune(r)
}

func isWordByteAt(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(text[i:])
	return isWordRune(r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
