package textutil

import (
	"regexp"
	"strings"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9']+`)

// Tokenize splits text into lowercase word tokens. Apostrophes are kept so
// contractions count as single words; everything else non-alphanumeric splits.
func Tokenize(text string) []string {
	lowered := strings.ToLower(text)
	raw := tokenSplitPattern.Split(lowered, -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.Trim(token, "'")
		if token == "" {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// Stats summarizes word-level statistics of a text sample.
type Stats struct {
	WordCount      int
	UniqueWords    int
	AvgWordLength  float64
	TypeTokenRatio float64
}

// WordStats computes word statistics used by the speaking-style analysis.
// TypeTokenRatio is unique/total words; zero-token input yields zeroes.
func WordStats(text string) Stats {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return Stats{}
	}
	unique := make(map[string]struct{}, len(tokens))
	totalLen := 0
	for _, token := range tokens {
		unique[token] = struct{}{}
		totalLen += len(token)
	}
	return Stats{
		WordCount:      len(tokens),
		UniqueWords:    len(unique),
		AvgWordLength:  float64(totalLen) / float64(len(tokens)),
		TypeTokenRatio: float64(len(unique)) / float64(len(tokens)),
	}
}
