// Package textutil provides the tokenization and word statistics shared by
// the speaking-style analysis.
//
// The tokenization lowercases text and splits on non-alphanumeric characters,
// keeping apostrophes so contractions count as one word.
package textutil
