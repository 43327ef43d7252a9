// Package textutil provides text helpers shared by the subtitle pipeline.
//
// The primary use cases are:
//   - Sanitizing titles and identifiers into filesystem-safe keys
//   - Folding diacritics so title comparisons ignore accents
//   - Levenshtein-based title similarity
//   - Positional sentinel markers that bracket filtered dialogue spans
package textutil
