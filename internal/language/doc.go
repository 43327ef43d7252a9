// Package language normalizes subtitle language codes.
//
// OpenSubtitles expects lowercase ISO 639-1 codes with a few regional
// variants (pt-br, zh-cn). Users type whatever their player shows, so
// three-letter codes and English names are accepted and folded onto the
// code the index understands. Base strips the region so a detector result
// such as "pt" can be compared against a request for "pt-br".
package language
