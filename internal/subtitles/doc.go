// Package subtitles finds, fetches and parses dialogue subtitles.
//
// A Searcher turns content metadata into query variations, runs them against
// the OpenSubtitles index and ranks the candidates. A Fetcher puts the raw
// cache in front of the download so later filter-level passes reuse the same
// bytes. Parse converts SRT text into timed DialogueEntry values, and
// FormatArtifact/ParseArtifact move annotated entries to and from disk.
package subtitles
