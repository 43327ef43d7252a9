// Package logs reads the daemon's JSON log files for `muteguard logs`.
//
// Last returns the final lines of a file with bounded memory. Follow polls
// for appended lines and starts over when the file shrinks or the
// muteguard.log pointer moves to a new daemon run. Filter selects records by
// level, component and content id.
package logs
