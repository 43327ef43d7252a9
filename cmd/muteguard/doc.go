// Package main hosts the muteguard CLI.
//
// The Cobra command tree resolves configuration once, then wires the
// subtitle search, profanity filter and analysis store for the command that
// needs them. Commands that only read stored records never build the remote
// client, so they work without an OpenSubtitles API key.
package main
