// Package services defines the shared error taxonomy and context helpers used
// by the subtitle pipeline.
//
// Error markers (ErrNetwork, ErrNoResults, ErrPersistence, ...) are attached
// with Wrap so callers classify failures with errors.Is while the message keeps
// the component and operation that failed. UserMessage and ExitCode translate
// those markers for the CLI. Context helpers stamp content identities and
// correlation IDs that the logging package picks up automatically.
package services
