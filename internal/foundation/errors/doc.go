// Package errors provides the classified error primitives used across assetpipe.
//
// Every task failure that can reach the CLI or the dev server is a ClassifiedError.
// The category decides the process exit code (see CLIErrorAdapter) and the HTTP status
// used by the dev server (see HTTPErrorAdapter); the severity decides how loudly it is logged.
//
// Example usage:
//
//	err := errors.StyleError("sass compilation failed").
//		WithCause(cause).
//		WithContext("file", src.Rel).
//		Build()
package errors
