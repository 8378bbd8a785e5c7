// Package logging provides the structured logging setup for gmailauth.
//
// Logs are written with log/slog to stderr so that stdout only carries command
// output. Attribute helpers keep key names consistent:
//
//	logger := logging.WithOperation(slog.Default(), "credential.acquire")
//	logger.Info("credential refreshed", logging.Outcome("refreshed"))
//
// Tokens are never logged directly; use SanitizeToken. User emails are hashed
// with UserHash.
package logging
