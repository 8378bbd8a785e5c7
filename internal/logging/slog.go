package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"
)

// Common log attribute keys.
const (
	KeyOperation = "operation"
	KeyStep      = "step"
	KeyOutcome   = "outcome"
	KeyPath      = "path"
	KeyUserHash  = "user_hash"
	KeyDuration  = "duration"
	KeyError     = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// Step returns an attribute naming the step of the credential flow (load, refresh, authorize, save).
func Step(step string) slog.Attr {
	return slog.String(KeyStep, step)
}

// Outcome returns an attribute for the acquisition outcome.
func Outcome(outcome string) slog.Attr {
	return slog.String(KeyOutcome, outcome)
}

// Path returns an attribute for a file path.
func Path(path string) slog.Attr {
	return slog.String(KeyPath, path)
}

// Duration returns an attribute for an elapsed time.
func Duration(d time.Duration) slog.Attr {
	return slog.Duration(KeyDuration, d)
}

// Err returns an attribute for an error.
// If err is nil, it returns an empty group which slog omits from output.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging purposes.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns an attribute with the anonymized user email.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// SanitizeToken returns a length indicator for a token without exposing its content.
func SanitizeToken(token string) string {
	if token == "" {
		return "<empty>"
	}
	return fmt.Sprintf("[token:%d chars]", len(token))
}
