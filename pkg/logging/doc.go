// Package logging provides structured logging configuration for glrunner.
//
// This package wraps log/slog so every command and library package logs the
// same way. Library packages accept a *slog.Logger through an option and fall
// back to Nop(); they log what happened (cache hits, registrations, request
// ids) and return errors instead of logging them.
//
// # Usage
//
//	logger := logging.New(logging.Config{
//	    Level:  logging.LevelDebug,
//	    Format: logging.FormatJSON,
//	})
//
//	logger.Info("runner registered", "runner", name, "id", id, logging.Token("token", tok))
//
// # Secrets
//
// Runner and registration tokens must only be logged through Token, which
// keeps a short suffix and masks the rest.
package logging
