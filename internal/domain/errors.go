package domain

import "errors"

var (
	// ErrInvalidInput is returned for missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrSessionNotFound is returned when a game session has not been configured.
	ErrSessionNotFound = errors.New("game session not found")
	// ErrNoTemplate indicates no question template matches the requested topics and language.
	ErrNoTemplate = errors.New("no question template for topics and language")
	// ErrUpstreamUnavailable indicates the knowledge query endpoint could not be reached
	// or answered with a non-success status. Safe to retry.
	ErrUpstreamUnavailable = errors.New("knowledge query service unavailable")
	// ErrMalformedUpstreamData indicates the knowledge query response had an unexpected shape.
	ErrMalformedUpstreamData = errors.New("malformed knowledge query response")
	// ErrPersistence wraps durable store failures.
	ErrPersistence = errors.New("persistence error")
	// ErrGameNotFound indicates a game id could not be resolved.
	ErrGameNotFound = errors.New("game not found")
)
