package services

import "errors"

var (
	// ErrInvalidAccountID is returned before any Steam call when the account
	// identifier is not a 17-digit SteamID64.
	ErrInvalidAccountID = errors.New("invalid SteamID64")

	// ErrInventoryInaccessible means Steam reported a failure or the
	// inventory is private. Nothing is persisted.
	ErrInventoryInaccessible = errors.New("inventory not accessible")

	// ErrUpstreamThrottled means Steam kept answering 429 after every retry.
	// Callers may try again later.
	ErrUpstreamThrottled = errors.New("steam rate limit exceeded")

	// ErrPersistence wraps store failures during upsert, import or reset.
	ErrPersistence = errors.New("failed to persist valuation")

	ErrValuationNotFound = errors.New("valuation not found")
)
