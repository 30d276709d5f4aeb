package domain

import "errors"

// Sentinel errors shared across layers. Wrap with fmt.Errorf("op: %w", err)
// and match with errors.Is.
var (
	// ErrUnknownMarket is returned when a chain has no address book entry.
	ErrUnknownMarket = errors.New("unknown market")
	// ErrCollaborator marks a failure of a chain reader, market-data API or store.
	ErrCollaborator = errors.New("collaborator failure")
	// ErrInsufficientData means fewer samples than an indicator needs.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrNoDebt means the health factor is undefined for the account.
	ErrNoDebt = errors.New("no debt")
	// ErrTimeout is returned when the caller's deadline is exceeded.
	ErrTimeout = errors.New("timeout")
	// ErrUnorderedSeries means a series was not oldest-first.
	ErrUnorderedSeries = errors.New("series not in ascending time order")
	// ErrInvalidQuery is returned by SeriesQuery validation.
	ErrInvalidQuery = errors.New("invalid series query")
	// ErrConfiguration marks a market present in the registry but missing from the address book.
	ErrConfiguration = errors.New("configuration error")
	// ErrAlreadyRunning is returned when an ingestion run is already in progress.
	ErrAlreadyRunning = errors.New("ingestion already running")
	// ErrQueueUnavailable is returned when refreshes cannot be queued.
	ErrQueueUnavailable = errors.New("refresh queue unavailable")
	// ErrCoinNotFound is returned when no catalogue id maps to a contract.
	ErrCoinNotFound = errors.New("coin not found")
)
