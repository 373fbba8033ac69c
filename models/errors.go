package models

import "errors"

var (
	// ErrInvalidParameters is returned for a bad stake, bad game parameters or a malformed seed.
	ErrInvalidParameters = errors.New("invalid parameters")

	// ErrBusy is returned when the per-user game lock could not be obtained.
	ErrBusy = errors.New("temporarily busy")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrRoundNotFound       = errors.New("round not found")
	ErrRoundNotActive      = errors.New("round not active")
	ErrIllegalAction       = errors.New("illegal action for round state")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrActiveRoundExists   = errors.New("an active round already exists")

	ErrSeedPairNotFound = errors.New("seed pair not found")
	ErrSeedNotRevealed  = errors.New("seed pair has not been revealed")

	// ErrIntegrity marks a broken outcome or ledger invariant. It is fatal for the request.
	ErrIntegrity = errors.New("integrity violation")

	// ErrReplayMismatch means a stored round disagrees with the outcome recomputed from its seeds.
	ErrReplayMismatch = errors.New("recorded round does not match its replay")

	ErrInternal = errors.New("internal error")
)
