package service

import (
	"errors"

	"wagerledger/models"

	log "github.com/sirupsen/logrus"
)

// User-visible error messages. Nothing else is ever shown to a caller.
const (
	MessageInsufficientBalance = "insufficient balance"
	MessageInvalidParameters   = "invalid parameters"
	MessageBusy                = "temporarily busy, please retry"
	MessageRoundNotFound       = "game not found or not active"
	MessageDuplicateRequest    = "duplicate request"
	MessageInternal            = "internal error"
)

// PublicMessage maps an error to its stable user-facing message
func PublicMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, models.ErrInsufficientBalance):
		return MessageInsufficientBalance
	case errors.Is(err, models.ErrBusy):
		return MessageBusy
	case errors.Is(err, models.ErrDuplicateRequest):
		return MessageDuplicateRequest
	case errors.Is(err, models.ErrRoundNotFound),
		errors.Is(err, models.ErrRoundNotActive),
		errors.Is(err, models.ErrSeedPairNotFound):
		return MessageRoundNotFound
	case errors.Is(err, models.ErrInvalidParameters),
		errors.Is(err, models.ErrIllegalAction),
		errors.Is(err, models.ErrActiveRoundExists),
		errors.Is(err, models.ErrSeedNotRevealed):
		return MessageInvalidParameters
	default:
		return MessageInternal
	}
}

// IsUserError reports whether err was caused by the request rather than the system
func IsUserError(err error) bool {
	msg := PublicMessage(err)
	return msg != MessageInternal && msg != ""
}

// logFailure logs system failures with full context; user errors are logged at debug
func logFailure(err error, msg string, fields log.Fields) {
	entry := log.WithFields(fields).WithError(err)
	if IsUserError(err) {
		entry.Debug(msg)
		return
	}
	entry.Error(msg)
}
