package fairness

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"math/bits"
)

// ErrInvalidInput is returned when derivation inputs are missing or malformed
var ErrInvalidInput = errors.New("invalid fairness input")

// valueBits is the width of the integer taken from the front of the digest (13 hex characters)
const valueBits = 52

const valueSpace = 1 << valueBits

// Outcome is one derived pseudo-random draw
type Outcome struct {
	// Bits holds the 52-bit integer read from the digest
	Bits uint64
	// Value is Bits normalised to [0,1)
	Value float64
}

// Scale maps the outcome onto [0, n) as floor(Value*n) without floating point error
func (o Outcome) Scale(n uint64) uint64 {
	hi, lo := bits.Mul64(o.Bits, n)
	return hi<<(64-valueBits) | lo>>valueBits
}

// DeriveOutcome derives the raw value for one bet from
// HMAC-SHA256(serverSeed, "clientSeed:nonce:gameType").
func DeriveOutcome(serverSeed, clientSeed string, nonce int64, gameType string) (Outcome, error) {
	if err := checkInputs(serverSeed, clientSeed, nonce); err != nil {
		return Outcome{}, err
	}
	if gameType == "" {
		return Outcome{}, fmt.Errorf("%w: game type is required", ErrInvalidInput)
	}
	return derive(serverSeed, fmt.Sprintf("%s:%d:%s", clientSeed, nonce, gameType)), nil
}

func derive(key, message string) Outcome {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(message))
	sum := mac.Sum(nil)

	n := binary.BigEndian.Uint64(sum[:8]) >> (64 - valueBits)
	return Outcome{
		Bits:  n,
		Value: float64(n) / valueSpace,
	}
}

func checkInputs(serverSeed, clientSeed string, nonce int64) error {
	if serverSeed == "" {
		return fmt.Errorf("%w: server seed is required", ErrInvalidInput)
	}
	if clientSeed == "" {
		return fmt.Errorf("%w: client seed is required", ErrInvalidInput)
	}
	if nonce < 1 {
		return fmt.Errorf("%w: nonce must be positive, got %d", ErrInvalidInput, nonce)
	}
	return nil
}

// Stream is an unbounded ordered sequence of draws for one seed pair and nonce.
// Draw i is derived from "clientSeed:nonce:i", so later draws never disturb earlier ones.
type Stream struct {
	serverSeed string
	clientSeed string
	nonce      int64
}

// NewStream creates a draw stream for one bet
func NewStream(serverSeed, clientSeed string, nonce int64) (*Stream, error) {
	if err := checkInputs(serverSeed, clientSeed, nonce); err != nil {
		return nil, err
	}
	return &Stream{serverSeed: serverSeed, clientSeed: clientSeed, nonce: nonce}, nil
}

// At returns the draw at cursor
func (s *Stream) At(cursor int) Outcome {
	return derive(s.serverSeed, fmt.Sprintf("%s:%d:%d", s.clientSeed, s.nonce, cursor))
}
