package games

import (
	"encoding/json"
	"fmt"
	"reflect"

	"wagerledger/models"

	"github.com/shopspring/decimal"
)

// recordedBet is a Prepared bet as persisted with its round
type recordedBet struct {
	BetType    string          `json:"bet_type"`
	HouseEdge  decimal.Decimal `json:"house_edge"`
	WinChance  decimal.Decimal `json:"win_chance"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Params     json.RawMessage `json:"params"`
}

// recordedResult is a Result as persisted with its round
type recordedResult struct {
	Won        bool            `json:"won"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Detail     json.RawMessage `json:"detail"`
}

// Replay recomputes a persisted bet's result from fresh draws. The stored parameters
// are validated again and priced at the recorded edge, so a later change to the edge
// table does not alter a historical round. The recorded pricing must agree with it.
func Replay(s Strategy, recorded json.RawMessage, draws Draws) (*Result, error) {
	var rec recordedBet
	if err := json.Unmarshal(recorded, &rec); err != nil {
		return nil, fmt.Errorf("%w: malformed bet parameters: %v", models.ErrReplayMismatch, err)
	}

	bet, err := s.Reprice(rec.Params, rec.HouseEdge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrReplayMismatch, err)
	}
	if bet.BetType != rec.BetType || !bet.WinChance.Equal(rec.WinChance) || !bet.Multiplier.Equal(rec.Multiplier) {
		return nil, fmt.Errorf("%w: recorded pricing %s@%s disagrees with parameters (%s@%s)",
			models.ErrReplayMismatch, rec.Multiplier, rec.WinChance, bet.Multiplier, bet.WinChance)
	}

	return s.ComputeResult(bet, draws)
}

// MatchRecorded compares a replayed result with the one stored on the round
func MatchRecorded(result *Result, recorded json.RawMessage) error {
	var rec recordedResult
	if err := json.Unmarshal(recorded, &rec); err != nil {
		return fmt.Errorf("%w: malformed result: %v", models.ErrReplayMismatch, err)
	}
	if rec.Won != result.Won {
		return fmt.Errorf("%w: recorded won=%t, replay won=%t", models.ErrReplayMismatch, rec.Won, result.Won)
	}
	if !rec.Multiplier.Equal(result.Multiplier) {
		return fmt.Errorf("%w: recorded multiplier %s, replay %s", models.ErrReplayMismatch, rec.Multiplier, result.Multiplier)
	}

	replayed, err := json.Marshal(result.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode result detail: %w", err)
	}
	same, err := sameJSON(rec.Detail, replayed)
	if err != nil {
		return fmt.Errorf("%w: malformed result detail: %v", models.ErrReplayMismatch, err)
	}
	if !same {
		return fmt.Errorf("%w: recorded detail %s, replay %s", models.ErrReplayMismatch, rec.Detail, replayed)
	}
	return nil
}

// sameJSON compares two documents by value, ignoring key order and whitespace
func sameJSON(a, b []byte) (bool, error) {
	var va, vb any
	if err := json.Unmarshal(a, &va); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, &vb); err != nil {
		return false, err
	}
	return reflect.DeepEqual(va, vb), nil
}
