package testutil

import (
	"encoding/json"
	"fmt"

	"wagerledger/fairness"
	"wagerledger/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateTestSeedPair creates an unsaved seed pair with a valid commitment
func CreateTestSeedPair(userID int64) *models.SeedPair {
	serverSeed := fmt.Sprintf("%064x", userID)
	return &models.SeedPair{
		UserID:         userID,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     "test-client-seed",
	}
}

// CreateTestRound creates an unsaved terminal dice round on pair
func CreateTestRound(pair *models.SeedPair, requestID string, nonce int64) *models.WagerRound {
	params, _ := json.Marshal(map[string]any{"target": 50, "condition": "under"})
	return &models.WagerRound{
		ID:               uuid.New(),
		UserID:           pair.UserID,
		GameType:         models.GameTypeDice,
		RequestID:        requestID,
		Asset:            "BTC",
		StakeAmount:      decimal.NewFromInt(10),
		Status:           models.RoundStatusLost,
		SeedPairID:       pair.ID,
		ServerSeedHash:   pair.ServerSeedHash,
		ClientSeed:       pair.ClientSeed,
		Nonce:            nonce,
		RawValue:         0.75,
		Params:           params,
		PayoutAmount:     decimal.Zero,
		PayoutMultiplier: decimal.Zero,
	}
}

// CreateTestOperation creates an unsaved ledger operation
func CreateTestOperation(userID int64, operationID string, kind models.OperationKind, amount string) *models.LedgerOperation {
	return &models.LedgerOperation{
		OperationID: operationID,
		UserID:      userID,
		Asset:       "BTC",
		Kind:        kind,
		Amount:      decimal.RequireFromString(amount),
	}
}
