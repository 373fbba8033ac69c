package models

import "time"

// SeedPair is a user's committed server seed combined with their client seed
type SeedPair struct {
	ID             int64      `db:"id"`
	UserID         int64      `db:"user_id"`
	ServerSeed     string     `db:"server_seed"`
	ServerSeedHash string     `db:"server_seed_hash"`
	ClientSeed     string     `db:"client_seed"`
	Nonce          int64      `db:"nonce"`
	CreatedAt      time.Time  `db:"created_at"`
	RevealedAt     *time.Time `db:"revealed_at"`
}

// IsRevealed reports whether the server seed has been retired and may be shown
func (s *SeedPair) IsRevealed() bool {
	return s.RevealedAt != nil
}

// Commitment returns the public view of the pair
func (s *SeedPair) Commitment() SeedCommitment {
	return SeedCommitment{
		SeedPairID:     s.ID,
		ServerSeedHash: s.ServerSeedHash,
		ClientSeed:     s.ClientSeed,
		Nonce:          s.Nonce,
	}
}

// SeedCommitment is what a user sees before betting: never the server seed itself
type SeedCommitment struct {
	SeedPairID     int64  `json:"seed_pair_id"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`
}

// SeedRotation is the result of retiring the active pair
type SeedRotation struct {
	Revealed *SeedPair
	Next     SeedCommitment
}

// RoundVerification compares a stored round with one replayed from the revealed seed.
// ResultMatches is set when the replay reproduces the stored result and payout.
type RoundVerification struct {
	RoundID        string  `json:"round_id"`
	ServerSeed     string  `json:"server_seed"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
	GameType       string  `json:"game_type"`
	StoredValue    float64 `json:"stored_value"`
	ComputedValue  float64 `json:"computed_value"`
	HashMatches    bool    `json:"hash_matches"`
	ResultMatches  bool    `json:"result_matches"`
	Mismatch       string  `json:"mismatch,omitempty"`
	Verified       bool    `json:"verified"`
}
