package lock

import "fmt"

const keyWager = "lock:wager:%d:%s"

// WagerKey serialises every mutation of one user's rounds in one game
func WagerKey(userID int64, gameType string) string {
	return fmt.Sprintf(keyWager, userID, gameType)
}
