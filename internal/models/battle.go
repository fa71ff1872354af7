package models

import "time"

// BattleRecord 对战记录，只追加
type BattleRecord struct {
	ID          string    `json:"id"`
	Attacker    string    `json:"attacker"`
	Defender    string    `json:"defender"`
	BattleRound int       `json:"battleRound"`
	Winner      string    `json:"winner"`
	Date        time.Time `json:"date"`
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	PlayerID int64  `json:"player_id"`
	Name     string `json:"name"`
	Gender   string `json:"gender,omitempty"`
	Points   int64  `json:"points"`
	Rank     int    `json:"rank"`
}
