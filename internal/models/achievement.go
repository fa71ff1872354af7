package models

// 成就ID
const (
	AchievementBeginner  = "A beginner player"
	AchievementCollector = "Complete collection"
	AchievementSocial    = "Makes more friends"
	AchievementFirstWin  = "First win"
	AchievementTopRank   = "Top of the leaderboard"
)
