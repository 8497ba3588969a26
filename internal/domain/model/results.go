package model

import "github.com/shopspring/decimal"

// Rating labels attached to a team score.
const (
	RatingExcellent        = "Excellent"
	RatingGood             = "Good"
	RatingNeedsImprovement = "Needs Improvement"
)

// TeamScore is the outcome of rating a squad.
type TeamScore struct {
	Score           float64
	Rating          string
	Suggestions     []string
	AggregatePoints float64
	// Degraded is set when at least one starter had no prediction.
	Degraded   bool
	Confidence float64
	Excluded   []int
}

// RatingLabel maps a 0-100 score onto its label.
func RatingLabel(score float64) string {
	switch {
	case score >= 90:
		return RatingExcellent
	case score >= 70:
		return RatingGood
	default:
		return RatingNeedsImprovement
	}
}

// TransferSuggestion proposes replacing Out with In.
type TransferSuggestion struct {
	Out       Player
	In        Player
	OutPoints float64
	InPoints  float64
	// Impact is InPoints - OutPoints and is always positive.
	Impact    float64
	CostDelta decimal.Decimal
}

// CaptainPick is one ranked captain candidate. Rank starts at 1.
type CaptainPick struct {
	Player          Player
	PredictedPoints float64
	Rank            int
}
