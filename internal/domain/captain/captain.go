// Package captain ranks starters as captain candidates.
package captain

import (
	"fmt"
	"sort"

	"github.com/okian/fplcoach/internal/domain/model"
	"github.com/okian/fplcoach/internal/domain/prediction"
)

// Pick returns up to limit starters ordered by predicted points, highest
// first, with ties broken by player id. Starters without a prediction are
// left out and the list is never padded.
func Pick(sq model.Squad, lookup prediction.Lookup, limit int) ([]model.CaptainPick, error) {
	var picks []model.CaptainPick
	for _, e := range sq.Starters() {
		pts, ok := lookup.Points(e.ID)
		if !ok {
			continue
		}
		picks = append(picks, model.CaptainPick{Player: e.Player, PredictedPoints: pts})
	}
	if len(picks) == 0 {
		return nil, fmt.Errorf("pick captain: %w", model.ErrNoUsablePlayers)
	}

	sort.Slice(picks, func(i, j int) bool {
		if picks[i].PredictedPoints != picks[j].PredictedPoints {
			return picks[i].PredictedPoints > picks[j].PredictedPoints
		}
		return picks[i].Player.ID < picks[j].Player.ID
	})
	if limit < 0 {
		limit = 0
	}
	if len(picks) > limit {
		picks = picks[:limit]
	}
	for i := range picks {
		picks[i].Rank = i + 1
	}
	return picks, nil
}
