package resolution

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/orro3790/drive-sub008/internal/health"
	"github.com/orro3790/drive-sub008/pkg/db/models"
)

var (
	weightHealth      = decimal.RequireFromString("0.45")
	weightFamiliarity = decimal.RequireFromString("0.25")
	weightSeniority   = decimal.RequireFromString("0.15")
	weightPreference  = decimal.RequireFromString("0.15")
)

// Score combines the clamped inputs into a bid score in [0,1], rounded to
// the four places the bids table stores.
func Score(in health.ScoreInputs) decimal.Decimal {
	return decimal.NewFromFloat(in.Health).Mul(weightHealth).
		Add(decimal.NewFromFloat(in.Familiarity).Mul(weightFamiliarity)).
		Add(decimal.NewFromFloat(in.Seniority).Mul(weightSeniority)).
		Add(decimal.NewFromFloat(in.Preference).Mul(weightPreference)).
		Round(4)
}

// sortBids orders bids best first: score descending with unscored bids last,
// then earliest bid, then lowest id.
func sortBids(bids []models.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		a, b := bids[i], bids[j]
		if a.Score.Valid != b.Score.Valid {
			return a.Score.Valid
		}
		if a.Score.Valid {
			if c := a.Score.Decimal.Cmp(b.Score.Decimal); c != 0 {
				return c > 0
			}
		}
		if !a.BidAt.Equal(b.BidAt) {
			return a.BidAt.Before(b.BidAt)
		}
		return a.ID.String() < b.ID.String()
	})
}
