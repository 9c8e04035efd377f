package game

import (
	"math"
	"slices"
	"strings"

	"github.com/scythe504/winenight-backend/internal"
	"github.com/scythe504/winenight-backend/internal/utils"
)

// =============================================================================
// SCORING
// =============================================================================

const (
	PointsPerField   = 10
	GrapePoints      = 20
	VintageTolerance = 1
	AlcoholTolerance = 0.5
)

// MaxRoundScore is what a perfect guess earns.
const MaxRoundScore = 7*PointsPerField + GrapePoints

// Scorer grades guesses against a round's answer. Grape names are compared
// after alias resolution, so "Shiraz" matches "Syrah".
type Scorer struct {
	aliases map[string]string
}

// NewScorer takes aliases keyed by utils.GrapeKey of the alias, valued with
// the canonical key.
func NewScorer(aliases map[string]string) *Scorer {
	if aliases == nil {
		aliases = map[string]string{}
	}
	return &Scorer{aliases: aliases}
}

func (s *Scorer) canonical(grape string) string {
	key := utils.GrapeKey(grape)
	if c, ok := s.aliases[key]; ok {
		return c
	}
	return key
}

// Score returns the round score of guess and the per-field breakdown.
func (s *Scorer) Score(truth, guess internal.AnswerParameters) (int, map[string]internal.FieldResult) {
	breakdown := map[string]internal.FieldResult{
		internal.FieldColor:       exact(guess.Color != "" && guess.Color == truth.Color),
		internal.FieldSweetness:   exact(guess.Sweetness != "" && guess.Sweetness == truth.Sweetness),
		internal.FieldComposition: exact(guess.Composition != "" && guess.Composition == truth.Composition),
		internal.FieldCountry:     exact(guess.Country != "" && strings.EqualFold(guess.Country, truth.Country)),
		internal.FieldOakAged:     exact(guess.OakAged != nil && truth.OakAged != nil && *guess.OakAged == *truth.OakAged),
		internal.FieldVintage:     exact(guess.Vintage != 0 && abs(guess.Vintage-truth.Vintage) <= VintageTolerance),
		internal.FieldAlcohol:     exact(guess.AlcoholContent > 0 && math.Abs(guess.AlcoholContent-truth.AlcoholContent) <= AlcoholTolerance+1e-9),
		internal.FieldGrapes:      s.grapes(truth.GrapeVarieties, guess.GrapeVarieties),
	}

	total := 0
	for _, r := range breakdown {
		total += r.Points
	}
	return total, breakdown
}

// grapes awards GrapePoints scaled by the overlap of the two sets over their
// union. Only an identical set counts as correct.
func (s *Scorer) grapes(truth, guess []string) internal.FieldResult {
	want := s.grapeSet(truth)
	got := s.grapeSet(guess)
	if len(want) == 0 || len(got) == 0 {
		return internal.FieldResult{}
	}

	shared := 0
	for g := range got {
		if want[g] {
			shared++
		}
	}
	union := len(want) + len(got) - shared
	return internal.FieldResult{
		Correct: shared == len(want) && shared == len(got),
		Points:  GrapePoints * shared / union,
	}
}

func (s *Scorer) grapeSet(grapes []string) map[string]bool {
	set := make(map[string]bool, len(grapes))
	for _, g := range grapes {
		if c := s.canonical(g); c != "" {
			set[c] = true
		}
	}
	return set
}

func exact(ok bool) internal.FieldResult {
	if ok {
		return internal.FieldResult{Correct: true, Points: PointsPerField}
	}
	return internal.FieldResult{}
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Standings ranks totals by score, highest first. Equal scores keep join
// order.
func Standings(totals []internal.PlayerScore) []internal.Standing {
	sorted := slices.Clone(totals)
	slices.SortStableFunc(sorted, func(a, b internal.PlayerScore) int {
		if a.Total != b.Total {
			return b.Total - a.Total
		}
		switch {
		case a.JoinOrder < b.JoinOrder:
			return -1
		case a.JoinOrder > b.JoinOrder:
			return 1
		}
		return 0
	})

	standings := make([]internal.Standing, len(sorted))
	for i, p := range sorted {
		standings[i] = internal.Standing{
			Position: i + 1,
			UserID:   p.UserID,
			Name:     p.Name,
			Score:    p.Total,
		}
	}
	return standings
}
