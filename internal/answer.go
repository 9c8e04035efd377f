package internal

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Answer fields, used as breakdown keys in round results.
const (
	FieldGrapes      = "grape_varieties"
	FieldSweetness   = "sweetness"
	FieldVintage     = "vintage"
	FieldCountry     = "country"
	FieldAlcohol     = "alcohol_content"
	FieldOakAged     = "oak_aged"
	FieldColor       = "color"
	FieldComposition = "composition"
)

var (
	WineColors        = []string{"RED", "WHITE", "ROSE", "ORANGE"}
	SweetnessLevels   = []string{"DRY", "OFF_DRY", "MEDIUM_SWEET", "SWEET"}
	CompositionValues = []string{"VARIETAL", "BLEND"}
)

// AnswerParameters is both the host's ground truth for a round and the shape
// of a player's guess. Zero values mean "not answered".
type AnswerParameters struct {
	GrapeVarieties []string `json:"grape_varieties,omitempty"`
	Sweetness      string   `json:"sweetness,omitempty"`
	Vintage        int      `json:"vintage,omitempty"`
	Country        string   `json:"country,omitempty"`
	AlcoholContent float64  `json:"alcohol_content,omitempty"`
	OakAged        *bool    `json:"oak_aged,omitempty"`
	Color          string   `json:"color,omitempty"`
	Composition    string   `json:"composition,omitempty"`
}

// Normalize upper-cases enum fields and trims free text.
func (a AnswerParameters) Normalize() AnswerParameters {
	out := a
	out.Sweetness = normalizeEnum(a.Sweetness)
	out.Color = normalizeEnum(a.Color)
	out.Composition = normalizeEnum(a.Composition)
	out.Country = strings.TrimSpace(a.Country)
	out.GrapeVarieties = make([]string, 0, len(a.GrapeVarieties))
	for _, g := range a.GrapeVarieties {
		if g = strings.TrimSpace(g); g != "" {
			out.GrapeVarieties = append(out.GrapeVarieties, g)
		}
	}
	return out
}

// Validate checks enum membership and numeric ranges of the fields that are
// set. It does not require completeness.
func (a AnswerParameters) Validate() error {
	if a.Color != "" && !slices.Contains(WineColors, a.Color) {
		return fmt.Errorf("%w: unknown color %q", ErrBadRequest, a.Color)
	}
	if a.Sweetness != "" && !slices.Contains(SweetnessLevels, a.Sweetness) {
		return fmt.Errorf("%w: unknown sweetness %q", ErrBadRequest, a.Sweetness)
	}
	if a.Composition != "" && !slices.Contains(CompositionValues, a.Composition) {
		return fmt.Errorf("%w: unknown composition %q", ErrBadRequest, a.Composition)
	}
	if a.Vintage != 0 && (a.Vintage < 1800 || a.Vintage > time.Now().Year()+1) {
		return fmt.Errorf("%w: vintage %d out of range", ErrBadRequest, a.Vintage)
	}
	if a.AlcoholContent < 0 || a.AlcoholContent > 25 {
		return fmt.Errorf("%w: alcohol content %.1f out of range", ErrBadRequest, a.AlcoholContent)
	}
	return nil
}

// Complete reports whether every field of a ground truth is filled in.
func (a AnswerParameters) Complete() bool {
	return len(a.GrapeVarieties) > 0 &&
		a.Sweetness != "" &&
		a.Vintage != 0 &&
		a.Country != "" &&
		a.AlcoholContent > 0 &&
		a.OakAged != nil &&
		a.Color != "" &&
		a.Composition != ""
}

func normalizeEnum(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	if s == "ROSÉ" {
		s = "ROSE"
	}
	return s
}
