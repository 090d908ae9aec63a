/*
Package scoring maps shift feedback answers to ordinal scores.

PURPOSE:
  Pure, stateless helpers. Each of the five feedback questions has a fixed
  list of five options; an answer maps to its 1-based position in that list
  by trimmed, case-insensitive text match (0 when it matches nothing).

  Difficulty is the "overall difficulty" answer when given. Otherwise it
  is the average of volume, rhythm and inverted margin (low margin means
  harder), clamped to [1,5].

SEE ALSO:
  - headcount.go: Total headcount split tables
  - api/handlers.go: Scores are computed when a day is recorded
*/
package scoring

import (
	"strings"
)

// Question option lists in questionnaire order. Margin runs from most to
// least margin, which is why it is inverted when scored.
var (
	VolumeOptions = []string{
		"Pocas mesas",
		"Media sala",
		"Sala completa",
		"Sala y terraza completas",
		"Sala y terraza completas y doblamos mesas",
	}
	RhythmOptions = []string{
		"Muy espaciadas, sin acumulación",
		"Entradas tranquilas",
		"Flujo constante",
		"Muchas entradas juntas",
		"Entradas continuas sin margen",
	}
	MarginOptions = []string{
		"Siempre adelantado",
		"Generalmente con margen",
		"Justo",
		"Poco margen",
		"Ningún margen",
	}
	DifficultyOptions = []string{
		"Muy fácil",
		"Fácil",
		"Normal",
		"Difícil",
		"Muy difícil",
	}
)

// Comfort labels.
const (
	Comfortable = "comfortable"
	Borderline  = "borderline"
	Hard        = "hard"
)

// OptionIndex returns the 1-based index of answer in options, or 0.
func OptionIndex(answer string, options []string) int {
	a := strings.TrimSpace(answer)
	if a == "" {
		return 0
	}
	for i, o := range options {
		if strings.EqualFold(a, o) {
			return i + 1
		}
	}
	return 0
}

// Answers are the raw answers of one shift.
type Answers struct {
	Volume     string
	Rhythm     string
	Margin     string
	Difficulty string
	Kitchen    string
}

// Difficulty returns the shift difficulty in [1,5], or false when no answer
// allows computing it.
func Difficulty(a Answers) (float64, bool) {
	if d := OptionIndex(a.Difficulty, DifficultyOptions); d > 0 {
		return float64(d), true
	}
	v := OptionIndex(a.Volume, VolumeOptions)
	r := OptionIndex(a.Rhythm, RhythmOptions)
	m := OptionIndex(a.Margin, MarginOptions)
	if v == 0 && r == 0 && m == 0 {
		return 0, false
	}

	var sum float64
	var n int
	if v > 0 {
		sum += float64(v)
		n++
	}
	if r > 0 {
		sum += float64(r)
		n++
	}
	if m > 0 {
		sum += float64(6 - m)
		n++
	}
	return clamp(sum/float64(n), 1, 5), true
}

// KitchenDifficulty maps the kitchen question (same scale as difficulty).
func KitchenDifficulty(a Answers) (float64, bool) {
	if k := OptionIndex(a.Kitchen, DifficultyOptions); k > 0 {
		return float64(k), true
	}
	return 0, false
}

// ComfortLabel classifies a difficulty score.
func ComfortLabel(difficulty float64) string {
	switch {
	case difficulty <= 2.5:
		return Comfortable
	case difficulty <= 3.5:
		return Borderline
	default:
		return Hard
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
