package grading

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidCompetencyLevel = errors.New("invalid competency level")
	ErrInvalidSituation       = errors.New("invalid situation")
)

// competencyScores maps a selected level 0-5 to its point value.
var competencyScores = [6]int{0, 40, 80, 120, 160, 200}

// Situation is a nullifying condition for an essay. Wire values match the
// rubric's Portuguese labels.
type Situation string

const (
	SituationNone              Situation = ""
	SituationEmBranco          Situation = "Em Branco"
	SituationTextoInsuficiente Situation = "Texto Insuficiente"
	SituationFEA               Situation = "FEA"
	SituationCopia             Situation = "Cópia"
	SituationFugaAoTema        Situation = "Fuga ao Tema"
	SituationNATT              Situation = "NATT"
	SituationPD                Situation = "PD"
)

var allSituations = []Situation{
	SituationEmBranco,
	SituationTextoInsuficiente,
	SituationFEA,
	SituationCopia,
	SituationFugaAoTema,
	SituationNATT,
	SituationPD,
}

// Situations lists the valid nullifying conditions.
func Situations() []Situation {
	out := make([]Situation, len(allSituations))
	copy(out, allSituations)
	return out
}

// ParseSituation accepts an empty string as "no situation".
func ParseSituation(raw string) (Situation, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return SituationNone, nil
	}
	for _, s := range allSituations {
		if string(s) == v {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSituation, raw)
}

// Levels holds the grader's selected level per competency, 0-5 each.
// Competency 2 has no level 0: it cannot score zero unless the whole essay
// is nullified via a situation.
type Levels struct {
	C1 int `json:"c1"`
	C2 int `json:"c2"`
	C3 int `json:"c3"`
	C4 int `json:"c4"`
	C5 int `json:"c5"`
}

// EssayScores carries the point value per competency and the final sum.
type EssayScores struct {
	C1    int `json:"c1"`
	C2    int `json:"c2"`
	C3    int `json:"c3"`
	C4    int `json:"c4"`
	C5    int `json:"c5"`
	Final int `json:"final_score"`
}

// ScoreEssay maps selected levels through the fixed point table and sums
// them. A non-empty situation is an absolute override: every competency and
// the final score become 0 regardless of the levels selected. Out-of-range
// levels are rejected, not clamped.
func ScoreEssay(levels Levels, situation Situation) (EssayScores, error) {
	if situation != SituationNone {
		if _, err := ParseSituation(string(situation)); err != nil {
			return EssayScores{}, err
		}
		return EssayScores{}, nil
	}

	sel := [5]struct {
		name string
		lvl  int
		min  int
	}{
		{"c1", levels.C1, 0},
		{"c2", levels.C2, 1},
		{"c3", levels.C3, 0},
		{"c4", levels.C4, 0},
		{"c5", levels.C5, 0},
	}

	var pts [5]int
	for i, c := range sel {
		if c.lvl < c.min || c.lvl > 5 {
			return EssayScores{}, fmt.Errorf("%w: %s level %d", ErrInvalidCompetencyLevel, c.name, c.lvl)
		}
		pts[i] = competencyScores[c.lvl]
	}

	out := EssayScores{C1: pts[0], C2: pts[1], C3: pts[2], C4: pts[3], C5: pts[4]}
	out.Final = out.C1 + out.C2 + out.C3 + out.C4 + out.C5
	return out, nil
}
