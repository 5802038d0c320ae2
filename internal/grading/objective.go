package grading

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMalformedKey = errors.New("malformed answer key")
	ErrInvalidMark  = errors.New("invalid mark")
)

// Area is the knowledge area an answer-key item is tagged with.
type Area string

const (
	AreaLinguagens Area = "Linguagens"
	AreaHumanas    Area = "Humanas"
	AreaNatureza   Area = "Natureza"
	AreaMatematica Area = "Matemática"
	AreaGeral      Area = "Geral"
)

func ValidArea(a Area) bool {
	switch a {
	case AreaLinguagens, AreaHumanas, AreaNatureza, AreaMatematica, AreaGeral:
		return true
	}
	return false
}

// Mark is a student's detected response to one question: a letter A-E,
// blank (no mark detected) or multiple (more than one mark detected).
type Mark string

const (
	MarkBlank    Mark = "blank"
	MarkMultiple Mark = "multiple"
)

// NormalizeMark maps raw oracle/UI output onto the Mark domain. Anything
// outside {A..E, blank, multiple} is ErrInvalidMark, never coerced.
func NormalizeMark(raw string) (Mark, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	switch v {
	case "", "blank", "em branco":
		return MarkBlank, nil
	case "multiple", "multipla", "múltipla":
		return MarkMultiple, nil
	case "a", "b", "c", "d", "e":
		return Mark(strings.ToUpper(v)), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMark, raw)
	}
}

type Status string

const (
	StatusCorrect   Status = "correct"
	StatusIncorrect Status = "incorrect"
	StatusBlank     Status = "blank"
	StatusMultiple  Status = "multiple"
)

type AnswerKeyItem struct {
	Question int    `json:"question"`
	Answer   string `json:"answer"`
	Area     Area   `json:"area"`
}

type Summary struct {
	Correct   int `json:"correct"`
	Incorrect int `json:"incorrect"`
	Blank     int `json:"blank"`
	Multiple  int `json:"multiple"`
}

type Detail struct {
	Question      int    `json:"question"`
	StudentAnswer string `json:"student_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Status        Status `json:"status"`
	Area          Area   `json:"area"`
}

// Sheet is the scored fragment for one student's answer sheet against one
// exam's key. Persistence identifiers and timestamps belong to the caller.
type Sheet struct {
	Score   int      `json:"score"`
	Summary Summary  `json:"summary"`
	Details []Detail `json:"details"`
}

// ValidateKey rejects keys with missing fields, out-of-domain answers or
// duplicate question numbers before any scoring happens.
func ValidateKey(key []AnswerKeyItem) error {
	seen := make(map[int]struct{}, len(key))
	for i, item := range key {
		if item.Question < 1 {
			return fmt.Errorf("%w: item %d has question %d", ErrMalformedKey, i, item.Question)
		}
		ans := strings.ToUpper(strings.TrimSpace(item.Answer))
		if len(ans) != 1 || ans[0] < 'A' || ans[0] > 'E' {
			return fmt.Errorf("%w: question %d has answer %q", ErrMalformedKey, item.Question, item.Answer)
		}
		if !ValidArea(item.Area) {
			return fmt.Errorf("%w: question %d has area %q", ErrMalformedKey, item.Question, item.Area)
		}
		if _, dup := seen[item.Question]; dup {
			return fmt.Errorf("%w: duplicate question %d", ErrMalformedKey, item.Question)
		}
		seen[item.Question] = struct{}{}
	}
	return nil
}

// KeyGaps reports question numbers missing from the contiguous range
// 1..max(key). Deletion-renumbering in editors can leave gaps; the scorer
// tolerates them, so gaps are surfaced as a warning, not an error.
func KeyGaps(key []AnswerKeyItem) []int {
	if len(key) == 0 {
		return nil
	}
	present := make(map[int]struct{}, len(key))
	max := 0
	for _, item := range key {
		present[item.Question] = struct{}{}
		if item.Question > max {
			max = item.Question
		}
	}
	var gaps []int
	for q := 1; q <= max; q++ {
		if _, ok := present[q]; !ok {
			gaps = append(gaps, q)
		}
	}
	return gaps
}

// ScoreSheet compares a student's marks against an answer key. Iteration is
// driven by the key, so absent marks default to blank and marks for
// questions outside the key are ignored. An empty key yields a zero result.
// Invalid input fails before any detail is produced.
func ScoreSheet(key []AnswerKeyItem, marks map[int]Mark) (Sheet, error) {
	if err := ValidateKey(key); err != nil {
		return Sheet{}, err
	}
	for q, m := range marks {
		if _, err := NormalizeMark(string(m)); err != nil {
			return Sheet{}, fmt.Errorf("question %d: %w", q, err)
		}
	}

	out := Sheet{Details: make([]Detail, 0, len(key))}
	for _, item := range key {
		mark := MarkBlank
		if m, ok := marks[item.Question]; ok {
			mark, _ = NormalizeMark(string(m))
		}
		correct := strings.ToUpper(strings.TrimSpace(item.Answer))

		var status Status
		switch {
		case mark == MarkBlank:
			status = StatusBlank
			out.Summary.Blank++
		case mark == MarkMultiple:
			status = StatusMultiple
			out.Summary.Multiple++
		case string(mark) == correct:
			status = StatusCorrect
			out.Summary.Correct++
		default:
			status = StatusIncorrect
			out.Summary.Incorrect++
		}

		out.Details = append(out.Details, Detail{
			Question:      item.Question,
			StudentAnswer: string(mark),
			CorrectAnswer: correct,
			Status:        status,
			Area:          item.Area,
		})
	}

	out.Score = out.Summary.Correct
	return out, nil
}
