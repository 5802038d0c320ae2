package grading

import "sort"

// AreaStat accumulates correctness for one knowledge area across one or
// many scored sheets. A zero Total means no data, not a zero ratio.
type AreaStat struct {
	Correct int `json:"correct"`
	Total   int `json:"total"`
}

func (s AreaStat) HasData() bool {
	return s.Total > 0
}

// Ratio is Correct/Total, or 0 when there is no data. Callers that need to
// distinguish "no data" from "all wrong" check HasData.
func (s AreaStat) Ratio() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Correct) / float64(s.Total)
}

// AreaBreakdown groups details by area. Pass details from a single sheet
// for one student's view, or concatenated details for a class-wide view.
func AreaBreakdown(details []Detail) map[Area]AreaStat {
	out := make(map[Area]AreaStat)
	for _, d := range details {
		s := out[d.Area]
		s.Total++
		if d.Status == StatusCorrect {
			s.Correct++
		}
		out[d.Area] = s
	}
	return out
}

// Average returns the mean of scores and whether any scores were present.
func Average(scores []int) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores)), true
}

type RankEntry struct {
	StudentID string `json:"student_id"`
	Score     int    `json:"score"`
}

type RankedEntry struct {
	Position  int    `json:"position"`
	StudentID string `json:"student_id"`
	Score     int    `json:"score"`
}

// Rank orders entries by score descending. The sort is stable: entries with
// equal scores keep their insertion order. Positions are ordinal (1,2,3...).
func Rank(entries []RankEntry) []RankedEntry {
	ordered := make([]RankEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	out := make([]RankedEntry, len(ordered))
	for i, e := range ordered {
		out[i] = RankedEntry{Position: i + 1, StudentID: e.StudentID, Score: e.Score}
	}
	return out
}
