package report

import (
	"context"
	"database/sql"
	"fmt"

	"simuladohub/internal/correction"
	"simuladohub/internal/exam"
	"simuladohub/internal/grading"
)

// Service derives dashboard views from stored correction results. All the
// math lives in the grading package; this layer only assembles inputs and
// annotates outputs with names.
type Service struct {
	db          *sql.DB
	exams       *exam.Service
	corrections *correction.Service
}

func NewService(db *sql.DB, exams *exam.Service, corrections *correction.Service) *Service {
	return &Service{db: db, exams: exams, corrections: corrections}
}

type AreaView struct {
	Area    grading.Area `json:"area"`
	Correct int          `json:"correct"`
	Total   int          `json:"total"`
	Ratio   float64      `json:"ratio"`
	HasData bool         `json:"has_data"`
}

type ExamSummary struct {
	ExamID            string     `json:"exam_id"`
	ExamName          string     `json:"exam_name"`
	Questions         int        `json:"questions"`
	Participants      int        `json:"participants"`
	AverageScore      float64    `json:"average_score"`
	HighestScore      int        `json:"highest_score"`
	LowestScore       int        `json:"lowest_score"`
	HasData           bool       `json:"has_data"`
	Areas             []AreaView `json:"areas"`
	EssayParticipants int        `json:"essay_participants"`
	EssayAverage      float64    `json:"essay_average"`
	EssayHasData      bool       `json:"essay_has_data"`
}

func (s *Service) ExamSummary(ctx context.Context, examID string) (*ExamSummary, error) {
	e, err := s.exams.Get(ctx, examID)
	if err != nil {
		return nil, err
	}

	results, err := s.corrections.ObjectiveByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	out := &ExamSummary{
		ExamID:       e.ID,
		ExamName:     e.Name,
		Questions:    len(e.AnswerKey),
		Participants: len(results),
	}

	scores := make([]int, 0, len(results))
	var allDetails []grading.Detail
	for _, res := range results {
		scores = append(scores, res.Score)
		allDetails = append(allDetails, res.Details...)
	}

	if avg, ok := grading.Average(scores); ok {
		out.AverageScore = avg
		out.HasData = true
		out.HighestScore = scores[0]
		out.LowestScore = scores[0]
		for _, sc := range scores[1:] {
			if sc > out.HighestScore {
				out.HighestScore = sc
			}
			if sc < out.LowestScore {
				out.LowestScore = sc
			}
		}
	}

	out.Areas = areaViews(grading.AreaBreakdown(allDetails))

	essays, err := s.corrections.EssaysByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	out.EssayParticipants = len(essays)
	essayScores := make([]int, 0, len(essays))
	for _, res := range essays {
		essayScores = append(essayScores, res.Scores.Final)
	}
	if avg, ok := grading.Average(essayScores); ok {
		out.EssayAverage = avg
		out.EssayHasData = true
	}

	return out, nil
}

type RankingRow struct {
	Position    int    `json:"position"`
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	Score       int    `json:"score"`
}

// Ranking orders an exam's results by score descending. Ties keep
// submission order: the stable sort in the grading package preserves the
// order results were loaded in (earliest submission first).
func (s *Service) Ranking(ctx context.Context, examID string) ([]RankingRow, error) {
	if _, err := s.exams.Get(ctx, examID); err != nil {
		return nil, err
	}
	results, err := s.corrections.ObjectiveByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	entries := make([]grading.RankEntry, 0, len(results))
	for _, res := range results {
		entries = append(entries, grading.RankEntry{StudentID: res.StudentID, Score: res.Score})
	}
	ranked := grading.Rank(entries)

	names, err := s.studentNames(ctx)
	if err != nil {
		return nil, err
	}

	rows := make([]RankingRow, 0, len(ranked))
	for _, r := range ranked {
		rows = append(rows, RankingRow{
			Position:    r.Position,
			StudentID:   r.StudentID,
			StudentName: names[r.StudentID],
			Score:       r.Score,
		})
	}
	return rows, nil
}

// StudentAreas is one student's per-area performance across every exam
// they have a result for.
func (s *Service) StudentAreas(ctx context.Context, studentID string) ([]AreaView, error) {
	results, err := s.corrections.ObjectiveByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	var allDetails []grading.Detail
	for _, res := range results {
		allDetails = append(allDetails, res.Details...)
	}
	return areaViews(grading.AreaBreakdown(allDetails)), nil
}

func (s *Service) studentNames(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM students`)
	if err != nil {
		return nil, fmt.Errorf("query student names: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan student name: %w", err)
		}
		out[id] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate student names: %w", err)
	}
	return out, nil
}

// areaViews renders the breakdown in the fixed rubric order so dashboards
// and exports are stable.
func areaViews(stats map[grading.Area]grading.AreaStat) []AreaView {
	order := []grading.Area{
		grading.AreaLinguagens,
		grading.AreaHumanas,
		grading.AreaNatureza,
		grading.AreaMatematica,
		grading.AreaGeral,
	}
	out := make([]AreaView, 0, len(order))
	for _, area := range order {
		st, ok := stats[area]
		if !ok {
			continue
		}
		out = append(out, AreaView{
			Area:    area,
			Correct: st.Correct,
			Total:   st.Total,
			Ratio:   st.Ratio(),
			HasData: st.HasData(),
		})
	}
	return out
}
