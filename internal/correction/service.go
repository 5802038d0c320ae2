package correction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"simuladohub/internal/exam"
	"simuladohub/internal/grading"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrStudentNotFound    = errors.New("student not found")
	ErrCorrectionNotFound = errors.New("correction not found")
)

// Service turns mark maps and rubric selections into persisted correction
// results. One result per (student, exam); regrading overwrites it. The
// scoring itself is delegated to the pure grading core, and nothing is
// persisted when scoring fails.
type Service struct {
	db    *sql.DB
	exams *exam.Service
}

type ObjectiveResult struct {
	ID             string           `json:"id"`
	ExamID         string           `json:"exam_id"`
	StudentID      string           `json:"student_id"`
	SubmittedAt    time.Time        `json:"submitted_at"`
	AnswerSheetURL string           `json:"answer_sheet_url,omitempty"`
	Score          int              `json:"score"`
	Summary        grading.Summary  `json:"summary"`
	Details        []grading.Detail `json:"details"`
}

type EssayResult struct {
	ID            string              `json:"id"`
	ExamID        string              `json:"exam_id"`
	StudentID     string              `json:"student_id"`
	TopicID       string              `json:"topic_id,omitempty"`
	SubmittedAt   time.Time           `json:"submitted_at"`
	EssayImageURL string              `json:"essay_image_url,omitempty"`
	Scores        grading.EssayScores `json:"scores"`
	Situation     grading.Situation   `json:"situation,omitempty"`
	Observations  string              `json:"observations,omitempty"`
}

type GradeObjectiveInput struct {
	ExamID    string
	StudentID string
	// Marks holds already-normalized marks keyed by question number.
	// Extraction, when set, is the raw oracle payload and takes precedence;
	// it goes through the strict boundary decode first.
	Marks          map[int]grading.Mark
	Extraction     json.RawMessage
	AnswerSheetURL string
}

type GradeEssayInput struct {
	ExamID    string
	StudentID string
	// TopicID is an optional reference to the redação the essay was written
	// on; topics are deletable, so it is stored as a plain string.
	TopicID       string
	Levels        grading.Levels
	Situation     grading.Situation
	Observations  string
	EssayImageURL string
}

func NewService(db *sql.DB, exams *exam.Service) *Service {
	return &Service{db: db, exams: exams}
}

func (s *Service) GradeObjective(ctx context.Context, in GradeObjectiveInput) (*ObjectiveResult, error) {
	if in.ExamID == "" || in.StudentID == "" {
		return nil, ErrInvalidInput
	}
	if err := s.studentExists(ctx, in.StudentID); err != nil {
		return nil, err
	}

	key, err := s.exams.AnswerKey(ctx, in.ExamID)
	if err != nil {
		return nil, err
	}

	marks := in.Marks
	if len(in.Extraction) > 0 {
		marks, err = grading.DecodeSheetExtraction(in.Extraction)
		if err != nil {
			return nil, err
		}
	}

	sheet, err := grading.ScoreSheet(key, marks)
	if err != nil {
		return nil, err
	}

	res := ObjectiveResult{
		ID:             uuid.NewString(),
		ExamID:         in.ExamID,
		StudentID:      in.StudentID,
		SubmittedAt:    time.Now().UTC(),
		AnswerSheetURL: strings.TrimSpace(in.AnswerSheetURL),
		Score:          sheet.Score,
		Summary:        sheet.Summary,
		Details:        sheet.Details,
	}

	summaryJSON, err := json.Marshal(res.Summary)
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	detailsJSON, err := json.Marshal(res.Details)
	if err != nil {
		return nil, fmt.Errorf("encode details: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO objective_corrections (
			id, exam_id, student_id, submitted_at, answer_sheet_url,
			score, summary_json, details_json
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (exam_id, student_id) DO UPDATE SET
			submitted_at = EXCLUDED.submitted_at,
			answer_sheet_url = EXCLUDED.answer_sheet_url,
			score = EXCLUDED.score,
			summary_json = EXCLUDED.summary_json,
			details_json = EXCLUDED.details_json
	`, res.ID, res.ExamID, res.StudentID, res.SubmittedAt.Unix(), res.AnswerSheetURL,
		res.Score, string(summaryJSON), string(detailsJSON)); err != nil {
		return nil, fmt.Errorf("upsert objective correction: %w", err)
	}

	// Regrading keeps the original row id.
	return s.GetObjective(ctx, in.ExamID, in.StudentID)
}

func (s *Service) GradeEssay(ctx context.Context, in GradeEssayInput) (*EssayResult, error) {
	if in.ExamID == "" || in.StudentID == "" {
		return nil, ErrInvalidInput
	}
	if err := s.studentExists(ctx, in.StudentID); err != nil {
		return nil, err
	}
	if _, err := s.exams.Get(ctx, in.ExamID); err != nil {
		return nil, err
	}

	scores, err := grading.ScoreEssay(in.Levels, in.Situation)
	if err != nil {
		return nil, err
	}

	res := EssayResult{
		ID:            uuid.NewString(),
		ExamID:        in.ExamID,
		StudentID:     in.StudentID,
		TopicID:       strings.TrimSpace(in.TopicID),
		SubmittedAt:   time.Now().UTC(),
		EssayImageURL: strings.TrimSpace(in.EssayImageURL),
		Scores:        scores,
		Situation:     in.Situation,
		Observations:  strings.TrimSpace(in.Observations),
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO essay_corrections (
			id, exam_id, student_id, topic_id, submitted_at, essay_image_url,
			c1, c2, c3, c4, c5, final_score, situation, observations
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (exam_id, student_id) DO UPDATE SET
			topic_id = EXCLUDED.topic_id,
			submitted_at = EXCLUDED.submitted_at,
			essay_image_url = EXCLUDED.essay_image_url,
			c1 = EXCLUDED.c1,
			c2 = EXCLUDED.c2,
			c3 = EXCLUDED.c3,
			c4 = EXCLUDED.c4,
			c5 = EXCLUDED.c5,
			final_score = EXCLUDED.final_score,
			situation = EXCLUDED.situation,
			observations = EXCLUDED.observations
	`, res.ID, res.ExamID, res.StudentID, res.TopicID, res.SubmittedAt.Unix(), res.EssayImageURL,
		res.Scores.C1, res.Scores.C2, res.Scores.C3, res.Scores.C4, res.Scores.C5,
		res.Scores.Final, string(res.Situation), res.Observations); err != nil {
		return nil, fmt.Errorf("upsert essay correction: %w", err)
	}

	return s.GetEssay(ctx, in.ExamID, in.StudentID)
}

func (s *Service) GetObjective(ctx context.Context, examID, studentID string) (*ObjectiveResult, error) {
	row := s.db.QueryRowContext(ctx, objectiveSelect+` WHERE exam_id = $1 AND student_id = $2`, examID, studentID)
	return scanObjective(row.Scan)
}

func (s *Service) ObjectiveByExam(ctx context.Context, examID string) ([]ObjectiveResult, error) {
	rows, err := s.db.QueryContext(ctx, objectiveSelect+` WHERE exam_id = $1 ORDER BY submitted_at ASC, id ASC`, examID)
	if err != nil {
		return nil, fmt.Errorf("query objective corrections: %w", err)
	}
	defer rows.Close()
	return collectObjective(rows)
}

func (s *Service) ObjectiveByStudent(ctx context.Context, studentID string) ([]ObjectiveResult, error) {
	rows, err := s.db.QueryContext(ctx, objectiveSelect+` WHERE student_id = $1 ORDER BY submitted_at DESC, id ASC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query objective corrections: %w", err)
	}
	defer rows.Close()
	return collectObjective(rows)
}

func (s *Service) GetEssay(ctx context.Context, examID, studentID string) (*EssayResult, error) {
	row := s.db.QueryRowContext(ctx, essaySelect+` WHERE exam_id = $1 AND student_id = $2`, examID, studentID)
	return scanEssay(row.Scan)
}

func (s *Service) EssaysByExam(ctx context.Context, examID string) ([]EssayResult, error) {
	rows, err := s.db.QueryContext(ctx, essaySelect+` WHERE exam_id = $1 ORDER BY submitted_at ASC, id ASC`, examID)
	if err != nil {
		return nil, fmt.Errorf("query essay corrections: %w", err)
	}
	defer rows.Close()
	return collectEssays(rows)
}

func (s *Service) EssaysByStudent(ctx context.Context, studentID string) ([]EssayResult, error) {
	rows, err := s.db.QueryContext(ctx, essaySelect+` WHERE student_id = $1 ORDER BY submitted_at DESC, id ASC`, studentID)
	if err != nil {
		return nil, fmt.Errorf("query essay corrections: %w", err)
	}
	defer rows.Close()
	return collectEssays(rows)
}

// History is a pure projection over stored results; nothing is recomputed.
type History struct {
	Objective []ObjectiveResult `json:"objective"`
	Essays    []EssayResult     `json:"essays"`
}

func (s *Service) HistoryByStudent(ctx context.Context, studentID string) (*History, error) {
	if err := s.studentExists(ctx, studentID); err != nil {
		return nil, err
	}
	objective, err := s.ObjectiveByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	essays, err := s.EssaysByStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	return &History{Objective: objective, Essays: essays}, nil
}

func (s *Service) studentExists(ctx context.Context, studentID string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM students WHERE id = $1`, studentID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrStudentNotFound
	}
	if err != nil {
		return fmt.Errorf("check student: %w", err)
	}
	return nil
}

const objectiveSelect = `
	SELECT id, exam_id, student_id, submitted_at, answer_sheet_url,
		score, summary_json, details_json
	FROM objective_corrections
`

const essaySelect = `
	SELECT id, exam_id, student_id, topic_id, submitted_at, essay_image_url,
		c1, c2, c3, c4, c5, final_score, situation, observations
	FROM essay_corrections
`

func scanObjective(scan func(dest ...interface{}) error) (*ObjectiveResult, error) {
	var res ObjectiveResult
	var submitted int64
	var summaryJSON, detailsJSON string
	err := scan(&res.ID, &res.ExamID, &res.StudentID, &submitted, &res.AnswerSheetURL,
		&res.Score, &summaryJSON, &detailsJSON)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCorrectionNotFound
		}
		return nil, fmt.Errorf("scan objective correction: %w", err)
	}
	res.SubmittedAt = time.Unix(submitted, 0).UTC()
	if err := json.Unmarshal([]byte(summaryJSON), &res.Summary); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	if err := json.Unmarshal([]byte(detailsJSON), &res.Details); err != nil {
		return nil, fmt.Errorf("decode details: %w", err)
	}
	return &res, nil
}

func collectObjective(rows *sql.Rows) ([]ObjectiveResult, error) {
	out := make([]ObjectiveResult, 0)
	for rows.Next() {
		res, err := scanObjective(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate objective corrections: %w", err)
	}
	return out, nil
}

func scanEssay(scan func(dest ...interface{}) error) (*EssayResult, error) {
	var res EssayResult
	var submitted int64
	var situation string
	err := scan(&res.ID, &res.ExamID, &res.StudentID, &res.TopicID, &submitted, &res.EssayImageURL,
		&res.Scores.C1, &res.Scores.C2, &res.Scores.C3, &res.Scores.C4, &res.Scores.C5,
		&res.Scores.Final, &situation, &res.Observations)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCorrectionNotFound
		}
		return nil, fmt.Errorf("scan essay correction: %w", err)
	}
	res.SubmittedAt = time.Unix(submitted, 0).UTC()
	res.Situation = grading.Situation(situation)
	return &res, nil
}

func collectEssays(rows *sql.Rows) ([]EssayResult, error) {
	out := make([]EssayResult, 0)
	for rows.Next() {
		res, err := scanEssay(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate essay corrections: %w", err)
	}
	return out, nil
}
