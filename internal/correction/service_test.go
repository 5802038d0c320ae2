package correction

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	internaldb "simuladohub/internal/db"
	"simuladohub/internal/exam"
	"simuladohub/internal/grading"
)

type fixture struct {
	conn      *sql.DB
	svc       *Service
	exams     *exam.Service
	examID    string
	studentID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s_%d?mode=memory&cache=shared",
		strings.ReplaceAll(t.Name(), "/", "_"), time.Now().UnixNano())
	conn, err := internaldb.Open(ctx, internaldb.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	exams := exam.NewService(conn)
	e, err := exams.Create(ctx, exam.CreateExamInput{
		Name: "Simulado 1",
		AnswerKey: []grading.AnswerKeyItem{
			{Question: 1, Answer: "A", Area: grading.AreaLinguagens},
			{Question: 2, Answer: "B", Area: grading.AreaHumanas},
			{Question: 3, Answer: "C", Area: grading.AreaMatematica},
		},
	})
	if err != nil {
		t.Fatalf("create exam: %v", err)
	}

	f := &fixture{
		conn:      conn,
		svc:       NewService(conn, exams),
		exams:     exams,
		examID:    e.ID,
		studentID: "st-1",
	}
	f.seedStudent(t, f.studentID, "Aluno Um")
	return f
}

func (f *fixture) seedStudent(t *testing.T, id, name string) {
	t.Helper()
	now := time.Now().Unix()
	if _, err := f.conn.ExecContext(context.Background(), `
		INSERT INTO students (id, name, cpf, login, access_code_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, '', $5, $5)
	`, id, name, id, id, now); err != nil {
		t.Fatalf("seed student %s: %v", id, err)
	}
}

func TestGradeObjectiveFromMarks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Marks: map[int]grading.Mark{
			1: "A",
			2: "E",
			// question 3 unmarked, counted as blank
		},
		AnswerSheetURL: " https://sheets.example/st-1.png ",
	})
	if err != nil {
		t.Fatalf("grade objective: %v", err)
	}

	if res.Score != 1 {
		t.Fatalf("expected score 1, got %d", res.Score)
	}
	want := grading.Summary{Correct: 1, Incorrect: 1, Blank: 1, Multiple: 0}
	if res.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, res.Summary)
	}
	if len(res.Details) != 3 {
		t.Fatalf("expected 3 details, got %d", len(res.Details))
	}
	if res.Details[2].Status != grading.StatusBlank {
		t.Fatalf("unmarked question should be blank, got %s", res.Details[2].Status)
	}
	if res.AnswerSheetURL != "https://sheets.example/st-1.png" {
		t.Fatalf("sheet url not trimmed: %q", res.AnswerSheetURL)
	}

	stored, err := f.svc.GetObjective(ctx, f.examID, f.studentID)
	if err != nil {
		t.Fatalf("get objective: %v", err)
	}
	if stored.Score != res.Score || stored.Summary != res.Summary {
		t.Fatalf("persisted result differs: %+v vs %+v", stored, res)
	}
}

func TestGradeObjectiveRegradeKeepsRowID(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Marks:     map[int]grading.Mark{1: "A"},
	})
	if err != nil {
		t.Fatalf("first grade: %v", err)
	}

	second, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Marks:     map[int]grading.Mark{1: "A", 2: "B", 3: "C"},
	})
	if err != nil {
		t.Fatalf("regrade: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("regrade must keep row id: %s vs %s", second.ID, first.ID)
	}
	if second.Score != 3 {
		t.Fatalf("expected regraded score 3, got %d", second.Score)
	}

	var count int
	if err := f.conn.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM objective_corrections WHERE exam_id = $1 AND student_id = $2
	`, f.examID, f.studentID).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected a single row per (exam, student), got %d", count)
	}
}

func TestGradeObjectiveFromExtraction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	raw := json.RawMessage(`{"answers":[
		{"question":1,"mark":"a"},
		{"question":2,"mark":"multiple"},
		{"question":3,"mark":""}
	]}`)

	res, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
		ExamID:     f.examID,
		StudentID:  f.studentID,
		Marks:      map[int]grading.Mark{1: "E"}, // ignored: extraction wins
		Extraction: raw,
	})
	if err != nil {
		t.Fatalf("grade from extraction: %v", err)
	}
	want := grading.Summary{Correct: 1, Incorrect: 0, Blank: 1, Multiple: 1}
	if res.Summary != want {
		t.Fatalf("expected summary %+v, got %+v", want, res.Summary)
	}
}

func TestGradeObjectiveRejectsMalformedExtraction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	cases := []struct {
		name string
		raw  string
	}{
		{"unknown field", `{"answers":[{"question":1,"mark":"A","extra":true}]}`},
		{"invalid mark", `{"answers":[{"question":1,"mark":"F"}]}`},
		{"duplicate question", `{"answers":[{"question":1,"mark":"A"},{"question":1,"mark":"B"}]}`},
		{"not json", `answers: 1A`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
				ExamID:     f.examID,
				StudentID:  f.studentID,
				Extraction: json.RawMessage(tc.raw),
			})
			if err == nil {
				t.Fatalf("expected error for %s", tc.name)
			}
			var count int
			if err := f.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM objective_corrections`).Scan(&count); err != nil {
				t.Fatalf("count rows: %v", err)
			}
			if count != 0 {
				t.Fatalf("nothing may persist when scoring fails, found %d rows", count)
			}
		})
	}
}

func TestGradeObjectiveUnknownRefs(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{ExamID: f.examID, StudentID: "missing"})
	if !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}

	_, err = f.svc.GradeObjective(ctx, GradeObjectiveInput{ExamID: "missing", StudentID: f.studentID})
	if !errors.Is(err, exam.ErrExamNotFound) {
		t.Fatalf("expected ErrExamNotFound, got %v", err)
	}
}

func TestGradeEssay(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.GradeEssay(ctx, GradeEssayInput{
		ExamID:       f.examID,
		StudentID:    f.studentID,
		TopicID:      "topic-1",
		Levels:       grading.Levels{C1: 3, C2: 2, C3: 5, C4: 1, C5: 4},
		Observations: " Boa argumentação ",
	})
	if err != nil {
		t.Fatalf("grade essay: %v", err)
	}
	want := grading.EssayScores{C1: 120, C2: 80, C3: 200, C4: 40, C5: 160, Final: 600}
	if res.Scores != want {
		t.Fatalf("expected scores %+v, got %+v", want, res.Scores)
	}
	if res.Observations != "Boa argumentação" {
		t.Fatalf("observations not trimmed: %q", res.Observations)
	}

	stored, err := f.svc.GetEssay(ctx, f.examID, f.studentID)
	if err != nil {
		t.Fatalf("get essay: %v", err)
	}
	if stored.Scores != want || stored.Situation != "" || stored.TopicID != "topic-1" {
		t.Fatalf("persisted essay differs: %+v", stored)
	}
}

func TestGradeEssaySituationNullifies(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.svc.GradeEssay(ctx, GradeEssayInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Levels:    grading.Levels{C1: 5, C2: 5, C3: 5, C4: 5, C5: 5},
		Situation: grading.SituationFugaAoTema,
	})
	if err != nil {
		t.Fatalf("grade essay: %v", err)
	}
	if res.Scores != (grading.EssayScores{}) {
		t.Fatalf("situation must zero every score, got %+v", res.Scores)
	}
	if res.Situation != grading.SituationFugaAoTema {
		t.Fatalf("situation not persisted: %q", res.Situation)
	}
}

func TestGradeEssayRejectsOutOfRangeLevel(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.svc.GradeEssay(ctx, GradeEssayInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Levels:    grading.Levels{C1: 6},
	})
	if !errors.Is(err, grading.ErrInvalidCompetencyLevel) {
		t.Fatalf("expected ErrInvalidCompetencyLevel, got %v", err)
	}

	var count int
	if err := f.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM essay_corrections`).Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 0 {
		t.Fatalf("nothing may persist when scoring fails, found %d rows", count)
	}
}

func TestHistoryByStudent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.GradeObjective(ctx, GradeObjectiveInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Marks:     map[int]grading.Mark{1: "A"},
	}); err != nil {
		t.Fatalf("grade objective: %v", err)
	}
	if _, err := f.svc.GradeEssay(ctx, GradeEssayInput{
		ExamID:    f.examID,
		StudentID: f.studentID,
		Levels:    grading.Levels{C1: 1, C2: 1, C3: 1, C4: 1, C5: 1},
	}); err != nil {
		t.Fatalf("grade essay: %v", err)
	}

	hist, err := f.svc.HistoryByStudent(ctx, f.studentID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist.Objective) != 1 || len(hist.Essays) != 1 {
		t.Fatalf("expected 1 objective and 1 essay result, got %d/%d", len(hist.Objective), len(hist.Essays))
	}

	if _, err := f.svc.HistoryByStudent(ctx, "missing"); !errors.Is(err, ErrStudentNotFound) {
		t.Fatalf("expected ErrStudentNotFound, got %v", err)
	}
}
