package report

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"
)

// ExportExamExcel builds a spreadsheet of one exam's results: a ranked row
// per student with summary buckets, plus the essay score when present.
func (s *Service) ExportExamExcel(ctx context.Context, examID string) ([]byte, error) {
	summary, err := s.ExamSummary(ctx, examID)
	if err != nil {
		return nil, err
	}
	ranking, err := s.Ranking(ctx, examID)
	if err != nil {
		return nil, err
	}
	results, err := s.corrections.ObjectiveByExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	essays, err := s.corrections.EssaysByExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	byStudent := make(map[string]int, len(results))
	for i, res := range results {
		byStudent[res.StudentID] = i
	}
	essayFinal := make(map[string]int, len(essays))
	for _, res := range essays {
		essayFinal[res.StudentID] = res.Scores.Final
	}

	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	headers := []string{"position", "student", "score", "correct", "incorrect", "blank", "multiple", "essay_score", "submitted_at"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range ranking {
		res := results[byStudent[row.StudentID]]
		essay := ""
		if v, ok := essayFinal[row.StudentID]; ok {
			essay = fmt.Sprintf("%d", v)
		}
		values := []any{
			row.Position,
			row.StudentName,
			row.Score,
			res.Summary.Correct,
			res.Summary.Incorrect,
			res.Summary.Blank,
			res.Summary.Multiple,
			essay,
			res.SubmittedAt.Format("2006-01-02 15:04:05"),
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, i+2)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	_ = f.SetSheetName(sheet, sanitizeSheetName(summary.ExamName))

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// Excel sheet names cap at 31 chars and reject a handful of characters.
func sanitizeSheetName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			out = append(out, ' ')
		default:
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return "Resultados"
	}
	if len(out) > 31 {
		out = out[:31]
	}
	return string(out)
}
