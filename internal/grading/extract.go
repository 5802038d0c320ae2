package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMalformedExtraction = errors.New("malformed extraction payload")

type extractionPayload struct {
	Answers []extractionAnswer `json:"answers"`
}

type extractionAnswer struct {
	Question int    `json:"question"`
	Mark     string `json:"mark"`
}

// DecodeSheetExtraction parses the output of the answer-extraction oracle
// (the vision model, or the manual grading UI posting the same shape) into
// a mark map. The decode is strict: unknown fields, duplicate or
// non-positive question numbers and out-of-domain marks are rejected here,
// before the scorer ever runs.
func DecodeSheetExtraction(raw []byte) (map[int]Mark, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedExtraction)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var payload extractionPayload
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedExtraction, err)
	}
	if payload.Answers == nil {
		return nil, fmt.Errorf("%w: missing answers", ErrMalformedExtraction)
	}

	out := make(map[int]Mark, len(payload.Answers))
	for _, a := range payload.Answers {
		if a.Question < 1 {
			return nil, fmt.Errorf("%w: question %d", ErrMalformedExtraction, a.Question)
		}
		if _, dup := out[a.Question]; dup {
			return nil, fmt.Errorf("%w: duplicate question %d", ErrMalformedExtraction, a.Question)
		}
		mark, err := NormalizeMark(a.Mark)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", a.Question, err)
		}
		out[a.Question] = mark
	}
	return out, nil
}
