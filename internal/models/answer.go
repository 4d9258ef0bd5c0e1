package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// AnswerValue is a single raw answer: free text (choice text, short text,
// essay, code, file reference) or a selection of option texts.
type AnswerValue struct {
	Text      string
	Selection []string
}

func TextAnswer(text string) AnswerValue {
	return AnswerValue{Text: text}
}

func SelectionAnswer(items ...string) AnswerValue {
	return AnswerValue{Selection: items}
}

func (v AnswerValue) IsSelection() bool {
	return v.Selection != nil
}

// IsEmpty reports whether the value would be indistinguishable from no answer.
func (v AnswerValue) IsEmpty() bool {
	if v.IsSelection() {
		for _, item := range v.Selection {
			if strings.TrimSpace(item) != "" {
				return false
			}
		}
		return true
	}
	return strings.TrimSpace(v.Text) == ""
}

func (v AnswerValue) MarshalJSON() ([]byte, error) {
	if v.IsSelection() {
		return json.Marshal(v.Selection)
	}
	return json.Marshal(v.Text)
}

func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*v = AnswerValue{}
		return nil
	}

	switch trimmed[0] {
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = AnswerValue{Text: s}
	case '[':
		var items []string
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return fmt.Errorf("answer selection: %w", err)
		}
		*v = AnswerValue{Selection: items}
	case '{':
		return fmt.Errorf("answer value: unexpected object")
	default:
		// numbers and booleans are kept in their literal form
		*v = AnswerValue{Text: string(trimmed)}
	}
	return nil
}

// AnswerSheet maps question ids to answers. Fill-in-blanks questions keep one
// entry per blank under BlankKey(questionID, index). A missing key means the
// question is unanswered; empty values are never stored.
type AnswerSheet map[string]AnswerValue

func BlankKey(questionID string, index int) string {
	return questionID + "_" + strconv.Itoa(index)
}

// Set stores value under key, or removes the key when value is empty.
func (s AnswerSheet) Set(key string, value AnswerValue) {
	if value.IsSelection() {
		cleaned := make([]string, 0, len(value.Selection))
		for _, item := range value.Selection {
			if strings.TrimSpace(item) != "" {
				cleaned = append(cleaned, item)
			}
		}
		value.Selection = cleaned
	}
	if value.IsEmpty() {
		delete(s, key)
		return
	}
	s[key] = value
}

func (s AnswerSheet) Get(key string) (AnswerValue, bool) {
	v, ok := s[key]
	return v, ok
}

func (s AnswerSheet) Delete(key string) {
	delete(s, key)
}

// isBlankKey reports whether key is BlankKey(questionID, n) for some n >= 0.
func isBlankKey(key, questionID string) bool {
	suffix, ok := strings.CutPrefix(key, questionID+"_")
	if !ok || suffix == "" {
		return false
	}
	for _, r := range suffix {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// DeleteQuestion removes the answer for questionID, including blank sub-keys.
func (s AnswerSheet) DeleteQuestion(questionID string) {
	delete(s, questionID)
	for key := range s {
		if isBlankKey(key, questionID) {
			delete(s, key)
		}
	}
}

// Blanks returns the per-blank answers for a fill-in-blanks question in blank
// order. Unanswered blanks are returned as empty strings.
func (s AnswerSheet) Blanks(questionID string, count int) []string {
	blanks := make([]string, count)
	for i := 0; i < count; i++ {
		if v, ok := s[BlankKey(questionID, i)]; ok {
			blanks[i] = v.Text
		}
	}
	return blanks
}

// IsAnswered reports whether q has any stored answer.
func (s AnswerSheet) IsAnswered(q *Question) bool {
	if q.Type != QuestionFillInBlanks {
		_, ok := s[q.ID]
		return ok
	}
	for key := range s {
		if isBlankKey(key, q.ID) {
			return true
		}
	}
	return false
}

func (s AnswerSheet) AnsweredCount(questions []*Question) int {
	count := 0
	for _, q := range questions {
		if s.IsAnswered(q) {
			count++
		}
	}
	return count
}

func (s AnswerSheet) Clone() AnswerSheet {
	out := make(AnswerSheet, len(s))
	for k, v := range s {
		if v.Selection != nil {
			v.Selection = append([]string(nil), v.Selection...)
		}
		out[k] = v
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s AnswerSheet) Keys() []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DecodeAnswerSheet parses a persisted answer map. Entries that cannot be
// decoded are dropped and their keys returned so the caller can log them.
func DecodeAnswerSheet(data []byte) (AnswerSheet, []string, error) {
	sheet := make(AnswerSheet)
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return sheet, nil, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return sheet, nil, fmt.Errorf("decode answer sheet: %w", err)
	}

	var skipped []string
	for key, entry := range raw {
		var v AnswerValue
		if err := json.Unmarshal(entry, &v); err != nil {
			skipped = append(skipped, key)
			continue
		}
		sheet.Set(key, v)
	}
	sort.Strings(skipped)
	return sheet, skipped, nil
}
