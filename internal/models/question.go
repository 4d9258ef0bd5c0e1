package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/SAP-F-2025/attempt-engine/internal/errors"
	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiSelect  QuestionType = "multi_select"
	QuestionBoolean      QuestionType = "boolean"
	QuestionShortText    QuestionType = "short_text"
	QuestionEssay        QuestionType = "essay"
	QuestionCoding       QuestionType = "coding"
	QuestionFileUpload   QuestionType = "file_upload"
	QuestionFillInBlanks QuestionType = "fill_in_blanks"
)

// QuestionTypes lists every supported kind in display order.
var QuestionTypes = []QuestionType{
	QuestionSingleChoice,
	QuestionMultiSelect,
	QuestionBoolean,
	QuestionShortText,
	QuestionEssay,
	QuestionCoding,
	QuestionFileUpload,
	QuestionFillInBlanks,
}

// BooleanOptions are used by boolean questions stored without options.
var BooleanOptions = []string{"True", "False"}

// RequiresOptions reports whether questions of this kind must carry options.
// Boolean questions fall back to BooleanOptions.
func (t QuestionType) RequiresOptions() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultiSelect:
		return true
	}
	return false
}

// ChoiceOptions returns the options a student picks from.
func (q *Question) ChoiceOptions() []string {
	if q.Type == QuestionBoolean && len(q.Options) == 0 {
		return append([]string(nil), BooleanOptions...)
	}
	return q.Options
}

// Question is immutable for the lifetime of a session.
type Question struct {
	ID              string                      `json:"id" gorm:"primaryKey;size:64"`
	AssessmentID    string                      `json:"assessment_id" gorm:"not null;size:64;index"`
	Type            QuestionType                `json:"type" gorm:"not null;size:32" validate:"required,question_type"`
	Prompt          string                      `json:"prompt" gorm:"type:text;not null" validate:"required"`
	Options         datatypes.JSONSlice[string] `json:"options,omitempty" gorm:"type:jsonb"`
	CanonicalAnswer datatypes.JSON              `json:"canonical_answer,omitempty" gorm:"type:jsonb"`
	Points          int                         `json:"points" gorm:"not null" validate:"required,min=1"`
	Order           int                         `json:"order" gorm:"column:question_order;default:0"`
	Extras          datatypes.JSON              `json:"extras,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Question) TableName() string {
	return "questions"
}

// QuestionExtras holds the kind-specific fields stored in the extras column.
type QuestionExtras struct {
	CodeLanguage      string     `json:"code_language,omitempty"`
	CodeTemplate      string     `json:"code_template,omitempty"`
	TestCases         []TestCase `json:"test_cases,omitempty"`
	AllowedExtensions []string   `json:"allowed_extensions,omitempty"`
	MaxFileSize       int64      `json:"max_file_size,omitempty"` // bytes
	BlankCount        int        `json:"blank_count,omitempty"`
}

type TestCase struct {
	Input          string `json:"input"`
	ExpectedOutput string `json:"expected_output"`
	Hidden         bool   `json:"hidden,omitempty"`
}

// QuestionBody is the closed set of per-kind question payloads. Only the
// variants declared in this file implement it.
type QuestionBody interface {
	questionBody()
}

// ChoiceBody covers single_choice and boolean questions.
type ChoiceBody struct {
	Options   []string
	Canonical json.RawMessage
}

type MultiSelectBody struct {
	Options   []string
	Canonical json.RawMessage
}

type ShortTextBody struct {
	Canonical string
}

type FillBlanksBody struct {
	BlankCount int
	Canonical  []string
}

type EssayBody struct{}

type CodingBody struct {
	Language  string
	Template  string
	TestCases []TestCase
}

type FileUploadBody struct {
	AllowedExtensions []string
	MaxFileSize       int64
}

func (ChoiceBody) questionBody()      {}
func (MultiSelectBody) questionBody() {}
func (ShortTextBody) questionBody()   {}
func (FillBlanksBody) questionBody()  {}
func (EssayBody) questionBody()       {}
func (CodingBody) questionBody()      {}
func (FileUploadBody) questionBody()  {}

// Body decodes the stored columns into the variant matching q.Type.
func (q *Question) Body() (QuestionBody, error) {
	extras, err := q.DecodeExtras()
	if err != nil {
		return nil, err
	}

	switch q.Type {
	case QuestionSingleChoice, QuestionBoolean:
		return ChoiceBody{Options: q.ChoiceOptions(), Canonical: json.RawMessage(q.CanonicalAnswer)}, nil
	case QuestionMultiSelect:
		return MultiSelectBody{Options: q.Options, Canonical: json.RawMessage(q.CanonicalAnswer)}, nil
	case QuestionShortText:
		return ShortTextBody{Canonical: canonicalText(q.CanonicalAnswer)}, nil
	case QuestionFillInBlanks:
		blanks, err := canonicalList(q.CanonicalAnswer)
		if err != nil {
			return nil, fmt.Errorf("question %s: decode blanks: %w", q.ID, err)
		}
		count := extras.BlankCount
		if count == 0 {
			count = len(blanks)
		}
		return FillBlanksBody{BlankCount: count, Canonical: blanks}, nil
	case QuestionEssay:
		return EssayBody{}, nil
	case QuestionCoding:
		return CodingBody{Language: extras.CodeLanguage, Template: extras.CodeTemplate, TestCases: extras.TestCases}, nil
	case QuestionFileUpload:
		return FileUploadBody{AllowedExtensions: extras.AllowedExtensions, MaxFileSize: extras.MaxFileSize}, nil
	}
	return nil, fmt.Errorf("question %s: unknown question type %q", q.ID, q.Type)
}

func (q *Question) DecodeExtras() (QuestionExtras, error) {
	var extras QuestionExtras
	if len(bytes.TrimSpace(q.Extras)) == 0 || string(q.Extras) == "null" {
		return extras, nil
	}
	if err := json.Unmarshal(q.Extras, &extras); err != nil {
		return extras, fmt.Errorf("question %s: decode extras: %w", q.ID, err)
	}
	return extras, nil
}

// CheckInvariants validates the rules struct tags cannot express.
func (q *Question) CheckInvariants() error {
	var errs apperrors.ValidationErrors
	if q.Points <= 0 {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("points", "must be greater than zero", "points_range", q.Points))
	}
	if q.Type.RequiresOptions() && len(q.Options) == 0 {
		errs = append(errs, *apperrors.NewValidationErrorWithRule("options", "is required for "+string(q.Type), "required", nil))
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// QuestionView is what a student sees: no canonical answer.
type QuestionView struct {
	ID                string       `json:"id"`
	Type              QuestionType `json:"type"`
	Prompt            string       `json:"prompt"`
	Options           []string     `json:"options,omitempty"`
	Points            int          `json:"points"`
	CodeLanguage      string       `json:"code_language,omitempty"`
	CodeTemplate      string       `json:"code_template,omitempty"`
	AllowedExtensions []string     `json:"allowed_extensions,omitempty"`
	MaxFileSize       int64        `json:"max_file_size,omitempty"`
	BlankCount        int          `json:"blank_count,omitempty"`
}

func (q *Question) View() QuestionView {
	view := QuestionView{
		ID:      q.ID,
		Type:    q.Type,
		Prompt:  q.Prompt,
		Options: q.ChoiceOptions(),
		Points:  q.Points,
	}
	body, err := q.Body()
	if err != nil {
		return view
	}
	switch b := body.(type) {
	case CodingBody:
		view.CodeLanguage = b.Language
		view.CodeTemplate = b.Template
	case FileUploadBody:
		view.AllowedExtensions = b.AllowedExtensions
		view.MaxFileSize = b.MaxFileSize
	case FillBlanksBody:
		view.BlankCount = b.BlankCount
	}
	return view
}

func canonicalText(raw datatypes.JSON) string {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err == nil {
		return s
	}
	return string(trimmed)
}

func canonicalList(raw datatypes.JSON) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var items []any
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, err
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, strings.TrimSpace(fmt.Sprint(item)))
		}
		return out, nil
	}
	return []string{strings.TrimSpace(canonicalText(raw))}, nil
}
