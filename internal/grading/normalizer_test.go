package grading

import (
	"testing"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func newQuestion(id string, qt models.QuestionType, canonical string, options ...string) *models.Question {
	return &models.Question{
		ID:              id,
		Type:            qt,
		Prompt:          "prompt " + id,
		Options:         options,
		CanonicalAnswer: datatypes.JSON(canonical),
		Points:          1,
	}
}

func TestEvaluate_SingleChoiceIndexOrText(t *testing.T) {
	options := []string{"Paris", "Rome", "Madrid"}
	encodings := map[string]string{
		"numeric index":        `1`,
		"numeric string index": `"1"`,
		"literal text":         `"Rome"`,
		"literal text cased":   `" rome "`,
		"single element array": `[1]`,
	}

	for name, canonical := range encodings {
		t.Run(name, func(t *testing.T) {
			q := newQuestion("q1", models.QuestionSingleChoice, canonical, options...)

			correct := models.AnswerSheet{}
			correct.Set("q1", models.TextAnswer("Rome"))
			eval, err := Evaluate(q, correct)
			require.NoError(t, err)
			assert.Equal(t, OutcomeCorrect, eval.Outcome)

			wrong := models.AnswerSheet{}
			wrong.Set("q1", models.TextAnswer("Paris"))
			eval, err = Evaluate(q, wrong)
			require.NoError(t, err)
			assert.Equal(t, OutcomeIncorrect, eval.Outcome)
		})
	}
}

func TestEvaluate_SingleChoiceIsCaseInsensitive(t *testing.T) {
	q := newQuestion("q1", models.QuestionSingleChoice, `0`, "Use Effect", "Use State")
	answers := models.AnswerSheet{}
	answers.Set("q1", models.TextAnswer("  use effect "))

	eval, err := Evaluate(q, answers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, eval.Outcome)
	assert.True(t, eval.Answered)
}

func TestEvaluate_SingleChoiceOutOfRange(t *testing.T) {
	q := newQuestion("q1", models.QuestionSingleChoice, `7`, "A", "B")
	answers := models.AnswerSheet{}
	answers.Set("q1", models.TextAnswer("A"))

	eval, err := Evaluate(q, answers)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	assert.Equal(t, OutcomeIncorrect, eval.Outcome)
}

func TestEvaluate_Boolean(t *testing.T) {
	tests := []struct {
		name      string
		canonical string
		answer    string
		want      Outcome
	}{
		{"json literal", `true`, "True", OutcomeCorrect},
		{"index", `1`, "False", OutcomeCorrect},
		{"text", `"False"`, "True", OutcomeIncorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newQuestion("b", models.QuestionBoolean, tt.canonical, "True", "False")
			answers := models.AnswerSheet{}
			answers.Set("b", models.TextAnswer(tt.answer))

			eval, err := Evaluate(q, answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, eval.Outcome)
		})
	}
}

func TestEvaluate_BooleanWithoutOptions(t *testing.T) {
	q := newQuestion("b", models.QuestionBoolean, `0`)

	answers := models.AnswerSheet{}
	answers.Set("b", models.TextAnswer("True"))
	eval, err := Evaluate(q, answers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, eval.Outcome)

	answers.Set("b", models.TextAnswer("False"))
	eval, err = Evaluate(q, answers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, eval.Outcome)
}

func TestEvaluate_MultiSelectExactSet(t *testing.T) {
	options := []string{"red", "green", "blue", "yellow"}
	encodings := []string{`"0,2"`, `[0, 2]`, `["red", "blue"]`, `["0", "blue"]`}

	for _, canonical := range encodings {
		t.Run(canonical, func(t *testing.T) {
			q := newQuestion("m", models.QuestionMultiSelect, canonical, options...)

			tests := []struct {
				name     string
				selected []string
				want     Outcome
			}{
				{"exact", []string{"blue", "red"}, OutcomeCorrect},
				{"exact different case", []string{"Red", "BLUE"}, OutcomeCorrect},
				{"subset", []string{"red"}, OutcomeIncorrect},
				{"superset", []string{"red", "blue", "green"}, OutcomeIncorrect},
				{"disjoint", []string{"green", "yellow"}, OutcomeIncorrect},
			}
			for _, tt := range tests {
				answers := models.AnswerSheet{}
				answers.Set("m", models.SelectionAnswer(tt.selected...))

				eval, err := Evaluate(q, answers)
				require.NoError(t, err)
				assert.Equal(t, tt.want, eval.Outcome, tt.name)
			}
		})
	}
}

func TestMatchShortText(t *testing.T) {
	canonical := "when the effect runs"
	tests := []struct {
		answer string
		want   bool
	}{
		{"when the effect executes", true},
		{"yesterday", false},
		{"When The Effect Runs", true},
		{"it is when the effect runs, after render", true}, // containment
		{"the effect happens later", true},                 // exactly half the words
		{"effect is not here", false},                      // a quarter of the words
		{"", false},
		{"   ", false},
	}
	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			assert.Equal(t, tt.want, MatchShortText(canonical, tt.answer))
		})
	}
}

func TestEvaluate_ShortText(t *testing.T) {
	q := newQuestion("s", models.QuestionShortText, `"when the effect runs"`)

	answers := models.AnswerSheet{}
	answers.Set("s", models.TextAnswer("when the effect executes"))
	eval, err := Evaluate(q, answers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCorrect, eval.Outcome)

	answers.Set("s", models.TextAnswer("yesterday"))
	eval, err = Evaluate(q, answers)
	require.NoError(t, err)
	assert.Equal(t, OutcomeIncorrect, eval.Outcome)
}

func TestEvaluate_FillInBlanks(t *testing.T) {
	q := newQuestion("f", models.QuestionFillInBlanks, `["useState", "useEffect"]`)
	q.Extras = datatypes.JSON(`{"blank_count": 2}`)

	tests := []struct {
		name   string
		blanks []string
		want   Outcome
	}{
		{"in order", []string{"useState", "useEffect"}, OutcomeCorrect},
		{"swapped order", []string{"useeffect", "USESTATE"}, OutcomeCorrect},
		{"one missing", []string{"useState", ""}, OutcomeIncorrect},
		{"wrong entry", []string{"useState", "useMemo"}, OutcomeIncorrect},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			answers := models.AnswerSheet{}
			for i, b := range tt.blanks {
				answers.Set(models.BlankKey("f", i), models.TextAnswer(b))
			}
			eval, err := Evaluate(q, answers)
			require.NoError(t, err)
			assert.Equal(t, tt.want, eval.Outcome)
		})
	}

	t.Run("unanswered", func(t *testing.T) {
		eval, err := Evaluate(q, models.AnswerSheet{})
		require.NoError(t, err)
		assert.Equal(t, OutcomeIncorrect, eval.Outcome)
		assert.False(t, eval.Answered)
	})
}

func TestMatchBlanks_RequiresExactCardinality(t *testing.T) {
	assert.False(t, MatchBlanks([]string{"a"}, []string{"a", "b"}))
	assert.False(t, MatchBlanks(nil, nil))
	assert.True(t, MatchBlanks([]string{"a", "b"}, []string{"B", "a"}))
}

func TestEvaluate_UngradedKinds(t *testing.T) {
	for _, qt := range []models.QuestionType{models.QuestionEssay, models.QuestionCoding, models.QuestionFileUpload} {
		t.Run(string(qt), func(t *testing.T) {
			q := newQuestion("u", qt, ``)
			answers := models.AnswerSheet{}
			answers.Set("u", models.TextAnswer("anything at all"))

			eval, err := Evaluate(q, answers)
			require.NoError(t, err)
			assert.Equal(t, OutcomeUngraded, eval.Outcome)
			assert.True(t, eval.Answered)
		})
	}
}

func TestEvaluate_UnknownType(t *testing.T) {
	q := newQuestion("x", models.QuestionType("matching"), `0`)
	_, err := Evaluate(q, models.AnswerSheet{})
	assert.Error(t, err)
}
