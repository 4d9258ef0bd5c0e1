package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswerValue_JSON(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want AnswerValue
	}{
		{"text", `"Paris"`, TextAnswer("Paris")},
		{"selection", `["A","C"]`, SelectionAnswer("A", "C")},
		{"number literal", `42`, TextAnswer("42")},
		{"boolean literal", `true`, TextAnswer("true")},
		{"null", `null`, AnswerValue{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v AnswerValue
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &v))
			assert.Equal(t, tt.want, v)
		})
	}

	var v AnswerValue
	assert.Error(t, json.Unmarshal([]byte(`{"a":1}`), &v))
}

func TestAnswerSheet_SetNormalizesEmptyToAbsent(t *testing.T) {
	sheet := AnswerSheet{}

	sheet.Set("q1", TextAnswer("x"))
	sheet.Set("q1", TextAnswer("   "))
	_, ok := sheet.Get("q1")
	assert.False(t, ok)

	sheet.Set("q2", SelectionAnswer("", " ", "B"))
	v, ok := sheet.Get("q2")
	require.True(t, ok)
	assert.Equal(t, []string{"B"}, v.Selection)

	sheet.Set("q2", SelectionAnswer())
	_, ok = sheet.Get("q2")
	assert.False(t, ok)
}

func TestAnswerSheet_Blanks(t *testing.T) {
	q := &Question{ID: "q7", Type: QuestionFillInBlanks}
	other := &Question{ID: "q7x", Type: QuestionShortText}
	sheet := AnswerSheet{}

	assert.False(t, sheet.IsAnswered(q))
	sheet.Set(BlankKey("q7", 2), TextAnswer("c"))
	sheet.Set(BlankKey("q7", 0), TextAnswer("a"))
	sheet.Set("q7x", TextAnswer("keep"))

	assert.True(t, sheet.IsAnswered(q))
	assert.Equal(t, []string{"a", "", "c"}, sheet.Blanks("q7", 3))
	assert.Equal(t, 2, sheet.AnsweredCount([]*Question{q, other}))

	sheet.DeleteQuestion("q7")
	assert.False(t, sheet.IsAnswered(q))
	assert.True(t, sheet.IsAnswered(other))
	assert.Equal(t, []string{"q7x"}, sheet.Keys())
}

func TestAnswerSheet_BlankKeysNeedNumericSuffix(t *testing.T) {
	q := &Question{ID: "q1", Type: QuestionFillInBlanks}
	sheet := AnswerSheet{}
	sheet.Set("q1_extra", TextAnswer("other question"))
	sheet.Set("q1_", TextAnswer("no index"))

	assert.False(t, sheet.IsAnswered(q))
	assert.Equal(t, 0, sheet.AnsweredCount([]*Question{q}))

	sheet.Set(BlankKey("q1", 10), TextAnswer("x"))
	assert.True(t, sheet.IsAnswered(q))

	sheet.DeleteQuestion("q1")
	assert.Equal(t, []string{"q1_", "q1_extra"}, sheet.Keys())
}

func TestAnswerSheet_CloneIsIndependent(t *testing.T) {
	sheet := AnswerSheet{"q1": SelectionAnswer("A")}
	clone := sheet.Clone()
	clone["q1"].Selection[0] = "Z"
	assert.Equal(t, "A", sheet["q1"].Selection[0])
}

func TestDecodeAnswerSheet(t *testing.T) {
	sheet, skipped, err := DecodeAnswerSheet([]byte(`{"q1":"A","q2":["x","y"],"q3":{"bad":true},"q4":""}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"q3"}, skipped)
	assert.Equal(t, []string{"q1", "q2"}, sheet.Keys())

	sheet, skipped, err = DecodeAnswerSheet(nil)
	require.NoError(t, err)
	assert.Empty(t, sheet)
	assert.Empty(t, skipped)

	_, _, err = DecodeAnswerSheet([]byte(`not json`))
	assert.Error(t, err)
}

func TestAnswerSheet_RoundTripsThroughJSON(t *testing.T) {
	sheet := AnswerSheet{"q1": TextAnswer("A"), BlankKey("q2", 0): TextAnswer("sky"), "q3": SelectionAnswer("x", "y")}
	raw, err := json.Marshal(sheet)
	require.NoError(t, err)
	assert.JSONEq(t, `{"q1":"A","q2_0":"sky","q3":["x","y"]}`, string(raw))
}
