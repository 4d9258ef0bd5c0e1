package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/SAP-F-2025/attempt-engine/internal/models"
)

var (
	ErrNoCanonicalAnswer = errors.New("question has no canonical answer")
	ErrIndexOutOfRange   = errors.New("canonical answer index out of range")
)

// Outcome is the automatic verdict for one question.
type Outcome int

const (
	OutcomeIncorrect Outcome = iota
	OutcomeCorrect
	// OutcomeUngraded marks kinds that need a human reviewer.
	OutcomeUngraded
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCorrect:
		return "correct"
	case OutcomeUngraded:
		return "ungraded"
	default:
		return "incorrect"
	}
}

type Evaluation struct {
	Outcome  Outcome
	Answered bool
}

// Evaluate compares the stored answer for q with its canonical answer.
// An error means the question itself is malformed; callers treat it as
// incorrect.
func Evaluate(q *models.Question, answers models.AnswerSheet) (Evaluation, error) {
	body, err := q.Body()
	if err != nil {
		return Evaluation{}, err
	}
	answered := answers.IsAnswered(q)

	switch b := body.(type) {
	case models.ChoiceBody:
		value, ok := answers.Get(q.ID)
		if !ok {
			return Evaluation{Outcome: OutcomeIncorrect}, nil
		}
		canonical, err := ResolveChoice(b.Options, b.Canonical)
		if err != nil {
			return Evaluation{Answered: answered}, fmt.Errorf("question %s: %w", q.ID, err)
		}
		return verdict(MatchChoice(canonical, firstText(value)), answered), nil

	case models.MultiSelectBody:
		value, ok := answers.Get(q.ID)
		if !ok {
			return Evaluation{Outcome: OutcomeIncorrect}, nil
		}
		canonical, err := ResolveSelection(b.Options, b.Canonical)
		if err != nil {
			return Evaluation{Answered: answered}, fmt.Errorf("question %s: %w", q.ID, err)
		}
		return verdict(MatchSelection(canonical, selectionOf(value)), answered), nil

	case models.ShortTextBody:
		value, ok := answers.Get(q.ID)
		if !ok {
			return Evaluation{Outcome: OutcomeIncorrect}, nil
		}
		return verdict(MatchShortText(b.Canonical, firstText(value)), answered), nil

	case models.FillBlanksBody:
		if !answered {
			return Evaluation{Outcome: OutcomeIncorrect}, nil
		}
		var blanks []string
		if value, ok := answers.Get(q.ID); ok && value.IsSelection() {
			blanks = value.Selection
		} else {
			blanks = answers.Blanks(q.ID, b.BlankCount)
		}
		return verdict(MatchBlanks(b.Canonical, blanks), answered), nil

	case models.EssayBody, models.CodingBody, models.FileUploadBody:
		return Evaluation{Outcome: OutcomeUngraded, Answered: answered}, nil
	}

	return Evaluation{}, fmt.Errorf("question %s: no comparator for %T", q.ID, body)
}

func verdict(correct bool, answered bool) Evaluation {
	if correct {
		return Evaluation{Outcome: OutcomeCorrect, Answered: answered}
	}
	return Evaluation{Outcome: OutcomeIncorrect, Answered: answered}
}

// ResolveChoice turns a canonical single-choice encoding into option text.
// Numbers are indices into options; strings are option text unless they only
// make sense as an index.
func ResolveChoice(options []string, raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", ErrNoCanonicalAnswer
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		// stored as bare text
		return resolveToken(options, string(trimmed))
	}

	switch v := decoded.(type) {
	case float64:
		return optionAt(options, v)
	case bool:
		return strconv.FormatBool(v), nil
	case string:
		return resolveToken(options, v)
	case []any:
		if len(v) != 1 {
			return "", fmt.Errorf("single choice canonical answer has %d entries", len(v))
		}
		item, _ := json.Marshal(v[0])
		return ResolveChoice(options, item)
	}
	return "", fmt.Errorf("unsupported canonical answer %s", trimmed)
}

// ResolveSelection turns a multi-select canonical encoding (an array of
// indices or texts, or a comma separated index list) into option texts.
func ResolveSelection(options []string, raw json.RawMessage) ([]string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, ErrNoCanonicalAnswer
	}

	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		decoded = string(trimmed)
	}

	switch v := decoded.(type) {
	case float64:
		text, err := optionAt(options, v)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	case string:
		if matchOption(options, v) >= 0 {
			return []string{strings.TrimSpace(v)}, nil
		}
		var out []string
		for _, token := range strings.Split(v, ",") {
			if strings.TrimSpace(token) == "" {
				continue
			}
			text, err := resolveToken(options, token)
			if err != nil {
				return nil, err
			}
			out = append(out, text)
		}
		return out, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			var text string
			var err error
			switch it := item.(type) {
			case float64:
				text, err = optionAt(options, it)
			case string:
				text, err = resolveToken(options, it)
			default:
				err = fmt.Errorf("unsupported selection entry %v", it)
			}
			if err != nil {
				return nil, err
			}
			out = append(out, text)
		}
		return out, nil
	}
	return nil, fmt.Errorf("unsupported canonical answer %s", trimmed)
}

func resolveToken(options []string, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrNoCanonicalAnswer
	}
	if matchOption(options, token) >= 0 {
		return token, nil
	}
	if idx, err := strconv.Atoi(token); err == nil {
		return optionAt(options, float64(idx))
	}
	return token, nil
}

func optionAt(options []string, index float64) (string, error) {
	i := int(index)
	if float64(i) != index || i < 0 || i >= len(options) {
		return "", fmt.Errorf("%w: %v of %d options", ErrIndexOutOfRange, index, len(options))
	}
	return options[i], nil
}

func matchOption(options []string, text string) int {
	for i, option := range options {
		if equalFold(option, text) {
			return i
		}
	}
	return -1
}

// MatchChoice compares trimmed, case-insensitive option texts.
func MatchChoice(canonical, answer string) bool {
	if strings.TrimSpace(answer) == "" {
		return false
	}
	return equalFold(canonical, answer)
}

// MatchSelection is true iff both sets hold exactly the same option texts.
func MatchSelection(canonical, selected []string) bool {
	want := foldSet(canonical)
	got := foldSet(selected)
	if len(want) == 0 || len(want) != len(got) {
		return false
	}
	for item := range want {
		if _, ok := got[item]; !ok {
			return false
		}
	}
	return true
}

// MatchShortText accepts paraphrases: either string contains the other, or
// at least half of the canonical words appear among the answer's words.
func MatchShortText(canonical, answer string) bool {
	c := strings.ToLower(strings.TrimSpace(canonical))
	a := strings.ToLower(strings.TrimSpace(answer))
	if c == "" || a == "" {
		return false
	}
	if strings.Contains(a, c) || strings.Contains(c, a) {
		return true
	}

	canonicalWords := words(c)
	if len(canonicalWords) == 0 {
		return false
	}
	answerWords := make(map[string]struct{})
	for _, w := range words(a) {
		answerWords[w] = struct{}{}
	}
	matched := 0
	for _, w := range canonicalWords {
		if _, ok := answerWords[w]; ok {
			matched++
		}
	}
	return matched*2 >= len(canonicalWords)
}

// MatchBlanks requires the same number of filled blanks as canonical entries
// and every canonical entry to be present, regardless of position.
func MatchBlanks(canonical, blanks []string) bool {
	filled := make([]string, 0, len(blanks))
	for _, b := range blanks {
		if strings.TrimSpace(b) != "" {
			filled = append(filled, b)
		}
	}
	if len(canonical) == 0 || len(filled) != len(canonical) {
		return false
	}
	got := foldSet(filled)
	for _, want := range canonical {
		if _, ok := got[fold(want)]; !ok {
			return false
		}
	}
	return true
}

func firstText(v models.AnswerValue) string {
	if v.IsSelection() {
		if len(v.Selection) == 0 {
			return ""
		}
		return v.Selection[0]
	}
	return v.Text
}

func selectionOf(v models.AnswerValue) []string {
	if v.IsSelection() {
		return v.Selection
	}
	return []string{v.Text}
}

func words(s string) []string {
	fields := strings.Fields(s)
	out := fields[:0]
	for _, f := range fields {
		f = strings.TrimFunc(f, unicode.IsPunct)
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func foldSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, item := range items {
		if f := fold(item); f != "" {
			set[f] = struct{}{}
		}
	}
	return set
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
