package sandbox

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Language is a sandbox runtime the engine can dispatch to.
type Language struct {
	ID      int
	Name    string
	aliases []string
	// input lists calls that read from standard input.
	input []*regexp.Regexp
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(expr)
	}
	return out
}

// Identifiers follow the Judge0 CE language table.
var languages = []Language{
	{ID: 71, Name: "Python", aliases: []string{"python", "python3", "py"},
		input: patterns(`\binput\s*\(`, `\bsys\.stdin\b`, `\braw_input\s*\(`)},
	{ID: 63, Name: "JavaScript", aliases: []string{"javascript", "js", "node", "nodejs"},
		input: patterns(`\breadline\b`, `process\.stdin`, `\bprompt\s*\(`)},
	{ID: 74, Name: "TypeScript", aliases: []string{"typescript", "ts"},
		input: patterns(`\breadline\b`, `process\.stdin`, `\bprompt\s*\(`)},
	{ID: 62, Name: "Java", aliases: []string{"java"},
		input: patterns(`\bScanner\s*\(`, `\bBufferedReader\s*\(`, `System\.in\b`)},
	{ID: 50, Name: "C", aliases: []string{"c"},
		input: patterns(`\bscanf\s*\(`, `\bgetchar\s*\(`, `\bfgets\s*\(`, `\bgets\s*\(`)},
	{ID: 54, Name: "C++", aliases: []string{"c++", "cpp", "cplusplus"},
		input: patterns(`\bcin\s*>>`, `\bgetline\s*\(`, `\bscanf\s*\(`, `\bgetchar\s*\(`)},
	{ID: 51, Name: "C#", aliases: []string{"c#", "csharp", "cs"},
		input: patterns(`Console\.Read(Line)?\s*\(`)},
	{ID: 60, Name: "Go", aliases: []string{"go", "golang"},
		input: patterns(`\bfmt\.(Scan|Scanln|Scanf)\s*\(`, `\bos\.Stdin\b`)},
	{ID: 72, Name: "Ruby", aliases: []string{"ruby", "rb"},
		input: patterns(`\bgets\b`, `\bSTDIN\b`, `\$stdin\b`)},
	{ID: 73, Name: "Rust", aliases: []string{"rust", "rs"},
		input: patterns(`\bstdin\s*\(`)},
	{ID: 68, Name: "PHP", aliases: []string{"php"},
		input: patterns(`\bSTDIN\b`, `\breadline\s*\(`, `php://stdin`)},
	{ID: 78, Name: "Kotlin", aliases: []string{"kotlin", "kt"},
		input: patterns(`\breadLine\s*\(`, `\breadln\s*\(`, `\bScanner\s*\(`)},
	{ID: 83, Name: "Swift", aliases: []string{"swift"},
		input: patterns(`\breadLine\s*\(`)},
}

var byAlias = func() map[string]*Language {
	m := make(map[string]*Language)
	for i := range languages {
		lang := &languages[i]
		m[strings.ToLower(lang.Name)] = lang
		for _, alias := range lang.aliases {
			m[alias] = lang
		}
	}
	return m
}()

// UnsupportedLanguageError is returned before any request is made.
type UnsupportedLanguageError struct {
	Label     string
	Supported []string
}

func (e *UnsupportedLanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q (supported: %s)", e.Label, strings.Join(e.Supported, ", "))
}

// SupportedLanguages returns the display names of every runtime.
func SupportedLanguages() []string {
	names := make([]string, len(languages))
	for i, lang := range languages {
		names[i] = lang.Name
	}
	sort.Strings(names)
	return names
}

// ResolveLanguage maps a user-facing label such as "Python" or "cpp" to the
// sandbox runtime.
func ResolveLanguage(label string) (Language, error) {
	key := strings.ToLower(strings.Join(strings.Fields(label), ""))
	if lang, ok := byAlias[key]; ok {
		return *lang, nil
	}
	return Language{}, &UnsupportedLanguageError{Label: label, Supported: SupportedLanguages()}
}

// ReadsInput reports whether source looks like it reads standard input.
func (l Language) ReadsInput(source string) bool {
	for _, re := range l.input {
		if re.MatchString(source) {
			return true
		}
	}
	return false
}
