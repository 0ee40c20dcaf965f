package structured

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// NoObjectReason is reported when no strategy yields a parseable object
const NoObjectReason = "no valid structured object found"

const snippetRunes = 200

var (
	fencePattern = regexp.MustCompile("(?is)```json\\s*(.*?)```")
	thinkPattern = regexp.MustCompile(`(?is)<think>.*?</think>`)
)

// Failure describes why no structured object could be recovered
type Failure struct {
	Reason     string `json:"reason"`
	RawSnippet string `json:"raw_snippet"`
}

func (f *Failure) Error() string {
	return f.Reason
}

// Result holds either an extracted object or the reason extraction failed
type Result struct {
	Value   Value
	Failure *Failure
}

// OK reports whether extraction produced a value
func (r Result) OK() bool { return r.Failure == nil }

// Extract recovers a JSON object from free-form model output.
//
// Strategies run in order: the interior of a ```json fenced block, then the
// substring from the first '{' to the last '}'. Reasoning traces wrapped in
// <think> tags are dropped first. Extract never panics.
func Extract(raw string) Result {
	text := thinkPattern.ReplaceAllString(raw, "")

	for _, m := range fencePattern.FindAllStringSubmatch(text, -1) {
		if v, ok := parseObject(m[1]); ok {
			return Result{Value: v}
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		if v, ok := parseObject(text[start : end+1]); ok {
			return Result{Value: v}
		}
	}

	return Result{Failure: &Failure{Reason: NoObjectReason, RawSnippet: Snippet(raw)}}
}

func parseObject(s string) (Value, bool) {
	v, err := Parse([]byte(strings.TrimSpace(s)))
	if err != nil || v.Kind() != KindObject {
		return Null(), false
	}
	return v, true
}

// Snippet returns at most the first 200 runes of s
func Snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	n := 0
	for i := range s {
		if n == snippetRunes {
			return s[:i]
		}
		n++
	}
	return s
}
