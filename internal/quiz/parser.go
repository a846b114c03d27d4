package quiz

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	// a question starts at a line-leading "<n>." followed by whitespace
	questionMarker = regexp.MustCompile(`(?m)^[ \t]*(\d{1,9})\.\s+`)
	answerMarker   = regexp.MustCompile(`(?i)answer:\s*([a-d])\b`)
	optionMarker   = regexp.MustCompile(`([A-D])\.\s`)
)

// Parse turns pasted text into question items:
//
//	1. What is 2+2?
//	A. 3
//	B. 4
//	Answer: b
//
// It never fails. Text before the first question marker is skipped, a question
// without options keeps its whole text as the detail, and a missing Answer line
// leaves the answer empty. Numbers are kept as written. Answer and option
// markers only count at the start of the text or after whitespace.
//
// An option whose text contains whitespace followed by "B. " (any of A-D) is
// split there; the next letter marker always ends the previous option.
func Parse(text string) []QuestionItem {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	marks := questionMarker.FindAllStringSubmatchIndex(text, -1)
	items := make([]QuestionItem, 0, len(marks))
	for i, m := range marks {
		end := len(text)
		if i+1 < len(marks) {
			end = marks[i+1][0]
		}
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil {
			continue
		}
		items = append(items, parseBlock(n, text[m[1]:end]))
	}
	return items
}

func parseBlock(number int, body string) QuestionItem {
	item := QuestionItem{Number: number, Options: []Option{}}

	var last []int
	for _, m := range answerMarker.FindAllStringSubmatchIndex(body, -1) {
		if afterSpace(body, m[0]) {
			last = m
		}
	}
	if last != nil {
		item.Answer = strings.ToLower(body[last[2]:last[3]])
		body = body[:last[0]]
	}

	marks := optionMarkers(body)
	first := -1
	for i, m := range marks {
		if m.key == "a" {
			first = i
			break
		}
	}
	if first < 0 {
		item.Detail = strings.TrimSpace(body)
		return item
	}

	item.Detail = strings.TrimSpace(body[:marks[first].start])
	marks = marks[first:]
	for i, m := range marks {
		end := len(body)
		if i+1 < len(marks) {
			end = marks[i+1].start
		}
		item.Options = append(item.Options, Option{
			Key:  m.key,
			Text: strings.TrimSpace(body[m.end:end]),
		})
	}
	return item
}

type marker struct {
	key        string
	start, end int
}

// afterSpace reports whether offset i of s is the start of s or follows a
// whitespace rune. RE2 has no lookbehind, so markers are checked by hand.
func afterSpace(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return unicode.IsSpace(r)
}

// optionMarkers finds "X. " markers that begin the text or follow whitespace.
func optionMarkers(body string) []marker {
	var out []marker
	for _, m := range optionMarker.FindAllStringSubmatchIndex(body, -1) {
		if !afterSpace(body, m[0]) {
			continue
		}
		out = append(out, marker{
			key:   strings.ToLower(body[m[2]:m[3]]),
			start: m[0],
			end:   m[1],
		})
	}
	return out
}

// Format renders items back into the text Parse accepts. Blocks are separated
// by a blank line and the Answer line is left out when there is no answer.
func Format(items []QuestionItem) string {
	blocks := make([]string, 0, len(items))
	for _, q := range items {
		var b strings.Builder
		b.WriteString(strconv.Itoa(q.Number))
		b.WriteString(". ")
		b.WriteString(q.Detail)
		for _, o := range q.Options {
			b.WriteString("\n")
			b.WriteString(strings.ToUpper(o.Key))
			b.WriteString(". ")
			b.WriteString(o.Text)
		}
		if q.Answer != "" {
			b.WriteString("\nAnswer: ")
			b.WriteString(q.Answer)
		}
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
