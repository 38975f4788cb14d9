package directive

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
)

// Tool-call directives arrive embedded in raw model output text in one of two
// encodings, both reducing to the same ToolCall shape:
//
//	[TOOL_REQUEST]{"name":"add","parameters":{"a":1,"b":2}}[END_TOOL_REQUEST]
//	{"tool_call":{"name":"add","parameters":{"a":1,"b":2}}}
//
// The closing tag of the first form is optional at end of stream. Malformed
// directive text is skipped, never an error: garbled model output is expected.
const (
	OpenTag  = "[TOOL_REQUEST]"
	CloseTag = "[END_TOOL_REQUEST]"

	// StructuredKey is the reserved key of the structured-field encoding.
	// The quoted form is what the sniffer watches for.
	StructuredKey      = "tool_call"
	StructuredSentinel = `"tool_call"`
)

// Sentinels returns the literal marker substrings that open a directive
// encoding. The sniffer suppresses display output from the first confirmed
// occurrence of any of these.
func Sentinels() []string {
	return []string{OpenTag, StructuredSentinel}
}

// ToolCall is an ephemeral parsed directive: produced from accumulated stream
// text, consumed by the tool router, discarded after execution.
type ToolCall struct {
	Name       string         `json:"name"`
	Parameters map[string]any `json:"parameters"`
}

// ContainsSentinel reports whether text holds a full directive sentinel.
func ContainsSentinel(text string) bool {
	for _, s := range Sentinels() {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

type match struct {
	index int
	call  ToolCall
}

// Parse extracts all directives from the accumulated raw text, in order of
// appearance. A match anywhere in the text is treated as authoritative, even
// inside quoted code blocks in the model's prose.
func Parse(text string) []ToolCall {
	var matches []match
	matches = append(matches, parseTagged(text)...)
	matches = append(matches, parseStructured(text)...)

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].index < matches[j].index })

	calls := make([]ToolCall, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, m.call)
	}
	return calls
}

func parseTagged(text string) []match {
	var out []match
	offset := 0
	for {
		idx := strings.Index(text[offset:], OpenTag)
		if idx < 0 {
			return out
		}
		start := offset + idx
		body := text[start+len(OpenTag):]

		var call ToolCall
		dec := json.NewDecoder(strings.NewReader(body))
		if err := dec.Decode(&call); err != nil || call.Name == "" {
			log.Debug().Int("offset", start).Msg("directive: skipping malformed tagged tool request")
			offset = start + len(OpenTag)
			continue
		}
		out = append(out, match{index: start, call: call})
		offset = start + len(OpenTag) + int(dec.InputOffset())
	}
}

func parseStructured(text string) []match {
	var out []match
	offset := 0
	for {
		idx := strings.Index(text[offset:], StructuredSentinel)
		if idx < 0 {
			return out
		}
		keyAt := offset + idx

		m, end, ok := decodeEnclosing(text, keyAt)
		if !ok {
			log.Debug().Int("offset", keyAt).Msg("directive: skipping malformed structured tool call")
			offset = keyAt + len(StructuredSentinel)
			continue
		}
		out = append(out, m)
		offset = end
	}
}

// decodeEnclosing walks back from the key position over candidate opening
// braces and decodes the nearest JSON object that spans the key and carries
// it at top level. The reserved key need not be the object's first member.
func decodeEnclosing(text string, keyAt int) (match, int, bool) {
	for start := keyAt - 1; start >= 0; start-- {
		if text[start] != '{' {
			continue
		}
		var envelope map[string]json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[start:]))
		if err := dec.Decode(&envelope); err != nil {
			continue
		}
		end := start + int(dec.InputOffset())
		if end <= keyAt {
			// The object closed before the key; keep walking outward.
			continue
		}
		raw, ok := envelope[StructuredKey]
		if !ok {
			continue
		}
		var call ToolCall
		if err := json.Unmarshal(raw, &call); err != nil || call.Name == "" {
			return match{}, 0, false
		}
		return match{index: start, call: call}, end, true
	}
	return match{}, 0, false
}
