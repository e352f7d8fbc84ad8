package tts

import (
	"encoding/json"
	"regexp"
	"strings"
)

// Progress is an interim status notification emitted by the engine while a
// generation is running. Any number may arrive before the terminal result;
// none arrive after.
type Progress struct {
	Stage   string `json:"stage"`
	Percent int    `json:"percent"`
	Message string `json:"message"`
}

// progressEnvelope is the wire shape the engine writes to stderr:
// {"type":"progress","data":{...}}.
type progressEnvelope struct {
	Type string   `json:"type"`
	Data Progress `json:"data"`
}

// classifyLine tests a single stderr line. It returns the decoded progress
// event when the line is a tagged JSON progress notification; every other
// line, JSON or not, is diagnostic text.
func classifyLine(line string) (Progress, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "{") {
		return Progress{}, false
	}
	var env progressEnvelope
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return Progress{}, false
	}
	if env.Type != "progress" {
		return Progress{}, false
	}
	return env.Data, true
}

// Patterns for stderr chatter that must never surface in a user-facing
// error message: model download status, tokenizer notices, Python warning
// banners, and textual progress bars ("45%|████...").
var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^\s*(fetching|downloading|download(ed)?\b|resolving)`),
	regexp.MustCompile(`(?i)tokenizer`),
	regexp.MustCompile(`(DeprecationWarning|UserWarning|FutureWarning)`),
	regexp.MustCompile(`^\s*\d+%\|`),
}

func isNoiseLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}
	for _, p := range noisePatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// diagnosticBuffer accumulates stderr lines that were not progress events.
// Raw lines are kept verbatim; filtering happens only when the buffer is
// turned into a candidate error message.
type diagnosticBuffer struct {
	lines []string
}

func (b *diagnosticBuffer) add(line string) {
	b.lines = append(b.lines, line)
}

// failureMessage joins the accumulated lines with noise removed. Returns ""
// when nothing useful survives.
func (b *diagnosticBuffer) failureMessage() string {
	kept := make([]string, 0, len(b.lines))
	for _, line := range b.lines {
		if isNoiseLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
