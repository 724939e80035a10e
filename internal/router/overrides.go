package router

import (
	"strconv"
	"strings"
)

// Overrides are per-message tuning lines parsed off the front of an
// inbound message. Zero values mean "not set"; the configured defaults
// apply.
type Overrides struct {
	Model       string
	Skill       string
	Agent       string
	Temperature float64
	NumCtx      int
	Verbose     bool
}

// ParseOverrides consumes leading override lines and returns the
// overrides plus the remaining question. Recognized forms, one per
// line, key matched case-insensitively, value taken as written:
//
//	verbose | verbose: | verbose: true | verbose=true
//	model: <name>        | model=<name>
//	skill: <selector>    | skill=<selector>
//	agent: <selector>    | agent=<selector>
//	temperature: <float> | temperature=<float>
//	num_ctx: <int>       | num_ctx=<int>
//	params: temperature=0.2 num_ctx=8192
//
// Empty lines between overrides are consumed. The first line that
// matches nothing ends the scan; it and everything after it form the
// question. An override with an empty or unparseable value is consumed
// without taking effect.
func ParseOverrides(content string) (Overrides, string) {
	var ov Overrides
	lines := strings.Split(content, "\n")

	i := 0
scan:
	for ; i < len(lines); i++ {
		line := strings.TrimSpace(lines[i])
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		switch {
		case lower == "verbose":
			ov.Verbose = true
		case hasKey(lower, "verbose"):
			v := strings.ToLower(cutValue(line, "verbose"))
			if v == "" || v == "true" {
				ov.Verbose = true
			}
		case hasKey(lower, "model"):
			if v := cutValue(line, "model"); v != "" {
				ov.Model = v
			}
		case hasKey(lower, "skill"):
			if v := cutValue(line, "skill"); v != "" {
				ov.Skill = v
			}
		case hasKey(lower, "agent"):
			if v := cutValue(line, "agent"); v != "" {
				ov.Agent = v
			}
		case hasKey(lower, "temperature"):
			if f, err := strconv.ParseFloat(cutValue(line, "temperature"), 64); err == nil {
				ov.Temperature = f
			}
		case hasKey(lower, "num_ctx"):
			if n, err := strconv.Atoi(cutValue(line, "num_ctx")); err == nil {
				ov.NumCtx = n
			}
		case hasKey(lower, "params"):
			ov.applyParams(cutValue(line, "params"))
		default:
			break scan
		}
	}

	return ov, strings.TrimSpace(strings.Join(lines[i:], "\n"))
}

// applyParams handles the compact "params: k=v k=v" form.
func (ov *Overrides) applyParams(args string) {
	for _, pair := range strings.Fields(args) {
		key, value, found := strings.Cut(pair, "=")
		if !found {
			continue
		}
		switch strings.ToLower(key) {
		case "temperature":
			if f, err := strconv.ParseFloat(value, 64); err == nil {
				ov.Temperature = f
			}
		case "num_ctx":
			if n, err := strconv.Atoi(value); err == nil {
				ov.NumCtx = n
			}
		}
	}
}

func hasKey(lower, key string) bool {
	return strings.HasPrefix(lower, key+":") || strings.HasPrefix(lower, key+"=")
}

func cutValue(line, key string) string {
	return strings.TrimSpace(line[len(key)+1:])
}

// CutNewSession detects the "new session" reset prefix. It returns the
// question with the prefix stripped and whether the session should be
// cleared first.
func CutNewSession(question string) (string, bool) {
	lower := strings.ToLower(question)
	if !strings.HasPrefix(lower, "new session:") && !strings.HasPrefix(lower, "new session ") {
		return question, false
	}
	return strings.TrimSpace(question[len("new session:"):]), true
}
