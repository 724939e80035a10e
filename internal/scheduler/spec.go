package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser accepts both 5-field and seconds-prefixed 6-field
// expressions plus @-descriptors.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// atLayouts are the absolute-timestamp formats accepted for one-shot
// entries.
var atLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

func parseAt(s string) (time.Time, bool) {
	for _, layout := range atLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseSpec turns directive arguments into a schedule entry (without
// an ID). Accepted forms:
//
//	every N minutes <task>
//	at <timestamp> <task>
//	<cron expression> | <task>
//	<timestamp> | <task>
func ParseSpec(args string) (Entry, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return Entry{}, fmt.Errorf("empty schedule; expected e.g. \"every 5 minutes <task>\"")
	}

	if rest, ok := cutPrefixFold(s, "every "); ok {
		return parseEvery(rest)
	}
	if rest, ok := cutPrefixFold(s, "at "); ok {
		fields := strings.Fields(rest)
		if len(fields) < 2 {
			return Entry{}, fmt.Errorf("expected \"at <timestamp> <task>\"")
		}
		when, ok := parseAt(fields[0])
		if !ok {
			return Entry{}, fmt.Errorf("could not parse timestamp %q; use e.g. 2026-08-25T18:00:00", fields[0])
		}
		return Entry{At: when.Format(time.RFC3339), Task: strings.Join(fields[1:], " ")}, nil
	}

	if i := strings.Index(s, "|"); i >= 0 {
		spec := strings.TrimSpace(s[:i])
		task := strings.TrimSpace(s[i+1:])
		if task == "" {
			return Entry{}, fmt.Errorf("missing task after \"|\"")
		}
		if when, ok := parseAt(spec); ok {
			return Entry{At: when.Format(time.RFC3339), Task: task}, nil
		}
		if _, err := cronParser.Parse(spec); err != nil {
			return Entry{}, fmt.Errorf("could not parse %q as a cron expression or timestamp", spec)
		}
		return Entry{Cron: spec, Task: task}, nil
	}

	return Entry{}, fmt.Errorf("expected \"every N minutes <task>\", \"at <timestamp> <task>\", or \"<cron> | <task>\"")
}

func parseEvery(rest string) (Entry, error) {
	fields := strings.Fields(rest)
	if len(fields) < 3 {
		return Entry{}, fmt.Errorf("expected \"every N minutes <task>\"")
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || n <= 0 {
		return Entry{}, fmt.Errorf("expected a number after 'every' (e.g. every 5 minutes)")
	}

	var spec string
	switch strings.ToLower(strings.TrimSuffix(fields[1], ",")) {
	case "minute", "minutes":
		spec = fmt.Sprintf("0 */%d * * * *", n)
	case "hour", "hours":
		spec = fmt.Sprintf("0 0 */%d * * *", n)
	default:
		return Entry{}, fmt.Errorf("expected 'minutes' or 'hours' after the number (e.g. every 5 minutes)")
	}

	return Entry{Cron: spec, Task: strings.Join(fields[2:], " ")}, nil
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix) {
		return s[len(prefix):], true
	}
	return "", false
}
