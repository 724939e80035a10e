package redmine

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Redmine's filter grammar wants absolute dates: ">=YYYY-MM-DD" for
// open-ended ranges, "><YYYY-MM-DD|YYYY-MM-DD" for closed ones. Models
// reliably produce relative phrases instead, and the server answers
// those with a 422. NormalizePath rewrites the known phrases in
// updated_on/created_on query values before the request goes out. The
// grammar itself is configuration: it matches stock Redmine and must be
// confirmed against a customized instance.

// DateFormatOperator names the stock grammar NormalizePath emits.
// Instances configured with any other date_filter_format skip the
// rewrite entirely.
const DateFormatOperator = "operator"

const dateLayout = "2006-01-02"

func since(d time.Time) string {
	return ">=" + d.Format(dateLayout)
}

func between(a, b time.Time) string {
	return "><" + a.Format(dateLayout) + "|" + b.Format(dateLayout)
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	wd := int(t.Weekday())
	if wd == 0 {
		wd = 7
	}
	return t.AddDate(0, 0, -(wd - 1))
}

// resolvePhrase turns one relative phrase into a filter value.
func resolvePhrase(phrase string, now time.Time) (string, bool) {
	p := strings.ToLower(strings.TrimSpace(phrase))
	today := now.Truncate(24 * time.Hour)

	switch p {
	case "today":
		return since(today), true
	case "yesterday":
		y := today.AddDate(0, 0, -1)
		return between(y, y), true
	case "this week":
		return since(startOfWeek(today)), true
	case "last week":
		mon := startOfWeek(today).AddDate(0, 0, -7)
		return between(mon, mon.AddDate(0, 0, 6)), true
	case "this month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		return since(first), true
	case "last month":
		first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location()).AddDate(0, -1, 0)
		last := first.AddDate(0, 1, -1)
		return between(first, last), true
	}

	var n int
	if _, err := fmt.Sscanf(p, "last %d days", &n); err == nil && n > 0 {
		return since(today.AddDate(0, 0, -n)), true
	}
	return "", false
}

// dateParams are the query fields the rewrite applies to.
var dateParams = []string{"updated_on", "created_on"}

// NormalizePath rewrites relative date phrases inside the query part
// of an API path. Paths it cannot parse pass through unchanged.
func NormalizePath(path string, now time.Time) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	q := u.Query()

	changed := false
	for _, key := range dateParams {
		if !q.Has(key) {
			continue
		}
		if v, ok := resolvePhrase(q.Get(key), now); ok {
			q.Set(key, v)
			changed = true
		}
	}
	if !changed {
		return path
	}

	u.RawQuery = q.Encode()
	return u.String()
}
