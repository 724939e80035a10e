package dispatch

import (
	"fmt"
	"net/url"
	"strings"

	"dirigent/internal/sanitize"
)

// chatHosts is the team-chat denylist for fetch-url. Fetching these
// returns auth walls the model would narrate verbatim; discord-api is
// the working route.
var chatHosts = []string{
	"discord.com",
	"discordapp.com",
	"cdn.discordapp.com",
	"media.discordapp.net",
}

// guardFetchURL rejects URLs a generic fetch cannot usefully serve,
// before any network call. Returns the rejection and true when the
// URL is blocked.
func guardFetchURL(raw string) (Result, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return reject(
			"That does not look like a fetchable URL.",
			fmt.Sprintf("fetch-url guard: unparseable %q", raw),
		), true
	}

	host := strings.ToLower(u.Hostname())
	for _, h := range chatHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return reject(
				"Discord links cannot be fetched like a web page. Use discord-api with an API path, or agent-delegate the question. Answer without fetching.",
				fmt.Sprintf("fetch-url guard: chat host %s", host),
			), true
		}
	}

	if id, isIssue := sanitize.IssueRef(u.Path); isIssue {
		return reject(
			fmt.Sprintf("That looks like an issue-tracker link. Use redmine-api, or say: review ticket %s. Answer without fetching.", id),
			fmt.Sprintf("fetch-url guard: issue-tracker shape %s", u.Path),
		), true
	}

	return Result{}, false
}

// scheduledOrigin reports whether the directive came from a scheduler
// turn. Schedules must not create more schedules.
func scheduledOrigin(origin string) bool {
	return strings.HasPrefix(origin, "scheduler")
}
