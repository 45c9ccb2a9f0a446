package auth

import (
	"math/rand"
	"strings"
)

// userAgents maps friendly names to real browser user-agent strings. The
// cloud edge rejects obviously non-browser agents.
var userAgents = map[string]string{
	"linux": "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"mac": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.5 Safari/605.1.15",
	"windows": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
		"(KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36",
	"firefox": "Mozilla/5.0 (X11; Linux x86_64; rv:127.0) Gecko/20100101 Firefox/127.0",
	"ipad": "Mozilla/5.0 (iPad; CPU OS 17_5 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1",
}

// ResolveUserAgent maps a configured agent name to a real user-agent string.
// A leading "!" passes the rest through verbatim (agent copied from a
// browser); "random" picks a different named agent per login attempt; unknown
// names fall back to the linux agent.
func ResolveUserAgent(agent string) string {
	if strings.HasPrefix(agent, "!") {
		return agent[1:]
	}
	agent = strings.ToLower(agent)
	if agent == "random" {
		names := make([]string, 0, len(userAgents))
		for name := range userAgents {
			names = append(names, name)
		}
		return userAgents[names[rand.Intn(len(names))]]
	}
	if ua, ok := userAgents[agent]; ok {
		return ua
	}
	return userAgents["linux"]
}
