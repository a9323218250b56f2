package referrers

import (
	"net"
	"net/url"
	"strings"
)

// Direct labels clicks that arrived without a referer.
const Direct = "Direct"

// source groups every hostname that should report under one name.
type source struct {
	name  string
	hosts []string
}

var sources = []source{
	// Search engines
	{"Google", []string{"google.com", "google.co.uk", "google.de", "google.fr", "google.es", "google.it",
		"google.ca", "google.com.au", "google.co.jp", "google.com.br"}},
	{"Bing", []string{"bing.com"}},
	{"DuckDuckGo", []string{"duckduckgo.com"}},
	{"Yahoo", []string{"yahoo.com"}},
	{"Baidu", []string{"baidu.com"}},
	{"Yandex", []string{"yandex.ru"}},
	{"Ecosia", []string{"ecosia.org"}},
	{"Kagi", []string{"kagi.com"}},

	// Social
	{"X/Twitter", []string{"x.com", "twitter.com", "t.co"}},
	{"Facebook", []string{"facebook.com", "fb.com", "l.facebook.com", "lm.facebook.com"}},
	{"Instagram", []string{"instagram.com", "l.instagram.com"}},
	{"LinkedIn", []string{"linkedin.com", "lnkd.in"}},
	{"TikTok", []string{"tiktok.com"}},
	{"Pinterest", []string{"pinterest.com", "pin.it"}},
	{"Reddit", []string{"reddit.com", "old.reddit.com", "redd.it"}},
	{"Threads", []string{"threads.net"}},
	{"Bluesky", []string{"bsky.app"}},
	{"Mastodon", []string{"mastodon.social"}},
	{"YouTube", []string{"youtube.com", "youtu.be"}},
	{"Snapchat", []string{"snapchat.com"}},
	{"Discord", []string{"discord.com", "discordapp.com"}},
	{"WhatsApp", []string{"whatsapp.com", "wa.me"}},
	{"Telegram", []string{"telegram.org", "t.me"}},
	{"Slack", []string{"slack.com"}},

	// Communities
	{"Hacker News", []string{"news.ycombinator.com", "hn.algolia.com"}},
	{"Lobsters", []string{"lobste.rs"}},
	{"Product Hunt", []string{"producthunt.com"}},
	{"Indie Hackers", []string{"indiehackers.com"}},
	{"DEV Community", []string{"dev.to"}},
	{"Hashnode", []string{"hashnode.com"}},
	{"Medium", []string{"medium.com"}},
	{"Substack", []string{"substack.com"}},
	{"GitHub", []string{"github.com"}},
	{"GitLab", []string{"gitlab.com"}},
	{"Stack Overflow", []string{"stackoverflow.com"}},
	{"Quora", []string{"quora.com"}},

	// News
	{"NY Times", []string{"nytimes.com"}},
	{"The Guardian", []string{"theguardian.com"}},
	{"BBC", []string{"bbc.com", "bbc.co.uk"}},
	{"Reuters", []string{"reuters.com"}},
	{"Bloomberg", []string{"bloomberg.com"}},

	// Mail clients, for newsletter clicks
	{"Gmail", []string{"mail.google.com"}},
	{"Outlook", []string{"outlook.live.com", "outlook.office.com"}},
	{"Yahoo Mail", []string{"mail.yahoo.com"}},
	{"Proton Mail", []string{"mail.proton.me", "protonmail.com"}},

	// Other shorteners chaining into ours
	{"Bitly", []string{"bit.ly"}},
	{"TinyURL", []string{"tinyurl.com"}},
	{"Hootsuite", []string{"ow.ly"}},
}

var knownHosts = func() map[string]string {
	m := make(map[string]string)
	for _, s := range sources {
		for _, host := range s.hosts {
			m[host] = s.name
		}
	}
	return m
}()

// FriendlyName returns a display name for a referrer host. Known hosts and
// their subdomains map to the source name; the most specific match wins, so
// mail.google.com is Gmail while news.google.com is Google. Unknown hosts
// come back without "www." and with the first letter capitalized.
func FriendlyName(hostname string) string {
	host := strings.ToLower(strings.TrimSpace(hostname))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "www.")

	for candidate := host; candidate != ""; {
		if name, ok := knownHosts[candidate]; ok {
			return name
		}
		dot := strings.IndexByte(candidate, '.')
		if dot < 0 {
			break
		}
		candidate = candidate[dot+1:]
	}

	if host == "" {
		return host
	}
	return strings.ToUpper(host[:1]) + host[1:]
}

// Domain returns the host part of a referer header for grouping. An empty
// referer is Direct; one that does not parse or has no host is kept as is.
func Domain(referer string) string {
	referer = strings.TrimSpace(referer)
	if referer == "" {
		return Direct
	}
	u, err := url.Parse(referer)
	if err != nil || u.Host == "" {
		return referer
	}
	return u.Host
}

// SourceName maps a grouped referrer domain to its friendly name.
// Direct stays Direct.
func SourceName(domain string) string {
	if domain == Direct {
		return Direct
	}
	return FriendlyName(domain)
}
