// Package devices turns a raw User-Agent header into the device, browser and
// operating system attributes stored on every click.
package devices

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"linkpulse/internal/pkg/user_agent"
)

// Device types stored on click events.
const (
	TypeDesktop = "Desktop"
	TypeMobile  = "Mobile"
	TypeTablet  = "Tablet"
	TypeBot     = "Bot"
	TypeUnknown = "Unknown"
)

// Info is the classification of one User-Agent. Nil string fields are unknown.
type Info struct {
	BrowserName      *string
	BrowserVersion   *string
	BrowserFamily    *string
	OSName           *string
	OSVersion        *string
	OSFamily         *string
	DeviceType       string
	DeviceBrand      *string
	DeviceModel      *string
	DeviceFamily     *string
	ScreenResolution *string
	IsMobile         bool
	IsTablet         bool
	IsPC             bool
	IsBot            bool
}

// Empty returns the result used for blank or unparseable User-Agents.
func Empty() Info {
	return Info{DeviceType: TypeUnknown}
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" || value == "Unknown" {
		return nil
	}
	return &value
}

func set(value string) *string {
	return &value
}

var titleCaser = cases.Title(language.AmericanEnglish)

// Classify parses userAgent. It never fails: errors and panics while
// parsing are logged and produce Empty().
func Classify(logger *slog.Logger, userAgent string) (info Info) {
	if strings.TrimSpace(userAgent) == "" {
		return Empty()
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Failed to classify user agent",
				slog.String("user_agent", userAgent),
				slog.Any("panic", r))
			info = Empty()
		}
	}()

	parsed := user_agent.ParseUserAgent(userAgent)

	info = Info{
		BrowserName:    optional(parsed.Browser),
		BrowserVersion: optional(parsed.BrowserVersion),
		BrowserFamily:  optional(parsed.BrowserFamily),
		OSName:         optional(parsed.OS),
		OSVersion:      optional(parsed.OSVersion),
		OSFamily:       optional(parsed.OSFamily),
		DeviceBrand:    optional(parsed.Brand),
		DeviceModel:    optional(parsed.Model),
		IsMobile:       parsed.Mobile,
		IsTablet:       parsed.Tablet,
		IsPC:           parsed.Desktop,
		IsBot:          parsed.Bot,
	}
	info.DeviceType = deviceType(info)
	if info.DeviceModel != nil {
		info.DeviceFamily = info.DeviceModel
	} else if parsed.DeviceType != "" && !parsed.Bot {
		info.DeviceFamily = set(titleCaser.String(parsed.DeviceType))
	}

	applyRules(userAgent, &info)
	return info
}

// deviceType picks the form factor. Bot wins over everything else.
func deviceType(info Info) string {
	switch {
	case info.IsBot:
		return TypeBot
	case info.IsMobile:
		return TypeMobile
	case info.IsTablet:
		return TypeTablet
	case info.IsPC:
		return TypeDesktop
	default:
		return TypeUnknown
	}
}

// rule refines a parsed result when its predicate matches the lowercased UA.
type rule struct {
	name    string
	matches func(ua string) bool
	apply   func(ua string, info *Info)
}

var (
	screenPattern  = regexp.MustCompile(`(\d{3,4})x(\d{3,4})`)
	iphonePattern  = regexp.MustCompile(`iphone\s*os\s*(\d+)_(\d+)`)
	androidPattern = regexp.MustCompile(`android\s+(\d+\.?\d*)`)
	samsungPattern = regexp.MustCompile(`sm-([a-z0-9]+)`)
	pixelPattern   = regexp.MustCompile(`pixel\s*(\d+[a-z]*)`)
)

// platformRules are exclusive: only the first matching rule runs.
var platformRules = []rule{
	{
		name:    "iphone",
		matches: func(ua string) bool { return strings.Contains(ua, "iphone") },
		apply: func(ua string, info *Info) {
			info.DeviceBrand = set("Apple")
			info.DeviceFamily = set("iPhone")
			if m := iphonePattern.FindStringSubmatch(ua); m != nil {
				info.OSVersion = set(fmt.Sprintf("%s.%s", m[1], m[2]))
			}
		},
	},
	{
		name:    "ipad",
		matches: func(ua string) bool { return strings.Contains(ua, "ipad") },
		apply: func(ua string, info *Info) {
			info.DeviceBrand = set("Apple")
			info.DeviceFamily = set("iPad")
			info.DeviceType = TypeTablet
		},
	},
	{
		name:    "android",
		matches: func(ua string) bool { return strings.Contains(ua, "android") },
		apply: func(ua string, info *Info) {
			info.OSName = set("Android")
			if m := androidPattern.FindStringSubmatch(ua); m != nil {
				info.OSVersion = set(m[1])
			}

			if strings.Contains(ua, "samsung") || strings.Contains(ua, "sm-") {
				info.DeviceBrand = set("Samsung")
				if m := samsungPattern.FindStringSubmatch(ua); m != nil {
					info.DeviceModel = set("SM-" + strings.ToUpper(m[1]))
				}
			} else if strings.Contains(ua, "pixel") {
				info.DeviceBrand = set("Google")
				if m := pixelPattern.FindStringSubmatch(ua); m != nil {
					info.DeviceModel = set("Pixel " + m[1])
				}
			}
		},
	},
}

// windowsVersions maps NT kernel tokens to marketing versions, most specific first.
var windowsVersions = []struct {
	token   string
	version string
}{
	{"windows nt 10", "10/11"},
	{"windows nt 6.3", "8.1"},
	{"windows nt 6.1", "7"},
}

// independentRules all run, after the platform rule.
var independentRules = []rule{
	{
		name:    "windows",
		matches: func(ua string) bool { return strings.Contains(ua, "windows") },
		apply: func(ua string, info *Info) {
			for _, wv := range windowsVersions {
				if strings.Contains(ua, wv.token) {
					info.OSName = set("Windows")
					info.OSVersion = set(wv.version)
					return
				}
			}
		},
	},
}

func applyRules(userAgent string, info *Info) {
	ua := strings.ToLower(userAgent)

	// Resolution is read from the original string; the pattern has no letters to fold.
	if m := screenPattern.FindStringSubmatch(userAgent); m != nil {
		info.ScreenResolution = set(m[1] + "x" + m[2])
	}

	for _, r := range platformRules {
		if r.matches(ua) {
			r.apply(ua, info)
			break
		}
	}

	for _, r := range independentRules {
		if r.matches(ua) {
			r.apply(ua, info)
		}
	}
}
