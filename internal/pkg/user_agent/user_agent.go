package user_agent

import (
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

// Device types reported by the parser
const (
	DeviceSmartphone = "smartphone"
	DeviceTablet     = "tablet"
	DeviceDesktop    = "desktop"
	DeviceBot        = "bot"
)

type UserAgent struct {
	UserAgent      string
	OS             string
	OSVersion      string
	OSFamily       string
	Browser        string
	BrowserVersion string
	BrowserFamily  string
	Device         string
	DeviceType     string
	Brand          string
	Model          string
	Mobile         bool
	Tablet         bool
	Desktop        bool
	Bot            bool
}

// Embed the database files
//
//go:embed database/bots.yml
//go:embed database/oss.yml
//go:embed database/client/browsers.yml
//go:embed database/device/mobiles.yml
var databaseFiles embed.FS

// Browser entry structure
type BrowserEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Family  string `yaml:"family"`
}

// OS entry structure
type OSEntry struct {
	Regex   string `yaml:"regex"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Family  string `yaml:"family"`
}

// Device model structure
type DeviceModel struct {
	Regex  string `yaml:"regex"`
	Model  string `yaml:"model"`
	Device string `yaml:"device"`
}

// Device entry structure. Entries are matched in file order.
type DeviceEntry struct {
	Brand  string        `yaml:"brand"`
	Regex  string        `yaml:"regex"`
	Device string        `yaml:"device"`
	Model  string        `yaml:"model"`
	Models []DeviceModel `yaml:"models"`
}

// Bot entry structure
type BotEntry struct {
	Regex    string `yaml:"regex"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	URL      string `yaml:"url"`
	Producer struct {
		Name string `yaml:"name"`
		URL  string `yaml:"url"`
	} `yaml:"producer"`
}

// Compiled regex cache. Patterns are compiled case-insensitive.
type RegexCache struct {
	compiled map[string]*pcre.Regexp
	mutex    sync.RWMutex
}

func newRegexCache() *RegexCache {
	return &RegexCache{
		compiled: make(map[string]*pcre.Regexp),
	}
}

func (rc *RegexCache) get(pattern string) (*pcre.Regexp, error) {
	rc.mutex.RLock()
	if regex, exists := rc.compiled[pattern]; exists {
		rc.mutex.RUnlock()
		return regex, nil
	}
	rc.mutex.RUnlock()

	rc.mutex.Lock()
	defer rc.mutex.Unlock()

	// Double-check pattern
	if regex, exists := rc.compiled[pattern]; exists {
		return regex, nil
	}

	regex, err := pcre.Compile("(?i)" + pattern)
	if err != nil {
		return nil, err
	}
	rc.compiled[pattern] = regex
	return regex, nil
}

// Global parser instance
var (
	parser *DeviceDetectorParser
	once   sync.Once
)

type DeviceDetectorParser struct {
	browsers   []BrowserEntry
	oss        []OSEntry
	devices    []DeviceEntry
	bots       []BotEntry
	regexCache *RegexCache
}

func loadDatabase(name string, out interface{}) {
	data, err := databaseFiles.ReadFile(name)
	if err != nil {
		slog.Error("user agent database missing", slog.String("file", name), slog.Any("error", err))
		return
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		slog.Error("user agent database unreadable", slog.String("file", name), slog.Any("error", err))
	}
}

func getParser() *DeviceDetectorParser {
	once.Do(func() {
		parser = &DeviceDetectorParser{
			regexCache: newRegexCache(),
		}

		loadDatabase("database/client/browsers.yml", &parser.browsers)
		loadDatabase("database/oss.yml", &parser.oss)
		loadDatabase("database/bots.yml", &parser.bots)
		loadDatabase("database/device/mobiles.yml", &parser.devices)
	})
	return parser
}

// expand replaces $1, $2, etc. with the matching capture groups.
func expand(template string, matches []string) string {
	if template == "" || len(matches) < 2 {
		return template
	}
	result := template
	for i := len(matches) - 1; i >= 1; i-- {
		placeholder := fmt.Sprintf("$%d", i)
		result = strings.ReplaceAll(result, placeholder, matches[i])
	}
	return strings.TrimSpace(result)
}

// normalizeVersion turns "16_2" into "16.2" and drops dangling separators.
func normalizeVersion(version string) string {
	version = strings.ReplaceAll(version, "_", ".")
	return strings.Trim(version, ". ")
}

func (p *DeviceDetectorParser) parseBot(userAgent string) *BotEntry {
	for i := range p.bots {
		bot := &p.bots[i]
		if regex, err := p.regexCache.get(bot.Regex); err == nil {
			if regex.MatchString(userAgent) {
				return bot
			}
		}
	}
	return nil
}

func (p *DeviceDetectorParser) parseBrowser(userAgent string) (string, string, string) {
	for _, entry := range p.browsers {
		if regex, err := p.regexCache.get(entry.Regex); err == nil {
			if matches := regex.FindStringSubmatch(userAgent); len(matches) > 0 {
				return entry.Name, normalizeVersion(expand(entry.Version, matches)), entry.Family
			}
		}
	}
	return "Unknown", "", ""
}

func (p *DeviceDetectorParser) parseOS(userAgent string) (string, string, string) {
	for _, entry := range p.oss {
		if regex, err := p.regexCache.get(entry.Regex); err == nil {
			if matches := regex.FindStringSubmatch(userAgent); len(matches) > 0 {
				return entry.Name, normalizeVersion(expand(entry.Version, matches)), entry.Family
			}
		}
	}
	return "Unknown", "", ""
}

type deviceMatch struct {
	brand      string
	model      string
	deviceType string
}

func (p *DeviceDetectorParser) parseDevice(userAgent string) deviceMatch {
	for _, entry := range p.devices {
		regex, err := p.regexCache.get(entry.Regex)
		if err != nil {
			continue
		}
		matches := regex.FindStringSubmatch(userAgent)
		if len(matches) == 0 {
			continue
		}

		match := deviceMatch{brand: entry.Brand, deviceType: entry.Device}

		// Check for specific model matches
		for _, modelEntry := range entry.Models {
			if modelRegex, err := p.regexCache.get(modelEntry.Regex); err == nil {
				if modelMatches := modelRegex.FindStringSubmatch(userAgent); len(modelMatches) > 0 {
					match.model = expand(modelEntry.Model, modelMatches)
					if modelEntry.Device != "" {
						match.deviceType = modelEntry.Device
					}
					break
				}
			}
		}

		// If no specific model found, use the generic model
		if match.model == "" && entry.Model != "" {
			match.model = expand(entry.Model, matches)
		}

		return match
	}

	// Fallback device detection based on user agent patterns
	ua := strings.ToLower(userAgent)

	// Check for tablet indicators first (they often contain "mobile" too)
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return deviceMatch{deviceType: DeviceTablet}
	}

	// Android without the Mobile token is a tablet
	if strings.Contains(ua, "android") && !strings.Contains(ua, "mobile") {
		return deviceMatch{deviceType: DeviceTablet}
	}

	// Check for mobile indicators
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") ||
		strings.Contains(ua, "iphone") || strings.Contains(ua, "ipod") ||
		strings.Contains(ua, "blackberry") || strings.Contains(ua, "windows phone") {
		return deviceMatch{deviceType: DeviceSmartphone}
	}

	if strings.Contains(ua, "windows") || strings.Contains(ua, "macintosh") ||
		strings.Contains(ua, "x11") || strings.Contains(ua, "linux") ||
		strings.Contains(ua, "cros") {
		return deviceMatch{deviceType: DeviceDesktop}
	}

	return deviceMatch{}
}

// ParseUserAgent runs the embedded detection database over userAgent.
// An empty string yields an empty result with no flags set.
func ParseUserAgent(userAgent string) UserAgent {
	if strings.TrimSpace(userAgent) == "" {
		return UserAgent{}
	}

	parser := getParser()

	// Check for bots first
	if bot := parser.parseBot(userAgent); bot != nil {
		return UserAgent{
			UserAgent:  userAgent,
			OS:         "Unknown",
			Browser:    bot.Name,
			Device:     "Bot",
			DeviceType: DeviceBot,
			Bot:        true,
		}
	}

	browser, browserVersion, browserFamily := parser.parseBrowser(userAgent)
	os, osVersion, osFamily := parser.parseOS(userAgent)
	device := parser.parseDevice(userAgent)

	name := device.brand
	if name == "" {
		name = device.deviceType
	}

	return UserAgent{
		UserAgent:      userAgent,
		OS:             os,
		OSVersion:      osVersion,
		OSFamily:       osFamily,
		Browser:        browser,
		BrowserVersion: browserVersion,
		BrowserFamily:  browserFamily,
		Device:         name,
		DeviceType:     device.deviceType,
		Brand:          device.brand,
		Model:          device.model,
		Mobile:         device.deviceType == DeviceSmartphone || device.deviceType == "feature phone" || device.deviceType == "phablet",
		Tablet:         device.deviceType == DeviceTablet,
		Desktop:        device.deviceType == DeviceDesktop || device.deviceType == "notebook",
		Bot:            false,
	}
}
