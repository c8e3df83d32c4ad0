// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import (
	"regexp"

	"grimm.is/edgesentry/internal/ruletypes"
)

// DeviceInfo is everything the facade's device-detection fields expose,
// resolved from a User-Agent string.
type DeviceInfo struct {
	Class ruletypes.DeviceClass

	IsBot   bool
	BotName string

	IsMobile      bool
	IsTablet      bool
	IsDesktop     bool
	IsSmartTV     bool
	IsGameConsole bool

	DeviceName  string
	DeviceBrand string
	DeviceModel string

	BrowserName    string
	BrowserVersion string
	OSName         string
	OSVersion      string
}

// DeviceDetector resolves DeviceInfo from a raw User-Agent header value.
// The default implementation is a regex table; a richer detector (e.g. one
// backed by a commercial UA database) can be substituted by implementing
// this interface.
type DeviceDetector interface {
	Detect(userAgent string) DeviceInfo
}

// uaRule is one entry in the regex-table detector, grounded on the
// teacher's own regex-driven matcher idiom (internal/ebpf/ips/patterns.go's
// PatternMatcher and its regexCache of precompiled patterns).
type uaRule struct {
	pattern *regexp.Regexp
	apply   func(m []string, info *DeviceInfo)
}

// RegexDeviceDetector classifies devices from User-Agent substrings using a
// small ordered table of regexes, the default reqctx.DeviceDetector.
type RegexDeviceDetector struct {
	rules []uaRule
}

// NewRegexDeviceDetector builds the default detector.
func NewRegexDeviceDetector() *RegexDeviceDetector {
	d := &RegexDeviceDetector{}
	d.rules = []uaRule{
		{regexp.MustCompile(`(?i)googlebot|bingbot|slurp|duckduckbot|baiduspider|yandexbot`), func(m []string, info *DeviceInfo) {
			info.IsBot = true
			info.BotName = m[0]
			info.Class = ruletypes.DeviceDesktop
			info.IsDesktop = true
		}},
		{regexp.MustCompile(`(?i)smart-tv|smarttv|googletv|appletv|roku|tizen`), func(_ []string, info *DeviceInfo) {
			info.IsSmartTV = true
			info.Class = ruletypes.DeviceDesktop
		}},
		{regexp.MustCompile(`(?i)playstation|xbox|nintendo`), func(_ []string, info *DeviceInfo) {
			info.IsGameConsole = true
			info.Class = ruletypes.DeviceDesktop
		}},
		{regexp.MustCompile(`(?i)ipad|tablet|android`), func(_ []string, info *DeviceInfo) {
			info.IsTablet = true
			info.Class = ruletypes.DeviceTablet
		}},
		// Runs after the tablet rule, so an Android UA that also says
		// "mobile" ends up classified as a phone, not a tablet.
		{regexp.MustCompile(`(?i)iphone|ipod|android.*mobile|mobile safari|windows phone`), func(_ []string, info *DeviceInfo) {
			info.IsTablet = false
			info.IsMobile = true
			info.Class = ruletypes.DeviceMobile
		}},
	}

	osRules := []uaRule{
		{regexp.MustCompile(`(?i)windows nt ([\d.]+)`), func(m []string, info *DeviceInfo) { info.OSName, info.OSVersion = "Windows", m[1] }},
		{regexp.MustCompile(`(?i)mac os x ([\d_]+)`), func(m []string, info *DeviceInfo) { info.OSName, info.OSVersion = "macOS", m[1] }},
		{regexp.MustCompile(`(?i)android ([\d.]+)`), func(m []string, info *DeviceInfo) { info.OSName, info.OSVersion = "Android", m[1] }},
		{regexp.MustCompile(`(?i)(?:iphone|ipad).*os ([\d_]+)`), func(m []string, info *DeviceInfo) { info.OSName, info.OSVersion = "iOS", m[1] }},
		{regexp.MustCompile(`(?i)linux`), func(_ []string, info *DeviceInfo) { info.OSName = "Linux" }},
	}
	browserRules := []uaRule{
		{regexp.MustCompile(`(?i)edg/([\d.]+)`), func(m []string, info *DeviceInfo) { info.BrowserName, info.BrowserVersion = "Edge", m[1] }},
		{regexp.MustCompile(`(?i)chrome/([\d.]+)`), func(m []string, info *DeviceInfo) { info.BrowserName, info.BrowserVersion = "Chrome", m[1] }},
		{regexp.MustCompile(`(?i)firefox/([\d.]+)`), func(m []string, info *DeviceInfo) { info.BrowserName, info.BrowserVersion = "Firefox", m[1] }},
		{regexp.MustCompile(`(?i)version/([\d.]+).*safari`), func(m []string, info *DeviceInfo) { info.BrowserName, info.BrowserVersion = "Safari", m[1] }},
	}
	d.rules = append(d.rules, osRules...)
	d.rules = append(d.rules, browserRules...)
	return d
}

// Detect classifies userAgent against the rule table. Unmatched fields are
// left at their zero value; Class defaults to desktop when nothing in the
// table claims the user agent as mobile/tablet, matching the original's
// fallback behavior for unrecognized clients.
func (d *RegexDeviceDetector) Detect(userAgent string) DeviceInfo {
	info := DeviceInfo{Class: ruletypes.DeviceDesktop, IsDesktop: true}
	for _, rule := range d.rules {
		m := rule.pattern.FindStringSubmatch(userAgent)
		if m == nil {
			continue
		}
		rule.apply(m, &info)
	}
	if info.IsMobile || info.IsTablet {
		info.IsDesktop = false
	}
	return info
}
