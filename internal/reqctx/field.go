// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import "strings"

// RequestField names one attribute a graph Condition node can read. The
// flat form restricts itself to the six ConditionRule kinds in §3; the
// graph form draws from this richer catalogue, restored from the original
// implementation's field set (SPEC_FULL §3).
type RequestField string

const (
	// Connection
	FieldClientIP RequestField = "client_ip"
	FieldASN      RequestField = "asn"

	// Geolocation
	FieldCountry      RequestField = "country"
	FieldCountryCode3 RequestField = "country_code3"
	FieldContinent    RequestField = "continent"
	FieldCity         RequestField = "city"
	FieldRegion       RequestField = "region"
	FieldPostalCode   RequestField = "postal_code"
	FieldLatitude     RequestField = "latitude"
	FieldLongitude    RequestField = "longitude"
	FieldMetroCode    RequestField = "metro_code"
	FieldUTCOffset    RequestField = "utc_offset"
	FieldConnSpeed    RequestField = "conn_speed"
	FieldConnType     RequestField = "conn_type"

	// Proxy detection
	FieldProxyType         RequestField = "proxy_type"
	FieldProxyDescription  RequestField = "proxy_description"
	FieldIsHostingProvider RequestField = "is_hosting_provider"

	// Device detection
	FieldIsBot         RequestField = "is_bot"
	FieldBotName       RequestField = "bot_name"
	FieldIsMobile      RequestField = "is_mobile"
	FieldIsTablet      RequestField = "is_tablet"
	FieldIsDesktop     RequestField = "is_desktop"
	FieldIsSmartTV     RequestField = "is_smart_tv"
	FieldIsGameConsole RequestField = "is_game_console"
	FieldDeviceName    RequestField = "device_name"
	FieldDeviceBrand   RequestField = "device_brand"
	FieldDeviceModel   RequestField = "device_model"
	FieldBrowserName   RequestField = "browser_name"
	FieldBrowserVersion RequestField = "browser_version"
	FieldOSName        RequestField = "os_name"
	FieldOSVersion     RequestField = "os_version"

	// Request
	FieldMethod    RequestField = "method"
	FieldPath      RequestField = "path"
	FieldHost      RequestField = "host"
	FieldUserAgent RequestField = "user_agent"

	// TLS fingerprint
	FieldJA3 RequestField = "ja3"
	FieldJA4 RequestField = "ja4"

	// headerFieldPrefix addresses a named request header: "header:X-Api-Key".
	headerFieldPrefix = "header:"
)

// HeaderField builds the RequestField that addresses the named header.
func HeaderField(name string) RequestField {
	return RequestField(headerFieldPrefix + name)
}

// HeaderName returns the header name a header RequestField addresses, and
// whether f is a header field at all.
func (f RequestField) HeaderName() (string, bool) {
	s := string(f)
	if !strings.HasPrefix(s, headerFieldPrefix) {
		return "", false
	}
	return s[len(headerFieldPrefix):], true
}

// AllStandardFields lists every non-header RequestField, for validation and
// for UI field pickers (mirrors original_source/core/src/nodes.rs
// RequestField::all_standard()).
func AllStandardFields() []RequestField {
	return []RequestField{
		FieldClientIP, FieldASN,
		FieldCountry, FieldCountryCode3, FieldContinent, FieldCity, FieldRegion,
		FieldPostalCode, FieldLatitude, FieldLongitude, FieldMetroCode, FieldUTCOffset,
		FieldConnSpeed, FieldConnType,
		FieldProxyType, FieldProxyDescription, FieldIsHostingProvider,
		FieldIsBot, FieldBotName, FieldIsMobile, FieldIsTablet, FieldIsDesktop,
		FieldIsSmartTV, FieldIsGameConsole, FieldDeviceName, FieldDeviceBrand,
		FieldDeviceModel, FieldBrowserName, FieldBrowserVersion, FieldOSName, FieldOSVersion,
		FieldMethod, FieldPath, FieldHost, FieldUserAgent,
		FieldJA3, FieldJA4,
	}
}

// Category groups a RequestField for display, mirroring the original's
// NodeCategory groupings.
func (f RequestField) Category() string {
	switch f {
	case FieldClientIP, FieldASN:
		return "connection"
	case FieldCountry, FieldCountryCode3, FieldContinent, FieldCity, FieldRegion,
		FieldPostalCode, FieldLatitude, FieldLongitude, FieldMetroCode, FieldUTCOffset,
		FieldConnSpeed, FieldConnType:
		return "geolocation"
	case FieldProxyType, FieldProxyDescription, FieldIsHostingProvider:
		return "proxy"
	case FieldIsBot, FieldBotName, FieldIsMobile, FieldIsTablet, FieldIsDesktop,
		FieldIsSmartTV, FieldIsGameConsole, FieldDeviceName, FieldDeviceBrand,
		FieldDeviceModel, FieldBrowserName, FieldBrowserVersion, FieldOSName, FieldOSVersion:
		return "device"
	case FieldMethod, FieldPath, FieldHost, FieldUserAgent:
		return "request"
	case FieldJA3, FieldJA4:
		return "tls"
	default:
		if _, ok := f.HeaderName(); ok {
			return "header"
		}
		return "unknown"
	}
}
