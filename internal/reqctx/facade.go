// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import (
	"net"
	"strconv"
)

// Facade is the read-only request-context view the evaluator consumes. It
// must never mutate the host request (§4.1). Header() preserves header
// insertion order via HeaderNames() + per-name lookup.
type Facade interface {
	Method() string
	URL() string
	Path() string
	Query() string
	Version() string
	ClientIP() string
	ServerIP() string
	ContentLength() int
	ContentType() string
	HasBody() bool
	HeaderNames() []string
	Header(name string) (string, bool)
	UserAgent() string
	Device() DeviceInfo
	Geo() GeoInfo
	JA3() (string, bool)

	// Field resolves the full graph-form RequestField catalogue (§3 added).
	Field(f RequestField) Value
}

// Request is a concrete, immutable Facade implementation populated once at
// request entry (either from a live host request or from a JSON test
// fixture) and discarded at verdict, per the lifecycle in §3.
type Request struct {
	MethodVal        string
	URLVal           string
	PathVal          string
	QueryVal         string
	VersionVal       string
	ClientIPVal      string
	ServerIPVal      string
	ContentLengthVal int
	ContentTypeVal   string
	HasBodyVal       bool
	HeaderOrder      []string
	Headers          map[string]string
	UserAgentVal     string

	device DeviceInfo
	geo    GeoInfo
	ja3    string
	hasJA3 bool
}

// NewRequest resolves device and geolocation information eagerly, via the
// supplied detector/lookup, and returns an immutable Facade.
func NewRequest(r Request, detector DeviceDetector, geo GeoLookup) *Request {
	if detector != nil {
		r.device = detector.Detect(r.UserAgentVal)
	}
	if geo != nil {
		if ip := net.ParseIP(r.ClientIPVal); ip != nil {
			if info, err := geo.Lookup(ip); err == nil {
				r.geo = info
			}
		}
	}
	return &r
}

// WithJA3 attaches a pre-resolved TLS fingerprint, as the edge runtime
// would supply it directly (§4.1).
func (r *Request) WithJA3(hash string) *Request {
	r.ja3 = hash
	r.hasJA3 = hash != ""
	return r
}

func (r *Request) Method() string        { return r.MethodVal }
func (r *Request) URL() string           { return r.URLVal }
func (r *Request) Path() string          { return r.PathVal }
func (r *Request) Query() string         { return r.QueryVal }
func (r *Request) Version() string       { return r.VersionVal }
func (r *Request) ClientIP() string      { return r.ClientIPVal }
func (r *Request) ServerIP() string      { return r.ServerIPVal }
func (r *Request) ContentLength() int    { return r.ContentLengthVal }
func (r *Request) ContentType() string   { return r.ContentTypeVal }
func (r *Request) HasBody() bool         { return r.HasBodyVal }
func (r *Request) UserAgent() string     { return r.UserAgentVal }
func (r *Request) Device() DeviceInfo    { return r.device }
func (r *Request) Geo() GeoInfo          { return r.geo }
func (r *Request) JA3() (string, bool)   { return r.ja3, r.hasJA3 }

func (r *Request) HeaderNames() []string {
	return r.HeaderOrder
}

func (r *Request) Header(name string) (string, bool) {
	v, ok := r.Headers[name]
	return v, ok
}

// Field resolves the full RequestField catalogue against this request,
// used by graph Condition nodes (§3 added).
func (r *Request) Field(f RequestField) Value {
	if name, ok := f.HeaderName(); ok {
		if v, ok := r.Header(name); ok {
			return NewString(v)
		}
		return None
	}

	switch f {
	case FieldClientIP:
		return NewIP(r.ClientIPVal)
	case FieldASN:
		return NewNumber(float64(r.geo.ASN))
	case FieldCountry:
		return stringOrNone(r.geo.Country)
	case FieldCountryCode3:
		return stringOrNone(r.geo.CountryCode3)
	case FieldContinent:
		return stringOrNone(r.geo.Continent)
	case FieldCity:
		return stringOrNone(r.geo.City)
	case FieldRegion:
		return stringOrNone(r.geo.Region)
	case FieldPostalCode:
		return stringOrNone(r.geo.PostalCode)
	case FieldLatitude:
		return NewNumber(r.geo.Latitude)
	case FieldLongitude:
		return NewNumber(r.geo.Longitude)
	case FieldMetroCode:
		return NewNumber(float64(r.geo.MetroCode))
	case FieldUTCOffset:
		return stringOrNone(r.geo.UTCOffset)
	case FieldConnSpeed:
		return stringOrNone(r.geo.ConnSpeed)
	case FieldConnType:
		return stringOrNone(r.geo.ConnType)
	case FieldProxyType:
		return stringOrNone(r.geo.ProxyType)
	case FieldProxyDescription:
		return stringOrNone(r.geo.ProxyDescription)
	case FieldIsHostingProvider:
		return NewBool(r.geo.IsHostingProvider)
	case FieldIsBot:
		return NewBool(r.device.IsBot)
	case FieldBotName:
		return stringOrNone(r.device.BotName)
	case FieldIsMobile:
		return NewBool(r.device.IsMobile)
	case FieldIsTablet:
		return NewBool(r.device.IsTablet)
	case FieldIsDesktop:
		return NewBool(r.device.IsDesktop)
	case FieldIsSmartTV:
		return NewBool(r.device.IsSmartTV)
	case FieldIsGameConsole:
		return NewBool(r.device.IsGameConsole)
	case FieldDeviceName:
		return stringOrNone(r.device.DeviceName)
	case FieldDeviceBrand:
		return stringOrNone(r.device.DeviceBrand)
	case FieldDeviceModel:
		return stringOrNone(r.device.DeviceModel)
	case FieldBrowserName:
		return stringOrNone(r.device.BrowserName)
	case FieldBrowserVersion:
		return stringOrNone(r.device.BrowserVersion)
	case FieldOSName:
		return stringOrNone(r.device.OSName)
	case FieldOSVersion:
		return stringOrNone(r.device.OSVersion)
	case FieldMethod:
		return NewString(r.MethodVal)
	case FieldPath:
		return NewString(r.PathVal)
	case FieldHost:
		return stringOrNone(r.ServerIPVal)
	case FieldUserAgent:
		return stringOrNone(r.UserAgentVal)
	case FieldJA3:
		if r.hasJA3 {
			return NewString(r.ja3)
		}
		return None
	default:
		return None
	}
}

func stringOrNone(s string) Value {
	if s == "" {
		return None
	}
	return NewString(s)
}

// ContentLengthString renders ContentLength for log records (§4.7).
func (r *Request) ContentLengthString() string {
	return strconv.Itoa(r.ContentLengthVal)
}
