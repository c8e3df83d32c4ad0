// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package reqctx

import (
	"net"

	"github.com/oschwald/geoip2-golang"
	"github.com/oschwald/maxminddb-golang"

	"grimm.is/edgesentry/internal/errors"
)

// GeoInfo is everything the facade's geolocation and proxy-detection
// fields expose, resolved from the client IP (SPEC_FULL §4.1).
type GeoInfo struct {
	Country      string
	CountryCode3 string
	Continent    string
	City         string
	Region       string
	PostalCode   string
	Latitude     float64
	Longitude    float64
	MetroCode    uint
	UTCOffset    string
	ConnSpeed    string
	ConnType     string
	ASN          uint

	ProxyType         string
	ProxyDescription  string
	IsHostingProvider bool
}

// GeoLookup resolves GeoInfo for a client IP. The production
// implementation is backed by an MMDB file via geoip2-golang/maxminddb-golang;
// StaticGeoLookup is a fixed-map alternative.
type GeoLookup interface {
	Lookup(ip net.IP) (GeoInfo, error)
}

// MaxMindGeoLookup resolves GeoInfo from a GeoIP2 City (or compatible)
// database, the library pairing present in the teacher's go.mod but never
// wired to a component there.
type MaxMindGeoLookup struct {
	reader *geoip2.Reader
}

// OpenMaxMindGeoLookup opens the MMDB file at path.
func OpenMaxMindGeoLookup(path string) (*MaxMindGeoLookup, error) {
	reader, err := geoip2.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindLoad, "open geoip database %s", path)
	}
	return &MaxMindGeoLookup{reader: reader}, nil
}

// Close releases the underlying MMDB file.
func (g *MaxMindGeoLookup) Close() error {
	return g.reader.Close()
}

// Lookup implements GeoLookup.
func (g *MaxMindGeoLookup) Lookup(ip net.IP) (GeoInfo, error) {
	record, err := g.reader.City(ip)
	if err != nil {
		if err == maxminddb.ErrInvalidDatabase {
			return GeoInfo{}, errors.Wrap(err, errors.KindInternal, "invalid geoip database")
		}
		return GeoInfo{}, errors.Wrap(err, errors.KindInternal, "geoip lookup")
	}

	info := GeoInfo{
		Country:      record.Country.Names["en"],
		CountryCode3: record.Country.IsoCode,
		Continent:    record.Continent.Names["en"],
		City:         record.City.Names["en"],
		PostalCode:   record.Postal.Code,
		Latitude:     record.Location.Latitude,
		Longitude:    record.Location.Longitude,
		MetroCode:    uint(record.Location.MetroCode),
		UTCOffset:    record.Location.TimeZone,
	}
	if len(record.Subdivisions) > 0 {
		info.Region = record.Subdivisions[0].Names["en"]
	}
	return info, nil
}

// StaticGeoLookup is a fixed IP->GeoInfo map, for setups that do not ship
// an MMDB file. An IP absent from the map resolves to an empty GeoInfo.
type StaticGeoLookup map[string]GeoInfo

// Lookup implements GeoLookup.
func (s StaticGeoLookup) Lookup(ip net.IP) (GeoInfo, error) {
	info, ok := s[ip.String()]
	if !ok {
		return GeoInfo{}, nil
	}
	return info, nil
}
