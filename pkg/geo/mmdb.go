package geo

import (
	"context"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"

	"github.com/ipsentry/ipsentry/pkg/faults"
	"github.com/ipsentry/ipsentry/pkg/models"
)

// MMDBProvider answers lookups from local MaxMind databases. It is
// placed first in the chain when configured: local reads never hit a
// rate limit and keep the HTTP providers as fallback for addresses the
// snapshot does not know.
type MMDBProvider struct {
	cityReader *geoip2.Reader
	asnReader  *geoip2.Reader
}

// NewMMDBProvider opens the City database at cityPath and, when
// asnPath is non-empty, the ASN database alongside it.
func NewMMDBProvider(cityPath, asnPath string) (*MMDBProvider, error) {
	cityReader, err := geoip2.Open(cityPath)
	if err != nil {
		return nil, fmt.Errorf("open city database: %w", err)
	}

	var asnReader *geoip2.Reader
	if asnPath != "" {
		asnReader, err = geoip2.Open(asnPath)
		if err != nil {
			cityReader.Close()
			return nil, fmt.Errorf("open asn database: %w", err)
		}
	}

	return &MMDBProvider{cityReader: cityReader, asnReader: asnReader}, nil
}

// Close releases the database readers.
func (p *MMDBProvider) Close() {
	if p.cityReader != nil {
		p.cityReader.Close()
	}
	if p.asnReader != nil {
		p.asnReader.Close()
	}
}

func (p *MMDBProvider) Name() string { return "mmdb" }

func (p *MMDBProvider) Lookup(_ context.Context, ip string) (models.GeoRecord, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return models.GeoRecord{}, faults.Errorf(faults.KindValidation, "invalid ip address: %s", ip)
	}

	city, err := p.cityReader.City(parsed)
	if err != nil {
		return models.GeoRecord{}, faults.Wrap(err, faults.KindInternal, "city lookup")
	}

	// MaxMind returns an empty record rather than an error for unknown
	// addresses; treat that as this provider's terminal negative so the
	// chain advances without retrying.
	if city.Country.IsoCode == "" && city.City.Names["en"] == "" {
		return models.GeoRecord{IP: ip, Status: models.StatusFail, Message: "address not in database"}, nil
	}

	record := models.GeoRecord{
		IP:          ip,
		Status:      models.StatusSuccess,
		Country:     city.Country.Names["en"],
		CountryCode: city.Country.IsoCode,
		City:        city.City.Names["en"],
		Zip:         city.Postal.Code,
		Lat:         city.Location.Latitude,
		Lon:         city.Location.Longitude,
		Timezone:    city.Location.TimeZone,
	}
	if len(city.Subdivisions) > 0 {
		record.Region = city.Subdivisions[0].Names["en"]
	}

	if p.asnReader != nil {
		if asn, err := p.asnReader.ASN(parsed); err == nil && asn.AutonomousSystemNumber != 0 {
			record.ASN = fmt.Sprintf("AS%d", asn.AutonomousSystemNumber)
			record.Org = asn.AutonomousSystemOrganization
			record.ISP = asn.AutonomousSystemOrganization
		}
	}

	return record, nil
}
