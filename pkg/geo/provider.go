package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/ipsentry/ipsentry/pkg/faults"
	"github.com/ipsentry/ipsentry/pkg/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Provider is one geolocation data source in the fallback chain.
//
// Lookup returns (record, nil) for every terminal answer, including a
// provider-reported negative (record.Status == StatusFail). An error
// return means the provider produced no answer; the faults kind on the
// error decides whether the resolver retries the provider (timeout,
// unavailable, rate-limited) or advances to the next one.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (models.GeoRecord, error)
}

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   timeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: timeout,
			MaxIdleConnsPerHost: 10,
		},
	}
}

// fetchJSON issues the request and maps transport/status problems onto
// faults kinds shared by both HTTP providers.
func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return faults.Wrap(err, faults.KindInternal, "build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "ipsentry/1.0")

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return faults.Wrap(err, faults.KindTimeout, "request timed out")
		}
		return faults.Wrap(err, faults.KindUnavailable, "request failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		io.Copy(io.Discard, resp.Body)
		return faults.New(faults.KindRateLimited, "rate limited")
	case resp.StatusCode >= 500:
		io.Copy(io.Discard, resp.Body)
		return faults.Errorf(faults.KindUnavailable, "server error %d", resp.StatusCode)
	default:
		io.Copy(io.Discard, resp.Body)
		return faults.Errorf(faults.KindInternal, "unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return faults.Wrap(err, faults.KindUnavailable, "read response")
	}
	if err := json.Unmarshal(body, out); err != nil {
		return faults.Wrap(err, faults.KindInternal, "malformed response")
	}
	return nil
}

// IPAPIProvider queries ip-api.com (the original primary source).
type IPAPIProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPIProvider creates an ip-api.com provider with the given
// per-request timeout.
func NewIPAPIProvider(timeout time.Duration) *IPAPIProvider {
	return &IPAPIProvider{
		baseURL: "http://ip-api.com",
		client:  newHTTPClient(timeout),
	}
}

func (p *IPAPIProvider) Name() string { return "ip-api" }

type ipapiComResponse struct {
	Status      string  `json:"status"`
	Message     string  `json:"message"`
	Country     string  `json:"country"`
	CountryCode string  `json:"countryCode"`
	RegionName  string  `json:"regionName"`
	City        string  `json:"city"`
	Zip         string  `json:"zip"`
	Lat         float64 `json:"lat"`
	Lon         float64 `json:"lon"`
	Timezone    string  `json:"timezone"`
	ISP         string  `json:"isp"`
	Org         string  `json:"org"`
	AS          string  `json:"as"`
}

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (models.GeoRecord, error) {
	url := fmt.Sprintf("%s/json/%s?fields=status,message,country,countryCode,regionName,city,zip,lat,lon,timezone,isp,org,as,query", p.baseURL, ip)

	var parsed ipapiComResponse
	if err := fetchJSON(ctx, p.client, url, &parsed); err != nil {
		return models.GeoRecord{}, err
	}

	if parsed.Status != "success" {
		// The provider's own terminal negative (reserved range, bogon).
		msg := parsed.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return models.GeoRecord{IP: ip, Status: models.StatusFail, Message: msg}, nil
	}

	return models.GeoRecord{
		IP:          ip,
		Status:      models.StatusSuccess,
		Country:     parsed.Country,
		CountryCode: parsed.CountryCode,
		Region:      parsed.RegionName,
		City:        parsed.City,
		Zip:         parsed.Zip,
		Lat:         parsed.Lat,
		Lon:         parsed.Lon,
		Timezone:    parsed.Timezone,
		ISP:         parsed.ISP,
		Org:         parsed.Org,
		ASN:         parsed.AS,
	}, nil
}

// IPAPICoProvider queries ipapi.co (the original fallback source).
type IPAPICoProvider struct {
	baseURL string
	client  *http.Client
}

// NewIPAPICoProvider creates an ipapi.co provider with the given
// per-request timeout.
func NewIPAPICoProvider(timeout time.Duration) *IPAPICoProvider {
	return &IPAPICoProvider{
		baseURL: "https://ipapi.co",
		client:  newHTTPClient(timeout),
	}
}

func (p *IPAPICoProvider) Name() string { return "ipapi" }

type ipapiCoResponse struct {
	Error       bool    `json:"error"`
	Reason      string  `json:"reason"`
	CountryName string  `json:"country_name"`
	CountryCode string  `json:"country_code"`
	Region      string  `json:"region"`
	City        string  `json:"city"`
	Postal      string  `json:"postal"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Timezone    string  `json:"timezone"`
	Org         string  `json:"org"`
	ASN         string  `json:"asn"`
}

func (p *IPAPICoProvider) Lookup(ctx context.Context, ip string) (models.GeoRecord, error) {
	url := fmt.Sprintf("%s/%s/json/", p.baseURL, ip)

	var parsed ipapiCoResponse
	if err := fetchJSON(ctx, p.client, url, &parsed); err != nil {
		return models.GeoRecord{}, err
	}

	if parsed.Error {
		msg := parsed.Reason
		if msg == "" {
			msg = "lookup failed"
		}
		return models.GeoRecord{IP: ip, Status: models.StatusFail, Message: msg}, nil
	}

	return models.GeoRecord{
		IP:          ip,
		Status:      models.StatusSuccess,
		Country:     parsed.CountryName,
		CountryCode: parsed.CountryCode,
		Region:      parsed.Region,
		City:        parsed.City,
		Zip:         parsed.Postal,
		Lat:         parsed.Latitude,
		Lon:         parsed.Longitude,
		Timezone:    parsed.Timezone,
		ISP:         parsed.Org,
		Org:         parsed.Org,
		ASN:         parsed.ASN,
	}, nil
}
