package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ipsentry/ipsentry/pkg/faults"
	"github.com/ipsentry/ipsentry/pkg/models"
)

func newTestIPAPI(t *testing.T, handler http.HandlerFunc) *IPAPIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	p := NewIPAPIProvider(time.Second)
	p.baseURL = srv.URL
	return p
}

func TestIPAPISuccess(t *testing.T) {
	p := newTestIPAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "success",
			"country": "Netherlands",
			"countryCode": "NL",
			"regionName": "North Holland",
			"city": "Amsterdam",
			"zip": "1012",
			"lat": 52.37,
			"lon": 4.89,
			"timezone": "Europe/Amsterdam",
			"isp": "Example ISP",
			"org": "Example Org",
			"as": "AS64500 Example"
		}`))
	})

	rec, err := p.Lookup(context.Background(), "203.0.113.5")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "Netherlands", rec.Country)
	assert.Equal(t, "NL", rec.CountryCode)
	assert.Equal(t, "Amsterdam", rec.City)
	assert.InDelta(t, 52.37, rec.Lat, 0.001)
	assert.Equal(t, "AS64500 Example", rec.ASN)
}

func TestIPAPIProviderReportedFailure(t *testing.T) {
	p := newTestIPAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "fail", "message": "reserved range"}`))
	})

	rec, err := p.Lookup(context.Background(), "240.0.0.1")
	require.NoError(t, err, "a provider-reported negative is a terminal answer, not an error")
	assert.Equal(t, models.StatusFail, rec.Status)
	assert.Equal(t, "reserved range", rec.Message)
}

func TestIPAPIStatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		wantKind faults.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, faults.KindRateLimited},
		{"bad gateway", http.StatusBadGateway, faults.KindUnavailable},
		{"internal error", http.StatusInternalServerError, faults.KindUnavailable},
		{"not found", http.StatusNotFound, faults.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestIPAPI(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := p.Lookup(context.Background(), "203.0.113.5")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, faults.GetKind(err))
		})
	}
}

func TestIPAPIMalformedResponse(t *testing.T) {
	p := newTestIPAPI(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>definitely not json</html>`))
	})

	_, err := p.Lookup(context.Background(), "203.0.113.5")
	require.Error(t, err)
	assert.Equal(t, faults.KindInternal, faults.GetKind(err))
	assert.False(t, faults.Retryable(err), "malformed responses must advance the chain, not retry")
}

func TestIPAPITimeout(t *testing.T) {
	p := newTestIPAPI(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := p.Lookup(ctx, "203.0.113.5")
	require.Error(t, err)
	assert.Equal(t, faults.KindTimeout, faults.GetKind(err))
	assert.True(t, faults.Retryable(err))
}

func TestIPAPICoSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{
			"country_name": "Germany",
			"country_code": "DE",
			"region": "Hesse",
			"city": "Frankfurt",
			"postal": "60311",
			"latitude": 50.11,
			"longitude": 8.68,
			"timezone": "Europe/Berlin",
			"org": "Example GmbH",
			"asn": "AS64501"
		}`))
	}))
	t.Cleanup(srv.Close)

	p := NewIPAPICoProvider(time.Second)
	p.baseURL = srv.URL

	rec, err := p.Lookup(context.Background(), "203.0.113.6")
	require.NoError(t, err)
	assert.Equal(t, models.StatusSuccess, rec.Status)
	assert.Equal(t, "Germany", rec.Country)
	assert.Equal(t, "Frankfurt", rec.City)
	assert.Equal(t, "AS64501", rec.ASN)
}

func TestIPAPICoErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error": true, "reason": "Reserved IP Address"}`))
	}))
	t.Cleanup(srv.Close)

	p := NewIPAPICoProvider(time.Second)
	p.baseURL = srv.URL

	rec, err := p.Lookup(context.Background(), "240.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusFail, rec.Status)
	assert.Equal(t, "Reserved IP Address", rec.Message)
}
