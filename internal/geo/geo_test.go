package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type countingProvider struct {
	name  string
	calls atomic.Int32
	loc   *Location
	err   error
}

func (p *countingProvider) Name() string { return p.name }

func (p *countingProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	p.calls.Add(1)
	return p.loc, p.err
}

func TestMaskIP(t *testing.T) {
	testCases := []struct {
		in   string
		want string
	}{
		{"192.168.1.42", "192.168.1.xxx"},
		{"8.8.8.8", "8.8.8.xxx"},
		{"2001:0db8:85a3:0000:0000:8a2e:0370:7334", "2001:0db8:85a3:0000:xxxx:xxxx:xxxx:xxxx"},
		{"2001:db8::1", "2001:db8::1:xxxx:xxxx:xxxx:xxxx"},
		{"not-an-ip", "not-an-ip"},
		{"", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, MaskIP(tc.in))
		})
	}
}

func TestMaskIPNeverLeaksHostOctet(t *testing.T) {
	masked := MaskIP("10.20.30.40")
	assert.False(t, strings.Contains(masked, "40"))
	assert.True(t, strings.HasSuffix(masked, ".xxx"))
}

func TestLookupLocalShortCircuits(t *testing.T) {
	provider := &countingProvider{name: "counting", loc: &Location{Country: str("Nowhere")}}
	resolver := NewResolver(testLogger(), time.Second, provider)

	for _, ip := range []string{"127.0.0.1", "::1", "localhost", ""} {
		loc := resolver.Lookup(context.Background(), ip)
		require.NotNil(t, loc.Country)
		assert.Equal(t, "Local", *loc.Country)
		assert.Equal(t, "LO", *loc.CountryCode)
		assert.Equal(t, "Local", *loc.City)
		assert.Equal(t, "Local Network", *loc.ISP)
		assert.Nil(t, loc.Latitude)
		assert.Nil(t, loc.Timezone)
	}

	assert.Equal(t, int32(0), provider.calls.Load())
}

func TestLookupFallsThroughProviders(t *testing.T) {
	failing := &countingProvider{name: "failing", err: errors.New("boom")}
	empty := &countingProvider{name: "empty"}
	working := &countingProvider{name: "working", loc: &Location{Country: str("Germany"), CountryCode: str("DE")}}
	unused := &countingProvider{name: "unused", loc: &Location{Country: str("France")}}

	resolver := NewResolver(testLogger(), time.Second, failing, empty, working, unused)
	loc := resolver.Lookup(context.Background(), "203.0.113.9")

	require.NotNil(t, loc.Country)
	assert.Equal(t, "Germany", *loc.Country)
	assert.Equal(t, int32(1), failing.calls.Load())
	assert.Equal(t, int32(1), empty.calls.Load())
	assert.Equal(t, int32(1), working.calls.Load())
	assert.Equal(t, int32(0), unused.calls.Load())
}

func TestLookupAllProvidersFail(t *testing.T) {
	resolver := NewResolver(testLogger(), time.Second,
		&countingProvider{name: "a", err: errors.New("down")},
		&countingProvider{name: "b", err: ErrNotResolved},
	)

	loc := resolver.Lookup(context.Background(), "203.0.113.9")
	assert.True(t, loc.IsEmpty())
}

func TestIPAPIProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/json/203.0.113.9", r.URL.Path)
		assert.Contains(t, r.URL.RawQuery, "fields=status,country,countryCode")
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","country":"United States","countryCode":"US","region":"CA","regionName":"California","city":"Mountain View","lat":37.386,"lon":-122.0838,"timezone":"America/Los_Angeles","isp":"Google LLC"}`)
	}))
	defer server.Close()

	provider := &IPAPIProvider{BaseURL: server.URL, Client: server.Client()}
	loc, err := provider.Lookup(context.Background(), "203.0.113.9")
	require.NoError(t, err)

	assert.Equal(t, "United States", *loc.Country)
	assert.Equal(t, "US", *loc.CountryCode)
	assert.Equal(t, "California", *loc.Region)
	assert.Equal(t, "Mountain View", *loc.City)
	assert.InDelta(t, 37.386, *loc.Latitude, 0.0001)
	assert.InDelta(t, -122.0838, *loc.Longitude, 0.0001)
	assert.Equal(t, "America/Los_Angeles", *loc.Timezone)
	assert.Equal(t, "Google LLC", *loc.ISP)
}

func TestIPAPIProviderFailStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"fail","message":"private range"}`)
	}))
	defer server.Close()

	provider := &IPAPIProvider{BaseURL: server.URL, Client: server.Client()}
	_, err := provider.Lookup(context.Background(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestIPAPICoProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/198.51.100.7/json/" {
			io.WriteString(w, `{"country_name":"Japan","country_code":"JP","region":"Tokyo","city":"Tokyo","latitude":35.6895,"longitude":139.6917,"timezone":"Asia/Tokyo","org":"NTT"}`)
			return
		}
		io.WriteString(w, `{"error":true,"reason":"Reserved IP Address"}`)
	}))
	defer server.Close()

	provider := &IPAPICoProvider{BaseURL: server.URL, Client: server.Client()}

	loc, err := provider.Lookup(context.Background(), "198.51.100.7")
	require.NoError(t, err)
	assert.Equal(t, "Japan", *loc.Country)
	assert.Equal(t, "NTT", *loc.ISP)

	_, err = provider.Lookup(context.Background(), "10.0.0.1")
	assert.ErrorIs(t, err, ErrNotResolved)
}

func TestIPInfoProvider(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/192.0.2.44/json", r.URL.Path)
		io.WriteString(w, `{"ip":"192.0.2.44","city":"Berlin","region":"Land Berlin","country":"DE","loc":"52.5244,13.4105","org":"AS3320 Deutsche Telekom AG","timezone":"Europe/Berlin"}`)
	}))
	defer server.Close()

	provider := &IPInfoProvider{BaseURL: server.URL, Client: server.Client()}
	loc, err := provider.Lookup(context.Background(), "192.0.2.44")
	require.NoError(t, err)

	assert.Equal(t, "Germany", *loc.Country)
	assert.Equal(t, "DE", *loc.CountryCode)
	assert.Equal(t, "Berlin", *loc.City)
	assert.InDelta(t, 52.5244, *loc.Latitude, 0.0001)
	assert.InDelta(t, 13.4105, *loc.Longitude, 0.0001)
}

func TestProvidersRejectNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer server.Close()

	providers := []Provider{
		&IPAPIProvider{BaseURL: server.URL, Client: server.Client()},
		&IPAPICoProvider{BaseURL: server.URL, Client: server.Client()},
		&IPInfoProvider{BaseURL: server.URL, Client: server.Client()},
	}
	for _, p := range providers {
		_, err := p.Lookup(context.Background(), "203.0.113.9")
		assert.Error(t, err, p.Name())
	}
}

func TestLookupTimeoutMovesToNextProvider(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer slow.Close()

	fast := &countingProvider{name: "fast", loc: &Location{City: str("Lisbon")}}
	resolver := NewResolver(testLogger(), 50*time.Millisecond,
		&IPAPIProvider{BaseURL: slow.URL, Client: slow.Client()},
		fast,
	)

	start := time.Now()
	loc := resolver.Lookup(context.Background(), "203.0.113.9")
	require.NotNil(t, loc.City)
	assert.Equal(t, "Lisbon", *loc.City)
	assert.Less(t, time.Since(start), time.Second)
}

func TestParseLoc(t *testing.T) {
	lat, lon := parseLoc("1.5,-2.25")
	require.NotNil(t, lat)
	require.NotNil(t, lon)
	assert.Equal(t, 1.5, *lat)
	assert.Equal(t, -2.25, *lon)

	lat, lon = parseLoc("")
	assert.Nil(t, lat)
	assert.Nil(t, lon)

	lat, lon = parseLoc("abc,")
	assert.Nil(t, lat)
	assert.Nil(t, lon)
}
