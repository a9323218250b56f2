package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/pariz/gountries"

	"linkpulse/internal/pkg/geoip"
)

// Provider looks up one IP address. Any error hands the lookup to the next provider.
type Provider interface {
	Name() string
	Lookup(ctx context.Context, ip string) (*Location, error)
}

// ErrNotResolved is returned when a provider answered but had no usable result.
var ErrNotResolved = errors.New("provider could not resolve address")

func getJSON(ctx context.Context, client *http.Client, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "linkpulse")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func float(value float64) *float64 {
	return &value
}

// IPAPIProvider queries ip-api.com.
type IPAPIProvider struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPAPIProvider) Name() string { return "ip-api" }

type ipAPIResponse struct {
	Status      string   `json:"status"`
	Country     string   `json:"country"`
	CountryCode string   `json:"countryCode"`
	Region      string   `json:"region"`
	RegionName  string   `json:"regionName"`
	City        string   `json:"city"`
	Lat         *float64 `json:"lat"`
	Lon         *float64 `json:"lon"`
	Timezone    string   `json:"timezone"`
	ISP         string   `json:"isp"`
}

func (p *IPAPIProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	base := p.BaseURL
	if base == "" {
		base = "http://ip-api.com"
	}
	url := fmt.Sprintf("%s/json/%s?fields=status,country,countryCode,region,regionName,city,lat,lon,timezone,isp", base, ip)

	var data ipAPIResponse
	if err := getJSON(ctx, p.Client, url, &data); err != nil {
		return nil, err
	}
	if data.Status != "success" {
		return nil, ErrNotResolved
	}

	return &Location{
		Country:     str(data.Country),
		CountryCode: str(data.CountryCode),
		Region:      str(data.RegionName),
		City:        str(data.City),
		Latitude:    data.Lat,
		Longitude:   data.Lon,
		Timezone:    str(data.Timezone),
		ISP:         str(data.ISP),
	}, nil
}

// IPAPICoProvider queries ipapi.co.
type IPAPICoProvider struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPAPICoProvider) Name() string { return "ipapi.co" }

type ipAPICoResponse struct {
	Error       bool     `json:"error"`
	Reason      string   `json:"reason"`
	CountryName string   `json:"country_name"`
	CountryCode string   `json:"country_code"`
	Region      string   `json:"region"`
	City        string   `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    string   `json:"timezone"`
	Org         string   `json:"org"`
}

func (p *IPAPICoProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	base := p.BaseURL
	if base == "" {
		base = "https://ipapi.co"
	}

	var data ipAPICoResponse
	if err := getJSON(ctx, p.Client, fmt.Sprintf("%s/%s/json/", base, ip), &data); err != nil {
		return nil, err
	}
	if data.Error {
		return nil, fmt.Errorf("%w: %s", ErrNotResolved, data.Reason)
	}

	return &Location{
		Country:     str(data.CountryName),
		CountryCode: str(data.CountryCode),
		Region:      str(data.Region),
		City:        str(data.City),
		Latitude:    data.Latitude,
		Longitude:   data.Longitude,
		Timezone:    str(data.Timezone),
		ISP:         str(data.Org),
	}, nil
}

// IPInfoProvider queries ipinfo.io. The API only returns a country code,
// so the country name is looked up locally.
type IPInfoProvider struct {
	BaseURL string
	Client  *http.Client
}

func (p *IPInfoProvider) Name() string { return "ipinfo" }

var (
	countries     *gountries.Query
	countriesOnce sync.Once
)

type ipInfoResponse struct {
	Error    json.RawMessage `json:"error"`
	Country  string          `json:"country"`
	Region   string          `json:"region"`
	City     string          `json:"city"`
	Loc      string          `json:"loc"`
	Timezone string          `json:"timezone"`
	Org      string          `json:"org"`
}

// countryName maps an ISO code to its common English name.
func countryName(code string) string {
	if code == "" {
		return ""
	}
	countriesOnce.Do(func() { countries = gountries.New() })
	country, err := countries.FindCountryByAlpha(code)
	if err != nil {
		return code
	}
	return country.Name.Common
}

func (p *IPInfoProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	base := p.BaseURL
	if base == "" {
		base = "https://ipinfo.io"
	}

	var data ipInfoResponse
	if err := getJSON(ctx, p.Client, fmt.Sprintf("%s/%s/json", base, ip), &data); err != nil {
		return nil, err
	}
	if len(data.Error) > 0 && string(data.Error) != "null" {
		return nil, ErrNotResolved
	}

	loc := &Location{
		Country:     str(countryName(data.Country)),
		CountryCode: str(data.Country),
		Region:      str(data.Region),
		City:        str(data.City),
		Timezone:    str(data.Timezone),
		ISP:         str(data.Org),
	}
	loc.Latitude, loc.Longitude = parseLoc(data.Loc)
	return loc, nil
}

// parseLoc reads ipinfo's "lat,lon" pair. Missing or malformed parts stay nil.
func parseLoc(value string) (*float64, *float64) {
	parts := strings.Split(value, ",")
	var lat, lon *float64
	if len(parts) > 0 && parts[0] != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64); err == nil {
			lat = float(v)
		}
	}
	if len(parts) > 1 && parts[1] != "" {
		if v, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64); err == nil {
			lon = float(v)
		}
	}
	return lat, lon
}

// GeoLiteProvider resolves addresses offline from the GeoLite2-City database.
type GeoLiteProvider struct{}

func (p *GeoLiteProvider) Name() string { return "geolite" }

func (p *GeoLiteProvider) Lookup(ctx context.Context, ip string) (*Location, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return nil, fmt.Errorf("invalid ip address: %q", ip)
	}

	record, err := geoip.LookupCity(parsed)
	if err != nil {
		return nil, err
	}
	if record.Country.IsoCode == "" {
		return nil, ErrNotResolved
	}

	loc := &Location{
		Country:     str(record.Country.Names["en"]),
		CountryCode: str(record.Country.IsoCode),
		City:        str(record.City.Names["en"]),
		Timezone:    str(record.Location.TimeZone),
	}
	if len(record.Subdivisions) > 0 {
		loc.Region = str(record.Subdivisions[0].Names["en"])
	}
	if record.Location.Latitude != 0 || record.Location.Longitude != 0 {
		loc.Latitude = float(record.Location.Latitude)
		loc.Longitude = float(record.Location.Longitude)
	}
	return loc, nil
}
