// Package geo resolves client IP addresses to approximate locations and
// masks addresses before they are stored.
package geo

import (
	"strings"
)

// Location is the geographic data attached to a click. Nil fields are unknown.
type Location struct {
	Country     *string  `json:"country"`
	CountryCode *string  `json:"country_code"`
	Region      *string  `json:"region"`
	City        *string  `json:"city"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
	Timezone    *string  `json:"timezone"`
	ISP         *string  `json:"isp"`
}

// IsEmpty reports whether nothing at all is known.
func (l Location) IsEmpty() bool {
	return l.Country == nil && l.CountryCode == nil && l.Region == nil && l.City == nil &&
		l.Latitude == nil && l.Longitude == nil && l.Timezone == nil && l.ISP == nil
}

func str(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// LocalLocation is returned for loopback addresses without asking any provider.
func LocalLocation() Location {
	return Location{
		Country:     str("Local"),
		CountryCode: str("LO"),
		Region:      str("Local"),
		City:        str("Local"),
		ISP:         str("Local Network"),
	}
}

// IsLocal reports whether ip is empty or a loopback literal.
func IsLocal(ip string) bool {
	switch strings.TrimSpace(ip) {
	case "", "127.0.0.1", "::1", "localhost":
		return true
	}
	return false
}

// MaskIP drops the host part of an address. IPv4 keeps three octets,
// IPv6 keeps four groups. Anything else is returned unchanged.
func MaskIP(ip string) string {
	if ip == "" {
		return ""
	}

	if parts := strings.Split(ip, "."); len(parts) == 4 {
		return strings.Join(parts[:3], ".") + ".xxx"
	}

	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) > 4 {
			parts = parts[:4]
		}
		return strings.Join(parts, ":") + ":xxxx:xxxx:xxxx:xxxx"
	}

	return ip
}
