// Package locale detects the local speed display unit from system timezone.
package locale

import (
	"fmt"
	"strings"

	tz "github.com/medama-io/go-timezone-country"
	"github.com/thlib/go-timezone-local/tzlocal"
)

// Unit is a speed display unit. Computation always stays in km/h.
type Unit string

// Speed units
const (
	UnitAuto Unit = "auto"
	UnitKMH  Unit = "kmh"
	UnitMPH  Unit = "mph"
)

const kmPerMile = 1.609344

// ParseUnit accepts auto, kmh (or km/h) and mph.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return UnitAuto, nil
	case "kmh", "km/h", "kph":
		return UnitKMH, nil
	case "mph":
		return UnitMPH, nil
	}
	return "", fmt.Errorf("unknown speed unit %q (want auto, kmh or mph)", s)
}

// Resolve turns UnitAuto into the detected local unit.
func (u Unit) Resolve() Unit {
	if u == UnitAuto || u == "" {
		return SpeedUnit()
	}
	return u
}

// Label returns the unit as shown to users.
func (u Unit) Label() string {
	if u == UnitMPH {
		return "mph"
	}
	return "km/h"
}

// FromKMH converts a km/h value into this unit.
func (u Unit) FromKMH(kmh float64) float64 {
	if u == UnitMPH {
		return kmh / kmPerMile
	}
	return kmh
}

// Format renders a km/h speed in this unit, e.g. "62 mph".
func (u Unit) Format(kmh float64) string {
	return fmt.Sprintf("%.0f %s", u.FromKMH(kmh), u.Label())
}

// SpeedUnit returns the local road speed unit.
// Returns km/h if detection fails or timezone is ambiguous.
func SpeedUnit() Unit {
	timezone, err := tzlocal.RuntimeTZ()
	if err != nil {
		return UnitKMH
	}
	return SpeedUnitForTimezone(timezone)
}

// SpeedUnitForTimezone returns the road speed unit for a given IANA timezone.
// Exported for testing with specific timezones.
func SpeedUnitForTimezone(timezone string) Unit {
	// No country association
	if timezone == "UTC" || timezone == "GMT" || strings.HasPrefix(timezone, "Etc/") {
		return UnitKMH
	}

	tzMap, err := tz.NewTimezoneCountryMap()
	if err != nil {
		return UnitKMH
	}

	country, err := tzMap.GetCountry(timezone)
	if err != nil {
		return UnitKMH
	}

	return speedUnitForCountry(country)
}

func speedUnitForCountry(country string) Unit {
	if mphCountries[country] {
		return UnitMPH
	}
	return UnitKMH
}

// mphCountries lists countries whose road signs use miles per hour.
// Source: https://en.wikipedia.org/wiki/Miles_per_hour#Usage
var mphCountries = map[string]bool{
	"United States":  true,
	"United Kingdom": true,
	"Britain (UK)":   true,
	"Liberia":        true,
	"Myanmar":        true,

	// US territories
	"Puerto Rico":              true,
	"Guam":                     true,
	"American Samoa":           true,
	"U.S. Virgin Islands":      true,
	"Northern Mariana Islands": true,

	// British overseas territories and Crown dependencies
	"Isle of Man":              true,
	"Jersey":                   true,
	"Guernsey":                 true,
	"Falkland Islands":         true,
	"British Virgin Islands":   true,
	"Cayman Islands":           true,
	"Anguilla":                 true,
	"Montserrat":               true,
	"Turks and Caicos Islands": true,
	"Saint Helena":             true,

	// Caribbean
	"Antigua and Barbuda":              true,
	"Bahamas":                          true,
	"Dominica":                         true,
	"Grenada":                          true,
	"Saint Kitts and Nevis":            true,
	"Saint Lucia":                      true,
	"Saint Vincent and the Grenadines": true,

	// Pacific
	"Samoa": true,
}
