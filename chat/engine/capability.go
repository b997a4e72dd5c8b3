package engine

import (
	"fmt"
	"strings"
	"time"
)

// Tier orders pool candidates; higher tiers are served first.
type Tier uint8

const (
	TierFree Tier = iota
	TierPremium
)

func (t Tier) String() string {
	if t == TierPremium {
		return "premium"
	}
	return "free"
}

// Entitlements is what a profile may do at a given instant. Both the state
// machine and the matcher read it; nothing else checks premium status.
type Entitlements struct {
	Tier            Tier
	LocationFilters bool
}

// EntitlementsOf computes the entitlements of p at now.
func EntitlementsOf(p Profile, now time.Time) Entitlements {
	if p.IsPremium(now) {
		return Entitlements{Tier: TierPremium, LocationFilters: true}
	}
	return Entitlements{Tier: TierFree}
}

// Permit reports whether f may be used with these entitlements.
func (e Entitlements) Permit(f Filter) bool {
	return e.LocationFilters || !f.UsesLocation()
}

// Filter is the search criteria of a Searching user. Empty fields match anything.
type Filter struct {
	Language string `json:"language,omitempty"`
	Region   string `json:"region,omitempty"`
	Country  string `json:"country,omitempty"`
}

// UsesLocation reports whether the filter restricts region or country.
func (f Filter) UsesLocation() bool { return f.Region != "" || f.Country != "" }

// Accepts reports whether p satisfies the filter.
func (f Filter) Accepts(p Profile) bool {
	if f.Language != "" && f.Language != p.Language {
		return false
	}
	if f.Region != "" && f.Region != p.Region {
		return false
	}
	if f.Country != "" && f.Country != p.Country {
		return false
	}
	return true
}

// Normalize canonicalizes and validates the filter fields.
func (f Filter) Normalize() (Filter, error) {
	out := Filter{
		Region:  strings.ToLower(strings.TrimSpace(f.Region)),
		Country: strings.ToLower(strings.TrimSpace(f.Country)),
	}
	if l := strings.TrimSpace(f.Language); l != "" && l != "*" {
		code, err := NormalizeLanguage(l)
		if err != nil {
			return Filter{}, err
		}
		out.Language = code
	}
	if out.Region != "" && !knownRegion(out.Region) {
		return Filter{}, fmt.Errorf("unknown region %q", f.Region)
	}
	if out.Country != "" && (!knownCountry(out.Country) || out.Country == CountryOther) {
		return Filter{}, fmt.Errorf("unknown country %q", f.Country)
	}
	return out, nil
}

func (f Filter) String() string {
	var parts []string
	if f.Language != "" {
		parts = append(parts, "lang="+f.Language)
	}
	if f.Region != "" {
		parts = append(parts, "region="+f.Region)
	}
	if f.Country != "" {
		parts = append(parts, "country="+f.Country)
	}
	if len(parts) == 0 {
		return "any"
	}
	return strings.Join(parts, ",")
}
