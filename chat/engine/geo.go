package engine

import (
	"sort"
	"strings"
)

// CountryOther is accepted for users outside the supported country list.
const CountryOther = "other"

// Region names.
const (
	RegionEurope     = "europe"
	RegionAsia       = "asia"
	RegionAmericas   = "americas"
	RegionMiddleEast = "middle_east"
	RegionAfrica     = "africa"
	RegionOceania    = "oceania"
)

type country struct {
	name   string
	region string
}

var countries = map[string]country{
	"us": {"United States", RegionAmericas},
	"ca": {"Canada", RegionAmericas},
	"mx": {"Mexico", RegionAmericas},
	"br": {"Brazil", RegionAmericas},
	"ar": {"Argentina", RegionAmericas},
	"gb": {"United Kingdom", RegionEurope},
	"de": {"Germany", RegionEurope},
	"fr": {"France", RegionEurope},
	"es": {"Spain", RegionEurope},
	"it": {"Italy", RegionEurope},
	"ru": {"Russia", RegionEurope},
	"ua": {"Ukraine", RegionEurope},
	"tr": {"Turkey", RegionEurope},
	"cn": {"China", RegionAsia},
	"jp": {"Japan", RegionAsia},
	"kr": {"South Korea", RegionAsia},
	"in": {"India", RegionAsia},
	"sa": {"Saudi Arabia", RegionMiddleEast},
	"ae": {"United Arab Emirates", RegionMiddleEast},
	"eg": {"Egypt", RegionAfrica},
	"ng": {"Nigeria", RegionAfrica},
	"au": {"Australia", RegionOceania},
}

var regions = []string{RegionAfrica, RegionAmericas, RegionAsia, RegionEurope, RegionMiddleEast, RegionOceania}

// Countries returns the supported country codes in alphabetical order.
func Countries() []string {
	out := make([]string, 0, len(countries))
	for code := range countries {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// Regions returns the known region names.
func Regions() []string { return append([]string(nil), regions...) }

// CountryName returns a display name for a country code.
func CountryName(code string) string {
	if c, ok := countries[strings.ToLower(code)]; ok {
		return c.name
	}
	if code == CountryOther {
		return "Other"
	}
	return strings.ToUpper(code)
}

// RegionOf maps a country code to its region. Unknown codes and CountryOther
// have no region.
func RegionOf(code string) string {
	return countries[strings.ToLower(code)].region
}

func knownCountry(code string) bool {
	_, ok := countries[code]
	return ok || code == CountryOther
}

func knownRegion(name string) bool {
	for _, r := range regions {
		if r == name {
			return true
		}
	}
	return false
}
