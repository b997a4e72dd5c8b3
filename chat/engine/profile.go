package engine

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Gender of a user as entered in the profile.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// Name limits, in runes.
const (
	minNameLen = 2
	maxNameLen = 50
	minAge     = 13
	maxAge     = 99
)

// Profile holds the durable attributes of a user.
type Profile struct {
	UserID       UserID
	Language     string
	Name         string
	Age          int
	Gender       Gender
	Country      string
	Region       string
	PremiumUntil time.Time
	Blocked      bool
	Blocklist    []UserID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPremium reports whether the premium entitlement is active at now.
func (p Profile) IsPremium(now time.Time) bool {
	return !p.PremiumUntil.IsZero() && now.Before(p.PremiumUntil)
}

// Missing returns the profile steps whose fields are still empty.
func (p Profile) Missing() []ProfileStep {
	var out []ProfileStep
	for _, s := range profileSteps {
		if !p.has(s) {
			out = append(out, s)
		}
	}
	return out
}

// Complete reports whether every profile field is set.
func (p Profile) Complete() bool { return len(p.Missing()) == 0 }

// Blocks reports whether p has id on its personal blocklist.
func (p Profile) Blocks(id UserID) bool { return slices.Contains(p.Blocklist, id) }

func (p Profile) has(s ProfileStep) bool {
	switch s {
	case StepLanguage:
		return p.Language != ""
	case StepName:
		return p.Name != ""
	case StepAge:
		return p.Age != 0
	case StepGender:
		return p.Gender != ""
	case StepCountry:
		return p.Country != ""
	}
	return true
}

func (p Profile) clone() Profile {
	p.Blocklist = slices.Clone(p.Blocklist)
	return p
}

// applyField validates raw for step and stores it on p.
func (p *Profile) applyField(step ProfileStep, raw string) error {
	raw = strings.TrimSpace(raw)
	switch step {
	case StepLanguage:
		code, err := NormalizeLanguage(raw)
		if err != nil {
			return err
		}
		p.Language = code
	case StepName:
		n := utf8.RuneCountInString(raw)
		if n < minNameLen || n > maxNameLen {
			return fmt.Errorf("name must be %d..%d characters", minNameLen, maxNameLen)
		}
		p.Name = raw
	case StepAge:
		age, err := strconv.Atoi(raw)
		if err != nil || age < minAge || age > maxAge {
			return fmt.Errorf("age must be a number between %d and %d", minAge, maxAge)
		}
		p.Age = age
	case StepGender:
		g := Gender(strings.ToLower(raw))
		if g != GenderMale && g != GenderFemale {
			return fmt.Errorf("unknown gender %q", raw)
		}
		p.Gender = g
	case StepCountry:
		code := strings.ToLower(raw)
		if !knownCountry(code) {
			return fmt.Errorf("unknown country %q", raw)
		}
		p.Country = code
		p.Region = RegionOf(code)
	default:
		return fmt.Errorf("no field for step %s", step)
	}
	return nil
}

// NormalizeLanguage parses a BCP-47 tag and returns its lower-case base
// language, e.g. "en-US" becomes "en".
func NormalizeLanguage(raw string) (string, error) {
	tag, err := language.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("unknown language %q", raw)
	}
	base, conf := tag.Base()
	if conf == language.No || base.String() == "und" {
		return "", fmt.Errorf("unknown language %q", raw)
	}
	return base.String(), nil
}

// LanguageName returns the English name of a language code.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}
