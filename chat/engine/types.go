package engine

import (
	"fmt"
	"strings"
)

// UserID is the Telegram user identifier.
type UserID int64

// State is the conversational state of a single user.
type State uint8

const (
	// StateIdle is the initial and resting state.
	StateIdle State = iota
	// StateAwaitingProfile means the user is filling in a profile field.
	StateAwaitingProfile
	// StateSearching means the user sits in the matching pool.
	StateSearching
	// StateConnected means the user is chatting with a partner.
	StateConnected
	// StateAwaitingPaymentVerification means an admin has to confirm a payment.
	StateAwaitingPaymentVerification
)

var stateNames = [...]string{
	StateIdle:                        "idle",
	StateAwaitingProfile:             "awaiting_profile",
	StateSearching:                   "searching",
	StateConnected:                   "connected",
	StateAwaitingPaymentVerification: "awaiting_payment",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if int(s) >= len(stateNames) {
		return nil, fmt.Errorf("engine: unknown state %d", s)
	}
	return []byte(stateNames[s]), nil
}

// UnmarshalText decodes a state name produced by MarshalText.
func (s *State) UnmarshalText(b []byte) error {
	name := strings.TrimSpace(string(b))
	for i, n := range stateNames {
		if n == name {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("engine: unknown state %q", name)
}

// ProfileStep is the sub-state of StateAwaitingProfile: the field being asked for.
type ProfileStep uint8

const (
	StepNone ProfileStep = iota
	StepLanguage
	StepName
	StepAge
	StepGender
	StepCountry
)

// profileSteps lists the profile fields in the order they are asked.
var profileSteps = []ProfileStep{StepLanguage, StepName, StepAge, StepGender, StepCountry}

func (s ProfileStep) String() string {
	switch s {
	case StepNone:
		return "none"
	case StepLanguage:
		return "language"
	case StepName:
		return "name"
	case StepAge:
		return "age"
	case StepGender:
		return "gender"
	case StepCountry:
		return "country"
	}
	return fmt.Sprintf("step(%d)", s)
}

// Reason explains why a user left a connection or the pool.
type Reason string

const (
	ReasonLeft           Reason = "left"
	ReasonPartnerLeft    Reason = "partner_left"
	ReasonBlockedPartner Reason = "blocked_partner"
	ReasonPartnerBlocked Reason = "partner_blocked"
	ReasonSearchTimeout  Reason = "search_timeout"
	ReasonProfileEdit    Reason = "profile_edit"
	ReasonBlocked        Reason = "blocked"
	// ReasonPremiumExpired ends a search whose location filter outlived the
	// premium window that allowed it.
	ReasonPremiumExpired Reason = "premium_expired"
)
