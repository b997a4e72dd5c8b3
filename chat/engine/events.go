package engine

import "fmt"

// EventKind enumerates everything that can change a session.
type EventKind uint8

const (
	EventStartProfile EventKind = iota + 1
	EventSubmitProfileField
	EventCancelProfile
	EventRequestSearch
	EventCancelSearch
	EventMatchFound
	EventDisconnect
	EventBlockPartner
	EventTimeout
	EventRequestPayment
	EventPaymentVerified
	EventPaymentRejected
	EventBlockUser
	EventUnblockUser
)

var eventNames = map[EventKind]string{
	EventStartProfile:       "start_profile",
	EventSubmitProfileField: "submit_profile_field",
	EventCancelProfile:      "cancel_profile",
	EventRequestSearch:      "request_search",
	EventCancelSearch:       "cancel_search",
	EventMatchFound:         "match_found",
	EventDisconnect:         "disconnect",
	EventBlockPartner:       "block_partner",
	EventTimeout:            "timeout",
	EventRequestPayment:     "request_payment",
	EventPaymentVerified:    "payment_verified",
	EventPaymentRejected:    "payment_rejected",
	EventBlockUser:          "block_user",
	EventUnblockUser:        "unblock_user",
}

func (k EventKind) String() string {
	if n, ok := eventNames[k]; ok {
		return n
	}
	return fmt.Sprintf("event(%d)", k)
}

// Event is a single input to HandleEvent. Only the payload field matching
// Kind is read.
type Event struct {
	Kind    EventKind
	Filter  Filter // RequestSearch
	Value   string // SubmitProfileField
	Partner UserID // MatchFound
}

// StartProfile begins or restarts the profile questionnaire.
func StartProfile() Event { return Event{Kind: EventStartProfile} }

// SubmitField answers the current profile question with value.
func SubmitField(value string) Event { return Event{Kind: EventSubmitProfileField, Value: value} }

// CancelProfile abandons the questionnaire.
func CancelProfile() Event { return Event{Kind: EventCancelProfile} }

// RequestSearch enters the matching pool with filter f.
func RequestSearch(f Filter) Event { return Event{Kind: EventRequestSearch, Filter: f} }

// CancelSearch leaves the matching pool.
func CancelSearch() Event { return Event{Kind: EventCancelSearch} }

// MatchFound pairs the user with partner if both are still searching.
func MatchFound(partner UserID) Event { return Event{Kind: EventMatchFound, Partner: partner} }

// Disconnect ends the current chat.
func Disconnect() Event { return Event{Kind: EventDisconnect} }

// BlockPartner ends the current chat and blocks the partner.
func BlockPartner() Event { return Event{Kind: EventBlockPartner} }

// Timeout ends a search that has waited longer than the search timeout.
func Timeout() Event { return Event{Kind: EventTimeout} }

// RequestPayment asks a moderator to confirm a premium payment.
func RequestPayment() Event { return Event{Kind: EventRequestPayment} }

// PaymentVerified extends the premium window.
func PaymentVerified() Event { return Event{Kind: EventPaymentVerified} }

// PaymentRejected closes a pending payment without premium.
func PaymentRejected() Event { return Event{Kind: EventPaymentRejected} }

// BlockUser bans the user.
func BlockUser() Event { return Event{Kind: EventBlockUser} }

// UnblockUser lifts a ban.
func UnblockUser() Event { return Event{Kind: EventUnblockUser} }
