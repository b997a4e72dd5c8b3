package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/telegram/format"
)

const dateLayout = "2006-01-02"

const (
	textWelcome         = "👋 Welcome back! Press *Search* to find a language partner."
	textWelcomeNew      = "👋 Hi! Let's set up your profile so we can find you a language partner."
	textSearching       = "🔍 Looking for a partner… I'll message you as soon as someone fits."
	textSearchStopped   = "⏹ Search stopped."
	textLeft            = "👋 You left the chat."
	textPartnerBlocked  = "🚫 Partner blocked. You won't be matched with them again."
	textNothingToStop   = "There is nothing to stop right now."
	textNotInChat       = "You are not in a chat."
	textAlreadySearch   = "You are already searching. Use /stop to cancel."
	textAlreadyChat     = "You are already in a chat. Use /stop to leave it first."
	textProfileFirst    = "✏️ Please finish your profile first: /start"
	textFilterPremium   = "⭐ Region and country filters are available with premium. See /premium."
	textUserBlocked     = "⛔ Your account is blocked."
	textBusy            = "That isn't possible right now."
	textFailed          = "Something went wrong. Please try again."
	textProfileSaved    = "✅ Profile saved! Press *Search* to find a partner."
	textProfileCanceled = "Profile editing cancelled."
	textNothingToCancel = "There is nothing to cancel."
	textStaleStep       = "This question is no longer active."
	textTextOnly        = "Please answer with a text message."
	textUseMenu         = "Use the menu below or /help."
	textPaymentSent     = "💳 Your premium request was sent to the moderators. You'll hear back soon."
	textPaymentPending  = "Your premium request is already being reviewed."
	textPaymentRejected = "❌ Your premium payment could not be verified. Contact the moderators if this is a mistake."
	textBlockedByMods   = "⛔ You have been blocked by the moderators."
	textUnsupported     = "Unsupported action"
	textSlowDown        = "⏳ Too fast, that message was not delivered. Please wait a moment."
	textSearchUsage     = "Usage: /search [language] [region:<name>] [country:<code>]\nRegions: %s"
	textAdminUsage      = "Usage: %s <user id>"

	textHelp = `*How it works*
1. /start sets up your profile.
2. /search finds a partner. Premium users may add ` + "`region:europe`" + ` or ` + "`country:de`" + `.
3. Everything you send is passed to your partner anonymously.
4. /stop leaves the chat, /block leaves and never matches you again.
/profile shows your profile, /premium requests premium.`
)

var stepPrompts = map[engine.ProfileStep]string{
	engine.StepLanguage: "🌍 Which language do you want to practise? Pick one or type a code like `en`.",
	engine.StepName:     "📝 What's your name?",
	engine.StepAge:      "🎂 How old are you?",
	engine.StepGender:   "🚻 Your gender?",
	engine.StepCountry:  "📍 Where are you from? Pick a country or type its two-letter code.",
}

var stepErrors = map[engine.ProfileStep]string{
	engine.StepLanguage: "I don't know that language. Try a code like `en` or `es`.",
	engine.StepName:     "The name must be 2 to 50 characters long.",
	engine.StepAge:      "Please send your age as a number between 13 and 99.",
	engine.StepGender:   "Please pick one of the buttons.",
	engine.StepCountry:  "I don't know that country. Send a two-letter code or pick `other`.",
}

var disconnectTexts = map[engine.Reason]string{
	engine.ReasonPartnerLeft:    "👋 Your partner left the chat. Press *Search* to find a new one.",
	engine.ReasonPartnerBlocked: "👋 The chat has ended. Press *Search* to find a new partner.",
	engine.ReasonProfileEdit:    "👋 Your partner is editing their profile. The chat has ended.",
	engine.ReasonSearchTimeout:  "⌛ Nobody matched your search in time. Try again or widen your filter.",
	engine.ReasonBlocked:        "👋 The chat has ended.",
	engine.ReasonPremiumExpired: "⭐ Your premium has expired, so region and country filters are off. Search again without them.",
}

func matchedText(partner engine.Profile) string {
	var sb strings.Builder
	sb.WriteString("🎉 *Partner found!*\n")
	sb.WriteString(describe(partner))
	sb.WriteString("\n\nSay hi! /stop leaves the chat.")
	return sb.String()
}

func disconnectedText(reason engine.Reason) string {
	if t, ok := disconnectTexts[reason]; ok {
		return t
	}
	return "👋 The chat has ended."
}

func paymentApprovedText(until time.Time) string {
	return "⭐ Premium is active until " + until.UTC().Format(dateLayout) + ". Region and country filters are unlocked."
}

func profileText(p engine.Profile, now time.Time) string {
	var sb strings.Builder
	sb.WriteString("*Your profile*\n")
	sb.WriteString(describe(p))
	if p.IsPremium(now) {
		sb.WriteString("\n⭐ Premium until " + p.PremiumUntil.UTC().Format(dateLayout))
	}
	if len(p.Blocklist) > 0 {
		fmt.Fprintf(&sb, "\n🚫 Blocked partners: %d", len(p.Blocklist))
	}
	return sb.String()
}

func describe(p engine.Profile) string {
	name := "?"
	if p.Name != "" {
		name = format.MD(p.Name)
	}
	lang := "?"
	if p.Language != "" {
		lang = engine.LanguageName(p.Language)
	}
	country := "?"
	if p.Country != "" {
		country = engine.CountryName(p.Country)
	}
	age := "?"
	if p.Age > 0 {
		age = fmt.Sprint(p.Age)
	}
	gender := "?"
	if p.Gender != "" {
		gender = string(p.Gender)
	}
	return fmt.Sprintf("👤 %s, %s, %s\n🗣 %s\n📍 %s", name, age, gender, lang, country)
}

func searchUsage() string {
	return fmt.Sprintf(textSearchUsage, strings.Join(engine.Regions(), ", "))
}

func connectionsText(conns []engine.Connection, now time.Time) string {
	if len(conns) == 0 {
		return "No active connections."
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Active connections: %d*", len(conns))
	for _, c := range conns {
		fmt.Fprintf(&sb, "\n`%s` %d ↔ %d · %s", c.ID, c.A, c.B, now.Sub(c.StartedAt).Round(time.Second))
	}
	return sb.String()
}
