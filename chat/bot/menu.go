package bot

import (
	"github.com/m3rciful/tandembot/chat/engine"
	"github.com/m3rciful/tandembot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// Reply keyboard labels. Each is registered as an alias of its command.
const (
	labelSearch  = "🔍 Search"
	labelProfile = "👤 Profile"
	labelPremium = "⭐ Premium"
	labelStop    = "⏹ Stop"
	labelBlock   = "🚫 Block"
	labelCancel  = "✖ Cancel"
)

// Callback keys.
const (
	cbLanguage    = "lang"
	cbGender      = "gender"
	cbCountry     = "country"
	cbEditProfile = "profile_edit"
)

var pickerLanguages = []string{"en", "es", "fr", "de", "it", "pt", "ru", "tr", "ar", "zh", "ja", "ko"}

func menuFor(st engine.State) *tele.ReplyMarkup {
	switch st {
	case engine.StateSearching:
		return keyboard.ReplyButtons([]string{labelStop})
	case engine.StateConnected:
		return keyboard.ReplyButtons([]string{labelStop, labelBlock})
	case engine.StateAwaitingProfile:
		return keyboard.ReplyButtons([]string{labelCancel})
	}
	return keyboard.ReplyButtons([]string{labelSearch, labelProfile}, []string{labelPremium})
}

func pickerFor(step engine.ProfileStep) *tele.ReplyMarkup {
	switch step {
	case engine.StepLanguage:
		btns := make([]keyboard.InlineBtn, 0, len(pickerLanguages))
		for _, code := range pickerLanguages {
			btns = append(btns, keyboard.InlineBtn{Text: engine.LanguageName(code), Unique: cbLanguage, Data: code})
		}
		return keyboard.InlineButtonsNPerRow(btns, 3)
	case engine.StepGender:
		return keyboard.InlineButtonsRows([]keyboard.InlineBtn{
			{Text: "Male", Unique: cbGender, Data: string(engine.GenderMale)},
			{Text: "Female", Unique: cbGender, Data: string(engine.GenderFemale)},
		})
	case engine.StepCountry:
		codes := append(engine.Countries(), engine.CountryOther)
		btns := make([]keyboard.InlineBtn, 0, len(codes))
		for _, code := range codes {
			btns = append(btns, keyboard.InlineBtn{Text: engine.CountryName(code), Unique: cbCountry, Data: code})
		}
		return keyboard.InlineButtonsNPerRow(btns, 3)
	}
	return nil
}

func editProfileMarkup() *tele.ReplyMarkup {
	return keyboard.InlineButtons([]keyboard.InlineBtn{{Text: "✏️ Edit", Unique: cbEditProfile, Data: "1"}})
}
