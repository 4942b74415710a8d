package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/memohai/confidant/internal/conversation"
)

// Callback data carried by inline buttons.
const (
	callbackHelp      = "help"
	callbackAbilities = "abilities"
	callbackRecent    = "recent"
	callbackClear     = "clear"
	callbackLanguage  = "language"
	callbackSetLang   = "setlang_"
)

func menuKeyboard(lang string) tgbotapi.InlineKeyboardMarkup {
	labels := conversation.TextsFor(lang).Menu
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(labels.Help, callbackHelp)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(labels.Abilities, callbackAbilities)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(labels.Recent, callbackRecent)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(labels.Clear, callbackClear)),
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(labels.Language, callbackLanguage)),
	)
}

func languageKeyboard() tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(conversation.SupportedLanguages))
	for _, lang := range conversation.SupportedLanguages {
		name := conversation.TextsFor(lang).LanguageName
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(name, callbackSetLang+lang)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
