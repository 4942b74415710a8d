package conversation

// DefaultLanguage is the interface language for users without a preference.
const DefaultLanguage = "en"

// Fixed replies that are not localized.
const (
	TextLengthRejected     = "Your message is too long or too short."
	TextUnsupportedLang    = "Selected language is not supported."
	TextInternalError      = "Internal error. Please try again."
	textMenuSeparator      = "\n— "
	defaultCompletionError = "Sorry, a technical error occurred."
)

// MenuLabels are the button captions of the main menu.
type MenuLabels struct {
	Help      string
	Abilities string
	Recent    string
	Clear     string
	Language  string
}

// Texts is the localized text catalog of one interface language.
type Texts struct {
	Greet          string
	Help           string
	Abilities      string
	Recent         string
	RecentNone     string
	Cleared        string
	NothingClear   string
	ClearFailed    string
	ChooseLanguage string
	LanguageName   string
	Smalltalk      string
	Error          string
	Menu           MenuLabels
}

// SupportedLanguages lists interface languages in menu order.
var SupportedLanguages = []string{"en", "it", "ru"}

var catalog = map[string]Texts{
	"en": {
		Greet:          "👋 Hello! I'm your caring support assistant. Tell me what's on your mind. I'm here for emotional support.",
		Help:           "Share your feelings, thoughts, or worries. I’ll listen and respond gently. I never diagnose or give medical advice.",
		Abilities:      "I offer emotional support, active listening, reflective prompts, and tiny self-care ideas. You can clear memory or change language anytime.",
		Recent:         "Your recent messages:",
		RecentNone:     "You don't have recent messages yet.",
		Cleared:        "Your chat memory has been cleared.",
		NothingClear:   "You have no saved memory to clear.",
		ClearFailed:    "I couldn't clear your memory right now. Please try again later.",
		ChooseLanguage: "🌐 Choose your language:",
		LanguageName:   "English 🇬🇧",
		Smalltalk:      "Thanks for asking! I’m doing well and fully here for you. What’s most on your mind right now?",
		Error:          defaultCompletionError,
		Menu: MenuLabels{
			Help:      "❓ Help",
			Abilities: "💡 What can you do?",
			Recent:    "🕓 My recent queries",
			Clear:     "🗑️ Clear my memory",
			Language:  "🌐 Language",
		},
	},
	"ru": {
		Greet:          "👋 Привет! Я твой заботливый ассистент поддержки. Напиши, что тревожит: я здесь для эмоциональной поддержки.",
		Help:           "Делись чувствами и мыслями. Я выслушаю и дам мягкий, бережный отклик. Я не ставлю диагнозов и не даю мед. советов.",
		Abilities:      "Эмоциональная поддержка, активное слушание, рефлексия и маленькие идеи self-care. Можно очистить память или сменить язык.",
		Recent:         "Твои последние сообщения:",
		RecentNone:     "Недавних сообщений пока нет.",
		Cleared:        "Память чата очищена.",
		NothingClear:   "Сохранённой памяти нет.",
		ClearFailed:    "Не получилось очистить память. Попробуй позже.",
		ChooseLanguage: "🌐 Выбери язык:",
		LanguageName:   "Русский 🇷🇺",
		Smalltalk:      "Спасибо, что спрашиваешь! У меня всё ок, я полностью здесь ради тебя. Что сейчас больше всего занимает тебя?",
		Error:          "Извини, произошла техническая ошибка.",
		Menu: MenuLabels{
			Help:      "❓ Помощь",
			Abilities: "💡 Что ты умеешь?",
			Recent:    "🕓 Мои последние вопросы",
			Clear:     "🗑️ Очистить память",
			Language:  "🌐 Язык",
		},
	},
	"it": {
		Greet:          "👋 Ciao! Sono il tuo assistente di supporto emotivo. Dimmi cosa ti pesa: sono qui per te.",
		Help:           "Condividi sentimenti o pensieri: ascolterò e risponderò con delicatezza. Non faccio diagnosi né do consigli medici.",
		Abilities:      "Supporto emotivo, ascolto attivo, riflessioni e piccole idee di self-care. Puoi cancellare la memoria o cambiare lingua.",
		Recent:         "I tuoi messaggi recenti:",
		RecentNone:     "Non ci sono ancora messaggi recenti.",
		Cleared:        "La memoria della chat è stata cancellata.",
		NothingClear:   "Non hai memoria salvata.",
		ClearFailed:    "Non sono riuscito a cancellare la memoria. Riprova più tardi.",
		ChooseLanguage: "🌐 Scegli la lingua:",
		LanguageName:   "Italiano 🇮🇹",
		Smalltalk:      "Grazie! Sto bene e sono qui per te. Cosa ti pesa di più in questo momento?",
		Error:          "Scusa, si è verificato un errore tecnico.",
		Menu: MenuLabels{
			Help:      "❓ Aiuto",
			Abilities: "💡 Cosa puoi fare?",
			Recent:    "🕓 Le mie domande recenti",
			Clear:     "🗑️ Cancella la memoria",
			Language:  "🌐 Lingua",
		},
	},
}

// Supported reports whether lang has a text catalog.
func Supported(lang string) bool {
	_, ok := catalog[lang]
	return ok
}

// TextsFor returns the catalog for lang, falling back to English.
func TextsFor(lang string) Texts {
	if t, ok := catalog[lang]; ok {
		return t
	}
	return catalog[DefaultLanguage]
}
