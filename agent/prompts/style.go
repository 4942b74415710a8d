package prompts

var styleHints = map[string]string{
	"en": "Be concise: 2–4 sentences (≤90 words). No clichés. Max one open question. One concrete detail and one tiny option.",
	"ru": "Пиши кратко: 2–4 предложения (≤90 слов). Без клише. Макс один открытый вопрос. Одна конкретная деталь и одна маленькая опция.",
	"it": "Scrivi conciso: 2–4 frasi (≤90 parole). Niente cliché. Max una domanda aperta. Un dettaglio concreto e una piccola opzione.",
}

// StyleHint returns the reply-style instruction for the language the user wrote in.
func StyleHint(lang string) string {
	if hint, ok := styleHints[lang]; ok {
		return hint
	}
	return styleHints[DefaultLanguage]
}
