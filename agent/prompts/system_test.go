package prompts

import (
	"strings"
	"testing"
)

func TestSystemPromptPerLanguage(t *testing.T) {
	t.Parallel()

	for lang, marker := range map[string]string{
		"en": "EMOTIONAL SUPPORT ONLY",
		"ru": "ЭМОЦИОНАЛЬНОЙ ПОДДЕРЖКИ",
		"it": "SUPPORTO EMOTIVO",
	} {
		got := SystemPrompt(lang)
		if !strings.Contains(got, marker) {
			t.Fatalf("%s prompt missing %q: %s", lang, marker, got)
		}
		if strings.Count(got, "\n- ") != 6 {
			t.Fatalf("%s prompt should list six approach rules:\n%s", lang, got)
		}
	}
}

func TestFallbacks(t *testing.T) {
	t.Parallel()

	if SystemPrompt("de") != SystemPrompt("en") {
		t.Fatal("unknown language should fall back to English prompt")
	}
	if StyleHint("de") != StyleHint("en") {
		t.Fatal("unknown language should fall back to English hint")
	}
	if !strings.HasPrefix(StyleHint("ru"), "Пиши кратко") {
		t.Fatalf("unexpected ru hint %q", StyleHint("ru"))
	}
}
