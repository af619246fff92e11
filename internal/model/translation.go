package model

import (
	"fmt"
	"strings"
)

// Translation is one localized text for a language code.
type Translation struct {
	Lang string `json:"lang"`
	Text string `json:"text"`
}

// Translations keeps localized content in insertion order. The first entry
// is the default language.
type Translations []Translation

// Validate rejects empty and duplicate language codes instead of letting a
// later entry silently win.
func (t Translations) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for _, tr := range t {
		lang := strings.ToLower(strings.TrimSpace(tr.Lang))
		if lang == "" {
			return fmt.Errorf("translation language code is required")
		}
		if _, ok := seen[lang]; ok {
			return fmt.Errorf("duplicate translation for language %q", lang)
		}
		seen[lang] = struct{}{}
	}
	return nil
}

// Lookup returns the text for lang, falling back to the default entry.
func (t Translations) Lookup(lang string) (string, bool) {
	if len(t) == 0 {
		return "", false
	}
	for _, tr := range t {
		if strings.EqualFold(tr.Lang, lang) {
			return tr.Text, true
		}
	}
	return t[0].Text, false
}
