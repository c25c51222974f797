package voice

import "strings"

// VoiceHandle identifies an installed engine voice.
type VoiceHandle struct {
	// ID is the engine-specific identifier passed back to the engine.
	ID string `json:"id"`
	// Name is the human-readable voice name.
	Name string `json:"name"`
	// Locale is the voice locale in BCP-47 form, e.g. "de-DE".
	Locale string `json:"locale"`
}

// VoiceSelection is the call-scoped result of resolving a locale.
type VoiceSelection struct {
	RequestedLocale string
	// Resolved is nil when the engine default voice must be used.
	Resolved *VoiceHandle
}

// Fallback reports whether the engine default voice is used.
func (s VoiceSelection) Fallback() bool {
	return s.Resolved == nil
}

// VoiceID returns the engine voice id, or "" for the engine default.
func (s VoiceSelection) VoiceID() string {
	if s.Resolved == nil {
		return ""
	}
	return s.Resolved.ID
}

// NormalizeLocale converts "de_DE" or "DE-de" to "de-DE".
func NormalizeLocale(locale string) string {
	locale = strings.TrimSpace(strings.ReplaceAll(locale, "_", "-"))
	lang, region, found := strings.Cut(locale, "-")
	lang = strings.ToLower(lang)
	if !found {
		return lang
	}
	return lang + "-" + strings.ToUpper(region)
}

// ResolveVoice picks the installed voice for requested. An exact locale match
// wins; otherwise a region-less voice of the same language ("de" for "de-DE")
// is accepted. With no match the selection falls back to the engine default.
func ResolveVoice(requested string, installed []VoiceHandle) VoiceSelection {
	sel := VoiceSelection{RequestedLocale: requested}
	want := NormalizeLocale(requested)
	if want == "" {
		return sel
	}
	lang, _, _ := strings.Cut(want, "-")

	var languageOnly *VoiceHandle
	for i := range installed {
		have := NormalizeLocale(installed[i].Locale)
		if have == want {
			v := installed[i]
			sel.Resolved = &v
			return sel
		}
		if languageOnly == nil && have == lang {
			v := installed[i]
			languageOnly = &v
		}
	}
	sel.Resolved = languageOnly
	return sel
}
