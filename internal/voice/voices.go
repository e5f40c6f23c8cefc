package voice

// Per-language ElevenLabs voice IDs for the tutoring personas.
var languageVoices = map[string]string{
	"English":  "JBFqnCBsd6RMkjVDRZzb",
	"French":   "sANWqF1bCMzR6eyZbCGw",
	"Spanish":  "Nh2zY9kknu6z4pZy6FhD",
	"Mandarin": "bhJUNIXWQQ94l8eI2VUf",
	"Japanese": "cgSgspJ2msm6clMCkdW9",
	"German":   "z1EhmmPwF0ENGYE8dBE6",
	"Italian":  "gfKKsLN1k0oYYN9n2dXX",
}

// VoiceForLanguage returns the voice ID for a supported language, falling
// back to the English voice for unknown languages.
func VoiceForLanguage(language string) string {
	if id, ok := languageVoices[language]; ok {
		return id
	}
	return languageVoices["English"]
}

// SupportedLanguages lists the languages with a dedicated tutoring voice.
func SupportedLanguages() []string {
	out := make([]string, 0, len(languageVoices))
	for lang := range languageVoices {
		out = append(out, lang)
	}
	return out
}

// sttLanguageCodes maps tutoring languages to BCP-47 recognition codes.
var sttLanguageCodes = map[string]string{
	"English":  "en-US",
	"French":   "fr-FR",
	"Spanish":  "es-ES",
	"Mandarin": "cmn-HANS-CN",
	"Japanese": "ja-JP",
	"German":   "de-DE",
	"Italian":  "it-IT",
}

func STTLanguageCode(language string) string {
	if code, ok := sttLanguageCodes[language]; ok {
		return code
	}
	return "en-US"
}
