package transcache

import "fmt"

// SupportedLanguages lists the accepted short locale codes in display order.
var SupportedLanguages = []string{
	"en", "es", "fr", "de", "it", "pt", "ru", "zh", "ja", "ko",
	"ar", "hi", "nl", "pl", "tr", "vi", "th", "sv", "cs", "el",
}

// ModelCodes maps short locale codes to the FLORES-200 codes NLLB models expect.
var ModelCodes = map[string]string{
	"en": "eng_Latn",
	"es": "spa_Latn",
	"fr": "fra_Latn",
	"de": "deu_Latn",
	"it": "ita_Latn",
	"pt": "por_Latn",
	"ru": "rus_Cyrl",
	"zh": "zho_Hans",
	"ja": "jpn_Jpan",
	"ko": "kor_Hang",
	"ar": "arb_Arab",
	"hi": "hin_Deva",
	"nl": "nld_Latn",
	"pl": "pol_Latn",
	"tr": "tur_Latn",
	"vi": "vie_Latn",
	"th": "tha_Thai",
	"sv": "swe_Latn",
	"cs": "ces_Latn",
	"el": "ell_Grek",
}

// LanguageNames maps short locale codes to human-readable names for model prompts.
var LanguageNames = map[string]string{
	"en": "English",
	"es": "Spanish",
	"fr": "French",
	"de": "German",
	"it": "Italian",
	"pt": "Portuguese",
	"ru": "Russian",
	"zh": "Chinese (Simplified)",
	"ja": "Japanese",
	"ko": "Korean",
	"ar": "Arabic",
	"hi": "Hindi",
	"nl": "Dutch",
	"pl": "Polish",
	"tr": "Turkish",
	"vi": "Vietnamese",
	"th": "Thai",
	"sv": "Swedish",
	"cs": "Czech",
	"el": "Greek",
}

// IsSupported reports whether code is one of SupportedLanguages.
func IsSupported(code string) bool {
	_, ok := ModelCodes[code]
	return ok
}

// GetLanguageName returns the human-readable name for a language code.
// Falls back to the code itself if not found.
func GetLanguageName(code string) string {
	if name, ok := LanguageNames[code]; ok {
		return name
	}
	return code
}

// GetModelCode returns the FLORES-200 code for a short locale code.
func GetModelCode(code string) (string, bool) {
	mc, ok := ModelCodes[code]
	return mc, ok
}

// ValidateLocales checks both sides of a locale pair against the supported set.
func ValidateLocales(pair LocalePair) error {
	if !IsSupported(pair.Source) {
		return &ValidationError{Field: "source_locale", Message: fmt.Sprintf("unsupported locale %q", pair.Source)}
	}
	if !IsSupported(pair.Target) {
		return &ValidationError{Field: "target_locale", Message: fmt.Sprintf("unsupported locale %q", pair.Target)}
	}
	return nil
}
