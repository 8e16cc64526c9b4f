package language

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto is the hint value meaning "let the model detect the language".
const Auto = "auto"

// whisperCodes lists ISO 639-1 codes accepted by Whisper-family models.
var whisperCodes = []string{
	"af", "ar", "az", "be", "bg", "bn", "bs", "ca", "cs", "cy", "da", "de",
	"el", "en", "es", "et", "fa", "fi", "fr", "gl", "he", "hi", "hr", "hu",
	"hy", "id", "is", "it", "ja", "kk", "kn", "ko", "lt", "lv", "mk", "mr",
	"ms", "ne", "nl", "no", "pl", "pt", "ro", "ru", "sk", "sl", "sr", "sv",
	"sw", "ta", "th", "tl", "tr", "uk", "ur", "vi", "zh",
}

var (
	namesOnce sync.Once
	byName    map[string]string
	supported map[string]struct{}
)

func indexNames() {
	namer := display.English.Languages()
	byName = make(map[string]string, len(whisperCodes))
	supported = make(map[string]struct{}, len(whisperCodes))
	for _, code := range whisperCodes {
		supported[code] = struct{}{}
		tag := language.Make(code)
		if name := strings.ToLower(namer.Name(tag)); name != "" {
			byName[name] = code
		}
	}
}

// ToISO2 converts a code, tag, or English language name to ISO 639-1.
// It returns "" for empty input, "auto", and anything it cannot map.
func ToISO2(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" || hint == Auto {
		return ""
	}
	namesOnce.Do(indexNames)
	if code, ok := byName[hint]; ok {
		return code
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	code := base.String()
	if len(code) != 2 {
		return ""
	}
	return code
}

// ToISO3 converts a hint to ISO 639-2 (3-letter), or "und" when unknown.
func ToISO3(hint string) string {
	code := ToISO2(hint)
	if code == "" {
		return "und"
	}
	base, err := language.ParseBase(code)
	if err != nil {
		return "und"
	}
	return base.ISO3()
}

// Supported reports whether the model accepts the normalized code.
func Supported(code string) bool {
	namesOnce.Do(indexNames)
	_, ok := supported[ToISO2(code)]
	return ok
}

// DisplayName returns the English name for a code ("de" -> "German").
// Empty input yields "Unknown"; unmapped input is returned uppercased.
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	iso := ToISO2(trimmed)
	if iso == "" {
		return strings.ToUpper(trimmed)
	}
	if name := display.English.Languages().Name(language.Make(iso)); name != "" {
		return name
	}
	return strings.ToUpper(iso)
}
