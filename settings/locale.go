package settings

import (
	"context"
	"fmt"

	"github.com/vinayprograms/pluginkit/errors"
)

// LocaleKey is the public setting holding the user's interface language.
// It belongs to the bundled core plugin, so other plugins can only read it.
// Hosts must store the locale under this exact upper-case key: a lower-case
// final segment such as core.Locale is private to core and unreadable here.
const LocaleKey = "core.LOCALE"

// Locale is a supported interface language.
type Locale string

const (
	LocaleEnglish    Locale = "en"
	LocaleSpanish    Locale = "es"
	LocaleFrench     Locale = "fr"
	LocaleGerman     Locale = "de"
	LocalePortuguese Locale = "pt"
	LocaleItalian    Locale = "it"
	LocaleJapanese   Locale = "ja"
	LocaleKorean     Locale = "ko"
	LocaleChinese    Locale = "zh"
	LocaleRussian    Locale = "ru"
)

// Locales lists every supported locale.
var Locales = []Locale{
	LocaleEnglish, LocaleSpanish, LocaleFrench, LocaleGerman, LocalePortuguese,
	LocaleItalian, LocaleJapanese, LocaleKorean, LocaleChinese, LocaleRussian,
}

// Valid reports whether l is a supported locale.
func (l Locale) Valid() bool {
	for _, known := range Locales {
		if l == known {
			return true
		}
	}
	return false
}

// CurrentLocale reads the selected locale. ok is false when none is set.
func CurrentLocale(ctx context.Context, c *Capability) (Locale, bool, error) {
	v, ok, err := c.Get(ctx, LocaleKey)
	if err != nil || !ok {
		return "", false, err
	}
	s, isString := v.(string)
	if !isString || !Locale(s).Valid() {
		return "", false, errors.InvalidInput(fmt.Sprintf("unsupported locale %v", v),
			errors.WithMetadata("key", LocaleKey))
	}
	return Locale(s), true, nil
}
