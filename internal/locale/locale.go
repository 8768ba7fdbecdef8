// Package locale answers the questions the post-processing transforms ask
// about culture names: is a path segment a locale, what is its canonical
// lower-case form, and does its script run right to left.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// LeftToRightMarker is U+200E LEFT-TO-RIGHT MARK.
const LeftToRightMarker = "\u200e"

// threeLetterBases are culture languages without a two-letter ISO 639-1
// code that still appear as site locales.
var threeLetterBases = map[string]bool{
	"fil": true, "haw": true, "kok": true, "quz": true, "sah": true, "smn": true,
}

var rtlScripts = map[string]bool{
	"Arab": true, "Hebr": true, "Syrc": true, "Thaa": true,
	"Nkoo": true, "Adlm": true, "Mand": true, "Samr": true, "Rohg": true,
}

// IsValidLocale reports whether code names a culture, case-insensitively:
// "en", "en-us", "zh-Hans-CN". Arbitrary path segments such as "docs",
// "api" or "azure" are rejected even when they happen to parse as BCP 47.
func IsValidLocale(code string) bool {
	if code == "" || strings.ContainsAny(code, "_ /\\") {
		return false
	}
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	base, conf := tag.Base()
	if conf == language.No {
		return false
	}
	b := base.String()
	return len(b) == 2 || threeLetterBases[b]
}

// Normalize returns the lower-case canonical form of a culture name as
// used in URLs ("en-US" and "en_us" both become "en-us").
func Normalize(code string) string {
	tag, err := language.Parse(strings.ReplaceAll(code, "_", "-"))
	if err != nil {
		return strings.ToLower(code)
	}
	return strings.ToLower(tag.String())
}

// IsRightToLeft reports whether the likely script of code is written
// right to left.
func IsRightToLeft(code string) bool {
	tag, err := language.Parse(code)
	if err != nil {
		return false
	}
	script, conf := tag.Script()
	if conf == language.No {
		return false
	}
	return rtlScripts[script.String()]
}

// AddLeftToRightMarker prepends a left-to-right mark to html for
// right-to-left cultures so that leading neutral characters (code,
// numbers, punctuation) keep their order. Other cultures are untouched.
func AddLeftToRightMarker(code, html string) string {
	if !IsRightToLeft(code) {
		return html
	}
	return LeftToRightMarker + html
}

// Validator is the default locale oracle.
type Validator struct{}

// IsValidLocale implements the validator port used by the transforms.
func (Validator) IsValidLocale(code string) bool {
	return IsValidLocale(code)
}
