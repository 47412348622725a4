package search

import "strings"

// LanguageFamily names one lexical-index family, each backed by a
// different Postgres text-search configuration or extension:
// stemming analyzers for Latin-script languages, bigram-like
// handling for CJK (approximated here by the "simple" config, since
// Postgres ships no bigram text-search parser out of the box), and
// trigram (pg_trgm) fallback for accent-folding and unusual characters.
type LanguageFamily string

const (
	FamilyLatin   LanguageFamily = "latin"
	FamilyCJK     LanguageFamily = "cjk"
	FamilyTrigram LanguageFamily = "trigram"
)

// latinLanguages lists the ISO 639-1 codes treated as Latin-script for
// analyzer selection; each maps to the same "english" tsvector column
// this schema maintains; a richer per-language config set is a future
// extension, not required by the current chunk schema's two columns.
var latinLanguages = map[string]bool{
	"en": true, "es": true, "fr": true, "de": true, "it": true,
	"pt": true, "nl": true, "sv": true, "da": true, "no": true,
}

var cjkLanguages = map[string]bool{
	"zh": true, "ja": true, "ko": true,
}

// DetectFamily maps a stored/detected language code to its LanguageFamily.
// An unrecognized or empty code falls back to FamilyTrigram, the safest
// choice for scripts or mixed content no stemming config understands.
func DetectFamily(languageCode string) LanguageFamily {
	code := strings.ToLower(strings.TrimSpace(languageCode))
	if latinLanguages[code] {
		return FamilyLatin
	}
	if cjkLanguages[code] {
		return FamilyCJK
	}
	return FamilyTrigram
}

// TSConfig returns the Postgres text-search configuration name the
// storage layer's SearchFTS should pass to to_tsquery/to_tsvector for
// family. CJK has no dedicated stemming config in this schema, so it
// shares "simple" with the trigram-eligible family; only Latin scripts
// get real stemming.
func (f LanguageFamily) TSConfig() string {
	if f == FamilyLatin {
		return "english"
	}
	return "simple"
}
