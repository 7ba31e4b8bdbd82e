package scorer

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldText maps full-width forms to ASCII and strips diacritics, so
// "ＢＯＬＴ" and "bolt" compare equal.
func foldText(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFKC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeName lower-cases, folds and replaces punctuation with spaces,
// then collapses whitespace.
func NormalizeName(name string) string {
	name = strings.ToLower(foldText(name))
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		// Keep decimals like "1.5" together.
		if r == '.' {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	fields := strings.Fields(b.String())
	for i, f := range fields {
		fields[i] = strings.Trim(f, ".")
	}
	return strings.Join(removeEmpty(fields), " ")
}

// NormalizePartNumber upper-cases and drops everything but letters and
// digits, so "b-100", "B 100" and "B.100" are equal.
func NormalizePartNumber(pn string) string {
	pn = strings.ToUpper(foldText(pn))
	var b strings.Builder
	for _, r := range pn {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeVendor(v string) string {
	return strings.Join(strings.Fields(strings.ToLower(foldText(v))), " ")
}

func tokens(normalized string) []string {
	return strings.Fields(normalized)
}

func removeEmpty(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
