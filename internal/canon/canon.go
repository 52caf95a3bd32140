// Package canon holds the string and number normalization rules used to
// match requested items against the price feed. Every function is pure.
package canon

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"agroquote/quoter/internal/domain"
)

const (
	UnitKG   = "KG"
	UnitL    = "L"
	UnitUnit = "UNID"
)

var (
	kgUnitRe   = regexp.MustCompile(`(?i)kg|kilo`)
	litreRe    = regexp.MustCompile(`(?i)\bl\b|lt|litro`)
	unitWordRe = regexp.MustCompile(`(?i)unid|und`)

	whitespaceRe  = regexp.MustCompile(`\s+`)
	decimalComma  = regexp.MustCompile(`(\d),(\d)`)
	skuLitreRe    = regexp.MustCompile(`(\d)(LITROS|LITRO|LTS|LT)([^A-Z]|$)`)
	skuKilogramRe = regexp.MustCompile(`(\d)(KILOGRAMOS|KILOGRAMO|KILOS|KILO|KGS)([^A-Z]|$)`)

	packKGRe    = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(kilogramos|kilogramo|kilos|kilo|kgs|kg)\b`)
	packLitreRe = regexp.MustCompile(`(?i)(\d+(?:[.,]\d+)?)\s*(litros|litro|lts|lt|l)\b`)
)

// Unit maps a free-text unit to KG, L or UNID. Unknown units are returned
// uppercased, empty input stays empty.
func Unit(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return ""
	case kgUnitRe.MatchString(s):
		return UnitKG
	case litreRe.MatchString(s):
		return UnitL
	case unitWordRe.MatchString(s):
		return UnitUnit
	default:
		return strings.ToUpper(s)
	}
}

// SKU canonicalizes a SKU so that superficially different spellings of the
// same product and pack compare equal. SKU(SKU(s)) == SKU(s).
func SKU(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = whitespaceRe.ReplaceAllString(s, "")
	// Matches consume their neighbours, so replace until nothing changes.
	// Every replacement shortens s, which bounds the loop.
	for {
		next := decimalComma.ReplaceAllString(s, "$1.$2")
		next = skuLitreRe.ReplaceAllString(next, "${1}L${3}")
		next = skuKilogramRe.ReplaceAllString(next, "${1}KG${3}")
		if next == s {
			return s
		}
		s = next
	}
}

// Name folds a product name for base-name comparison: diacritics and
// punctuation removed, uppercased. Never use it for display.
func Name(s string) string {
	folded := StripAccents(s)
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// StripAccents removes combining marks after canonical decomposition.
func StripAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// ParseNumber reads a number that may use a decimal comma.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ExtractPack finds the first "<number><unit>" in text. The kilogram family
// is tried before litres. A false result means the text carries no pack
// information, not a zero-sized pack.
func ExtractPack(text string) (domain.Pack, bool) {
	if pack, ok := matchPack(packKGRe, text, UnitKG); ok {
		return pack, true
	}
	return matchPack(packLitreRe, text, UnitL)
}

func matchPack(re *regexp.Regexp, text, unit string) (domain.Pack, bool) {
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return domain.Pack{}, false
	}
	size, ok := ParseNumber(m[1])
	if !ok || size <= 0 {
		return domain.Pack{}, false
	}
	return domain.Pack{Size: size, Unit: unit}, true
}

// Decomposed is a SKU split into its base name and pack suffix.
type Decomposed struct {
	Base      string
	Pack      domain.Pack
	HasPack   bool
	Canonical string
}

// DecomposeSKU splits sku on its last hyphen and tries to read the tail as a
// pack. The tail is tried as-is, with a leading hyphen and with hyphens as
// spaces, since the feed is not consistent about it.
func DecomposeSKU(sku string) Decomposed {
	sku = strings.TrimSpace(sku)
	d := Decomposed{Base: sku, Canonical: SKU(sku)}

	i := strings.LastIndex(sku, "-")
	if i < 0 {
		return d
	}
	d.Base = strings.TrimSpace(sku[:i])
	tail := strings.TrimSpace(sku[i+1:])

	for _, candidate := range []string{tail, "-" + tail, strings.ReplaceAll(tail, "-", " ")} {
		if pack, ok := ExtractPack(candidate); ok {
			d.Pack = pack
			d.HasPack = true
			break
		}
	}
	return d
}
