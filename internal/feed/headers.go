package feed

import (
	"strings"

	"agroquote/quoter/internal/canon"
)

type column int

const (
	colCategory column = iota
	colProduct
	colPresentation
	colUnit
	colPriceUSD
	colPriceLocal
	numColumns
)

func (c column) String() string {
	switch c {
	case colCategory:
		return "category"
	case colProduct:
		return "product"
	case colPresentation:
		return "presentation"
	case colUnit:
		return "unit"
	case colPriceUSD:
		return "price_usd"
	case colPriceLocal:
		return "price_local"
	default:
		return "unknown"
	}
}

// headerSynonyms are compared against folded header labels.
var headerSynonyms = [numColumns][]string{
	colCategory:     {"tipo", "categoria", "clase", "linea", "category"},
	colProduct:      {"producto", "nombre", "nombre comercial", "descripcion", "product", "name"},
	colPresentation: {"presentacion", "envase", "empaque", "formato", "presentation"},
	colUnit:         {"unidad", "unidad de medida", "um", "u/m", "unit"},
	colPriceUSD:     {"precio (usd)", "precio usd", "usd", "us$", "$us", "dolares", "price usd"},
	colPriceLocal:   {"precio (bs)", "precio bs", "bs", "bs.", "bolivianos", "moneda local", "price local"},
}

// FoldHeader lowercases a header label, strips accents and collapses runs
// of whitespace.
func FoldHeader(label string) string {
	folded := strings.ToLower(canon.StripAccents(label))
	return strings.Join(strings.Fields(folded), " ")
}

// headerIndex maps each known column to its position in the header row, or
// -1 when the feed has no such column. The first position matching any
// synonym wins.
type headerIndex [numColumns]int

func matchHeaders(header []string) headerIndex {
	var idx headerIndex
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = FoldHeader(h)
	}

	for col := column(0); col < numColumns; col++ {
		idx[col] = -1
		for pos, label := range folded {
			if label != "" && isSynonym(col, label) {
				idx[col] = pos
				break
			}
		}
	}
	return idx
}

func isSynonym(col column, label string) bool {
	for _, s := range headerSynonyms[col] {
		if label == s {
			return true
		}
	}
	return false
}

func (h headerIndex) cell(row []string, col column) string {
	pos := h[col]
	if pos < 0 || pos >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[pos])
}
