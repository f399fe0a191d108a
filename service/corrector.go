package service

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AnTengye/orderledger/model"
)

// Correction maps a lower-cased misspelling to its canonical form.
type Correction struct {
	Wrong string
	Right string
}

// DefaultCorrections are the recognition errors seen in customer names.
// Applied in order.
var DefaultCorrections = []Correction{
	{Wrong: "аблюк", Right: "абибок"},
	{Wrong: "абибог", Right: "абибок"},
	{Wrong: "абибак", Right: "абибок"},
}

type Corrector struct {
	table []Correction
}

func NewCorrector(table []Correction) *Corrector {
	if table == nil {
		table = DefaultCorrections
	}
	return &Corrector{table: table}
}

// Correct fixes known misspellings in the name field. The name keeps its
// original casing unless a replacement happened, in which case every token
// is title-cased.
func (c *Corrector) Correct(bag model.FieldBag) model.FieldBag {
	if !bag.Name.IsPresent() || bag.Name.Value == "" {
		return bag
	}

	lower := strings.ToLower(bag.Name.Value)
	name := lower
	for _, corr := range c.table {
		name = strings.ReplaceAll(name, corr.Wrong, corr.Right)
	}
	if name == lower {
		return bag
	}

	bag.Name = model.Present(titleWords(name))
	return bag
}

func titleWords(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
