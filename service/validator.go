package service

import (
	"strings"
	"unicode/utf8"

	"github.com/AnTengye/orderledger/model"
)

// MinEvidence is how many of name, phone and address must look plausible
// for an extraction to be accepted without manual entry.
const MinEvidence = 2

// EvidenceScore counts the plausible identity fields in bag.
func EvidenceScore(bag model.FieldBag) int {
	score := 0
	for _, f := range []model.Field{bag.Name, bag.Phone, bag.Address} {
		if !f.IsPresent() {
			continue
		}
		if utf8.RuneCountInString(strings.TrimSpace(f.Value)) > 2 {
			score++
		}
	}
	return score
}

// Validate gates an extraction on minimum evidence. Product, amount and
// username are never inspected.
func Validate(bag model.FieldBag) bool {
	return EvidenceScore(bag) >= MinEvidence
}
