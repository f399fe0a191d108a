package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/AnTengye/orderledger/model"
)

var (
	// Belarusian mobile: country code digits, operator code, 3-2-2 groups.
	phonePattern = regexp.MustCompile(`\+?[375]{3}[\s-]?\(?\d{2}\)?[\s-]?\d{3}[\s-]?\d{2}[\s-]?\d{2}`)

	// Price: digits, optional space, rouble letter.
	pricePattern = regexp.MustCompile(`(\d+)\s*[рР]`)

	nameExclusions = []string{"отделение", "европочта", "почта", "принял", "отправка", "г.", "ул."}

	addressIndicators = []string{"г.", "ул.", "отделение", "область", "район"}
)

const minAddressLength = 10

// ExtractFields is the heuristic fallback extractor. It never fails; a
// field that no line matches is left missing.
func ExtractFields(text string) model.FieldBag {
	lines := strings.Split(text, "\n")

	var bag model.FieldBag
	bag.Phone = model.FieldOf(findPhone(lines))
	bag.Amount = model.FieldOf(findPrice(lines))
	bag.Name = model.FieldOf(findName(lines))
	bag.Address = model.FieldOf(findAddress(lines))
	return bag
}

func findPhone(lines []string) string {
	for _, line := range lines {
		if m := phonePattern.FindString(line); m != "" {
			return m
		}
	}
	return ""
}

func findPrice(lines []string) string {
	for _, line := range lines {
		if m := pricePattern.FindStringSubmatch(line); m != nil {
			return formatPrice(m[1])
		}
	}
	return ""
}

func formatPrice(digits string) string {
	return digits + " р."
}

func findName(lines []string) string {
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		words := strings.Fields(clean)
		if len(words) < 2 || len(words) > 3 {
			continue
		}
		if !allCapitalized(words) {
			continue
		}
		if containsAny(strings.ToLower(clean), nameExclusions) {
			continue
		}
		if anyNumeric(words) {
			continue
		}
		return clean
	}
	return ""
}

func findAddress(lines []string) string {
	for _, line := range lines {
		if !containsAny(strings.ToLower(line), addressIndicators) {
			continue
		}
		if utf8.RuneCountInString(line) > minAddressLength {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func allCapitalized(words []string) bool {
	for _, w := range words {
		r, _ := utf8.DecodeRuneInString(w)
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return true
}

func anyNumeric(words []string) bool {
	for _, w := range words {
		numeric := true
		for _, r := range w {
			if !unicode.IsDigit(r) {
				numeric = false
				break
			}
		}
		if numeric {
			return true
		}
	}
	return false
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
