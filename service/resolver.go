package service

import (
	"sort"
	"strings"

	"github.com/AnTengye/orderledger/model"
)

var (
	// EuroPost keywords win over the generic "почта".
	euroPostKeywords = []string{"евро", "отд.", "отд ", "отделение", "европочт"}
	nationalPostWord = "почта"

	// Phrases in a caption that waive or shift the delivery fee.
	deliveryWaiverPhrases = []string{
		"бесплатная доставка",
		"бесплатно",
		"за счет продавца",
		"за счёт продавца",
		"за мой счет",
		"за мой счёт",
		"доставка оплачена",
	}
)

// Derived holds the fields computed from the bag and the optional caption.
type Derived struct {
	DeliveryType     model.DeliveryType
	Amount           string
	PriceFromCaption bool
	Notes            string
}

// Resolve computes delivery type, price and notes for an extraction.
func Resolve(bag model.FieldBag, caption string) Derived {
	amount, fromCaption := ResolvePrice(bag.Amount.String(), caption)
	return Derived{
		DeliveryType:     DetectDeliveryType(bag.Address.String(), caption),
		Amount:           amount,
		PriceFromCaption: fromCaption,
		Notes:            ExtractNotes(caption),
	}
}

// DetectDeliveryType classifies the carrier from address and caption text.
func DetectDeliveryType(address, caption string) model.DeliveryType {
	var sb strings.Builder
	if address != "" {
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(address))
	}
	if caption != "" {
		sb.WriteString(" ")
		sb.WriteString(strings.ToLower(caption))
	}
	text := sb.String()

	if containsAny(text, euroPostKeywords) {
		return model.DeliveryEuroPost
	}
	if strings.Contains(text, nationalPostWord) {
		return model.DeliveryNationalPost
	}
	return model.DeliveryUnspecified
}

// ResolvePrice prefers a price stated in the caption over the extracted
// amount. The flag reports whether the caption won.
func ResolvePrice(extracted, caption string) (string, bool) {
	if caption != "" {
		if m := pricePattern.FindStringSubmatch(caption); m != nil {
			return formatPrice(m[1]), true
		}
	}
	return extracted, false
}

// ExtractNotes lists the delivery-fee waiver phrases found in the caption,
// in the order they appear, joined with "; ".
func ExtractNotes(caption string) string {
	if caption == "" {
		return ""
	}
	lower := strings.ToLower(caption)

	type hit struct {
		pos    int
		phrase string
	}
	var hits []hit
	for _, p := range deliveryWaiverPhrases {
		if i := strings.Index(lower, p); i >= 0 {
			hits = append(hits, hit{pos: i, phrase: p})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].pos < hits[j].pos })

	notes := make([]string, len(hits))
	for i, h := range hits {
		notes[i] = h.phrase
	}
	return strings.Join(notes, "; ")
}
