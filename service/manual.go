package service

import (
	"strings"

	"github.com/AnTengye/orderledger/model"
)

// manualKeys maps the labels operators type to field bag keys. "notes" is
// not a bag key and is handled separately.
var manualKeys = map[string]string{
	"фио":      model.KeyName,
	"телефон":  model.KeyPhone,
	"адрес":    model.KeyAddress,
	"товар":    model.KeyProduct,
	"сумма":    model.KeyAmount,
	"никнейм":  model.KeyUsername,
	"name":     model.KeyName,
	"phone":    model.KeyPhone,
	"address":  model.KeyAddress,
	"product":  model.KeyProduct,
	"amount":   model.KeyAmount,
	"username": model.KeyUsername,
}

var notesKeys = map[string]bool{"примечание": true, "notes": true}

// ManualEntry is an operator-typed order.
type ManualEntry struct {
	Bag   model.FieldBag
	Notes string
}

// Empty reports whether no recognised key was supplied.
func (e ManualEntry) Empty() bool {
	for _, key := range model.FieldKeys {
		if e.Bag.Get(key).State != model.FieldMissing {
			return false
		}
	}
	return e.Notes == ""
}

// ParseManualEntry reads one Key=Value pair per line. "Key: Value" is
// accepted on lines without "=". Keys are case-insensitive; unknown keys and
// lines without a separator are ignored, and a repeated key keeps its last
// value.
func ParseManualEntry(text string) ManualEntry {
	var entry ManualEntry
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			key, value, ok = strings.Cut(line, ":")
		}
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		if notesKeys[key] {
			entry.Notes = value
			continue
		}
		if field, known := manualKeys[key]; known {
			entry.Bag.Set(field, model.FieldOf(value))
		}
	}
	return entry
}
