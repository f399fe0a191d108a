package service

import (
	"errors"
	"testing"

	"github.com/AnTengye/orderledger/model"
)

func TestParseFieldBag(t *testing.T) {
	raw := "Вот результат:\n```json\n" +
		`{"name": "Иван Иванов", "phone": "+375291234567", "address": "null", "product": "Чехол {синий}", "amount": 35, "username": null}` +
		"\n```\nЕсли нужно что-то еще, спрашивай."

	bag, err := ParseFieldBag(raw)
	if err != nil {
		t.Fatalf("ParseFieldBag failed: %v", err)
	}

	if bag.Name.String() != "Иван Иванов" {
		t.Errorf("Unexpected name %q", bag.Name.String())
	}
	if bag.Address.State != model.FieldAbsent {
		t.Error("Expected \"null\" address to be absent")
	}
	if bag.Username.State != model.FieldAbsent {
		t.Error("Expected JSON null username to be absent")
	}
	if bag.Product.String() != "Чехол {синий}" {
		t.Errorf("Expected braces inside strings to be kept, got %q", bag.Product.String())
	}
	if bag.Amount.String() != "35" {
		t.Errorf("Expected numeric amount to be stringified, got %q", bag.Amount.String())
	}
}

func TestParseFieldBagMissingKeys(t *testing.T) {
	bag, err := ParseFieldBag(`{"phone": "+375291234567"}`)
	if err != nil {
		t.Fatalf("ParseFieldBag failed: %v", err)
	}
	if bag.Name.State != model.FieldMissing {
		t.Error("Expected omitted name to be missing")
	}
	if !bag.Phone.IsPresent() {
		t.Error("Expected phone present")
	}
}

func TestParseFieldBagSkipsBrokenCandidates(t *testing.T) {
	raw := `{name: unquoted} and then {"name": "Анна Ким"}`
	bag, err := ParseFieldBag(raw)
	if err != nil {
		t.Fatalf("ParseFieldBag failed: %v", err)
	}
	if bag.Name.String() != "Анна Ким" {
		t.Errorf("Expected second object to be used, got %q", bag.Name.String())
	}
}

func TestParseFieldBagNoObject(t *testing.T) {
	for _, raw := range []string{"", "Не могу помочь", "{\"name\": \"unterminated\""} {
		if _, err := ParseFieldBag(raw); !errors.Is(err, ErrNoJSONObject) {
			t.Errorf("ParseFieldBag(%q) error = %v, want ErrNoJSONObject", raw, err)
		}
	}
}

func TestFindJSONObjectsNested(t *testing.T) {
	got := findJSONObjects(`x {"a": {"b": "}"}} y {"c": 1}`)
	want := []string{`{"a": {"b": "}"}}`, `{"b": "}"}`, `{"c": 1}`}
	if len(got) != len(want) {
		t.Fatalf("Expected %d candidates, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Candidate %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseFieldBagUnclosedBraceInProse(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"smiley before payload", "Sure :-{ here it is: {\"name\": \"Иван Иванов\", \"phone\": \"+375291234567\"}"},
		{"brace and quote in prose", "Готово {\"ответ\" ниже\n{\"name\": \"Иван Иванов\", \"phone\": \"+375291234567\"}"},
		{"payload inside broken wrapper", "{result: {\"name\": \"Иван Иванов\", \"phone\": \"+375291234567\"}}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag, err := ParseFieldBag(tt.raw)
			if err != nil {
				t.Fatalf("ParseFieldBag failed: %v", err)
			}
			if bag.Name.String() != "Иван Иванов" || bag.Phone.String() != "+375291234567" {
				t.Errorf("Unexpected bag %+v", bag)
			}
		})
	}
}
