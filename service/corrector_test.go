package service

import (
	"testing"

	"github.com/AnTengye/orderledger/model"
)

func TestCorrectorCorrect(t *testing.T) {
	c := NewCorrector(nil)

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"known misspelling", "Иван Аблюк", "Иван Абибок"},
		{"misspelling inside lowercase text", "иван абибог", "Иван Абибок"},
		{"upper case input", "ИВАН АБИБАК", "Иван Абибок"},
		{"no match keeps casing", "иВАН ПеТров", "иВАН ПеТров"},
		{"no match keeps spacing", "Иван  Петров", "Иван  Петров"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bag := model.FieldBag{Name: model.Present(tt.in)}
			got := c.Correct(bag).Name.String()
			if got != tt.want {
				t.Errorf("Correct(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCorrectorPassesThroughAbsentName(t *testing.T) {
	c := NewCorrector(nil)

	absent := model.FieldBag{Name: model.Absent(), Phone: model.Present("+375291234567")}
	if got := c.Correct(absent); got != absent {
		t.Errorf("Expected bag unchanged, got %+v", got)
	}

	var missing model.FieldBag
	if got := c.Correct(missing); got != missing {
		t.Errorf("Expected empty bag unchanged, got %+v", got)
	}
}

func TestCorrectorCustomTableOrder(t *testing.T) {
	c := NewCorrector([]Correction{
		{Wrong: "аа", Right: "б"},
		{Wrong: "б", Right: "в"},
	})

	got := c.Correct(model.FieldBag{Name: model.Present("Хаа")}).Name.String()
	if got != "Хв" {
		t.Errorf("Expected table applied in order, got %q", got)
	}
}
