package model

// AbsentMarker is the placeholder an extraction service uses for "no data".
const AbsentMarker = "null"

// Field keys as they appear in extraction payloads.
const (
	KeyName     = "name"
	KeyPhone    = "phone"
	KeyAddress  = "address"
	KeyProduct  = "product"
	KeyAmount   = "amount"
	KeyUsername = "username"
)

// FieldKeys lists the bag keys in payload order.
var FieldKeys = []string{KeyName, KeyPhone, KeyAddress, KeyProduct, KeyAmount, KeyUsername}

// FieldState distinguishes a missing key from an explicit absent-marker.
type FieldState uint8

const (
	FieldMissing FieldState = iota
	FieldAbsent
	FieldPresent
)

type Field struct {
	Value string
	State FieldState
}

func Present(v string) Field { return Field{Value: v, State: FieldPresent} }

func Absent() Field { return Field{State: FieldAbsent} }

// FieldOf classifies a raw string: empty is missing, exactly the
// absent-marker is absent, anything else (including "Null") is present.
func FieldOf(raw string) Field {
	switch raw {
	case "":
		return Field{}
	case AbsentMarker:
		return Absent()
	default:
		return Present(raw)
	}
}

func (f Field) IsPresent() bool { return f.State == FieldPresent }

// String returns the value of a present field and "" otherwise.
func (f Field) String() string {
	if f.State != FieldPresent {
		return ""
	}
	return f.Value
}

// FieldBag is the loosely-typed result of an extraction.
type FieldBag struct {
	Name     Field
	Phone    Field
	Address  Field
	Product  Field
	Amount   Field
	Username Field
}

// Get returns the field stored under key; unknown keys are missing.
func (b FieldBag) Get(key string) Field {
	if p := b.slot(key); p != nil {
		return *p
	}
	return Field{}
}

// Set stores f under key. Unknown keys are ignored.
func (b *FieldBag) Set(key string, f Field) {
	if p := b.slot(key); p != nil {
		*p = f
	}
}

// BagFromStrings builds a bag from a plain map using FieldOf.
func BagFromStrings(values map[string]string) FieldBag {
	var b FieldBag
	for k, v := range values {
		b.Set(k, FieldOf(v))
	}
	return b
}

func (b *FieldBag) slot(key string) *Field {
	switch key {
	case KeyName:
		return &b.Name
	case KeyPhone:
		return &b.Phone
	case KeyAddress:
		return &b.Address
	case KeyProduct:
		return &b.Product
	case KeyAmount:
		return &b.Amount
	case KeyUsername:
		return &b.Username
	}
	return nil
}
