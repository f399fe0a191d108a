package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/AnTengye/orderledger/model"
)

// ErrNoJSONObject means an AI reply carried no decodable JSON object.
var ErrNoJSONObject = errors.New("no JSON object in AI response")

// ParseFieldBag decodes the first well-formed JSON object found in an AI
// reply. Replies often wrap the object in prose or code fences. JSON null and
// the "null" marker become absent fields; keys the reply omits stay missing.
func ParseFieldBag(raw string) (model.FieldBag, error) {
	for _, candidate := range findJSONObjects(raw) {
		values, err := decodeObject(candidate)
		if err != nil {
			continue
		}
		return bagFromJSON(values), nil
	}
	return model.FieldBag{}, ErrNoJSONObject
}

func decodeObject(s string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return values, nil
}

func bagFromJSON(values map[string]any) model.FieldBag {
	var bag model.FieldBag
	for _, key := range model.FieldKeys {
		v, ok := values[key]
		if !ok {
			continue
		}
		switch val := v.(type) {
		case nil:
			bag.Set(key, model.Absent())
		case string:
			bag.Set(key, model.FieldOf(val))
		case json.Number:
			bag.Set(key, model.Present(val.String()))
		default:
			bag.Set(key, model.Present(fmt.Sprint(val)))
		}
	}
	return bag
}

// findJSONObjects returns every balanced {...} span in s ordered by start,
// nested spans included, so a broken outer span still leaves its inner
// object to try. It tracks string literals and escapes so braces inside
// values do not count. A "{" that is never closed is passed over. Byte
// iteration is safe for UTF-8 input because the delimiters are ASCII.
func findJSONObjects(s string) []string {
	var candidates []string
	for i := 0; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		end := matchObject(s, i)
		if end < 0 {
			continue
		}
		candidates = append(candidates, s[i:end+1])
	}
	return candidates
}

// matchObject returns the index of the "}" closing the "{" at start, or -1.
func matchObject(s string, start int) int {
	depth := 0
	inString := false
	escape := false

	for i := start; i < len(s); i++ {
		b := s[i]

		if escape {
			escape = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escape = true
			case '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
