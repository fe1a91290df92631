// Package encoding provides the built-in Encoder implementations the
// negotiator can offer: a JSON codec, a msgpack codec, and a
// compressing decorator over either. Callers register the ones they
// want with Session.RegisterEncoder under whatever name they choose to
// advertise on the wire.
package encoding

import "encoding/json"

// JSON encodes with encoding/json. No third-party JSON library appears
// anywhere in the retrieved example corpus, so this is the one codec in
// the package that is deliberately stdlib rather than a wired
// dependency; see DESIGN.md for the justification.
type JSON struct{}

// Encode marshals value to its JSON representation.
func (JSON) Encode(value any) ([]byte, error) {
	return json.Marshal(value)
}

// Decode unmarshals data into a generic JSON value: objects become
// map[string]any, arrays become []any, per encoding/json's default
// decode-into-any behavior.
func (JSON) Decode(data []byte) (any, error) {
	var value any
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
