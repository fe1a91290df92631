package encoding

import "github.com/vmihailenco/msgpack/v5"

// Msgpack encodes with github.com/vmihailenco/msgpack/v5, grounded on
// its appearance in the retrieved example corpus's go.mod manifests as
// the pack's one alternative payload codec to JSON.
type Msgpack struct{}

// Encode marshals value with msgpack.
func (Msgpack) Encode(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

// Decode unmarshals data into a generic msgpack value.
func (Msgpack) Decode(data []byte) (any, error) {
	var value any
	if err := msgpack.Unmarshal(data, &value); err != nil {
		return nil, err
	}
	return value, nil
}
