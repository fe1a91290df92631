package encoding

import "testing"

func TestJSONRoundTrip(t *testing.T) {
	var codec JSON
	data, err := codec.Encode(map[string]any{"op": "ping", "n": float64(3)})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	value, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	m, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("want map[string]any, got %T", value)
	}
	if m["op"] != "ping" || m["n"] != float64(3) {
		t.Fatalf("unexpected round trip: %v", m)
	}
}

func TestJSONDecodeInvalidInput(t *testing.T) {
	var codec JSON
	if _, err := codec.Decode([]byte("{not json")); err == nil {
		t.Fatalf("want decode error for invalid JSON")
	}
}
