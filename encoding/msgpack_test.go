package encoding

import "testing"

func TestMsgpackRoundTrip(t *testing.T) {
	var codec Msgpack
	data, err := codec.Encode([]any{"a", "b", 3})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	value, err := codec.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	slice, ok := value.([]any)
	if !ok || len(slice) != 3 {
		t.Fatalf("want a 3-element slice, got %T %v", value, value)
	}
}
