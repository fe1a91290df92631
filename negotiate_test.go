package loqui

import "testing"

type identityEncoder struct{}

func (identityEncoder) Encode(value any) ([]byte, error) {
	s, _ := value.(string)
	return []byte(s), nil
}

func (identityEncoder) Decode(data []byte) (any, error) {
	return string(data), nil
}

func TestNegotiatorAdvertisedPreservesRegistrationOrder(t *testing.T) {
	n := newNegotiator()
	n.Register("msgpack", identityEncoder{})
	n.Register("json", identityEncoder{})
	n.Register("json+snappy", identityEncoder{})

	got := n.Advertised()
	want := []string{"msgpack", "json", "json+snappy"}
	if len(got) != len(want) {
		t.Fatalf("want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("want %v, got %v", want, got)
		}
	}
}

func TestNegotiatorRegisterOverwriteKeepsOriginalPosition(t *testing.T) {
	n := newNegotiator()
	first := identityEncoder{}
	second := identityEncoder{}
	n.Register("json", first)
	n.Register("msgpack", identityEncoder{})
	n.Register("json", second) // re-register: overwrites value, not position

	got := n.Advertised()
	if len(got) != 2 || got[0] != "json" || got[1] != "msgpack" {
		t.Fatalf("re-registration should not move the name: %v", got)
	}
}

func TestNegotiatorPickReturnsFirstMutualMatch(t *testing.T) {
	n := newNegotiator()
	n.Register("msgpack", identityEncoder{})
	n.Register("json", identityEncoder{})

	name, enc, ok := n.Pick([]string{"snappy", "json", "msgpack"})
	if !ok || name != "json" || enc == nil {
		t.Fatalf("want json to be picked, got name=%q ok=%v", name, ok)
	}
}

func TestNegotiatorPickNoMutualEncoder(t *testing.T) {
	n := newNegotiator()
	n.Register("json", identityEncoder{})

	if _, _, ok := n.Pick([]string{"msgpack", "cbor"}); ok {
		t.Fatalf("want no match")
	}
}

func TestNegotiatorLookup(t *testing.T) {
	n := newNegotiator()
	enc := identityEncoder{}
	n.Register("json", enc)

	if _, ok := n.Lookup("missing"); ok {
		t.Fatalf("want lookup miss for unregistered name")
	}
	got, ok := n.Lookup("json")
	if !ok || got == nil {
		t.Fatalf("want lookup hit for json")
	}
}
