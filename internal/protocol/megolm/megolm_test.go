package megolm

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"

	"olmstead/internal/crypto"
)

func TestGroupRoundTrip(t *testing.T) {
	out, err := NewOutboundSession()
	if err != nil {
		t.Fatal(err)
	}
	in, err := NewInboundSession(out.SessionKey())
	if err != nil {
		t.Fatal(err)
	}
	if in.ID() != out.ID() {
		t.Fatalf("session ids differ: %s vs %s", in.ID(), out.ID())
	}

	for i, text := range []string{"first", "second", "third"} {
		wire, err := out.Encrypt([]byte(text))
		if err != nil {
			t.Fatal(err)
		}
		pt, idx, err := in.Decrypt(wire)
		if err != nil {
			t.Fatal(err)
		}
		if string(pt) != text {
			t.Fatalf("message %d: got %q, want %q", i, pt, text)
		}
		if idx != uint32(i) {
			t.Fatalf("message %d carried index %d", i, idx)
		}
	}
	if out.MessageIndex() != 3 {
		t.Fatalf("outbound index = %d, want 3", out.MessageIndex())
	}
}

func TestDecryptOutOfOrder(t *testing.T) {
	out, err := NewOutboundSession()
	if err != nil {
		t.Fatal(err)
	}
	in, err := NewInboundSession(out.SessionKey())
	if err != nil {
		t.Fatal(err)
	}

	var wires []string
	for _, text := range []string{"a", "b", "c"} {
		w, err := out.Encrypt([]byte(text))
		if err != nil {
			t.Fatal(err)
		}
		wires = append(wires, w)
	}

	pt, idx, err := in.Decrypt(wires[2])
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "c" || idx != 2 {
		t.Fatalf("got %q at %d", pt, idx)
	}
	pt, idx, err = in.Decrypt(wires[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "a" || idx != 0 {
		t.Fatalf("got %q at %d", pt, idx)
	}
}

func TestLateJoinerCannotReadBackwards(t *testing.T) {
	out, err := NewOutboundSession()
	if err != nil {
		t.Fatal(err)
	}
	early, err := out.Encrypt([]byte("before the share"))
	if err != nil {
		t.Fatal(err)
	}

	// Key exported after one message: the import starts at index 1.
	in, err := NewInboundSession(out.SessionKey())
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := in.Decrypt(early); !errors.Is(err, ErrUnknownIndex) {
		t.Fatalf("err = %v, want ErrUnknownIndex", err)
	}

	later, err := out.Encrypt([]byte("after the share"))
	if err != nil {
		t.Fatal(err)
	}
	pt, idx, err := in.Decrypt(later)
	if err != nil {
		t.Fatal(err)
	}
	if string(pt) != "after the share" || idx != 1 {
		t.Fatalf("got %q at %d", pt, idx)
	}
}

func TestBadSessionKeyRejected(t *testing.T) {
	if _, err := NewInboundSession("not even base64!!"); !errors.Is(err, ErrBadSessionKey) {
		t.Fatalf("err = %v, want ErrBadSessionKey", err)
	}

	out, err := NewOutboundSession()
	if err != nil {
		t.Fatal(err)
	}
	raw, err := crypto.UnB64(out.SessionKey())
	if err != nil {
		t.Fatal(err)
	}
	raw[7] ^= 0xff // flip a chain key bit, invalidating the signature
	if _, err := NewInboundSession(crypto.B64(raw)); !errors.Is(err, ErrBadSessionKey) {
		t.Fatalf("err = %v, want ErrBadSessionKey", err)
	}
}

func TestTamperedMessageRejected(t *testing.T) {
	out, err := NewOutboundSession()
	if err != nil {
		t.Fatal(err)
	}
	in, err := NewInboundSession(out.SessionKey())
	if err != nil {
		t.Fatal(err)
	}
	wire, err := out.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatal(err)
	}

	raw, err := crypto.UnB64(wire)
	if err != nil {
		t.Fatal(err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		t.Fatal(err)
	}
	env.Ciphertext[0] ^= 0xff
	forged, err := json.Marshal(env)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := in.Decrypt(crypto.B64(forged)); !errors.Is(err, ErrBadSignature) {
		t.Fatalf("err = %v, want ErrBadSignature", err)
	}
}
