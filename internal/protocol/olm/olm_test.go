package olm

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
)

// pairedSessions runs the handshake end to end: Alice creates an outbound
// session against one of Bob's one-time keys and Bob derives the inbound
// side from her first message.
func pairedSessions(t *testing.T) (alice, bob *Session, bobAcct *Account) {
	t.Helper()

	aliceAcct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	bobAcct, err = NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	if err := bobAcct.GenerateOneTimeKeys(1); err != nil {
		t.Fatal(err)
	}
	var otk string
	for _, v := range bobAcct.OneTimeKeys() {
		otk = v
	}

	alice, err = NewOutboundSession(aliceAcct, bobAcct.IdentityKeys()[AlgCurve25519], otk)
	if err != nil {
		t.Fatal(err)
	}

	msg, err := alice.Encrypt([]byte("hello bob"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessagePreKey {
		t.Fatalf("first message type = %v, want pre-key", msg.Type)
	}

	bob, err = NewInboundSession(bobAcct, msg)
	if err != nil {
		t.Fatal(err)
	}
	pt, err := bob.Decrypt(msg)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(pt, []byte("hello bob")) {
		t.Fatalf("plaintext = %q", pt)
	}
	return alice, bob, bobAcct
}

func TestHandshakeDerivesSameSessionID(t *testing.T) {
	alice, bob, _ := pairedSessions(t)
	if alice.ID() != bob.ID() {
		t.Fatalf("session ids differ: %s vs %s", alice.ID(), bob.ID())
	}
	if alice.ID() == "" {
		t.Fatal("empty session id")
	}
}

func TestConversation(t *testing.T) {
	alice, bob, _ := pairedSessions(t)

	exchanges := []struct {
		from, to *Session
		text     string
	}{
		{bob, alice, "hi alice"},
		{alice, bob, "how are you"},
		{alice, bob, "still there?"},
		{bob, alice, "yes"},
		{alice, bob, "good"},
	}
	for i, e := range exchanges {
		msg, err := e.from.Encrypt([]byte(e.text))
		if err != nil {
			t.Fatalf("exchange %d: %v", i, err)
		}
		pt, err := e.to.Decrypt(msg)
		if err != nil {
			t.Fatalf("exchange %d: %v", i, err)
		}
		if string(pt) != e.text {
			t.Fatalf("exchange %d: got %q, want %q", i, pt, e.text)
		}
	}
}

func TestOutOfOrderDelivery(t *testing.T) {
	alice, bob, _ := pairedSessions(t)

	m1, err := alice.Encrypt([]byte("one"))
	if err != nil {
		t.Fatal(err)
	}
	m2, err := alice.Encrypt([]byte("two"))
	if err != nil {
		t.Fatal(err)
	}
	m3, err := alice.Encrypt([]byte("three"))
	if err != nil {
		t.Fatal(err)
	}

	for _, tc := range []struct {
		msg  Message
		want string
	}{{m3, "three"}, {m1, "one"}, {m2, "two"}} {
		pt, err := bob.Decrypt(tc.msg)
		if err != nil {
			t.Fatalf("decrypting %q: %v", tc.want, err)
		}
		if string(pt) != tc.want {
			t.Fatalf("got %q, want %q", pt, tc.want)
		}
	}
}

func TestSkippedKeysSurviveSerialization(t *testing.T) {
	alice, bob, _ := pairedSessions(t)

	early, err := alice.Encrypt([]byte("delayed"))
	if err != nil {
		t.Fatal(err)
	}
	late, err := alice.Encrypt([]byte("prompt"))
	if err != nil {
		t.Fatal(err)
	}

	// Decrypting the later message first stashes a skipped key for the
	// earlier one.
	if _, err := bob.Decrypt(late); err != nil {
		t.Fatal(err)
	}
	if len(bob.State.Skipped) == 0 {
		t.Fatal("no skipped key stashed")
	}

	raw, err := json.Marshal(bob)
	if err != nil {
		t.Fatal(err)
	}
	var reloaded Session
	if err := json.Unmarshal(raw, &reloaded); err != nil {
		t.Fatal(err)
	}
	if len(reloaded.State.Skipped) != len(bob.State.Skipped) {
		t.Fatalf("skipped keys lost in round trip: %d of %d survive",
			len(reloaded.State.Skipped), len(bob.State.Skipped))
	}

	pt, err := reloaded.Decrypt(early)
	if err != nil {
		t.Fatalf("decrypting delayed message after round trip: %v", err)
	}
	if string(pt) != "delayed" {
		t.Fatalf("plaintext = %q", pt)
	}
}

func TestPreKeyMaterialAttachedUntilEstablished(t *testing.T) {
	alice, bob, _ := pairedSessions(t)

	// Bob has not replied yet, so retransmissions keep the handshake keys.
	msg, err := alice.Encrypt([]byte("retry"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessagePreKey {
		t.Fatal("message before first reply lost its pre-key material")
	}
	if _, err := bob.Decrypt(msg); err != nil {
		t.Fatal(err)
	}

	reply, err := bob.Encrypt([]byte("ack"))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := alice.Decrypt(reply); err != nil {
		t.Fatal(err)
	}

	msg, err = alice.Encrypt([]byte("settled"))
	if err != nil {
		t.Fatal(err)
	}
	if msg.Type != MessageNormal {
		t.Fatal("established session still sends pre-key messages")
	}
	if msg.IdentityKey != "" || msg.BaseKey != "" || msg.OneTimeKey != "" {
		t.Fatal("normal message carries handshake keys")
	}
}

func TestOneTimeKeyConsumedOnce(t *testing.T) {
	aliceAcct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	bobAcct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	if err := bobAcct.GenerateOneTimeKeys(1); err != nil {
		t.Fatal(err)
	}
	var otk string
	for _, v := range bobAcct.OneTimeKeys() {
		otk = v
	}

	out, err := NewOutboundSession(aliceAcct, bobAcct.IdentityKeys()[AlgCurve25519], otk)
	if err != nil {
		t.Fatal(err)
	}
	msg, err := out.Encrypt([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := NewInboundSession(bobAcct, msg); err != nil {
		t.Fatal(err)
	}
	if _, err := NewInboundSession(bobAcct, msg); !errors.Is(err, ErrNoOneTimeKey) {
		t.Fatalf("replayed pre-key message: err = %v, want ErrNoOneTimeKey", err)
	}
}

func TestInboundRequiresPreKeyMessage(t *testing.T) {
	acct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	_, err = NewInboundSession(acct, Message{Type: MessageNormal})
	if !errors.Is(err, ErrNotPreKey) {
		t.Fatalf("err = %v, want ErrNotPreKey", err)
	}
}

func TestPreKeySessionID(t *testing.T) {
	alice, _, _ := pairedSessions(t)

	msg, err := alice.Encrypt([]byte("x"))
	if err != nil {
		t.Fatal(err)
	}
	id, ok := PreKeySessionID(msg)
	if !ok {
		t.Fatal("well-formed pre-key message not recognised")
	}
	if id != alice.ID() {
		t.Fatalf("derived id %s, want %s", id, alice.ID())
	}

	if _, ok := PreKeySessionID(Message{Type: MessageNormal}); ok {
		t.Fatal("normal message yielded a pre-key session id")
	}
}

func TestOneTimeKeyLifecycle(t *testing.T) {
	acct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}

	if err := acct.GenerateOneTimeKeys(3); err != nil {
		t.Fatal(err)
	}
	pool := acct.OneTimeKeys()
	if len(pool) != 3 {
		t.Fatalf("pool size = %d, want 3", len(pool))
	}

	acct.MarkKeysAsPublished()
	if n := len(acct.OneTimeKeys()); n != 0 {
		t.Fatalf("published pool still lists %d keys", n)
	}

	if err := acct.GenerateOneTimeKeys(2); err != nil {
		t.Fatal(err)
	}
	fresh := acct.OneTimeKeys()
	if len(fresh) != 2 {
		t.Fatalf("fresh pool size = %d, want 2", len(fresh))
	}
	for id := range fresh {
		if _, clash := pool[id]; clash {
			t.Fatalf("key id %s reused across batches", id)
		}
	}
}

func TestIdentityKeysStable(t *testing.T) {
	acct, err := NewAccount()
	if err != nil {
		t.Fatal(err)
	}
	keys := acct.IdentityKeys()
	if keys[AlgCurve25519] == "" || keys[AlgEd25519] == "" {
		t.Fatalf("incomplete identity keys: %v", keys)
	}
	again := acct.IdentityKeys()
	if keys[AlgCurve25519] != again[AlgCurve25519] || keys[AlgEd25519] != again[AlgEd25519] {
		t.Fatal("identity keys changed between calls")
	}
}
