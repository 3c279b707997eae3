package events

import (
	"encoding/json"
	"testing"
)

func mustParse(t *testing.T, src string) Event {
	t.Helper()
	return Parse(json.RawMessage(src))
}

func TestParseMessage(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"origin_server_ts": 1000,
		"type": "m.room.message",
		"content": {"msgtype": "m.text", "body": "hello"}
	}`)
	msg, ok := ev.(Message)
	if !ok {
		t.Fatalf("got %T, want Message", ev)
	}
	if msg.Body != "hello" || msg.MsgType != "m.text" || msg.Sender != "@alice:example.org" {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestParseMessageMissingBody(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "m.room.message",
		"content": {"msgtype": "m.text"}
	}`)
	if _, ok := ev.(Bad); !ok {
		t.Fatalf("got %T, want Bad", ev)
	}
}

func TestParseLocalEchoDropped(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "m.room.message",
		"content": {"msgtype": "m.text", "body": "hello"},
		"unsigned": {"transaction_id": "txn1"}
	}`)
	if ev != nil {
		t.Fatalf("local echo parsed as %T", ev)
	}
}

func TestParseUnknownTypeDropped(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "org.example.custom",
		"content": {}
	}`)
	if ev != nil {
		t.Fatalf("unknown type parsed as %T", ev)
	}
}

func TestParseInvalidJSON(t *testing.T) {
	ev := mustParse(t, `{"event_id": `)
	if _, ok := ev.(Bad); !ok {
		t.Fatalf("got %T, want Bad", ev)
	}
}

func TestParseMissingEnvelopeFields(t *testing.T) {
	ev := mustParse(t, `{"type": "m.room.message", "content": {"msgtype": "m.text", "body": "x"}}`)
	if _, ok := ev.(Bad); !ok {
		t.Fatalf("got %T, want Bad", ev)
	}
}

func TestParseMembership(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "m.room.member",
		"state_key": "@bob:example.org",
		"content": {"membership": "join", "displayname": "Bob"}
	}`)
	m, ok := ev.(Membership)
	if !ok {
		t.Fatalf("got %T, want Membership", ev)
	}
	if m.Membership != "join" || m.StateKey != "@bob:example.org" || m.DisplayName != "Bob" {
		t.Fatalf("unexpected membership: %+v", m)
	}

	ev = mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "m.room.member",
		"state_key": "@bob:example.org",
		"content": {"membership": "levitate"}
	}`)
	if _, ok := ev.(Bad); !ok {
		t.Fatalf("invalid membership value: got %T, want Bad", ev)
	}
}

func TestParseRedacted(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1",
		"sender": "@alice:example.org",
		"type": "m.room.message",
		"content": {},
		"unsigned": {
			"redacted_because": {
				"sender": "@mod:example.org",
				"content": {"reason": "spam"}
			}
		}
	}`)
	r, ok := ev.(Redacted)
	if !ok {
		t.Fatalf("got %T, want Redacted", ev)
	}
	if r.Redacter != "@mod:example.org" || r.Reason != "spam" || r.EventType != "m.room.message" {
		t.Fatalf("unexpected redacted event: %+v", r)
	}
}

func TestParseRedaction(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$2",
		"sender": "@mod:example.org",
		"type": "m.room.redaction",
		"redacts": "$1",
		"content": {"reason": "spam"}
	}`)
	r, ok := ev.(Redaction)
	if !ok {
		t.Fatalf("got %T, want Redaction", ev)
	}
	if r.Redacts != "$1" || r.Reason != "spam" {
		t.Fatalf("unexpected redaction: %+v", r)
	}
}

func TestParseStateEvents(t *testing.T) {
	ev := mustParse(t, `{
		"event_id": "$1", "sender": "@a:e.org", "type": "m.room.name",
		"content": {"name": "The Room"}
	}`)
	if n, ok := ev.(Name); !ok || n.Name != "The Room" {
		t.Fatalf("name: got %T %+v", ev, ev)
	}

	ev = mustParse(t, `{
		"event_id": "$1", "sender": "@a:e.org", "type": "m.room.topic",
		"content": {"topic": "Talk"}
	}`)
	if top, ok := ev.(Topic); !ok || top.Topic != "Talk" {
		t.Fatalf("topic: got %T %+v", ev, ev)
	}

	ev = mustParse(t, `{
		"event_id": "$1", "sender": "@a:e.org", "type": "m.room.canonical_alias",
		"content": {"alias": "#room:e.org"}
	}`)
	if a, ok := ev.(Alias); !ok || a.Alias != "#room:e.org" {
		t.Fatalf("alias: got %T %+v", ev, ev)
	}

	ev = mustParse(t, `{
		"event_id": "$1", "sender": "@a:e.org", "type": "m.room.encryption",
		"content": {"algorithm": "m.megolm.v1.aes-sha2"}
	}`)
	if _, ok := ev.(Encryption); !ok {
		t.Fatalf("encryption: got %T", ev)
	}
}
