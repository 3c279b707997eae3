package events

import "testing"

func TestParseRoomKey(t *testing.T) {
	rk, ok := ParseRoomKey([]byte(`{
		"type": "m.room_key",
		"content": {
			"algorithm": "m.megolm.v1.aes-sha2",
			"room_id": "!room:example.org",
			"session_id": "sess",
			"session_key": "key"
		}
	}`))
	if !ok {
		t.Fatal("valid room key not recognised")
	}
	if rk.RoomID != "!room:example.org" || rk.SessionID != "sess" || rk.SessionKey != "key" {
		t.Fatalf("unexpected room key: %+v", rk)
	}
}

func TestParseRoomKeyRejects(t *testing.T) {
	cases := map[string]string{
		"wrong type":      `{"type": "m.other", "content": {"algorithm": "m.megolm.v1.aes-sha2", "room_id": "!r", "session_id": "s", "session_key": "k"}}`,
		"wrong algorithm": `{"type": "m.room_key", "content": {"algorithm": "m.custom", "room_id": "!r", "session_id": "s", "session_key": "k"}}`,
		"missing session": `{"type": "m.room_key", "content": {"algorithm": "m.megolm.v1.aes-sha2", "room_id": "!r", "session_key": "k"}}`,
		"not json":        `just some text`,
	}
	for name, src := range cases {
		if _, ok := ParseRoomKey([]byte(src)); ok {
			t.Errorf("%s: accepted", name)
		}
	}
}
