package events

import "encoding/json"

// Event is the closed union of room events this client understands. The
// concrete types are Message, Membership, Name, Topic, Alias, PowerLevelsEvent,
// Encryption, Redaction, Redacted and Bad.
type Event interface {
	event()
}

// envelope is the common outer shape of every room event.
type envelope struct {
	EventID   string          `json:"event_id"`
	Sender    string          `json:"sender"`
	Timestamp int64           `json:"origin_server_ts"`
	Type      string          `json:"type"`
	StateKey  string          `json:"state_key"`
	Content   json.RawMessage `json:"content"`
	Unsigned  struct {
		TransactionID   string `json:"transaction_id"`
		RedactedBecause *struct {
			Sender  string `json:"sender"`
			Content struct {
				Reason string `json:"reason"`
			} `json:"content"`
		} `json:"redacted_because"`
	} `json:"unsigned"`
}

// Bad is the fallback variant for traffic that names a known type but does
// not validate. It keeps the raw source for debugging and auditability.
type Bad struct {
	EventID   string
	Sender    string
	Timestamp int64
	Type      string
	Source    json.RawMessage
}

// Redacted replaces an event that was redacted after the fact.
type Redacted struct {
	EventID   string
	Sender    string
	Timestamp int64
	EventType string
	Redacter  string
	Reason    string
}

// Message is an m.room.message event.
type Message struct {
	EventID       string
	Sender        string
	Timestamp     int64
	MsgType       string
	Body          string
	FormattedBody string
	Format        string
}

// Membership is an m.room.member state event.
type Membership struct {
	EventID     string
	Sender      string
	Timestamp   int64
	StateKey    string
	Membership  string
	DisplayName string
}

// Name is an m.room.name state event.
type Name struct {
	EventID   string
	Sender    string
	Timestamp int64
	Name      string
}

// Topic is an m.room.topic state event.
type Topic struct {
	EventID   string
	Sender    string
	Timestamp int64
	Topic     string
}

// Alias is an m.room.canonical_alias state event.
type Alias struct {
	EventID   string
	Sender    string
	Timestamp int64
	Alias     string
}

// Encryption marks a room as encrypted.
type Encryption struct {
	EventID   string
	Sender    string
	Timestamp int64
}

// Redaction is an m.room.redaction event removing another event.
type Redaction struct {
	EventID   string
	Sender    string
	Timestamp int64
	Redacts   string
	Reason    string
}

func (Bad) event()              {}
func (Redacted) event()         {}
func (Message) event()          {}
func (Membership) event()       {}
func (Name) event()             {}
func (Topic) event()            {}
func (Alias) event()            {}
func (Encryption) event()       {}
func (Redaction) event()        {}
func (PowerLevelsEvent) event() {}

// Parse maps raw event JSON onto a variant. It returns nil for event types
// this client does not handle and for echoes of our own messages, and a Bad
// value when a known type fails validation. It never returns an error.
func Parse(raw json.RawMessage) Event {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Bad{Source: raw}
	}
	if env.EventID == "" || env.Sender == "" || env.Type == "" {
		return Bad{
			EventID: env.EventID, Sender: env.Sender,
			Timestamp: env.Timestamp, Type: env.Type, Source: raw,
		}
	}

	if r := env.Unsigned.RedactedBecause; r != nil {
		return Redacted{
			EventID:   env.EventID,
			Sender:    env.Sender,
			Timestamp: env.Timestamp,
			EventType: env.Type,
			Redacter:  r.Sender,
			Reason:    r.Content.Reason,
		}
	}

	switch env.Type {
	case "m.room.message":
		// Events carrying our own transaction id are local echoes; the
		// client already displayed them.
		if env.Unsigned.TransactionID != "" {
			return nil
		}
		return parseMessage(env, raw)
	case "m.room.member":
		return parseMembership(env, raw)
	case "m.room.canonical_alias":
		return parseAlias(env, raw)
	case "m.room.name":
		return parseName(env, raw)
	case "m.room.topic":
		return parseTopic(env, raw)
	case "m.room.power_levels":
		return parsePowerLevels(env, raw)
	case "m.room.redaction":
		return parseRedaction(env, raw)
	case "m.room.encryption":
		return Encryption{EventID: env.EventID, Sender: env.Sender, Timestamp: env.Timestamp}
	}
	return nil
}

func bad(env envelope, raw json.RawMessage) Bad {
	return Bad{
		EventID:   env.EventID,
		Sender:    env.Sender,
		Timestamp: env.Timestamp,
		Type:      env.Type,
		Source:    raw,
	}
}

func parseMessage(env envelope, raw json.RawMessage) Event {
	var content struct {
		MsgType       string  `json:"msgtype"`
		Body          *string `json:"body"`
		FormattedBody string  `json:"formatted_body"`
		Format        string  `json:"format"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || content.MsgType == "" || content.Body == nil {
		return bad(env, raw)
	}
	switch content.MsgType {
	case "m.text", "m.emote", "m.notice":
	default:
		// Unknown msgtype: tolerated but not modelled.
		return nil
	}
	return Message{
		EventID:       env.EventID,
		Sender:        env.Sender,
		Timestamp:     env.Timestamp,
		MsgType:       content.MsgType,
		Body:          *content.Body,
		FormattedBody: content.FormattedBody,
		Format:        content.Format,
	}
}

func parseMembership(env envelope, raw json.RawMessage) Event {
	var content struct {
		Membership  string `json:"membership"`
		DisplayName string `json:"displayname"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || env.StateKey == "" {
		return bad(env, raw)
	}
	switch content.Membership {
	case "invite", "join", "leave", "ban", "knock":
	default:
		return bad(env, raw)
	}
	return Membership{
		EventID:     env.EventID,
		Sender:      env.Sender,
		Timestamp:   env.Timestamp,
		StateKey:    env.StateKey,
		Membership:  content.Membership,
		DisplayName: content.DisplayName,
	}
}

func parseAlias(env envelope, raw json.RawMessage) Event {
	var content struct {
		Alias *string `json:"alias"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || content.Alias == nil {
		return bad(env, raw)
	}
	return Alias{EventID: env.EventID, Sender: env.Sender, Timestamp: env.Timestamp, Alias: *content.Alias}
}

func parseName(env envelope, raw json.RawMessage) Event {
	var content struct {
		Name *string `json:"name"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || content.Name == nil {
		return bad(env, raw)
	}
	return Name{EventID: env.EventID, Sender: env.Sender, Timestamp: env.Timestamp, Name: *content.Name}
}

func parseTopic(env envelope, raw json.RawMessage) Event {
	var content struct {
		Topic *string `json:"topic"`
	}
	if err := json.Unmarshal(env.Content, &content); err != nil || content.Topic == nil {
		return bad(env, raw)
	}
	return Topic{EventID: env.EventID, Sender: env.Sender, Timestamp: env.Timestamp, Topic: *content.Topic}
}

func parseRedaction(env envelope, raw json.RawMessage) Event {
	var outer struct {
		Redacts string `json:"redacts"`
	}
	var content struct {
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal(raw, &outer); err != nil || outer.Redacts == "" {
		return bad(env, raw)
	}
	_ = json.Unmarshal(env.Content, &content)
	return Redaction{
		EventID:   env.EventID,
		Sender:    env.Sender,
		Timestamp: env.Timestamp,
		Redacts:   outer.Redacts,
		Reason:    content.Reason,
	}
}
