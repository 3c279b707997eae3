// Package events turns raw room-event JSON into a closed set of typed
// variants. Parsing never fails: an event that does not validate against
// its variant's expected shape becomes a Bad value carrying the raw source,
// and event types this client does not handle yield nil. The encryption
// layer leans on the same guarantee when it inspects decrypted payloads for
// room-key shares.
package events
