package crypto

import "encoding/base64"

// B64 returns unpadded standard base64, the encoding used for key values
// and ciphertext bodies on the wire.
func B64(b []byte) string { return base64.RawStdEncoding.EncodeToString(b) }

// UnB64 decodes a string produced by B64.
func UnB64(s string) ([]byte, error) { return base64.RawStdEncoding.DecodeString(s) }
