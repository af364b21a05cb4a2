package security

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-social/core"
)

// envelope is the inner storage shape. Each field is base64 on its own and the
// marshaled envelope is base64-encoded again into a single column value.
type envelope struct {
	Encrypted string `json:"encrypted"`
	IV        string `json:"iv"`
	AuthTag   string `json:"authTag"`
}

func encodeEnvelope(blob core.EncryptedBlob) (string, error) {
	data, err := json.Marshal(envelope{
		Encrypted: base64.StdEncoding.EncodeToString(blob.Ciphertext),
		IV:        base64.StdEncoding.EncodeToString(blob.IV),
		AuthTag:   base64.StdEncoding.EncodeToString(blob.AuthTag),
	})
	if err != nil {
		return "", core.NewEncryptionError(core.EncryptionErrorEncode, "encode envelope", err)
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func decodeEnvelope(stored string) (core.EncryptedBlob, error) {
	trimmed := strings.TrimSpace(stored)
	if trimmed == "" {
		return core.EncryptedBlob{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "stored credentials are empty", nil)
	}
	data, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		return core.EncryptedBlob{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "decode storage string", err)
	}
	var parsed envelope
	if err := json.Unmarshal(data, &parsed); err != nil {
		return core.EncryptedBlob{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "decode envelope", err)
	}

	blob := core.EncryptedBlob{}
	fields := []struct {
		name  string
		value string
		out   *[]byte
	}{
		{"encrypted", parsed.Encrypted, &blob.Ciphertext},
		{"iv", parsed.IV, &blob.IV},
		{"authTag", parsed.AuthTag, &blob.AuthTag},
	}
	for _, field := range fields {
		if strings.TrimSpace(field.value) == "" {
			return core.EncryptedBlob{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "envelope "+field.name+" is required", nil)
		}
		decoded, err := base64.StdEncoding.DecodeString(field.value)
		if err != nil {
			return core.EncryptedBlob{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, fmt.Sprintf("decode envelope %s", field.name), err)
		}
		*field.out = decoded
	}
	return blob, nil
}

// Blob exposes the decoded envelope of a stored string, mainly for audits and
// tests that need to inspect the IV.
func Blob(stored string) (core.EncryptedBlob, error) {
	return decodeEnvelope(stored)
}

// Seal re-encodes a blob into its storage string.
func Seal(blob core.EncryptedBlob) (string, error) {
	return encodeEnvelope(blob)
}
