package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"strings"
	"sync"

	"github.com/goliatone/go-social/core"
	"golang.org/x/crypto/pbkdf2"
)

const (
	KeyIterations = 100_000
	KeyLength     = 32
	IVLength      = 12
	TagLength     = 16
)

type Option func(*TenantCipher)

// WithRandom replaces the IV source. Intended for tests.
func WithRandom(reader io.Reader) Option {
	return func(c *TenantCipher) {
		if reader != nil {
			c.random = reader
		}
	}
}

// WithoutKeyCache disables per-tenant memoization of derived keys.
func WithoutKeyCache() Option {
	return func(c *TenantCipher) {
		c.cacheKeys = false
	}
}

// TenantCipher encrypts credential records with an AES-256-GCM key derived per
// tenant from a process-wide master secret. It is safe for concurrent use.
type TenantCipher struct {
	masterSecret []byte
	random       io.Reader
	cacheKeys    bool

	mu   sync.RWMutex
	keys map[string][]byte
}

// NewTenantCipher never fails: a missing master secret surfaces as a
// configuration EncryptionError on first use.
func NewTenantCipher(masterSecret string, opts ...Option) *TenantCipher {
	c := &TenantCipher{
		masterSecret: []byte(strings.TrimSpace(masterSecret)),
		random:       rand.Reader,
		cacheKeys:    true,
		keys:         map[string][]byte{},
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(c)
	}
	return c
}

// DeriveKey returns the 256-bit key for tenantID:
// PBKDF2-HMAC-SHA256(masterSecret, tenantID, 100000 iterations).
func (c *TenantCipher) DeriveKey(tenantID string) ([]byte, error) {
	if c == nil || len(c.masterSecret) == 0 {
		return nil, core.NewEncryptionError(core.EncryptionErrorConfig, "master secret is not configured", nil)
	}
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, core.NewEncryptionError(core.EncryptionErrorConfig, "tenant id is required", nil)
	}
	if c.cacheKeys {
		c.mu.RLock()
		key, ok := c.keys[tenantID]
		c.mu.RUnlock()
		if ok {
			return key, nil
		}
	}
	key := pbkdf2.Key(c.masterSecret, []byte(tenantID), KeyIterations, KeyLength, sha256.New)
	if c.cacheKeys {
		c.mu.Lock()
		c.keys[tenantID] = key
		c.mu.Unlock()
	}
	return key, nil
}

func (c *TenantCipher) Encrypt(credentials core.PlatformCredentials, tenantID string) (string, error) {
	key, err := c.DeriveKey(tenantID)
	if err != nil {
		return "", err
	}
	plaintext, err := json.Marshal(credentials)
	if err != nil {
		return "", core.NewEncryptionError(core.EncryptionErrorEncode, "marshal credentials", err)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVLength)
	if _, err := io.ReadFull(c.random, iv); err != nil {
		return "", core.NewEncryptionError(core.EncryptionErrorEncode, "iv generation failed", err)
	}
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	split := len(sealed) - TagLength
	return encodeEnvelope(core.EncryptedBlob{
		Ciphertext: sealed[:split],
		IV:         iv,
		AuthTag:    sealed[split:],
	})
}

func (c *TenantCipher) Decrypt(stored string, tenantID string) (core.PlatformCredentials, error) {
	key, err := c.DeriveKey(tenantID)
	if err != nil {
		return core.PlatformCredentials{}, err
	}
	blob, err := decodeEnvelope(stored)
	if err != nil {
		return core.PlatformCredentials{}, err
	}
	if len(blob.IV) != IVLength {
		return core.PlatformCredentials{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "invalid iv length", nil)
	}
	if len(blob.AuthTag) != TagLength {
		return core.PlatformCredentials{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "invalid auth tag length", nil)
	}
	gcm, err := newGCM(key)
	if err != nil {
		return core.PlatformCredentials{}, err
	}

	sealed := make([]byte, 0, len(blob.Ciphertext)+len(blob.AuthTag))
	sealed = append(sealed, blob.Ciphertext...)
	sealed = append(sealed, blob.AuthTag...)
	plaintext, err := gcm.Open(nil, blob.IV, sealed, nil)
	if err != nil {
		return core.PlatformCredentials{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "authentication failed", err)
	}

	var credentials core.PlatformCredentials
	if err := json.Unmarshal(plaintext, &credentials); err != nil {
		return core.PlatformCredentials{}, core.NewEncryptionError(core.EncryptionErrorIntegrity, "decode credentials", err)
	}
	return credentials, nil
}

// Hash is a hex SHA-256 digest of the marshaled credentials, used to detect
// changes without decrypting.
func (c *TenantCipher) Hash(credentials core.PlatformCredentials) (string, error) {
	data, err := json.Marshal(credentials)
	if err != nil {
		return "", core.NewEncryptionError(core.EncryptionErrorEncode, "marshal credentials", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, core.NewEncryptionError(core.EncryptionErrorConfig, "create cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, core.NewEncryptionError(core.EncryptionErrorConfig, "create gcm", err)
	}
	return gcm, nil
}

var _ core.CredentialCipher = (*TenantCipher)(nil)
