// Package privacy holds the PII primitives the surrounding system applies
// around the verification engine: keyed lookup hashes, field sealing for data
// at rest, and IP anonymisation for logs.
package privacy

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"strings"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks values produced by Sealer.Seal so Open can pass legacy
// plaintext through unchanged.
const sealedPrefix = "enc:v1:"

// ErrMalformedCiphertext is returned when a sealed value cannot be decoded.
var ErrMalformedCiphertext = errors.New("malformed ciphertext")

// HashForLookup returns a keyed BLAKE2b-256 digest of value, hex encoded.
// Inputs are trimmed and upper-cased first so "pk-1001" and "PK-1001 " hash
// equally. An empty key still yields a stable (unkeyed) digest.
func HashForLookup(key []byte, value string) string {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	h, err := blake2b.New256(key)
	if err != nil {
		// Only fails for keys longer than 64 bytes.
		sum := blake2b.Sum256(append(key, normalized...))
		return hex.EncodeToString(sum[:])
	}
	h.Write([]byte(normalized))
	return hex.EncodeToString(h.Sum(nil))
}

// Sealer encrypts short PII fields with XChaCha20-Poly1305.
type Sealer struct {
	key []byte
}

// NewSealer builds a Sealer from a 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("sealer key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	k := make([]byte, len(key))
	copy(k, key)
	return &Sealer{key: k}, nil
}

// NewSealerFromHex builds a Sealer from a hex-encoded 32-byte key.
func NewSealerFromHex(hexKey string) (*Sealer, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, fmt.Errorf("decode sealer key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext. Empty input stays empty.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if s == nil || plaintext == "" {
		return plaintext, nil
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values without the sealed prefix are
// returned unchanged.
func (s *Sealer) Open(value string) (string, error) {
	if s == nil || !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", fmt.Errorf("init aead: %w", err)
	}
	if len(raw) < aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}
	nonce, ciphertext := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open sealed value: %w", err)
	}
	return string(plain), nil
}

// AnonymizeIP zeroes the host part of an address (/24 for IPv4, /48 for IPv6)
// so logs keep coarse locality without identifying a client.
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return ""
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}
