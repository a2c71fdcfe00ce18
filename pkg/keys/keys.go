// Package keys manages the Ed25519 identity key used to authenticate
// with the Sherlock registrar. The registrar identifies an agent by the
// lowercase hex encoding of its public key; control of the matching
// private key is proven by signing server-issued challenges.
package keys

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// SeedSize is the length in bytes of the private seed accepted by Load.
const SeedSize = ed25519.SeedSize

// ErrInvalidKeyMaterial is returned by Load when the supplied material
// is not a hex-encoded seed of the right length.
var ErrInvalidKeyMaterial = errors.New("invalid key material")

// KeyPair holds an Ed25519 signing key. The private half never leaves
// the struct except through Export; String redacts it.
type KeyPair struct {
	priv ed25519.PrivateKey
	pub  ed25519.PublicKey
}

// Generate creates a new key pair from crypto/rand.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("generate ed25519 key: %w", err)
	}
	return &KeyPair{priv: priv, pub: pub}, nil
}

// Load reconstructs a key pair from material previously produced by
// Export: the private seed as lowercase hex.
func Load(material string) (*KeyPair, error) {
	seed, err := hex.DecodeString(material)
	if err != nil {
		return nil, fmt.Errorf("%w: not valid hex", ErrInvalidKeyMaterial)
	}
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: seed is %d bytes, want %d", ErrInvalidKeyMaterial, len(seed), SeedSize)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	return &KeyPair{priv: priv, pub: priv.Public().(ed25519.PublicKey)}, nil
}

// Export returns the private seed as lowercase hex. Treat the result
// like a password; Load is its inverse.
func (k *KeyPair) Export() string {
	return hex.EncodeToString(k.priv.Seed())
}

// PublicKeyHex returns the canonical lowercase hex encoding of the
// public key, as transmitted to the registrar.
func (k *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.pub)
}

// Sign signs exactly the bytes given, with no added framing.
func (k *KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(k.priv, message)
}

// String identifies the key by its public half only.
func (k *KeyPair) String() string {
	return "keys.KeyPair(pub=" + k.PublicKeyHex() + ")"
}

// Verify reports whether sig is a valid signature over message by the
// key identified by publicKeyHex.
func Verify(publicKeyHex string, message, sig []byte) bool {
	pub, err := hex.DecodeString(publicKeyHex)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pub), message, sig)
}
