package filestore

import (
	"crypto/rand"
	"errors"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Sealing parameters.
const (
	keyLen  = 32
	saltLen = 16

	argonTime    uint32 = 3
	argonMemory  uint32 = 64 * 1024
	argonThreads uint8  = 1
)

// sealer derives a per-file key from a passphrase with Argon2id and seals
// payloads with XChaCha20-Poly1305. File layout: salt || nonce || ciphertext.
type sealer struct {
	passphrase []byte
}

func newSealer(passphrase []byte) *sealer {
	return &sealer{passphrase: append([]byte(nil), passphrase...)}
}

func (s *sealer) key(salt []byte) []byte {
	return argon2.IDKey(s.passphrase, salt, argonTime, argonMemory, argonThreads, keyLen)
}

func (s *sealer) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	out := make([]byte, 0, saltLen+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, plaintext, nil)...)
	return out, nil
}

func (s *sealer) open(blob []byte) ([]byte, error) {
	if len(blob) < saltLen+chacha20poly1305.NonceSizeX {
		return nil, errors.New("sealed blob too short")
	}
	salt := blob[:saltLen]
	nonce := blob[saltLen : saltLen+chacha20poly1305.NonceSizeX]
	ct := blob[saltLen+chacha20poly1305.NonceSizeX:]
	aead, err := chacha20poly1305.NewX(s.key(salt))
	if err != nil {
		return nil, err
	}
	return aead.Open(nil, nonce, ct, nil)
}
