// Package chunkcodec implements the encrypted chunk blob format: a
// self-describing AES-256-GCM envelope with framing
// [u32 nonce_len][nonce][u32 key_id_len][key_id][ciphertext||tag], all
// length fields little-endian. Self-description lets chunks be portable
// across backup formats without a side table.
package chunkcodec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"

	"github.com/hideselfview/bae/pkg/musicerr"
)

const nonceSize = 12

// Codec encrypts and decrypts chunk plaintext under a single master key,
// identified by KeyID in every blob it produces.
type Codec struct {
	gcm   cipher.AEAD
	keyID string
}

// NewCodec builds a codec from a raw 256-bit key and the id that
// identifies it. The caller is responsible for sourcing the key (e.g. via
// a KeyStorage implementation and LoadOrCreateMasterKey below).
func NewCodec(key [32]byte, keyID string) (*Codec, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("chunkcodec: invalid key: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("chunkcodec: failed to init AES-GCM: %w", err)
	}
	return &Codec{gcm: gcm, keyID: keyID}, nil
}

// LoadOrCreateMasterKey loads the named key from storage, generating and
// persisting a fresh one if absent. This is the normal path for process
// startup: the master key is process-global and immutable thereafter.
func LoadOrCreateMasterKey(storage KeyStorage, keyID string) (*Codec, error) {
	key, err := storage.LoadKey(keyID)
	if err != nil {
		var genErr error
		key, genErr = generateMasterKey()
		if genErr != nil {
			return nil, musicerr.NewCSPRNGFailure(genErr)
		}
		if err := storage.StoreKey(keyID, key); err != nil {
			return nil, fmt.Errorf("chunkcodec: failed to store generated key: %w", err)
		}
	}
	return NewCodec(key, keyID)
}

func generateMasterKey() ([32]byte, error) {
	var key [32]byte
	if _, err := rand.Read(key[:]); err != nil {
		return key, err
	}
	return key, nil
}

// KeyID returns the id stamped into every blob this codec produces.
func (c *Codec) KeyID() string { return c.keyID }

// Encrypt samples a fresh nonce from the CSPRNG and returns a
// self-describing encrypted blob. It fails closed (CSPRNG failure
// surfaces as an error rather than falling back to a derived nonce).
func (c *Codec) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, musicerr.NewCSPRNGFailure(err)
	}

	ciphertext := c.gcm.Seal(nil, nonce, plaintext, nil)

	keyIDBytes := []byte(c.keyID)
	blob := make([]byte, 0, 4+nonceSize+4+len(keyIDBytes)+len(ciphertext))

	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(nonce)))
	blob = append(blob, lenBuf[:]...)
	blob = append(blob, nonce...)

	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(keyIDBytes)))
	blob = append(blob, lenBuf[:]...)
	blob = append(blob, keyIDBytes...)

	blob = append(blob, ciphertext...)
	return blob, nil
}

// Decrypt parses framing, verifies the key id, and decrypts. It reports
// Malformed on framing/length errors, KeyMismatch if key_id differs, and
// AuthFailure on tag mismatch.
func (c *Codec) Decrypt(blob []byte) ([]byte, error) {
	nonce, keyID, ciphertext, err := parseBlob(blob)
	if err != nil {
		return nil, err
	}
	if keyID != c.keyID {
		return nil, musicerr.NewKeyMismatch(c.keyID, keyID)
	}
	plaintext, err := c.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, musicerr.NewAuthFailure(err)
	}
	return plaintext, nil
}

// PeekKeyID parses only the framing to report which key_id a blob was
// encrypted under, without attempting decryption.
func PeekKeyID(blob []byte) (string, error) {
	_, keyID, _, err := parseBlob(blob)
	return keyID, err
}

func parseBlob(blob []byte) (nonce []byte, keyID string, ciphertext []byte, err error) {
	if len(blob) < 4 {
		return nil, "", nil, musicerr.NewMalformed("blob too short for nonce_len field")
	}
	nonceLen := int(binary.LittleEndian.Uint32(blob[0:4]))
	if nonceLen != nonceSize {
		return nil, "", nil, musicerr.NewMalformed(fmt.Sprintf("unexpected nonce length %d, want %d", nonceLen, nonceSize))
	}
	pos := 4
	if len(blob) < pos+nonceLen {
		return nil, "", nil, musicerr.NewMalformed("blob truncated in nonce field")
	}
	nonce = blob[pos : pos+nonceLen]
	pos += nonceLen

	if len(blob) < pos+4 {
		return nil, "", nil, musicerr.NewMalformed("blob truncated before key_id_len field")
	}
	keyIDLen := int(binary.LittleEndian.Uint32(blob[pos : pos+4]))
	pos += 4

	if keyIDLen < 0 || len(blob) < pos+keyIDLen {
		return nil, "", nil, musicerr.NewMalformed("blob truncated in key_id field")
	}
	keyID = string(blob[pos : pos+keyIDLen])
	pos += keyIDLen

	ciphertext = blob[pos:]
	if len(ciphertext) == 0 {
		return nil, "", nil, musicerr.NewMalformed("blob has no ciphertext")
	}
	return nonce, keyID, ciphertext, nil
}
