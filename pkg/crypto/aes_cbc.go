package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"github.com/pkg/errors"
	"github.com/zenazn/pkcs7pad"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize = 16
	keySize  = 32
	macSize  = sha256.Size

	hkdfInfo = "peerlink signaling payload"

	// DefaultIterations is the PBKDF2 work factor used when
	// AesCbcConfig.Iterations is zero.
	DefaultIterations = 100000
)

var (
	ErrEmptyPassphrase = errors.New("empty passphrase")
	ErrAuthentication  = errors.New("message authentication failed")
)

// AesCbc seals signaling payloads with a passphrase both endpoints know in
// advance. A sealed message is salt|iv|ciphertext|mac: PBKDF2-HMAC-SHA256
// stretches the passphrase with the per-message salt, HKDF-SHA256 expands the
// result into an AES-256 key and an HMAC-SHA256 key, and the MAC over salt,
// iv and ciphertext is checked before anything is decrypted.
type AesCbc struct {
	cfg AesCbcConfig
}

type AesCbcConfig struct {
	Passphrase string

	// Iterations must be the same on both endpoints.
	Iterations int
}

func NewAesCbc(cfg AesCbcConfig) (*AesCbc, error) {
	if len(cfg.Passphrase) == 0 {
		return nil, ErrEmptyPassphrase
	}

	if cfg.Iterations <= 0 {
		cfg.Iterations = DefaultIterations
	}

	return &AesCbc{
		cfg: cfg,
	}, nil
}

func (c *AesCbc) Encrypt(payload []byte) ([]byte, error) {
	header := make([]byte, saltSize+aes.BlockSize)

	if _, err := io.ReadFull(rand.Reader, header); err != nil {
		return nil, errors.Wrap(err, "random salt")
	}

	salt, iv := header[:saltSize], header[saltSize:]

	block, macKey, err := c.deriveKeys(salt)
	if err != nil {
		return nil, err
	}

	payload = pkcs7pad.Pad(payload, block.BlockSize())

	encrypter := cipher.NewCBCEncrypter(block, iv)
	encrypted := make([]byte, len(payload))

	encrypter.CryptBlocks(encrypted, payload)

	sealed := append(header, encrypted...)

	return append(sealed, c.sign(macKey, sealed)...), nil
}

func (c *AesCbc) Decrypt(payload []byte) ([]byte, error) {
	if len(payload) < saltSize+2*aes.BlockSize+macSize {
		return nil, ErrAuthentication
	}

	body, mac := payload[:len(payload)-macSize], payload[len(payload)-macSize:]
	salt := body[:saltSize]
	iv := body[saltSize : saltSize+aes.BlockSize]
	encrypted := body[saltSize+aes.BlockSize:]

	block, macKey, err := c.deriveKeys(salt)
	if err != nil {
		return nil, err
	}

	if !hmac.Equal(mac, c.sign(macKey, body)) {
		return nil, ErrAuthentication
	}

	if len(encrypted)%block.BlockSize() != 0 {
		return nil, ErrAuthentication
	}

	decrypter := cipher.NewCBCDecrypter(block, iv)
	decrypted := make([]byte, len(encrypted))

	decrypter.CryptBlocks(decrypted, encrypted)

	return pkcs7pad.Unpad(decrypted)
}

func (c *AesCbc) deriveKeys(salt []byte) (cipher.Block, []byte, error) {
	keys := make([]byte, 2*keySize)

	prk := pbkdf2.Key([]byte(c.cfg.Passphrase), salt, c.cfg.Iterations, sha256.Size, sha256.New)

	kdf := hkdf.Expand(sha256.New, prk, []byte(hkdfInfo))
	if _, err := io.ReadFull(kdf, keys); err != nil {
		return nil, nil, errors.Wrap(err, "derive keys")
	}

	block, err := aes.NewCipher(keys[:keySize])
	if err != nil {
		return nil, nil, err
	}

	return block, keys[keySize:], nil
}

func (c *AesCbc) sign(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)

	return mac.Sum(nil)
}
