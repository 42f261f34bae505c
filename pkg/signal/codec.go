package signal

import (
	"encoding/base64"
	"encoding/json"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
)

// maxDecodedSize bounds decompression so a hostile payload cannot balloon.
const maxDecodedSize = 1 << 20

var armor = base64.RawURLEncoding

// Codec turns a Payload into the single string two endpoints exchange, and
// back. The plain form is the Payload's JSON; the compact form is that JSON
// zstd-compressed, sealed when a Crypto is set, and armored as unpadded
// base64url. With a Crypto only the compact form is produced or accepted.
// Decode treats input starting with '{' as plain.
type Codec struct {
	cfg CodecConfig

	crypto Crypto

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

type CodecConfig struct {
	Compact bool
}

// NewCodec builds a codec. crypto may be nil.
func NewCodec(cfg CodecConfig, crypto Crypto) (*Codec, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return nil, errors.Wrap(err, "zstd encoder")
	}

	decoder, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		encoder.Close()

		return nil, errors.Wrap(err, "zstd decoder")
	}

	if crypto != nil {
		cfg.Compact = true
	}

	return &Codec{
		cfg:     cfg,
		crypto:  crypto,
		encoder: encoder,
		decoder: decoder,
	}, nil
}

func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

func (c *Codec) Encode(p Payload) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "marshal payload")
	}

	if !c.cfg.Compact {
		return string(payload), nil
	}

	payload = c.encoder.EncodeAll(payload, nil)

	if c.crypto != nil {
		if payload, err = c.crypto.Encrypt(payload); err != nil {
			return "", errors.Wrap(err, "seal payload")
		}
	}

	return armor.EncodeToString(payload), nil
}

func (c *Codec) Decode(s string) (Payload, error) {
	s = strings.TrimSpace(s)

	if len(s) == 0 {
		return Payload{}, errors.Wrap(ErrMalformedPayload, "empty")
	}

	var (
		payload []byte
		err     error
	)

	if s[0] == '{' {
		if c.crypto != nil {
			return Payload{}, errors.Wrap(ErrMalformedPayload, ErrUnsealedPayload.Error())
		}

		payload = []byte(s)
	} else {
		if payload, err = c.unwrap(s); err != nil {
			return Payload{}, errors.Wrap(ErrMalformedPayload, err.Error())
		}
	}

	p := Payload{}

	if err := json.Unmarshal(payload, &p); err != nil {
		return Payload{}, errors.Wrap(ErrMalformedPayload, err.Error())
	}

	if err := p.validate(); err != nil {
		return Payload{}, errors.Wrap(ErrMalformedPayload, err.Error())
	}

	return p, nil
}

func (c *Codec) unwrap(s string) ([]byte, error) {
	payload, err := armor.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(err, "armor")
	}

	if c.crypto != nil {
		if payload, err = c.crypto.Decrypt(payload); err != nil {
			return nil, errors.Wrap(err, "unseal")
		}
	}

	payload, err = c.decoder.DecodeAll(payload, nil)
	if err != nil {
		return nil, errors.Wrap(err, "decompress")
	}

	return payload, nil
}
