package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/skip2/go-qrcode"
)

var ErrInvalidToken = errors.New("invalid invite token")

// Invite is the payload sealed inside an invite token.
type Invite struct {
	GroupID  string    `json:"group_id"`
	JoinCode string    `json:"join_code,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

// InviteCodec seals invites with AES-GCM and renders them as QR codes.
type InviteCodec struct {
	key  []byte
	size int
}

func NewInviteCodec(secret string, size int) *InviteCodec {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	if size <= 0 {
		size = 256
	}
	return &InviteCodec{key: hashed[:], size: size}
}

// Seal returns a URL-safe token carrying inv.
func (c *InviteCodec) Seal(inv Invite) (string, error) {
	data, err := json.Marshal(inv)
	if err != nil {
		return "", err
	}
	gcm, err := c.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Tampered or foreign tokens yield ErrInvalidToken.
func (c *InviteCodec) Open(token string) (Invite, error) {
	var inv Invite
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return inv, ErrInvalidToken
	}
	gcm, err := c.gcm()
	if err != nil {
		return inv, err
	}
	if len(raw) < gcm.NonceSize() {
		return inv, ErrInvalidToken
	}
	nonce, ciphertext := raw[:gcm.NonceSize()], raw[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return inv, ErrInvalidToken
	}
	if err := json.Unmarshal(data, &inv); err != nil {
		return inv, ErrInvalidToken
	}
	return inv, nil
}

// PNG encodes content (usually a join URL carrying the token) as a QR image.
func (c *InviteCodec) PNG(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, c.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

func (c *InviteCodec) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
