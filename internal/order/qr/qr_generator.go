package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"

	"ms-events/internal/models"

	"github.com/skip2/go-qrcode"
)

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// TicketPayload is what ends up inside the QR code: enough to check an
// attendee in at the door without a database round trip.
type TicketPayload struct {
	OrderID     string `json:"orderId"`
	EventID     string `json:"eventId"`
	BuyerID     string `json:"buyerId"`
	TotalAmount string `json:"totalAmount"`
}

// EncryptPayload serializes and encrypts the ticket payload for an order.
// The result is what ends up encoded in the QR image.
func (q *QRGenerator) EncryptPayload(order models.Order) (string, error) {
	payload := TicketPayload{
		OrderID:     order.ID,
		EventID:     order.EventID,
		BuyerID:     order.BuyerID,
		TotalAmount: order.TotalAmount,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders an order as a PNG QR code whose content is
// an AES-encrypted ticket payload.
func (q *QRGenerator) GenerateEncryptedQR(order models.Order) ([]byte, error) {
	encrypted, err := q.EncryptPayload(order)
	if err != nil {
		return nil, err
	}

	return qrcode.Encode(encrypted, qrcode.Medium, 256)
}

// DecryptPayload reverses the encryption used inside the QR code. The
// check-in endpoint uses this to recover the ticket payload from a scan.
func (q *QRGenerator) DecryptPayload(encoded string) (*TicketPayload, error) {
	data, err := decryptAES(encoded, q.secret)
	if err != nil {
		return nil, err
	}

	var payload TicketPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aes.BlockSize {
		return nil, errors.New("ciphertext too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	iv := ciphertext[:aes.BlockSize]
	data := make([]byte, len(ciphertext)-aes.BlockSize)
	stream := cipher.NewCFBDecrypter(block, iv)
	stream.XORKeyStream(data, ciphertext[aes.BlockSize:])

	return data, nil
}
