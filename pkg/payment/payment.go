// Package payment is the boundary to the online payment gateway: intent
// creation and verification of the gateway's signed callbacks.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/shopspring/decimal"
)

var ErrUnknownProvider = errors.New("unknown payment provider")

type IntentRequest struct {
	Amount   int64 // minor units
	Currency string
	Receipt  string
}

// Intent is a gateway-side record of an expected payment. Payload holds the
// gateway response as received; the client needs it to drive checkout.
type Intent struct {
	ID       string                 `json:"id"`
	Amount   int64                  `json:"amount"`
	Currency string                 `json:"currency"`
	Receipt  string                 `json:"receipt"`
	Payload  map[string]interface{} `json:"-"`
}

type Gateway interface {
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
}

// NewGateway returns the gateway selected by cfg, or nil when online payment
// is not configured.
func NewGateway(cfg *config.PaymentConfig) (Gateway, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	switch cfg.Provider {
	case "", "razorpay":
		return NewRazorpay(cfg), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
}

// ToMinorUnits converts an amount in major units (rupees) to the integer
// minor units (paise) the gateway expects, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

func Receipt(now time.Time) string {
	return fmt.Sprintf("order_%d", now.UnixMilli())
}

// Signer computes and checks callback signatures:
// hex(HMAC-SHA256(secret, intentID + "|" + paymentID)).
type Signer struct {
	secret []byte
}

func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

func (s *Signer) Sign(intentID, paymentID string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(intentID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares signature against the expected value in constant time.
func (s *Signer) Verify(intentID, paymentID, signature string) bool {
	expected := s.Sign(intentID, paymentID)
	return hmac.Equal([]byte(expected), []byte(signature))
}
