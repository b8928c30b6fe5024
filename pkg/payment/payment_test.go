package payment

import (
	"testing"
	"time"

	"github.com/example/foodorder/pkg/config"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSigner_KnownVector(t *testing.T) {
	// echo -n "order_ABC|pay_XYZ" | openssl dgst -sha256 -hmac secret
	s := NewSigner("secret")
	sig := s.Sign("order_ABC", "pay_XYZ")

	assert.Equal(t, "20bd28355ee11cceb7a0519b2f3084174407d797a53be5df3f162bfce39b8ebc", sig)
	assert.True(t, s.Verify("order_ABC", "pay_XYZ", sig))
	assert.Equal(t, sig, NewSigner("secret").Sign("order_ABC", "pay_XYZ"))
	assert.NotEqual(t, sig, NewSigner("other").Sign("order_ABC", "pay_XYZ"))
}

func TestSigner_RejectsAnyBitFlip(t *testing.T) {
	s := NewSigner("rzp_secret")
	intentID, paymentID := "order_N5h2", "pay_91Kd"
	sig := s.Sign(intentID, paymentID)

	for i := 0; i < len(sig); i++ {
		for bit := 0; bit < 8; bit++ {
			b := []byte(sig)
			b[i] ^= 1 << bit
			assert.False(t, s.Verify(intentID, paymentID, string(b)), "byte %d bit %d", i, bit)
		}
	}

	flip := func(v string) string {
		b := []byte(v)
		b[len(b)-1] ^= 1
		return string(b)
	}
	assert.False(t, s.Verify(flip(intentID), paymentID, sig))
	assert.False(t, s.Verify(intentID, flip(paymentID), sig))
	assert.False(t, s.Verify(intentID, paymentID, ""))
	assert.False(t, s.Verify(intentID, paymentID, sig[:63]))
}

func TestSigner_PipeIsPartOfMessage(t *testing.T) {
	s := NewSigner("k")
	// plain concatenation with a single separator
	assert.Equal(t, s.Sign("a|b", "c"), s.Sign("a", "b|c"))
	assert.NotEqual(t, s.Sign("ab", "c"), s.Sign("a", "bc"))
}

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"20", 2000},
		{"20.00", 2000},
		{"0.1", 10},
		{"19.999", 2000},
		{"10.005", 1001},
		{"0", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ToMinorUnits(decimal.RequireFromString(tt.amount)), tt.amount)
	}

	// 0.1 + 0.2 in floats is 0.30000000000000004
	sum := decimal.NewFromFloat(0.1).Add(decimal.NewFromFloat(0.2))
	assert.Equal(t, int64(30), ToMinorUnits(sum))
}

func TestReceipt(t *testing.T) {
	ts := time.UnixMilli(1700000000123)
	assert.Equal(t, "order_1700000000123", Receipt(ts))
}

func TestNewGateway(t *testing.T) {
	gw, err := NewGateway(&config.PaymentConfig{Provider: "razorpay"})
	require.NoError(t, err)
	assert.Nil(t, gw)

	gw, err = NewGateway(&config.PaymentConfig{Provider: "razorpay", KeyID: "rzp_test", KeySecret: "s"})
	require.NoError(t, err)
	assert.IsType(t, &Razorpay{}, gw)

	_, err = NewGateway(&config.PaymentConfig{Provider: "paypal", KeyID: "id", KeySecret: "s"})
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
