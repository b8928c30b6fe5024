package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/foodorder/pkg/config"
	razorpay "github.com/razorpay/razorpay-go"
)

type Razorpay struct {
	client *razorpay.Client
}

func NewRazorpay(cfg *config.PaymentConfig) *Razorpay {
	return &Razorpay{client: razorpay.NewClient(cfg.KeyID, cfg.KeySecret)}
}

// CreateIntent creates a Razorpay order. The SDK has no context support, so
// ctx is only checked before the call is made.
func (r *Razorpay) CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
	}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create razorpay order: %w", err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, errors.New("razorpay order response has no id")
	}

	return &Intent{
		ID:       id,
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Payload:  body,
	}, nil
}
