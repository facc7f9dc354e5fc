package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/paymentintent"
)

// intentAPI is the subset of paymentintent.Client used here.
type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// StripeGateway charges cards through Stripe PaymentIntents. The sourceId
// produced by client-side tokenization is used as the payment method.
type StripeGateway struct {
	intents             intentAPI
	statementDescriptor string
}

// NewStripeGateway builds a gateway bound to secretKey. environment must be
// "sandbox" or "production" and has to agree with the key's mode.
func NewStripeGateway(secretKey, environment, statementDescriptor string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}
	live := strings.HasPrefix(secretKey, "sk_live_") || strings.HasPrefix(secretKey, "rk_live_")
	switch environment {
	case "production":
		if !live {
			return nil, fmt.Errorf("production payments require a live stripe key")
		}
	case "sandbox":
		if live {
			return nil, fmt.Errorf("sandbox payments must not use a live stripe key")
		}
	default:
		return nil, fmt.Errorf("unsupported payments environment: %s", environment)
	}

	return &StripeGateway{
		intents: paymentintent.Client{
			B:   stripe.GetBackend(stripe.APIBackend),
			Key: secretKey,
		},
		statementDescriptor: statementDescriptor,
	}, nil
}

func (g *StripeGateway) CreatePayment(ctx context.Context, req ChargeRequest) (*Charge, error) {
	if req.SourceID == "" {
		return nil, fmt.Errorf("source id is required")
	}
	if req.AmountCents <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(req.AmountCents),
		Currency:           stripe.String(strings.ToLower(req.Currency)),
		PaymentMethod:      stripe.String(req.SourceID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(true),
	}
	params.Context = ctx
	if req.Note != "" {
		params.Description = stripe.String(req.Note)
	}
	if g.statementDescriptor != "" {
		params.StatementDescriptorSuffix = stripe.String(g.statementDescriptor)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	if req.ReferenceID != "" {
		params.AddMetadata(ReferenceMetadataKey, req.ReferenceID)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	params.AddExpand("latest_charge")

	intent, err := g.intents.New(params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return ChargeFromIntent(intent), nil
}

func (g *StripeGateway) GetPayment(ctx context.Context, externalID string) (*Charge, error) {
	if externalID == "" {
		return nil, fmt.Errorf("external payment id is required")
	}
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")

	intent, err := g.intents.Get(externalID, params)
	if err != nil {
		return nil, classifyStripeError(ctx, err)
	}
	return ChargeFromIntent(intent), nil
}

// classifyStripeError turns card errors into DeclineError and hides every
// other processor failure behind ErrGatewayUnavailable.
func classifyStripeError(ctx context.Context, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		decline := &DeclineError{
			Code:    string(stripeErr.Code),
			Message: stripeErr.Msg,
		}
		if stripeErr.PaymentIntent != nil {
			decline.Charge = ChargeFromIntent(stripeErr.PaymentIntent)
		}
		return decline
	}

	log.Ctx(ctx).Error().Err(err).Msg("Stripe request failed")
	return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
}

// ChargeFromIntent maps a PaymentIntent, from an API response or a webhook
// event, onto a Charge.
func ChargeFromIntent(intent *stripe.PaymentIntent) *Charge {
	if intent == nil {
		return nil
	}
	charge := &Charge{
		ID:          intent.ID,
		Status:      mapIntentStatus(intent.Status),
		RawStatus:   string(intent.Status),
		AmountCents: intent.Amount,
		Currency:    strings.ToUpper(string(intent.Currency)),
	}
	if intent.LastPaymentError != nil {
		charge.FailureMessage = intent.LastPaymentError.Msg
	}
	if latest := intent.LatestCharge; latest != nil {
		charge.ReceiptURL = latest.ReceiptURL
		if latest.PaymentMethodDetails != nil && latest.PaymentMethodDetails.Card != nil {
			charge.CardBrand = string(latest.PaymentMethodDetails.Card.Brand)
			charge.CardLast4 = latest.PaymentMethodDetails.Card.Last4
		}
		if charge.FailureMessage == "" && latest.FailureMessage != "" {
			charge.FailureMessage = latest.FailureMessage
		}
	}
	return charge
}

func mapIntentStatus(status stripe.PaymentIntentStatus) Status {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return StatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return StatusCanceled
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		return StatusFailed
	default:
		// processing, requires_action, requires_confirmation, requires_capture
		return StatusPending
	}
}
