package email

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const receiptEmailTimeout = 5 * time.Second

type Message struct {
	Subject string
	Body    string
}

// ReceiptDetails is what a payer sees on a receipt.
type ReceiptDetails struct {
	LeagueName  string
	PaymentID   string
	AmountCents int64
	Currency    string
	Description string
	CardBrand   string
	CardLast4   string
	ReceiptURL  string
	PaidAt      time.Time
}

func BuildReceiptEmail(details ReceiptDetails) Message {
	league := strings.TrimSpace(details.LeagueName)
	if league == "" {
		league = "League Office"
	}
	amount := decimal.New(details.AmountCents, -2).StringFixed(2)

	var body strings.Builder
	fmt.Fprintf(&body, "Thanks for your payment to %s.\n\n", league)
	fmt.Fprintf(&body, "Amount: %s %s\n", amount, strings.ToUpper(details.Currency))
	if details.Description != "" {
		fmt.Fprintf(&body, "For: %s\n", details.Description)
	}
	if details.CardLast4 != "" {
		brand := details.CardBrand
		if brand == "" {
			brand = "card"
		}
		fmt.Fprintf(&body, "Paid with: %s ending in %s\n", brand, details.CardLast4)
	}
	if !details.PaidAt.IsZero() {
		fmt.Fprintf(&body, "Date: %s\n", details.PaidAt.UTC().Format("Jan 2, 2006 15:04 MST"))
	}
	fmt.Fprintf(&body, "Reference: %s\n", details.PaymentID)
	if details.ReceiptURL != "" {
		fmt.Fprintf(&body, "\nView your receipt: %s\n", details.ReceiptURL)
	}

	return Message{
		Subject: fmt.Sprintf("%s payment receipt", league),
		Body:    body.String(),
	}
}

// SendReceiptEmail sends a receipt asynchronously. It is a no-op when sender
// is nil or there is no recipient.
func SendReceiptEmail(ctx context.Context, sender EmailSender, recipient string, details ReceiptDetails) {
	recipient = strings.TrimSpace(recipient)
	if sender == nil || recipient == "" {
		return
	}
	message := BuildReceiptEmail(details)

	go func() {
		sendCtx, cancel := newEmailContext(ctx, receiptEmailTimeout)
		defer cancel()
		logger := log.Ctx(sendCtx)
		if err := sender.Send(sendCtx, recipient, message.Subject, message.Body); err != nil {
			logger.Error().Err(err).Str("payment_id", details.PaymentID).Msg("Failed to send receipt email")
			return
		}
		logger.Info().Str("payment_id", details.PaymentID).Msg("Receipt email sent")
	}()
}
