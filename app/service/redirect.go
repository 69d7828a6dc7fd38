package service

import (
	"net/url"
	"strings"

	"github.com/vibast-solutions/ms-go-kiosk-payments/app/entity"
)

const swishAppURL = "swish://paymentrequest"

// buildRedirectURL returns the deep link that opens the Swish app. After
// payment the app returns the user to the receipt page for this payment.
func buildRedirectURL(payment *entity.Payment, receiptBaseURL string) string {
	query := url.Values{}
	query.Set("token", payment.Token)
	if receipt := receiptURL(payment.ID, receiptBaseURL); receipt != "" {
		query.Set("callbackurl", receipt)
	}
	return swishAppURL + "?" + query.Encode()
}

func receiptURL(paymentID, receiptBaseURL string) string {
	base := strings.TrimSpace(receiptBaseURL)
	if base == "" {
		return ""
	}
	separator := "?"
	if strings.Contains(base, "?") {
		separator = "&"
	}
	return base + separator + "token=" + url.QueryEscape(paymentID)
}
