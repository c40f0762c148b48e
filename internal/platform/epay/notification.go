package epay

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// TradeStatusSuccess is the only status the gateway reports for a completed payment
const TradeStatusSuccess = "TRADE_SUCCESS"

// ErrMalformedNotification wraps every schema failure of a callback
var ErrMalformedNotification = errors.New("malformed notification")

// Notification is a verified callback in typed form. Raw keeps every
// received field for auditing.
type Notification struct {
	MerchantID  string
	OutTradeNo  string
	TradeNo     string
	TradeStatus string
	PayType     string
	Name        string
	Money       *decimal.Decimal
	Raw         map[string]string
}

// Success reports whether the callback announces a completed payment
func (n *Notification) Success() bool {
	return n.TradeStatus == TradeStatusSuccess
}

// ParseNotification validates the callback schema. It does not check the
// signature; call Verify first.
func ParseNotification(params map[string]string) (*Notification, error) {
	n := &Notification{
		MerchantID:  params["pid"],
		OutTradeNo:  params["out_trade_no"],
		TradeNo:     params["trade_no"],
		TradeStatus: params["trade_status"],
		PayType:     params["type"],
		Name:        params["name"],
		Raw:         make(map[string]string, len(params)),
	}
	for k, v := range params {
		n.Raw[k] = v
	}

	if n.OutTradeNo == "" {
		return nil, fmt.Errorf("%w: out_trade_no is required", ErrMalformedNotification)
	}
	if n.TradeStatus == "" {
		return nil, fmt.Errorf("%w: trade_status is required", ErrMalformedNotification)
	}
	if n.Success() && n.TradeNo == "" {
		return nil, fmt.Errorf("%w: trade_no is required for a successful trade", ErrMalformedNotification)
	}

	if raw := params["money"]; raw != "" {
		money, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: money %q: %v", ErrMalformedNotification, raw, err)
		}
		if !money.IsPositive() {
			return nil, fmt.Errorf("%w: money must be positive", ErrMalformedNotification)
		}
		n.Money = &money
	}

	return n, nil
}
