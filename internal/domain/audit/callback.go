// Package audit records every payment gateway callback the service receives,
// whatever the verdict, so disputes can be traced back to the raw parameters.
package audit

import (
	"context"
	"time"
)

// Verdict is the outcome recorded for a callback
type Verdict string

const (
	VerdictSettled        Verdict = "settled"
	VerdictAlreadySettled Verdict = "already_settled"
	VerdictIgnored        Verdict = "ignored"
	VerdictRejected       Verdict = "rejected"
	VerdictError          Verdict = "error"
)

// CallbackRecord is one received notification
type CallbackRecord struct {
	OutTradeNo    string            `bson:"out_trade_no" json:"out_trade_no"`
	TradeNo       string            `bson:"trade_no,omitempty" json:"trade_no,omitempty"`
	TradeStatus   string            `bson:"trade_status,omitempty" json:"trade_status,omitempty"`
	Verdict       Verdict           `bson:"verdict" json:"verdict"`
	Reason        string            `bson:"reason,omitempty" json:"reason,omitempty"`
	RemoteIP      string            `bson:"remote_ip,omitempty" json:"remote_ip,omitempty"`
	Params        map[string]string `bson:"params" json:"params"`
	CorrelationID string            `bson:"correlation_id,omitempty" json:"correlation_id,omitempty"`
	ReceivedAt    time.Time         `bson:"received_at" json:"received_at"`
}

// Redacted returns a copy of params without the signature fields
func Redacted(params map[string]string) map[string]string {
	out := make(map[string]string, len(params))
	for k, v := range params {
		if k == "sign" || k == "sign_type" {
			continue
		}
		out[k] = v
	}
	return out
}

// Repository persists callback records
type Repository interface {
	Record(ctx context.Context, record *CallbackRecord) error
}
