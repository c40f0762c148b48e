package epay

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrMissingField is returned when a required request field is empty
var ErrMissingField = errors.New("missing required field")

// GatewayConfig holds merchant settings for the aggregator
type GatewayConfig struct {
	MerchantID  string
	MerchantKey string
	SubmitURL   string
	NotifyURL   string
	ReturnURL   string
	ProductName string
}

// Gateway builds signed requests toward the aggregator and verifies what it
// sends back
type Gateway struct {
	cfg    GatewayConfig
	signer *Signer
}

// NewGateway creates a Gateway. A nil signer uses DefaultSigner.
func NewGateway(cfg GatewayConfig, signer *Signer) *Gateway {
	if signer == nil {
		signer = DefaultSigner()
	}
	return &Gateway{cfg: cfg, signer: signer}
}

// MerchantID returns the configured pid
func (g *Gateway) MerchantID() string {
	return g.cfg.MerchantID
}

// PayRequest describes one redirect to the gateway's cashier page
type PayRequest struct {
	OutTradeNo string
	PayType    string
	Amount     decimal.Decimal
	Coins      int64
}

// BuildPayURL returns the cashier URL and the signed parameters it carries
func (g *Gateway) BuildPayURL(req PayRequest) (string, map[string]string, error) {
	if req.OutTradeNo == "" {
		return "", nil, fmt.Errorf("%w: out_trade_no", ErrMissingField)
	}
	if req.PayType == "" {
		return "", nil, fmt.Errorf("%w: type", ErrMissingField)
	}
	if !req.Amount.IsPositive() {
		return "", nil, fmt.Errorf("%w: money", ErrMissingField)
	}
	if g.cfg.SubmitURL == "" || g.cfg.MerchantID == "" || g.cfg.MerchantKey == "" {
		return "", nil, errors.New("gateway merchant settings are incomplete")
	}

	params := map[string]string{
		"pid":          g.cfg.MerchantID,
		"type":         req.PayType,
		"out_trade_no": req.OutTradeNo,
		"notify_url":   g.cfg.NotifyURL,
		"return_url":   g.cfg.ReturnURL,
		"name":         g.productName(req.Coins),
		"money":        req.Amount.StringFixed(2),
	}
	params[fieldSign] = g.signer.Sign(params, g.cfg.MerchantKey)
	params[fieldSignType] = SignTypeMD5

	sep := "?"
	if strings.Contains(g.cfg.SubmitURL, "?") {
		sep = "&"
	}
	return g.cfg.SubmitURL + sep + encodeSorted(params), params, nil
}

// VerifyParams checks a parameter set signed with the merchant key
func (g *Gateway) VerifyParams(params map[string]string) bool {
	return g.signer.Verify(params, g.cfg.MerchantKey)
}

func (g *Gateway) productName(coins int64) string {
	name := g.cfg.ProductName
	if name == "" {
		name = "Coins"
	}
	return fmt.Sprintf("%s %d", name, coins)
}

// encodeSorted is url.Values.Encode for a flat map; Encode orders by key
func encodeSorted(params map[string]string) string {
	values := make(url.Values, len(params))
	for k, v := range params {
		values.Set(k, v)
	}
	return values.Encode()
}
