// Package gateway implements the payment provider adapter: a hosted
// approval flow where the merchant confirms the charge on the
// gateway's page and the gateway calls back with the outcome.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	billingdomain "github.com/1212falcon1212/shopfiy-saas-sub001/internal/billing/domain"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/config"
	"github.com/1212falcon1212/shopfiy-saas-sub001/internal/webhook/signature"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type HTTPGateway struct {
	log     *zap.Logger
	client  *http.Client
	baseURL string
	signer  *signature.Verifier
}

type Param struct {
	fx.In

	Log    *zap.Logger
	Config config.Config
}

func New(p Param) billingdomain.Gateway {
	return &HTTPGateway{
		log:     p.Log.Named("billing.gateway"),
		client:  &http.Client{Timeout: p.Config.GatewayTimeout},
		baseURL: p.Config.GatewayBaseURL,
		signer:  signature.NewVerifier(p.Config.GatewaySecret),
	}
}

// CreateCharge builds the hosted confirmation URL. The gateway page
// collects approval and redirects back with the reference; no network
// round-trip is needed to open the flow.
func (g *HTTPGateway) CreateCharge(ctx context.Context, req billingdomain.CreateChargeRequest) (*billingdomain.CreateChargeResult, error) {
	q := url.Values{}
	q.Set("reference", req.Reference)
	q.Set("shop", req.ShopDomain)
	q.Set("name", req.PlanName)
	q.Set("amount", req.Amount)
	q.Set("currency", req.Currency)
	q.Set("return_url", req.ReturnURL)
	if req.Trial {
		q.Set("trial", "1")
	}
	if req.Test {
		q.Set("test", "1")
	}
	q.Set("signature", g.signer.Sign([]byte(q.Encode())))

	return &billingdomain.CreateChargeResult{
		ConfirmationURL: fmt.Sprintf("%s/charges/confirm?%s", g.baseURL, q.Encode()),
	}, nil
}

// ChargeRecurring posts a renewal charge. Anything but a 2xx with
// status "succeeded" is a declined charge; transport errors bubble up
// for the caller's retry policy.
func (g *HTTPGateway) ChargeRecurring(ctx context.Context, req billingdomain.RecurringChargeRequest) error {
	body, err := json.Marshal(map[string]any{
		"reference": req.Reference,
		"amount":    req.Amount,
		"currency":  req.Currency,
		"test":      req.Test,
	})
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges/recurring", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Gateway-Signature", g.signer.Sign(body))

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Warn("recurring charge rejected",
			zap.String("reference", req.Reference),
			zap.Int("status", resp.StatusCode),
		)
		return billingdomain.ErrChargeDeclined
	}

	var out struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode charge response: %w", err)
	}
	if out.Status != "succeeded" {
		return billingdomain.ErrChargeDeclined
	}
	return nil
}
