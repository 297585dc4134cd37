package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	pkgerrors "github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/config"
)

const defaultJupiterTimeout = 10 * time.Second

// Quote is one priced route from the aggregator. Raw keeps the untouched
// response body because the swap endpoint wants the full quote echoed back,
// unknown fields included.
type Quote struct {
	InputMint      string          `json:"inputMint"`
	InAmount       string          `json:"inAmount"`
	OutputMint     string          `json:"outputMint"`
	OutAmount      string          `json:"outAmount"`
	SwapMode       string          `json:"swapMode"`
	SlippageBps    int             `json:"slippageBps"`
	PriceImpactPct decimal.Decimal `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// PriceImpactBps converts the quoted impact fraction to basis points
// (0.015 -> 150) for comparison against the per-account limit.
func (q *Quote) PriceImpactBps() decimal.Decimal {
	return q.PriceImpactPct.Shift(4)
}

// OutAmountDecimal converts the atomic output amount using the output
// token's decimals.
func (q *Quote) OutAmountDecimal(decimals int) (decimal.Decimal, error) {
	return FromAtomic(q.OutAmount, decimals)
}

type swapBuildRequest struct {
	QuoteResponse           json.RawMessage `json:"quoteResponse"`
	UserPublicKey           string          `json:"userPublicKey"`
	WrapAndUnwrapSol        bool            `json:"wrapAndUnwrapSol"`
	DynamicComputeUnitLimit bool            `json:"dynamicComputeUnitLimit"`
	ComputeUnitPrice        uint64          `json:"computeUnitPriceMicroLamports,omitempty"`
}

type swapBuildResponse struct {
	SwapTransaction      string `json:"swapTransaction"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

type priceResponse struct {
	Data map[string]struct {
		ID    string          `json:"id"`
		Price decimal.Decimal `json:"price"`
	} `json:"data"`
}

// Jupiter talks to the aggregator's quote, swap and price endpoints.
type Jupiter struct {
	http     *resty.Client
	priceURL string
}

func NewJupiter(cfg config.JupiterConfig) *Jupiter {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultJupiterTimeout
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "skrswap/1.0")
	if cfg.APIKey != "" {
		client.SetHeader("x-api-key", cfg.APIKey)
	}
	return &Jupiter{http: client, priceURL: cfg.PriceURL}
}

// GetQuote prices an exact-in swap of amount atomic units of inputMint.
func (j *Jupiter) GetQuote(ctx context.Context, inputMint, outputMint string, amount uint64, slippageBps int) (*Quote, error) {
	resp, err := j.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"inputMint":   inputMint,
			"outputMint":  outputMint,
			"amount":      fmt.Sprintf("%d", amount),
			"slippageBps": fmt.Sprintf("%d", slippageBps),
			"swapMode":    "ExactIn",
		}).
		Get("/quote")
	if err != nil {
		return nil, pkgerrors.Wrapf(ErrTransport, "quote %s->%s: %v", inputMint, outputMint, err)
	}
	if resp.StatusCode() != 200 {
		return nil, classifyHTTP("quote", resp.StatusCode(), string(resp.Body()))
	}
	var q Quote
	if err := json.Unmarshal(resp.Body(), &q); err != nil {
		return nil, pkgerrors.Wrap(err, "decode quote")
	}
	if q.OutAmount == "" {
		return nil, pkgerrors.Wrap(ErrInvalidRoute, "quote: empty out amount")
	}
	q.Raw = json.RawMessage(resp.Body())
	return &q, nil
}

// BuildSwapTransaction exchanges a quote for an unsigned, base64-encoded
// transaction ready to sign with the account's wallet.
func (j *Jupiter) BuildSwapTransaction(ctx context.Context, quote *Quote, userPublicKey string, computeUnitPrice uint64) (string, error) {
	body := swapBuildRequest{
		QuoteResponse:           quote.Raw,
		UserPublicKey:           userPublicKey,
		WrapAndUnwrapSol:        true,
		DynamicComputeUnitLimit: true,
		ComputeUnitPrice:        computeUnitPrice,
	}
	resp, err := j.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post("/swap")
	if err != nil {
		return "", pkgerrors.Wrapf(ErrTransport, "build swap: %v", err)
	}
	if resp.StatusCode() != 200 {
		return "", classifyHTTP("build swap", resp.StatusCode(), string(resp.Body()))
	}
	var out swapBuildResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return "", pkgerrors.Wrap(err, "decode swap response")
	}
	if out.SwapTransaction == "" {
		return "", &APIError{Op: "build swap", Status: resp.StatusCode(), Body: "empty transaction"}
	}
	return out.SwapTransaction, nil
}

// GetPrice fetches the current price of mint denominated in vsMint from the
// price endpoint. Used by the background ticker, not the swap path.
func (j *Jupiter) GetPrice(ctx context.Context, mint, vsMint string) (decimal.Decimal, error) {
	resp, err := j.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"ids":     mint,
			"vsToken": vsMint,
		}).
		Get(j.priceURL)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrapf(ErrTransport, "price %s: %v", mint, err)
	}
	if resp.StatusCode() != 200 {
		return decimal.Zero, classifyHTTP("price", resp.StatusCode(), string(resp.Body()))
	}
	var out priceResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return decimal.Zero, pkgerrors.Wrap(err, "decode price response")
	}
	entry, ok := out.Data[mint]
	if !ok {
		return decimal.Zero, &APIError{Op: "price", Status: resp.StatusCode(), Body: "mint missing from response"}
	}
	return entry.Price, nil
}
