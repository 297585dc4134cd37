// Package ingest turns inbound webhook payloads into canonical signals.
// Three wire shapes are supported, selected by content type:
//
//	application/json  {"action":"BUY","symbol":"SOL/USDC","amount":0.5}
//	text/csv          SOL/USDC,5m,tv,breakout,BUY,1719820800,150.25[,amount=0.5]
//	text/plain        action=BUY,symbol=SOL/USDC,amount=0.5
//
// All three produce identical Signal fields for equivalent content.
package ingest

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/skrlabs/skrswap/internal/domain"
)

// Source labels recorded on signals.
const (
	SourceJSON       = "json"
	SourceDelimited  = "tradingview"
	SourceKeyValue   = "keyvalue"
	delimitedMinCols = 7
)

// Normalizer validates payloads against the configured pair set and assigns
// signal ids. Safe for concurrent use.
type Normalizer struct {
	// canonical pair ("SOL/USDC") by every accepted spelling, e.g.
	// "SOL/USDC", "SOL-USDC", "SOLUSDC"
	pairs map[string]string
	now   func() time.Time
	newID func() string
}

// NewNormalizer accepts the canonical "BASE/QUOTE" pairs accounts trade.
func NewNormalizer(pairs []string) *Normalizer {
	n := &Normalizer{
		pairs: make(map[string]string, len(pairs)*3),
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
	for _, p := range pairs {
		canonical := strings.ToUpper(strings.TrimSpace(p))
		n.pairs[canonical] = canonical
		n.pairs[strings.ReplaceAll(canonical, "/", "-")] = canonical
		n.pairs[strings.ReplaceAll(canonical, "/", "")] = canonical
	}
	return n
}

// Normalize parses one payload. Errors are always *domain.ParseError so the
// webhook boundary can map them to 4xx responses.
func (n *Normalizer) Normalize(raw []byte, contentType string) (*domain.Signal, error) {
	body := strings.TrimSpace(string(raw))
	if body == "" {
		return nil, parseErr(domain.ParseMalformed, "empty payload")
	}

	switch mediaType(contentType) {
	case "application/json":
		return n.parseJSON(body)
	case "text/csv":
		return n.parseDelimited(body)
	default:
		// TradingView and curl default to text/plain
		return n.parseKeyValue(body)
	}
}

type jsonShape struct {
	Action string `json:"action"`
	Symbol string `json:"symbol"`
	Amount any    `json:"amount"` // number or numeric string, both seen in the wild
}

func (n *Normalizer) parseJSON(body string) (*domain.Signal, error) {
	var js jsonShape
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&js); err != nil {
		return nil, parseErr(domain.ParseMalformed, "invalid json: "+err.Error())
	}
	if js.Action == "" {
		return nil, parseErr(domain.ParseMalformed, "missing action")
	}
	if js.Symbol == "" {
		return nil, parseErr(domain.ParseMalformed, "missing symbol")
	}

	side, err := n.parseSide(js.Action)
	if err != nil {
		return nil, err
	}
	pair, err := n.resolvePair(js.Symbol)
	if err != nil {
		return nil, err
	}

	var amtStr string
	switch v := js.Amount.(type) {
	case nil:
	case string:
		amtStr = v
	case json.Number:
		amtStr = v.String()
	default:
		return nil, parseErr(domain.ParseMalformed, "bad amount type")
	}
	amount, err := n.parseAmount(amtStr)
	if err != nil {
		return nil, err
	}
	return n.signal(pair, side, amount, SourceJSON, body, n.now()), nil
}

// parseDelimited handles the positional TradingView line:
// pair,interval,source,strategy_tag,ACTION,timestamp,price[,key=value...]
func (n *Normalizer) parseDelimited(body string) (*domain.Signal, error) {
	fields := strings.Split(body, ",")
	if len(fields) < delimitedMinCols {
		return nil, parseErr(domain.ParseMalformed,
			fmt.Sprintf("expected at least %d fields, got %d", delimitedMinCols, len(fields)))
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}

	pair, err := n.resolvePair(fields[0])
	if err != nil {
		return nil, err
	}
	side, err := n.parseSide(fields[4])
	if err != nil {
		return nil, err
	}
	ts, err := parseTimestamp(fields[5])
	if err != nil {
		return nil, parseErr(domain.ParseMalformed, "bad timestamp: "+fields[5])
	}
	if _, err := decimal.NewFromString(fields[6]); err != nil {
		return nil, parseErr(domain.ParseMalformed, "bad price: "+fields[6])
	}

	// optional key=value tail, e.g. amount=0.5,note=breakout
	var amount *decimal.Decimal
	for _, f := range fields[delimitedMinCols:] {
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, parseErr(domain.ParseMalformed, "bad trailing field: "+f)
		}
		if strings.EqualFold(strings.TrimSpace(k), "amount") {
			amount, err = n.parseAmount(strings.TrimSpace(v))
			if err != nil {
				return nil, err
			}
		}
	}
	return n.signal(pair, side, amount, SourceDelimited, body, ts), nil
}

// parseKeyValue handles action=BUY,symbol=SOL/USDC[,amount=0.5].
func (n *Normalizer) parseKeyValue(body string) (*domain.Signal, error) {
	kv := make(map[string]string)
	for _, f := range strings.Split(body, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		k, v, ok := strings.Cut(f, "=")
		if !ok {
			return nil, parseErr(domain.ParseMalformed, "field is not key=value: "+f)
		}
		kv[strings.ToLower(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	action, ok := kv["action"]
	if !ok || action == "" {
		return nil, parseErr(domain.ParseMalformed, "missing action")
	}
	symbol, ok := kv["symbol"]
	if !ok || symbol == "" {
		return nil, parseErr(domain.ParseMalformed, "missing symbol")
	}

	side, err := n.parseSide(action)
	if err != nil {
		return nil, err
	}
	pair, err := n.resolvePair(symbol)
	if err != nil {
		return nil, err
	}
	amount, err := n.parseAmount(kv["amount"])
	if err != nil {
		return nil, err
	}
	return n.signal(pair, side, amount, SourceKeyValue, body, n.now()), nil
}

func (n *Normalizer) signal(pair string, side domain.Side, amount *decimal.Decimal, source, raw string, ts time.Time) *domain.Signal {
	return &domain.Signal{
		ID:         n.newID(),
		Pair:       pair,
		Side:       side,
		Amount:     amount,
		Source:     source,
		Raw:        raw,
		ReceivedAt: ts,
	}
}

func (n *Normalizer) parseSide(action string) (domain.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case "BUY":
		return domain.SideBuy, nil
	case "SELL":
		return domain.SideSell, nil
	default:
		return "", parseErr(domain.ParseUnknownAction, "action "+action)
	}
}

func (n *Normalizer) resolvePair(symbol string) (string, error) {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	if canonical, ok := n.pairs[key]; ok {
		return canonical, nil
	}
	return "", parseErr(domain.ParseUnknownPair, "symbol "+symbol)
}

// parseAmount returns nil for an absent amount so the planner falls back to
// the account default.
func (n *Normalizer) parseAmount(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, parseErr(domain.ParseMalformed, "bad amount: "+s)
	}
	return &d, nil
}

// parseTimestamp accepts unix seconds or RFC3339.
func parseTimestamp(s string) (time.Time, error) {
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(secs, 0).UTC(), nil
	}
	return time.Parse(time.RFC3339, s)
}

func mediaType(contentType string) string {
	mt, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(mt))
}

func parseErr(code domain.ParseCode, detail string) *domain.ParseError {
	return &domain.ParseError{Code: code, Detail: detail}
}
