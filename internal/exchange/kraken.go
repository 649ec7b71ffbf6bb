package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"octoadvisor/internal/model"
)

const tickerBatchSize = 10 // Kraken rejects Ticker queries above ~10 pairs

// Kraken talks to the Kraken REST API (public market data and private,
// signed account endpoints).
type Kraken struct {
	BaseURL   string
	Quote     string          // quote currency appended to assets, e.g. ZEUR
	MinAmount decimal.Decimal // dust threshold for ticker lookups, default 0.0001

	key     string
	secret  []byte
	client  *http.Client
	limiter *rate.Limiter
}

// NewKraken creates a client. The secret is the base64-encoded private key
// from the Kraken dashboard. rateDelay is the minimum spacing between any two
// remote calls.
func NewKraken(baseURL, key, secret, quote string, rateDelay time.Duration) (*Kraken, error) {
	decoded, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return nil, fmt.Errorf("decode kraken secret: %w", err)
	}
	if rateDelay <= 0 {
		rateDelay = time.Second
	}
	return &Kraken{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Quote:   quote,
		key:     key,
		secret:  decoded,
		client:  &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Every(rateDelay), 1),
	}, nil
}

func (k *Kraken) Name() string { return "kraken" }

// PairFor maps a held asset to its quote-currency candle pair (XXBT -> XXBTZEUR).
func (k *Kraken) PairFor(asset string) string { return asset + k.Quote }

type krakenEnvelope struct {
	Error  []string        `json:"error"`
	Result json.RawMessage `json:"result"`
}

func (k *Kraken) public(ctx context.Context, endpoint string, query url.Values, result interface{}) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}
	u := fmt.Sprintf("%s/0/public/%s", k.BaseURL, endpoint)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return k.do(req, endpoint, result)
}

func (k *Kraken) private(ctx context.Context, endpoint string, values url.Values, result interface{}) error {
	if err := k.limiter.Wait(ctx); err != nil {
		return err
	}
	if values == nil {
		values = url.Values{}
	}
	values.Set("nonce", strconv.FormatInt(time.Now().UnixNano(), 10))

	path := "/0/private/" + endpoint
	body := values.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, k.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("API-Key", k.key)
	req.Header.Set("API-Sign", k.sign(path, values.Get("nonce"), body))
	return k.do(req, endpoint, result)
}

// sign computes HMAC-SHA512(path + SHA256(nonce + postdata)) with the decoded
// secret, base64-encoded, per the Kraken authentication scheme.
func (k *Kraken) sign(path, nonce, postdata string) string {
	inner := sha256.Sum256([]byte(nonce + postdata))
	mac := hmac.New(sha512.New, k.secret)
	mac.Write([]byte(path))
	mac.Write(inner[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (k *Kraken) do(req *http.Request, endpoint string, result interface{}) error {
	resp, err := k.client.Do(req)
	if err != nil {
		return fmt.Errorf("kraken %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("kraken %s: read body: %w", endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("kraken %s: status %d: %s", endpoint, resp.StatusCode, string(data))
	}

	var env krakenEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("kraken %s: decode: %w", endpoint, err)
	}
	if len(env.Error) > 0 {
		return fmt.Errorf("kraken %s: api error: %s", endpoint, strings.Join(env.Error, ", "))
	}
	if result != nil {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return fmt.Errorf("kraken %s: decode result: %w", endpoint, err)
		}
	}
	return nil
}

// Candles implements CandleSource against the public OHLC endpoint. The
// millisecond cursor is converted to Kraken's second-based "since" parameter.
func (k *Kraken) Candles(ctx context.Context, pair string, tf model.Timeframe, sinceMS int64, limit int) ([]model.Candle, error) {
	query := url.Values{}
	query.Set("pair", pair)
	query.Set("interval", strconv.Itoa(tf.Minutes()))
	if sinceMS > 0 {
		// since is exclusive of the bar that opened exactly at the cursor,
		// so step one second back and filter on our side
		query.Set("since", strconv.FormatInt(sinceMS/1000-1, 10))
	}

	var raw map[string]json.RawMessage
	if err := k.public(ctx, "OHLC", query, &raw); err != nil {
		return nil, err
	}

	var rows [][]json.RawMessage
	for key, msg := range raw {
		if key == "last" {
			continue
		}
		if err := json.Unmarshal(msg, &rows); err != nil {
			return nil, fmt.Errorf("kraken OHLC: decode rows for %s: %w", key, err)
		}
		break
	}

	candles := make([]model.Candle, 0, len(rows))
	for _, row := range rows {
		c, err := parseOHLCRow(row)
		if err != nil {
			return nil, fmt.Errorf("kraken OHLC %s: %w", pair, err)
		}
		if c.Timestamp < sinceMS {
			continue
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].Timestamp < candles[j].Timestamp })
	if limit > 0 && len(candles) > limit {
		candles = candles[:limit]
	}
	return candles, nil
}

// parseOHLCRow decodes one [time, open, high, low, close, vwap, volume, count] row.
func parseOHLCRow(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 7 {
		return model.Candle{}, fmt.Errorf("short row: %d fields", len(row))
	}
	var ts int64
	if err := json.Unmarshal(row[0], &ts); err != nil {
		return model.Candle{}, fmt.Errorf("parse time: %w", err)
	}
	fields := make([]float64, 0, 5)
	for _, idx := range []int{1, 2, 3, 4, 6} { // open, high, low, close, volume
		var s string
		if err := json.Unmarshal(row[idx], &s); err != nil {
			return model.Candle{}, fmt.Errorf("parse field %d: %w", idx, err)
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return model.Candle{}, fmt.Errorf("parse field %d: %w", idx, err)
		}
		fields = append(fields, f)
	}
	return model.Candle{
		Timestamp: ts * 1000,
		Open:      fields[0],
		High:      fields[1],
		Low:       fields[2],
		Close:     fields[3],
		Volume:    fields[4],
	}, nil
}

// Balance returns all asset balances.
func (k *Kraken) Balance(ctx context.Context) (map[string]decimal.Decimal, error) {
	var raw map[string]string
	if err := k.private(ctx, "Balance", nil, &raw); err != nil {
		return nil, err
	}
	balances := make(map[string]decimal.Decimal, len(raw))
	for asset, amount := range raw {
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("kraken Balance: parse %s amount %q: %w", asset, amount, err)
		}
		balances[asset] = d
	}
	return balances, nil
}

type tradeBalanceResponse struct {
	Equity     string `json:"eb"`
	TradeValue string `json:"tb"`
	FreeMargin string `json:"mf"`
}

// TradeBalance returns the account summary denominated in the given asset.
func (k *Kraken) TradeBalance(ctx context.Context, asset string) (model.TradeBalance, error) {
	values := url.Values{}
	values.Set("asset", asset)
	var raw tradeBalanceResponse
	if err := k.private(ctx, "TradeBalance", values, &raw); err != nil {
		return model.TradeBalance{}, err
	}
	var tb model.TradeBalance
	var err error
	if tb.Equity, err = decimalOrZero(raw.Equity); err != nil {
		return model.TradeBalance{}, fmt.Errorf("kraken TradeBalance: eb: %w", err)
	}
	if tb.TradeValue, err = decimalOrZero(raw.TradeValue); err != nil {
		return model.TradeBalance{}, fmt.Errorf("kraken TradeBalance: tb: %w", err)
	}
	if tb.FreeMargin, err = decimalOrZero(raw.FreeMargin); err != nil {
		return model.TradeBalance{}, fmt.Errorf("kraken TradeBalance: mf: %w", err)
	}
	return tb, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

type openOrderResponse struct {
	Descr struct {
		Pair      string `json:"pair"`
		Type      string `json:"type"`
		OrderType string `json:"ordertype"`
		Price     string `json:"price"`
	} `json:"descr"`
	Volume string  `json:"vol"`
	OpenTM float64 `json:"opentm"`
}

// OpenOrders returns currently open orders keyed by transaction id.
func (k *Kraken) OpenOrders(ctx context.Context) (map[string]model.OpenOrder, error) {
	var raw struct {
		Open map[string]openOrderResponse `json:"open"`
	}
	if err := k.private(ctx, "OpenOrders", nil, &raw); err != nil {
		return nil, err
	}
	orders := make(map[string]model.OpenOrder, len(raw.Open))
	for txid, o := range raw.Open {
		price, err := decimalOrZero(o.Descr.Price)
		if err != nil {
			return nil, fmt.Errorf("kraken OpenOrders: price of %s: %w", txid, err)
		}
		vol, err := decimalOrZero(o.Volume)
		if err != nil {
			return nil, fmt.Errorf("kraken OpenOrders: volume of %s: %w", txid, err)
		}
		orders[txid] = model.OpenOrder{
			Pair:      o.Descr.Pair,
			Type:      o.Descr.Type,
			OrderType: o.Descr.OrderType,
			Price:     price,
			Volume:    vol,
			OpenedAt:  unixFloat(o.OpenTM),
		}
	}
	return orders, nil
}

type tradeResponse struct {
	Pair   string  `json:"pair"`
	Type   string  `json:"type"`
	Price  string  `json:"price"`
	Volume string  `json:"vol"`
	Cost   string  `json:"cost"`
	Fee    string  `json:"fee"`
	Time   float64 `json:"time"`
}

// TradesHistory returns the most recent closed trades keyed by transaction id.
func (k *Kraken) TradesHistory(ctx context.Context) (map[string]model.Trade, error) {
	var raw struct {
		Trades map[string]tradeResponse `json:"trades"`
	}
	if err := k.private(ctx, "TradesHistory", nil, &raw); err != nil {
		return nil, err
	}
	trades := make(map[string]model.Trade, len(raw.Trades))
	for txid, t := range raw.Trades {
		trade := model.Trade{Pair: t.Pair, Type: t.Type, Time: unixFloat(t.Time)}
		var err error
		if trade.Price, err = decimalOrZero(t.Price); err != nil {
			return nil, fmt.Errorf("kraken TradesHistory: price of %s: %w", txid, err)
		}
		if trade.Volume, err = decimalOrZero(t.Volume); err != nil {
			return nil, fmt.Errorf("kraken TradesHistory: volume of %s: %w", txid, err)
		}
		if trade.Cost, err = decimalOrZero(t.Cost); err != nil {
			return nil, fmt.Errorf("kraken TradesHistory: cost of %s: %w", txid, err)
		}
		if trade.Fee, err = decimalOrZero(t.Fee); err != nil {
			return nil, fmt.Errorf("kraken TradesHistory: fee of %s: %w", txid, err)
		}
		trades[txid] = trade
	}
	return trades, nil
}

func unixFloat(sec float64) time.Time {
	return time.Unix(int64(sec), int64((sec-float64(int64(sec)))*1e9)).UTC()
}

type tickerResponse struct {
	Last   []string `json:"c"` // [price, lot volume]
	Open   string   `json:"o"` // today's opening price
	High   []string `json:"h"` // [today, last 24h]
	Low    []string `json:"l"`
	Volume []string `json:"v"`
}

// Ticker fetches current market data for the given pairs, batching requests
// to stay under the API's pair limit.
func (k *Kraken) Ticker(ctx context.Context, pairs []string) (map[string]model.Ticker, error) {
	tickers := make(map[string]model.Ticker)
	for start := 0; start < len(pairs); start += tickerBatchSize {
		end := start + tickerBatchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		query := url.Values{}
		query.Set("pair", strings.Join(pairs[start:end], ","))

		var raw map[string]tickerResponse
		if err := k.public(ctx, "Ticker", query, &raw); err != nil {
			return nil, err
		}
		for pair, t := range raw {
			parsed, err := parseTicker(t)
			if err != nil {
				return nil, fmt.Errorf("kraken Ticker %s: %w", pair, err)
			}
			tickers[pair] = parsed
		}
	}
	return tickers, nil
}

func parseTicker(t tickerResponse) (model.Ticker, error) {
	var out model.Ticker
	var err error
	if len(t.Last) > 0 {
		if out.Last, err = decimalOrZero(t.Last[0]); err != nil {
			return out, fmt.Errorf("last: %w", err)
		}
	}
	if out.Open24h, err = decimalOrZero(t.Open); err != nil {
		return out, fmt.Errorf("open: %w", err)
	}
	if len(t.High) > 1 {
		if out.High24h, err = decimalOrZero(t.High[1]); err != nil {
			return out, fmt.Errorf("high: %w", err)
		}
	}
	if len(t.Low) > 1 {
		if out.Low24h, err = decimalOrZero(t.Low[1]); err != nil {
			return out, fmt.Errorf("low: %w", err)
		}
	}
	if len(t.Volume) > 1 {
		if out.Volume24h, err = decimalOrZero(t.Volume[1]); err != nil {
			return out, fmt.Errorf("volume: %w", err)
		}
	}
	return out, nil
}

// FetchPortfolio assembles the full account snapshot: balances, EUR trade
// balance, open orders, recent trades and tickers for every held asset. The
// rate limiter paces the individual calls.
func (k *Kraken) FetchPortfolio(ctx context.Context) (*model.Portfolio, error) {
	balances, err := k.Balance(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch balance: %w", err)
	}
	tradeBalance, err := k.TradeBalance(ctx, k.Quote)
	if err != nil {
		return nil, fmt.Errorf("fetch trade balance: %w", err)
	}
	openOrders, err := k.OpenOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch open orders: %w", err)
	}
	trades, err := k.TradesHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch trades history: %w", err)
	}

	p := &model.Portfolio{
		Timestamp:    time.Now().UTC(),
		Exchange:     k.Name(),
		Balances:     balances,
		TradeBalance: tradeBalance,
		OpenOrders:   openOrders,
		Trades:       trades,
		Ticker:       map[string]model.Ticker{},
	}

	minAmount := k.MinAmount
	if minAmount.IsZero() {
		minAmount = decimal.NewFromFloat(0.0001)
	}
	assets := p.HeldAssets(minAmount)
	sort.Strings(assets)
	if len(assets) > 0 {
		pairs := make([]string, 0, len(assets))
		for _, asset := range assets {
			pairs = append(pairs, k.PairFor(asset))
		}
		tickers, err := k.Ticker(ctx, pairs)
		if err != nil {
			return nil, fmt.Errorf("fetch tickers: %w", err)
		}
		p.Ticker = tickers
	}
	return p, nil
}
