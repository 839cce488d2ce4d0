package kraken

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
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/core"
)

const (
	publicPrefix  = "/0/public/"
	privatePrefix = "/0/private/"
)

// Client talks to the Kraken REST API. Private calls are signed with the
// account API secret; transient transport failures are retried up to the
// configured budget.
type Client struct {
	baseURL    string
	apiKey     string
	apiSecret  string
	retries    int
	httpClient *http.Client
	log        *logrus.Entry
	nonce      atomic.Int64
}

func New(cfg config.KrakenConfig, log *logrus.Logger) *Client {
	c := &Client{
		baseURL:   strings.TrimRight(cfg.APIBaseURL, "/"),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
		retries:   cfg.Retries,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.HTTPTimeoutSec) * time.Second,
		},
		log: log.WithField("component", "kraken"),
	}
	c.nonce.Store(time.Now().UnixNano())
	return c
}

// Call performs one venue operation, retrying transport failures. The venue
// answering at all, even with an error, ends the call: only requests that
// never produced a decodable envelope are tried again.
func (c *Client) Call(ctx context.Context, op string, params url.Values, private bool) (json.RawMessage, error) {
	c.log.WithFields(logrus.Fields{
		"op":      op,
		"private": private,
		"params":  redact(params),
	}).Debug("api call")

	attempts := c.retries + 1
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := c.do(ctx, op, params, private)
		if err == nil {
			return result, nil
		}
		err = classify(err)
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		if attempt < attempts {
			c.log.WithError(err).WithFields(logrus.Fields{
				"op":      op,
				"attempt": attempt,
			}).Warn("api call failed, retrying")
		}
	}
	return nil, fmt.Errorf("%s after %d attempts: %w", op, attempts, lastErr)
}

func (c *Client) do(ctx context.Context, op string, params url.Values, private bool) (json.RawMessage, error) {
	var req *http.Request
	var err error
	if private {
		path := privatePrefix + op
		nonce := strconv.FormatInt(c.nonce.Add(1), 10)
		form := url.Values{}
		for k, v := range params {
			form[k] = v
		}
		form.Set("nonce", nonce)
		body := form.Encode()
		sign, signErr := c.sign(path, nonce, body)
		if signErr != nil {
			return nil, signErr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("API-Key", c.apiKey)
		req.Header.Set("API-Sign", sign)
	} else {
		target := c.baseURL + publicPrefix + op
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: http status %d", op, resp.StatusCode)
	}
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(env.Error) > 0 {
		return nil, &VenueError{Op: op, Message: strings.Join(env.Error, ", ")}
	}
	return env.Result, nil
}

// sign computes API-Sign: HMAC-SHA512 over path + SHA256(nonce + postdata),
// keyed with the base64-decoded API secret.
func (c *Client) sign(path, nonce, body string) (string, error) {
	secret, err := base64.StdEncoding.DecodeString(c.apiSecret)
	if err != nil {
		return "", fmt.Errorf("decode api secret: %w", err)
	}
	digest := sha256.Sum256([]byte(nonce + body))
	mac := hmac.New(sha512.New, secret)
	mac.Write([]byte(path))
	mac.Write(digest[:])
	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}

func redact(params url.Values) string {
	clone := url.Values{}
	for k, v := range params {
		clone[k] = v
	}
	clone.Del("nonce")
	return clone.Encode()
}

func (c *Client) Assets(ctx context.Context) (map[string]core.Asset, error) {
	result, err := c.Call(ctx, "Assets", nil, false)
	if err != nil {
		return nil, err
	}
	var raw map[string]assetInfo
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("Assets: %w", err)
	}
	assets := make(map[string]core.Asset, len(raw))
	for code, info := range raw {
		assets[code] = core.Asset{
			Code:    code,
			AltName: info.AltName,
			Class:   core.ClassOf(code),
		}
	}
	return assets, nil
}

func (c *Client) AssetPairs(ctx context.Context) (map[string]core.Pair, error) {
	result, err := c.Call(ctx, "AssetPairs", nil, false)
	if err != nil {
		return nil, err
	}
	var raw map[string]pairInfo
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("AssetPairs: %w", err)
	}
	pairs := make(map[string]core.Pair, len(raw))
	for code, info := range raw {
		pair := core.Pair{
			Base:    info.Base,
			Quote:   info.Quote,
			Code:    code,
			AltCode: info.AltName,
			WSName:  info.WSName,
		}
		if info.OrderMin != "" {
			if min, err := decimal.NewFromString(info.OrderMin); err == nil {
				pair.MinVolume = &min
			}
		}
		pairs[code] = pair
	}
	return pairs, nil
}

// Ticker returns the last trade price per requested pair code.
func (c *Client) Ticker(ctx context.Context, pairs []string) (map[string]decimal.Decimal, error) {
	params := url.Values{}
	params.Set("pair", strings.Join(pairs, ","))
	result, err := c.Call(ctx, "Ticker", params, false)
	if err != nil {
		return nil, err
	}
	var raw map[string]tickerInfo
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("Ticker: %w", err)
	}
	prices := make(map[string]decimal.Decimal, len(raw))
	for code, info := range raw {
		if len(info.Close) == 0 {
			return nil, fmt.Errorf("Ticker: no close price for %s", code)
		}
		price, err := decimal.NewFromString(info.Close[0])
		if err != nil {
			return nil, fmt.Errorf("Ticker: price for %s: %w", code, err)
		}
		prices[code] = price
	}
	return prices, nil
}

func (c *Client) Balance(ctx context.Context) (map[string]decimal.Decimal, error) {
	result, err := c.Call(ctx, "Balance", nil, true)
	if err != nil {
		return nil, err
	}
	var raw map[string]string
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("Balance: %w", err)
	}
	balances := make(map[string]decimal.Decimal, len(raw))
	for code, amount := range raw {
		value, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("Balance: %s: %w", code, err)
		}
		balances[code] = value
	}
	return balances, nil
}

// TradeBalance returns the account equivalent balance expressed in asset.
func (c *Client) TradeBalance(ctx context.Context, asset string) (decimal.Decimal, error) {
	params := url.Values{}
	params.Set("asset", asset)
	result, err := c.Call(ctx, "TradeBalance", params, true)
	if err != nil {
		return decimal.Zero, err
	}
	var raw tradeBalanceResult
	if err := json.Unmarshal(result, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("TradeBalance: %w", err)
	}
	value, err := decimal.NewFromString(raw.Equivalent)
	if err != nil {
		return decimal.Zero, fmt.Errorf("TradeBalance: %w", err)
	}
	return value, nil
}

func (c *Client) OpenOrders(ctx context.Context) ([]core.OpenOrder, error) {
	result, err := c.Call(ctx, "OpenOrders", nil, true)
	if err != nil {
		return nil, err
	}
	var raw openOrdersResult
	if err := json.Unmarshal(result, &raw); err != nil {
		return nil, fmt.Errorf("OpenOrders: %w", err)
	}
	orders := make([]core.OpenOrder, 0, len(raw.Open))
	for txid, info := range raw.Open {
		order := core.OpenOrder{
			TxID:        txid,
			Pair:        info.Descr.Pair,
			Side:        core.Side(info.Descr.Side),
			Kind:        core.OrderKind(info.Descr.OrderType),
			Description: info.Descr.Order,
		}
		if info.Volume != "" {
			volume, err := decimal.NewFromString(info.Volume)
			if err != nil {
				return nil, fmt.Errorf("OpenOrders: %s volume: %w", txid, err)
			}
			order.Volume = volume
		}
		if info.Descr.Price != "" {
			price, err := decimal.NewFromString(info.Descr.Price)
			if err != nil {
				return nil, fmt.Errorf("OpenOrders: %s price: %w", txid, err)
			}
			order.Price = price
		}
		orders = append(orders, order)
	}
	return orders, nil
}

// AddOrder places an order and returns the transaction id and the venue's
// order description. A response carrying neither an error nor a txid comes
// back as core.ErrUndefinedState.
func (c *Client) AddOrder(ctx context.Context, req core.OrderRequest) (string, string, error) {
	params := url.Values{}
	params.Set("pair", req.Pair)
	params.Set("type", string(req.Side))
	params.Set("ordertype", string(req.Kind))
	params.Set("volume", req.Volume.StringFixed(8))
	if req.Kind == core.Limit {
		params.Set("price", req.Price.String())
	}
	if req.TradingAgreement {
		params.Set("trading_agreement", "agree")
	}
	result, err := c.Call(ctx, "AddOrder", params, true)
	if err != nil {
		return "", "", err
	}
	var raw addOrderResult
	if err := json.Unmarshal(result, &raw); err != nil {
		return "", "", fmt.Errorf("AddOrder: %w", err)
	}
	if len(raw.TxIDs) == 0 {
		return "", raw.Descr.Order, fmt.Errorf("AddOrder: %w", core.ErrUndefinedState)
	}
	return raw.TxIDs[0], raw.Descr.Order, nil
}

func (c *Client) CancelOrder(ctx context.Context, txid string) error {
	params := url.Values{}
	params.Set("txid", txid)
	_, err := c.Call(ctx, "CancelOrder", params, true)
	return err
}

func (c *Client) QueryOrder(ctx context.Context, txid string) (core.OrderInfo, error) {
	params := url.Values{}
	params.Set("txid", txid)
	result, err := c.Call(ctx, "QueryOrders", params, true)
	if err != nil {
		return core.OrderInfo{}, err
	}
	var raw map[string]struct {
		Status string     `json:"status"`
		Descr  orderDescr `json:"descr"`
	}
	if err := json.Unmarshal(result, &raw); err != nil {
		return core.OrderInfo{}, fmt.Errorf("QueryOrders: %w", err)
	}
	info, ok := raw[txid]
	if !ok {
		return core.OrderInfo{}, fmt.Errorf("QueryOrders: %s not in response", txid)
	}
	return core.OrderInfo{
		TxID:        txid,
		Status:      core.OrderStatus(info.Status),
		Description: info.Descr.Order,
	}, nil
}
