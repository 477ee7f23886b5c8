// Package stocks fetches quotes through an ordered provider list: Alpha
// Vantage first, the keyless Stooq CSV endpoint as fallback. Once the
// primary fails it stays out of the rotation for the rest of the run, so
// later requests skip its timeout entirely.
package stocks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

const (
	defaultPrimaryURL   = "https://www.alphavantage.co/query"
	defaultSecondaryURL = "https://stooq.com/q/l/"
)

// Quote is one fetched stock price.
type Quote struct {
	Symbol   string
	Price    float64
	Provider string
	AsOf     time.Time
}

// ProviderExhaustedError reports that every provider failed for a symbol.
// Callers render "N/A" and keep going.
type ProviderExhaustedError struct {
	Symbol       string
	PrimaryErr   error
	SecondaryErr error
}

func (e *ProviderExhaustedError) Error() string {
	return fmt.Sprintf("no provider could quote %s: primary: %v, secondary: %v",
		e.Symbol, e.PrimaryErr, e.SecondaryErr)
}

// Client fetches quotes with a primary/secondary fallback and a
// process-lifetime latch on the primary.
type Client struct {
	client       *http.Client
	apiKey       string
	PrimaryURL   string
	SecondaryURL string
	primaryDown  atomic.Bool
	log          *slog.Logger
}

func NewClient(apiKey string, timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		client:       &http.Client{Timeout: timeout},
		apiKey:       apiKey,
		PrimaryURL:   defaultPrimaryURL,
		SecondaryURL: defaultSecondaryURL,
		log:          log,
	}
	// No key means the primary can never answer; start latched.
	if apiKey == "" {
		c.primaryDown.Store(true)
	}
	return c
}

// PrimaryDown reports whether the primary provider latch has tripped.
func (c *Client) PrimaryDown() bool {
	return c.primaryDown.Load()
}

// Price fetches one quote, trying the secondary immediately on primary
// failure. There is no backoff between the two: the secondary exists
// precisely so we never wait on the primary.
func (c *Client) Price(ctx context.Context, symbol string) (Quote, error) {
	var primaryErr error
	if !c.primaryDown.Load() {
		quote, err := c.fromAlphaVantage(ctx, symbol)
		if err == nil {
			return quote, nil
		}
		primaryErr = err
		c.primaryDown.Store(true)
		c.log.Warn("primary quote provider failed, latching to secondary", "symbol", symbol, "err", err)
	}

	quote, err := c.fromStooq(ctx, symbol)
	if err != nil {
		return Quote{}, &ProviderExhaustedError{Symbol: symbol, PrimaryErr: primaryErr, SecondaryErr: err}
	}
	return quote, nil
}

type globalQuoteResponse struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
}

func (c *Client) fromAlphaVantage(ctx context.Context, symbol string) (Quote, error) {
	url := fmt.Sprintf("%s?function=GLOBAL_QUOTE&symbol=%s&apikey=%s", c.PrimaryURL, symbol, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("alpha vantage: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("alpha vantage: status %d", resp.StatusCode)
	}

	var gq globalQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&gq); err != nil {
		return Quote{}, fmt.Errorf("alpha vantage: decoding: %w", err)
	}
	if gq.GlobalQuote.Price == "" {
		return Quote{}, fmt.Errorf("alpha vantage: no price data for %s", symbol)
	}
	price, err := strconv.ParseFloat(gq.GlobalQuote.Price, 64)
	if err != nil {
		return Quote{}, fmt.Errorf("alpha vantage: bad price %q: %w", gq.GlobalQuote.Price, err)
	}

	return Quote{Symbol: symbol, Price: price, Provider: "alphavantage", AsOf: time.Now()}, nil
}

func (c *Client) fromStooq(ctx context.Context, symbol string) (Quote, error) {
	url := fmt.Sprintf("%s?s=%s.us&f=sd2t2ohlcv&h&e=csv", c.SecondaryURL, strings.ToLower(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Quote{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Quote{}, fmt.Errorf("stooq: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Quote{}, fmt.Errorf("stooq: status %d", resp.StatusCode)
	}

	records, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		return Quote{}, fmt.Errorf("stooq: parsing csv: %w", err)
	}
	// Header row plus one data row: Symbol,Date,Time,Open,High,Low,Close,Volume.
	if len(records) < 2 || len(records[1]) < 7 {
		return Quote{}, fmt.Errorf("stooq: unexpected response shape for %s", symbol)
	}
	price, err := strconv.ParseFloat(records[1][6], 64)
	if err != nil {
		return Quote{}, fmt.Errorf("stooq: no price data for %s", symbol)
	}

	return Quote{Symbol: symbol, Price: price, Provider: "stooq", AsOf: time.Now()}, nil
}
