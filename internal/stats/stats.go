// Package stats fetches the global statistics shown alongside the news
// panes: the US national debt from the Treasury Fiscal Data API and global
// CO2 emissions from the World Bank. Both are best-effort; failures render
// as "Data Unavailable" and are never surfaced as errors.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultDebtURL = "https://api.fiscaldata.treasury.gov/services/api/fiscal_service/v1/accounting/mspd/mspd_debt"
	defaultCO2URL  = "https://api.worldbank.org/v2/country/WLD/indicator/EN.ATM.CO2E.KT?format=json"

	// Unavailable is the placeholder value for a stat that could not be fetched.
	Unavailable = "Data Unavailable"
)

// Snapshot holds one round of fetched statistics, already formatted for display.
type Snapshot struct {
	USDebt    string
	GlobalCO2 string
	FetchedAt time.Time
}

type Client struct {
	client  *http.Client
	DebtURL string
	CO2URL  string
	log     *slog.Logger
}

func NewClient(timeout time.Duration, log *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		client:  &http.Client{Timeout: timeout},
		DebtURL: defaultDebtURL,
		CO2URL:  defaultCO2URL,
		log:     log,
	}
}

// Fetch gathers all statistics. Individual failures degrade to Unavailable.
func (c *Client) Fetch(ctx context.Context) Snapshot {
	return Snapshot{
		USDebt:    c.usDebt(ctx),
		GlobalCO2: c.globalCO2(ctx),
		FetchedAt: time.Now(),
	}
}

type debtResponse struct {
	Data []struct {
		Amount string `json:"tot_pub_debt_out_amt"`
	} `json:"data"`
}

func (c *Client) usDebt(ctx context.Context) string {
	var dr debtResponse
	if err := c.getJSON(ctx, c.DebtURL, &dr); err != nil {
		c.log.Warn("fetching us debt", "err", err)
		return Unavailable
	}
	if len(dr.Data) == 0 {
		return Unavailable
	}
	amount, err := strconv.ParseFloat(dr.Data[0].Amount, 64)
	if err != nil {
		return Unavailable
	}
	return "$" + groupDigits(amount)
}

func (c *Client) globalCO2(ctx context.Context) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.CO2URL, nil)
	if err != nil {
		return Unavailable
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.log.Warn("fetching global co2", "err", err)
		return Unavailable
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Unavailable
	}

	// World Bank responses are a two-element array: metadata, then rows.
	var payload []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil || len(payload) < 2 {
		return Unavailable
	}
	var rows []struct {
		Value *float64 `json:"value"`
	}
	if err := json.Unmarshal(payload[1], &rows); err != nil {
		return Unavailable
	}
	for _, row := range rows {
		if row.Value != nil {
			return groupDigits(*row.Value) + " kt CO2"
		}
	}
	return Unavailable
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: status %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// groupDigits renders a number with thousands separators and two decimals
// when the value is not integral.
func groupDigits(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	if strings.HasSuffix(s, ".00") && v == math.Trunc(v) {
		s = s[:len(s)-3]
	}
	intPart := s
	frac := ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}
	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 && r != '-' && intPart[i-1] != '-' {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String() + frac
}
