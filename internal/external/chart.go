package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kjannette/papertrade-backend/internal/httputil"
	"github.com/kjannette/papertrade-backend/internal/models"
)

const DefaultChartURL = "https://query1.finance.yahoo.com/v8/finance/chart"

// ChartClient reads daily OHLCV bars from a Yahoo-compatible chart API.
// Indian symbols carry their exchange suffix (TCS.NS, INFY.BO).
type ChartClient struct {
	baseURL    string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewChartClient(baseURL string) *ChartClient {
	if baseURL == "" {
		baseURL = DefaultChartURL
	}
	return &ChartClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   2 * time.Second,
			MaxDelay:    10 * time.Second,
		},
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// DailyCandles returns up to days of daily bars, oldest first. Bars with
// no close (halts, holidays) are skipped.
func (c *ChartClient) DailyCandles(ctx context.Context, symbol string, days int) ([]models.Candle, error) {
	endpoint := fmt.Sprintf("%s/%s?range=%s&interval=1d",
		c.baseURL, url.PathEscape(symbol), rangeFor(days))

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", "Mozilla/5.0 (papertrade-backend)")
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("chart fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	var data chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if data.Chart.Error != nil {
		return nil, fmt.Errorf("chart %s: %s", symbol, data.Chart.Error.Description)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("chart returned status %d", resp.StatusCode)
	}
	if len(data.Chart.Result) == 0 || len(data.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("chart %s: empty result", symbol)
	}

	r := data.Chart.Result[0]
	q := r.Indicators.Quote[0]
	out := make([]models.Candle, 0, len(r.Timestamp))
	for i, ts := range r.Timestamp {
		closePx := at(q.Close, i)
		if closePx == nil {
			continue
		}
		out = append(out, models.Candle{
			Timestamp: time.Unix(ts, 0).UTC(),
			Open:      deref(at(q.Open, i)),
			High:      deref(at(q.High, i)),
			Low:       deref(at(q.Low, i)),
			Close:     *closePx,
			Volume:    deref(at(q.Volume, i)),
		})
	}
	if days > 0 && len(out) > days {
		out = out[len(out)-days:]
	}
	return out, nil
}

func rangeFor(days int) string {
	switch {
	case days <= 0:
		return "1y"
	case days <= 5:
		return "5d"
	case days <= 30:
		return "1mo"
	case days <= 90:
		return "3mo"
	case days <= 180:
		return "6mo"
	case days <= 365:
		return "1y"
	case days <= 730:
		return "2y"
	default:
		return "5y"
	}
}

func at(v []*float64, i int) *float64 {
	if i < len(v) {
		return v[i]
	}
	return nil
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
