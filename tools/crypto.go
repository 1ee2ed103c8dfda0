package tools

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tanishra/smartinfo/internal/util"
	"github.com/tanishra/smartinfo/tool"
)

// CryptoToolName is the name the oracle uses to request a quote.
const CryptoToolName = "get_crypto_price"

// DefaultCoinMarketCapURL is the latest-quotes endpoint.
const DefaultCoinMarketCapURL = "https://pro-api.coinmarketcap.com/v1/cryptocurrency/quotes/latest"

// CryptoArgs are the arguments of get_crypto_price.
type CryptoArgs struct {
	Symbol string `json:"symbol" description:"Ticker symbol (e.g., 'BTC', 'ETH', 'DOGE')" minLength:"1"`
}

// CryptoQuote is the payload of get_crypto_price. Monetary values are
// rounded to two decimals.
type CryptoQuote struct {
	Status           string  `json:"status"`
	Message          string  `json:"message,omitempty"`
	Symbol           string  `json:"symbol,omitempty"`
	Name             string  `json:"name,omitempty"`
	PriceUSD         float64 `json:"price_usd"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCapUSD     float64 `json:"market_cap_usd"`
	Timestamp        string  `json:"timestamp,omitempty"`
}

type cmcQuote struct {
	Price            float64 `json:"price"`
	PercentChange24h float64 `json:"percent_change_24h"`
	MarketCap        float64 `json:"market_cap"`
}

type cmcResponse struct {
	Data map[string]struct {
		Name  string              `json:"name"`
		Quote map[string]cmcQuote `json:"quote"`
	} `json:"data"`
	Status struct {
		ErrorCode    int    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

// CryptoOptions configure a CryptoTool.
type CryptoOptions struct {
	ClientOptions
	// BaseURL overrides DefaultCoinMarketCapURL.
	BaseURL string
	Now     func() time.Time
}

// CryptoTool reports the latest USD quote of a cryptocurrency.
type CryptoTool struct {
	aliasNormalizer
	apiKey  string
	baseURL string
	client  *httpClient
	now     func() time.Time
}

var (
	_ tool.Tool       = (*CryptoTool)(nil)
	_ tool.Summarizer = (*CryptoTool)(nil)
)

// NewCryptoTool creates a CryptoTool authenticating with apiKey.
func NewCryptoTool(apiKey string, optFns ...func(o *CryptoOptions)) *CryptoTool {
	opts := CryptoOptions{BaseURL: DefaultCoinMarketCapURL, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &CryptoTool{
		apiKey:  apiKey,
		baseURL: opts.BaseURL,
		client:  newHTTPClient("coinmarketcap", opts.ClientOptions),
		now:     opts.Now,
	}
}

func (t *CryptoTool) Name() string { return CryptoToolName }

func (t *CryptoTool) Description() string {
	return "Fetch the latest cryptocurrency price in USD, its 24-hour change and market cap."
}

func (t *CryptoTool) Parameters() map[string]any { return util.CreateSchema(CryptoArgs{}) }

// Call fetches the USD quote for args["symbol"].
func (t *CryptoTool) Call(ctx context.Context, args map[string]any) (any, error) {
	symbol := strings.ToUpper(strings.TrimSpace(stringArg(args, "symbol")))
	if symbol == "" {
		return &CryptoQuote{Status: StatusError, Message: "Symbol is required."}, nil
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("convert", "USD")

	header := http.Header{}
	header.Set("X-CMC_PRO_API_KEY", t.apiKey)

	var resp cmcResponse
	if err := t.client.getJSON(ctx, t.baseURL, params, header, &resp); err != nil {
		return nil, err
	}

	info, ok := resp.Data[symbol]
	if !ok {
		msg := fmt.Sprintf("Symbol '%s' not found in API response.", symbol)
		if resp.Status.ErrorMessage != "" {
			msg = resp.Status.ErrorMessage
		}
		return &CryptoQuote{Status: StatusError, Message: msg, Symbol: symbol}, nil
	}

	quote := info.Quote["USD"]
	name := info.Name
	if name == "" {
		name = "Unknown"
	}

	return &CryptoQuote{
		Status:           StatusSuccess,
		Symbol:           symbol,
		Name:             name,
		PriceUSD:         round2(quote.Price),
		PercentChange24h: round2(quote.PercentChange24h),
		MarketCapUSD:     round2(quote.MarketCap),
		Timestamp:        t.now().Format(time.RFC3339),
	}, nil
}

// Summarize renders a quote.
func (t *CryptoTool) Summarize(payload any) string {
	q, ok := payload.(*CryptoQuote)
	if !ok || q == nil {
		return ""
	}
	if q.Status != StatusSuccess {
		return fmt.Sprintf("Crypto lookup failed: %s", q.Message)
	}
	return fmt.Sprintf("%s Price: $%.2f USD (24h change %.2f%%)", q.Symbol, q.PriceUSD, q.PercentChange24h)
}
