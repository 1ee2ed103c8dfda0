package tools

import (
	"github.com/tanishra/smartinfo/logging"
	"github.com/tanishra/smartinfo/tool"
)

// Credentials hold the upstream API keys. An empty key disables its tool.
type Credentials struct {
	WeatherstackKey     string
	CoinMarketCapKey    string
	NumVerifyKey        string
	AmadeusClientID     string
	AmadeusClientSecret string
}

// Options configure the default tool set.
type Options struct {
	ClientOptions
	Logger logging.Logger
}

// Default returns every tool whose credentials are present. Tools without
// credentials are skipped with a warning so the oracle is never offered a
// tool that cannot succeed.
func Default(creds Credentials, optFns ...func(o *Options)) []tool.Tool {
	opts := Options{}
	for _, fn := range optFns {
		fn(&opts)
	}
	logger := logging.Ensure(opts.Logger)

	var out []tool.Tool

	if creds.WeatherstackKey != "" {
		out = append(out, NewWeatherTool(creds.WeatherstackKey, func(o *WeatherOptions) {
			o.ClientOptions = opts.ClientOptions
		}))
	} else {
		logger.Warn("tools.disabled", "tool", WeatherToolName, "reason", "missing Weatherstack key")
	}

	if creds.CoinMarketCapKey != "" {
		out = append(out, NewCryptoTool(creds.CoinMarketCapKey, func(o *CryptoOptions) {
			o.ClientOptions = opts.ClientOptions
		}))
	} else {
		logger.Warn("tools.disabled", "tool", CryptoToolName, "reason", "missing CoinMarketCap key")
	}

	if creds.NumVerifyKey != "" {
		out = append(out, NewPhoneTool(creds.NumVerifyKey, func(o *PhoneOptions) {
			o.ClientOptions = opts.ClientOptions
		}))
	} else {
		logger.Warn("tools.disabled", "tool", PhoneToolName, "reason", "missing NumVerify key")
	}

	if creds.AmadeusClientID != "" && creds.AmadeusClientSecret != "" {
		out = append(out, NewFlightTool(creds.AmadeusClientID, creds.AmadeusClientSecret, func(o *FlightOptions) {
			o.ClientOptions = opts.ClientOptions
		}))
	} else {
		logger.Warn("tools.disabled", "tool", FlightsToolName, "reason", "missing Amadeus client credentials")
	}

	return out
}

// Register adds the default tool set to reg and returns the registered names.
func Register(reg *tool.Registry, creds Credentials, optFns ...func(o *Options)) ([]string, error) {
	var names []string
	for _, t := range Default(creds, optFns...) {
		if err := reg.Register(t); err != nil {
			return names, err
		}
		names = append(names, t.Name())
	}
	return names, nil
}
