// Package tools provides the upstream data tools offered to the oracle:
// current weather (Weatherstack), crypto quotes (CoinMarketCap), phone
// number verification (NumVerify) and flight offers (Amadeus).
//
// Every tool accepts loosely named arguments through alias normalisation
// and renders a short human-readable summary of its payload. Upstream
// domain failures (an unknown symbol, an invalid number) are returned as
// payloads with Status "error" or "invalid"; transport failures and
// malformed responses are returned as errors.
package tools
