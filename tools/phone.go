package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tanishra/smartinfo/internal/util"
	"github.com/tanishra/smartinfo/tool"
)

// PhoneToolName is the name the oracle uses to verify a number.
const PhoneToolName = "verify_phone_number"

// DefaultNumVerifyURL is the validation endpoint.
const DefaultNumVerifyURL = "http://apilayer.net/api/validate"

// PhoneArgs are the arguments of verify_phone_number.
type PhoneArgs struct {
	PhoneNumber string `json:"phone_number" description:"Phone number in international format (e.g., '+14158586273')" minLength:"1"`
}

// PhoneVerification is the payload of verify_phone_number. Status is
// success, invalid (the number is not valid) or error.
type PhoneVerification struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Number      string `json:"number,omitempty"`
	CountryName string `json:"country_name,omitempty"`
	CountryCode string `json:"country_code,omitempty"`
	Location    string `json:"location,omitempty"`
	Carrier     string `json:"carrier,omitempty"`
	LineType    string `json:"line_type,omitempty"`
}

type numverifyResponse struct {
	Valid               bool           `json:"valid"`
	InternationalFormat string         `json:"international_format"`
	CountryName         string         `json:"country_name"`
	CountryCode         string         `json:"country_code"`
	Location            string         `json:"location"`
	Carrier             string         `json:"carrier"`
	LineType            string         `json:"line_type"`
	Error               *upstreamError `json:"error"`
}

// PhoneOptions configure a PhoneTool.
type PhoneOptions struct {
	ClientOptions
	// BaseURL overrides DefaultNumVerifyURL.
	BaseURL string
}

// PhoneTool validates phone numbers and reports carrier metadata.
type PhoneTool struct {
	aliasNormalizer
	apiKey  string
	baseURL string
	client  *httpClient
}

var (
	_ tool.Tool       = (*PhoneTool)(nil)
	_ tool.Summarizer = (*PhoneTool)(nil)
)

// NewPhoneTool creates a PhoneTool authenticating with apiKey.
func NewPhoneTool(apiKey string, optFns ...func(o *PhoneOptions)) *PhoneTool {
	opts := PhoneOptions{BaseURL: DefaultNumVerifyURL}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &PhoneTool{
		apiKey:  apiKey,
		baseURL: opts.BaseURL,
		client:  newHTTPClient("numverify", opts.ClientOptions),
	}
}

func (t *PhoneTool) Name() string { return PhoneToolName }

func (t *PhoneTool) Description() string {
	return "Validate a phone number and return its country, carrier and line type when available."
}

func (t *PhoneTool) Parameters() map[string]any { return util.CreateSchema(PhoneArgs{}) }

// Call validates args["phone_number"].
func (t *PhoneTool) Call(ctx context.Context, args map[string]any) (any, error) {
	number := strings.TrimSpace(stringArg(args, "phone_number"))
	if number == "" {
		return &PhoneVerification{Status: StatusError, Message: "Phone number is required."}, nil
	}

	params := url.Values{}
	params.Set("access_key", t.apiKey)
	params.Set("number", number)
	params.Set("format", "1")

	var resp numverifyResponse
	if err := t.client.getJSON(ctx, t.baseURL, params, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		msg := resp.Error.Info
		if msg == "" {
			msg = "Invalid API request."
		}
		return &PhoneVerification{Status: StatusError, Message: msg, Number: number}, nil
	}

	if !resp.Valid {
		return &PhoneVerification{
			Status:  StatusInvalid,
			Message: fmt.Sprintf("%s is not a valid phone number.", number),
			Number:  number,
		}, nil
	}

	return &PhoneVerification{
		Status:      StatusSuccess,
		Number:      resp.InternationalFormat,
		CountryName: resp.CountryName,
		CountryCode: resp.CountryCode,
		Location:    resp.Location,
		Carrier:     resp.Carrier,
		LineType:    resp.LineType,
	}, nil
}

// Summarize renders a verification result.
func (t *PhoneTool) Summarize(payload any) string {
	v, ok := payload.(*PhoneVerification)
	if !ok || v == nil {
		return ""
	}
	switch v.Status {
	case StatusSuccess:
		return fmt.Sprintf("Phone Verification: %s\n- Country: %s\n- Carrier: %s\n- Line Type: %s",
			v.Number, orUnknown(v.CountryName), orUnknown(v.Carrier), orUnknown(v.LineType))
	case StatusInvalid:
		return "Phone Verification: " + v.Message
	default:
		return "Phone verification failed: " + v.Message
	}
}
