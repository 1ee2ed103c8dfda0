package tools

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/tanishra/smartinfo/internal/util"
	"github.com/tanishra/smartinfo/tool"
)

// FlightsToolName is the name the oracle uses to search flights.
const FlightsToolName = "search_flights_amadeus"

// DefaultAmadeusURL is the Amadeus self-service test environment.
const DefaultAmadeusURL = "https://test.api.amadeus.com"

const (
	maxFlightOffers   = 5
	maxSummaryFlights = 3
	tokenExpirySkew   = 30 * time.Second
)

// FlightArgs are the arguments of search_flights_amadeus.
type FlightArgs struct {
	OriginCity      string `json:"origin_city" description:"Name of the origin city (e.g., 'New York')" minLength:"1"`
	DestinationCity string `json:"destination_city" description:"Name of the destination city (e.g., 'London')" minLength:"1"`
	DepartureDate   string `json:"departure_date,omitempty" description:"Departure date in YYYY-MM-DD format; defaults to today" pattern:"^([0-9]{4}-[0-9]{2}-[0-9]{2})?$"`
}

// Flight is one offer segment.
type Flight struct {
	Airline          string `json:"airline"`
	FlightNumber     string `json:"flight_number"`
	DepartureAirport string `json:"departure_airport"`
	DepartureTime    string `json:"departure_time"`
	ArrivalAirport   string `json:"arrival_airport"`
	ArrivalTime      string `json:"arrival_time"`
	Price            string `json:"price,omitempty"`
	Currency         string `json:"currency,omitempty"`
}

// FlightSearch is the payload of search_flights_amadeus.
type FlightSearch struct {
	Status  string   `json:"status"`
	Message string   `json:"message,omitempty"`
	Origin  string   `json:"origin,omitempty"`
	Dest    string   `json:"destination,omitempty"`
	Date    string   `json:"departure_date,omitempty"`
	Flights []Flight `json:"flights,omitempty"`
}

type amadeusToken struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

type amadeusLocations struct {
	Data []struct {
		IATACode string `json:"iataCode"`
	} `json:"data"`
}

type amadeusEndpoint struct {
	IATACode string `json:"iataCode"`
	At       string `json:"at"`
}

type amadeusOffers struct {
	Data []struct {
		Itineraries []struct {
			Segments []struct {
				CarrierCode string          `json:"carrierCode"`
				Number      string          `json:"number"`
				Departure   amadeusEndpoint `json:"departure"`
				Arrival     amadeusEndpoint `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
		Price struct {
			Total    string `json:"total"`
			Currency string `json:"currency"`
		} `json:"price"`
	} `json:"data"`
}

// FlightOptions configure a FlightTool.
type FlightOptions struct {
	ClientOptions
	// BaseURL overrides DefaultAmadeusURL.
	BaseURL string
	Now     func() time.Time
}

// FlightTool searches flight offers between two cities. The OAuth2 access
// token is fetched lazily and cached until shortly before it expires.
type FlightTool struct {
	aliasNormalizer
	clientID     string
	clientSecret string
	baseURL      string
	client       *httpClient
	now          func() time.Time

	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

var (
	_ tool.Tool       = (*FlightTool)(nil)
	_ tool.Summarizer = (*FlightTool)(nil)
)

// NewFlightTool creates a FlightTool using client-credentials authentication.
func NewFlightTool(clientID, clientSecret string, optFns ...func(o *FlightOptions)) *FlightTool {
	opts := FlightOptions{BaseURL: DefaultAmadeusURL, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &FlightTool{
		clientID:     clientID,
		clientSecret: clientSecret,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		client:       newHTTPClient("amadeus", opts.ClientOptions),
		now:          opts.Now,
	}
}

func (t *FlightTool) Name() string { return FlightsToolName }

func (t *FlightTool) Description() string {
	return "Find available flights between two cities. The departure date is optional and defaults to today."
}

func (t *FlightTool) Parameters() map[string]any { return util.CreateSchema(FlightArgs{}) }

// Call resolves both cities to IATA codes and searches offers.
func (t *FlightTool) Call(ctx context.Context, args map[string]any) (any, error) {
	origin := strings.TrimSpace(stringArg(args, "origin_city"))
	dest := strings.TrimSpace(stringArg(args, "destination_city"))
	date := strings.TrimSpace(stringArg(args, "departure_date"))
	if date == "" {
		date = t.now().Format(time.DateOnly)
	}

	if origin == "" || dest == "" {
		return &FlightSearch{Status: StatusError, Message: "Both origin and destination cities are required."}, nil
	}

	originCode, err := t.iataCode(ctx, origin)
	if err != nil {
		return nil, err
	}
	destCode, err := t.iataCode(ctx, dest)
	if err != nil {
		return nil, err
	}
	if originCode == "" || destCode == "" {
		return &FlightSearch{
			Status:  StatusError,
			Message: "Could not find IATA code for one of the cities.",
			Date:    date,
		}, nil
	}

	params := url.Values{}
	params.Set("originLocationCode", originCode)
	params.Set("destinationLocationCode", destCode)
	params.Set("departureDate", date)
	params.Set("adults", "1")
	params.Set("max", fmt.Sprint(maxFlightOffers))

	var offers amadeusOffers
	if err := t.authorizedGet(ctx, "/v2/shopping/flight-offers", params, &offers); err != nil {
		return nil, err
	}

	search := &FlightSearch{Origin: originCode, Dest: destCode, Date: date}
	for _, o := range offers.Data {
		if len(o.Itineraries) == 0 || len(o.Itineraries[0].Segments) == 0 {
			continue
		}
		seg := o.Itineraries[0].Segments[0]
		search.Flights = append(search.Flights, Flight{
			Airline:          seg.CarrierCode,
			FlightNumber:     seg.Number,
			DepartureAirport: seg.Departure.IATACode,
			DepartureTime:    seg.Departure.At,
			ArrivalAirport:   seg.Arrival.IATACode,
			ArrivalTime:      seg.Arrival.At,
			Price:            o.Price.Total,
			Currency:         o.Price.Currency,
		})
	}

	if len(search.Flights) == 0 {
		search.Status = StatusError
		search.Message = "No flights found."
		return search, nil
	}

	search.Status = StatusSuccess
	return search, nil
}

// Summarize lists up to three offers.
func (t *FlightTool) Summarize(payload any) string {
	s, ok := payload.(*FlightSearch)
	if !ok || s == nil {
		return ""
	}
	if s.Status != StatusSuccess {
		if s.Message == "No flights found." {
			return "No flights found for the given route/date."
		}
		return "Flight search failed: " + s.Message
	}

	var b strings.Builder
	b.WriteString("Available Flights:")
	for i, f := range s.Flights {
		if i == maxSummaryFlights {
			break
		}
		fmt.Fprintf(&b, "\n- %s%s: %s %s -> %s %s", f.Airline, f.FlightNumber,
			f.DepartureAirport, f.DepartureTime, f.ArrivalAirport, f.ArrivalTime)
		if f.Price != "" {
			fmt.Fprintf(&b, " (%s %s)", f.Price, f.Currency)
		}
	}

	return b.String()
}

func (t *FlightTool) iataCode(ctx context.Context, city string) (string, error) {
	params := url.Values{}
	params.Set("keyword", city)
	params.Set("subType", "CITY")

	var locs amadeusLocations
	if err := t.authorizedGet(ctx, "/v1/reference-data/locations", params, &locs); err != nil {
		return "", fmt.Errorf("IATA lookup for %s: %w", city, err)
	}
	if len(locs.Data) == 0 {
		return "", nil
	}

	return locs.Data[0].IATACode, nil
}

// authorizedGet issues a bearer-authenticated GET, refreshing the token once
// when the upstream rejects it.
func (t *FlightTool) authorizedGet(ctx context.Context, path string, params url.Values, out any) error {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := t.accessToken(ctx)
		if err != nil {
			return err
		}

		header := http.Header{}
		header.Set("Authorization", "Bearer "+token)

		err = t.client.getJSON(ctx, t.baseURL+path, params, header, out)

		var se *statusError
		if errors.As(err, &se) && se.code == http.StatusUnauthorized && attempt == 0 {
			t.invalidateToken()
			continue
		}

		return err
	}

	return nil
}

func (t *FlightTool) accessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.token != "" && t.now().Before(t.tokenExp) {
		return t.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", t.clientID)
	form.Set("client_secret", t.clientSecret)

	var tok amadeusToken
	if err := t.client.postForm(ctx, t.baseURL+"/v1/security/oauth2/token", form, &tok); err != nil {
		return "", fmt.Errorf("amadeus authentication failed: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("amadeus authentication failed: empty access token")
	}

	t.token = tok.AccessToken
	t.tokenExp = t.now().Add(time.Duration(tok.ExpiresIn)*time.Second - tokenExpirySkew)

	return t.token, nil
}

func (t *FlightTool) invalidateToken() {
	t.mu.Lock()
	t.token = ""
	t.mu.Unlock()
}
