package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/tanishra/smartinfo/internal/util"
	"github.com/tanishra/smartinfo/tool"
)

// WeatherToolName is the name the oracle uses to request weather.
const WeatherToolName = "get_weather_info"

// DefaultWeatherstackURL is the current-conditions endpoint.
const DefaultWeatherstackURL = "http://api.weatherstack.com/current"

// WeatherArgs are the arguments of get_weather_info.
type WeatherArgs struct {
	City string `json:"city" description:"City name (e.g., 'Delhi', 'New York', 'Tokyo')" minLength:"1"`
}

// WeatherReport is the payload of get_weather_info.
type WeatherReport struct {
	Status          string   `json:"status"`
	Message         string   `json:"message,omitempty"`
	City            string   `json:"city,omitempty"`
	Country         string   `json:"country,omitempty"`
	Region          string   `json:"region,omitempty"`
	TemperatureC    *float64 `json:"temperature_c,omitempty"`
	FeelsLikeC      *float64 `json:"feelslike_c,omitempty"`
	Humidity        *float64 `json:"humidity,omitempty"`
	Pressure        *float64 `json:"pressure,omitempty"`
	WindSpeed       *float64 `json:"wind_speed,omitempty"`
	WindDir         string   `json:"wind_dir,omitempty"`
	Descriptions    []string `json:"weather_descriptions,omitempty"`
	ObservationTime string   `json:"observation_time,omitempty"`
	Timestamp       string   `json:"timestamp,omitempty"`
}

type weatherstackResponse struct {
	Location struct {
		Name    string `json:"name"`
		Country string `json:"country"`
		Region  string `json:"region"`
	} `json:"location"`
	Current struct {
		Temperature         *float64 `json:"temperature"`
		FeelsLike           *float64 `json:"feelslike"`
		Humidity            *float64 `json:"humidity"`
		Pressure            *float64 `json:"pressure"`
		WindSpeed           *float64 `json:"wind_speed"`
		WindDir             string   `json:"wind_dir"`
		WeatherDescriptions []string `json:"weather_descriptions"`
		ObservationTime     string   `json:"observation_time"`
	} `json:"current"`
	Error *upstreamError `json:"error"`
}

type upstreamError struct {
	Code int    `json:"code"`
	Type string `json:"type"`
	Info string `json:"info"`
}

// WeatherOptions configure a WeatherTool.
type WeatherOptions struct {
	ClientOptions
	// BaseURL overrides DefaultWeatherstackURL.
	BaseURL string
	Now     func() time.Time
}

// WeatherTool reports current weather conditions for a city.
type WeatherTool struct {
	aliasNormalizer
	apiKey  string
	baseURL string
	client  *httpClient
	now     func() time.Time
}

var (
	_ tool.Tool               = (*WeatherTool)(nil)
	_ tool.Summarizer         = (*WeatherTool)(nil)
	_ tool.ArgumentNormalizer = (*WeatherTool)(nil)
)

// NewWeatherTool creates a WeatherTool authenticating with apiKey.
func NewWeatherTool(apiKey string, optFns ...func(o *WeatherOptions)) *WeatherTool {
	opts := WeatherOptions{BaseURL: DefaultWeatherstackURL, Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &WeatherTool{
		apiKey:  apiKey,
		baseURL: opts.BaseURL,
		client:  newHTTPClient("weatherstack", opts.ClientOptions),
		now:     opts.Now,
	}
}

func (t *WeatherTool) Name() string { return WeatherToolName }

func (t *WeatherTool) Description() string {
	return "Retrieve the current weather for a given city, including temperature, humidity and wind information."
}

func (t *WeatherTool) Parameters() map[string]any { return util.CreateSchema(WeatherArgs{}) }

// Call fetches the current conditions for args["city"].
func (t *WeatherTool) Call(ctx context.Context, args map[string]any) (any, error) {
	city := strings.TrimSpace(stringArg(args, "city"))
	if city == "" {
		return &WeatherReport{Status: StatusError, Message: "City name is required."}, nil
	}

	params := url.Values{}
	params.Set("access_key", t.apiKey)
	params.Set("query", city)

	var resp weatherstackResponse
	if err := t.client.getJSON(ctx, t.baseURL, params, nil, &resp); err != nil {
		return nil, err
	}

	if resp.Error != nil {
		msg := resp.Error.Info
		if msg == "" {
			msg = "Unknown error from Weatherstack API."
		}
		return &WeatherReport{Status: StatusError, Message: msg, City: city}, nil
	}

	name := resp.Location.Name
	if name == "" {
		name = city
	}

	return &WeatherReport{
		Status:          StatusSuccess,
		City:            name,
		Country:         resp.Location.Country,
		Region:          resp.Location.Region,
		TemperatureC:    resp.Current.Temperature,
		FeelsLikeC:      resp.Current.FeelsLike,
		Humidity:        resp.Current.Humidity,
		Pressure:        resp.Current.Pressure,
		WindSpeed:       resp.Current.WindSpeed,
		WindDir:         resp.Current.WindDir,
		Descriptions:    resp.Current.WeatherDescriptions,
		ObservationTime: resp.Current.ObservationTime,
		Timestamp:       t.now().Format(time.RFC3339),
	}, nil
}

// Summarize renders a weather report.
func (t *WeatherTool) Summarize(payload any) string {
	r, ok := payload.(*WeatherReport)
	if !ok || r == nil {
		return ""
	}
	if r.Status != StatusSuccess {
		return fmt.Sprintf("Weather lookup failed: %s", r.Message)
	}

	condition := "N/A"
	if len(r.Descriptions) > 0 {
		condition = strings.Join(r.Descriptions, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Weather Report for %s:\n", r.City)
	fmt.Fprintf(&b, "- Temperature: %s°C\n", formatNumber(r.TemperatureC))
	fmt.Fprintf(&b, "- Condition: %s\n", condition)
	fmt.Fprintf(&b, "- Feels Like: %s°C\n", formatNumber(r.FeelsLikeC))
	fmt.Fprintf(&b, "- Humidity: %s%%\n", formatNumber(r.Humidity))
	fmt.Fprintf(&b, "- Wind Speed: %s km/h", formatNumber(r.WindSpeed))

	return b.String()
}
