package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"cityweather/internal/metrics"
	"cityweather/internal/models"
	"cityweather/internal/validator"
)

const (
	DefaultBaseURL     = "https://api.openweathermap.org/data/2.5"
	DefaultIconBaseURL = "https://openweathermap.org/img/wn"
	DefaultTimeout     = 10 * time.Second

	currentWeatherPath = "/weather"
	unknownAPIError    = "Unknown error occurred"
)

// Options configures an OpenWeatherClient. Zero values fall back to defaults.
type Options struct {
	BaseURL    string
	APIKey     string
	Units      string // "metric" or "imperial"
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger

	// Offline overrides the client's own connectivity tracking when set
	Offline      func() bool
	Connectivity *Connectivity
	Now          func() time.Time
}

// OpenWeatherClient is a client for the OpenWeatherMap current weather API
type OpenWeatherClient struct {
	baseURL      string
	apiKey       string
	units        string
	client       *http.Client
	logger       *slog.Logger
	classifier   Classifier
	connectivity *Connectivity
	now          func() time.Time
}

// NewOpenWeatherClient creates a new OpenWeatherMap API client
func NewOpenWeatherClient(opts Options) *OpenWeatherClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Units == "" {
		opts.Units = UnitsMetric
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Connectivity == nil {
		opts.Connectivity = &Connectivity{}
	}
	if opts.Offline == nil {
		opts.Offline = opts.Connectivity.Offline
	}

	return &OpenWeatherClient{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiKey:       opts.APIKey,
		units:        opts.Units,
		client:       opts.HTTPClient,
		logger:       opts.Logger,
		classifier:   Classifier{Offline: opts.Offline},
		connectivity: opts.Connectivity,
		now:          opts.Now,
	}
}

// Offline reports whether the last request failed to reach the provider
func (c *OpenWeatherClient) Offline() bool {
	return c.connectivity.Offline()
}

// Units returns the unit system requested from the provider
func (c *OpenWeatherClient) Units() string {
	return c.units
}

// BuildURL builds the current weather request URL for a city
func (c *OpenWeatherClient) BuildURL(cityName string) string {
	params := url.Values{}
	params.Set("q", cityName)
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)

	return c.baseURL + currentWeatherPath + "?" + params.Encode()
}

// GetCurrentWeather validates cityName, fetches its current conditions and
// transforms them. Every error returned is a *LookupError whose message is
// safe to show to the user.
func (c *OpenWeatherClient) GetCurrentWeather(ctx context.Context, cityName string) (*models.WeatherRecord, error) {
	start := time.Now()

	if err := validator.ValidateCityName(cityName).Err(); err != nil {
		metrics.RecordWeatherRequest(string(KindValidation), time.Since(start))
		return nil, &LookupError{Kind: KindValidation, Message: err.Error()}
	}

	city := strings.TrimSpace(cityName)
	record, err := c.fetch(ctx, city)
	if err != nil {
		kind := KindOf(err)
		msg := c.classifier.Classify(err)
		metrics.RecordWeatherRequest(string(kind), time.Since(start))
		c.logger.Warn("Weather lookup failed", "city", city, "kind", kind, "error", err)
		return nil, &LookupError{Kind: kind, Message: msg}
	}

	metrics.RecordWeatherRequest("success", time.Since(start))
	c.logger.Debug("Weather lookup succeeded", "city", record.CityName, "country", record.Country)
	return record, nil
}

func (c *OpenWeatherClient) fetch(ctx context.Context, city string) (*models.WeatherRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BuildURL(city), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		// a cancelled caller says nothing about the network
		if ctx.Err() == nil {
			c.connectivity.MarkOffline()
		}
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.connectivity.MarkOnline()
		return nil, handleAPIError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() == nil {
			c.connectivity.MarkOffline()
		}
		return nil, &MalformedResponseError{Reason: "failed to read response", Err: err}
	}
	c.connectivity.MarkOnline()

	var payload models.RawWeatherPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, &MalformedResponseError{Reason: "failed to decode response", Err: err}
	}

	return Transform(&payload, c.units, c.now())
}

// handleAPIError turns a non-2xx response into an *HTTPStatusError, taking the
// message from the JSON body when there is one
func handleAPIError(resp *http.Response) error {
	message := unknownAPIError

	var body struct {
		Message string `json:"message"`
	}
	data, readErr := io.ReadAll(resp.Body)
	if readErr == nil && json.Unmarshal(data, &body) == nil {
		if body.Message != "" {
			message = body.Message
		}
	} else if text := http.StatusText(resp.StatusCode); text != "" {
		message = text
	}

	return &HTTPStatusError{Status: resp.StatusCode, Message: message}
}
