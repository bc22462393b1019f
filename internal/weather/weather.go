// Package weather looks up current conditions for operators that run
// weather-sensitive businesses.
package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/chatdesk/pkg/logging"
)

// ErrUnavailable covers every lookup failure: timeouts, bad responses and
// missing configuration.
var ErrUnavailable = errors.New("weather: unavailable")

var tracer = otel.Tracer("chatdesk.internal.weather")

// Snapshot is the current conditions at a location.
type Snapshot struct {
	Location    string
	Description string
	TempF       float64
	FeelsLikeF  float64
	WindMPH     float64
	Humidity    int
}

// Client looks up current conditions.
type Client interface {
	Lookup(ctx context.Context, location string) (*Snapshot, error)
}

// OpenWeatherClient calls the OpenWeatherMap current-weather endpoint.
type OpenWeatherClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewOpenWeatherClient builds a client with an explicit request timeout.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration, logger *logging.Logger) *OpenWeatherClient {
	if logger == nil {
		logger = logging.Default()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &OpenWeatherClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type owmResponse struct {
	Name    string `json:"name"`
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

// Lookup fetches current conditions in imperial units.
func (c *OpenWeatherClient) Lookup(ctx context.Context, location string) (*Snapshot, error) {
	location = strings.TrimSpace(location)
	if c == nil || c.apiKey == "" || location == "" {
		return nil, ErrUnavailable
	}
	ctx, span := tracer.Start(ctx, "weather.lookup")
	defer span.End()
	span.SetAttributes(attribute.String("chatdesk.weather.location", location))

	q := url.Values{}
	q.Set("q", location)
	q.Set("appid", c.apiKey)
	q.Set("units", "imperial")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/weather?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("weather lookup failed", "location", location, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("status %d", resp.StatusCode)
		span.RecordError(err)
		c.logger.Warn("weather lookup rejected", "location", location, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	var parsed owmResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("%w: decode: %v", ErrUnavailable, err)
	}
	snap := &Snapshot{
		Location:   parsed.Name,
		TempF:      parsed.Main.Temp,
		FeelsLikeF: parsed.Main.FeelsLike,
		WindMPH:    parsed.Wind.Speed,
		Humidity:   parsed.Main.Humidity,
	}
	if snap.Location == "" {
		snap.Location = location
	}
	if len(parsed.Weather) > 0 {
		snap.Description = parsed.Weather[0].Description
	}
	return snap, nil
}

// FormatReply renders a snapshot as a customer-facing message.
func FormatReply(s *Snapshot, businessName string) string {
	desc := s.Description
	if desc == "" {
		desc = "current conditions unavailable"
	}
	msg := fmt.Sprintf("Right now near %s it's %d°F (feels like %d°F) with %s, wind around %d mph and %d%% humidity.",
		s.Location, round(s.TempF), round(s.FeelsLikeF), desc, round(s.WindMPH), s.Humidity)
	if businessName != "" {
		msg += fmt.Sprintf(" Conditions can change quickly, so check with %s before you head out.", businessName)
	}
	return msg
}

// DeflectionReply is used when a lookup fails.
func DeflectionReply(team string) string {
	if team == "" {
		team = "our team"
	}
	return fmt.Sprintf("I can't check live weather right now. %s can let you know about conditions and any schedule changes.", capitalize(team))
}

func round(v float64) int {
	return int(math.Round(v))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
