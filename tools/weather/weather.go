// Package weather adapts the Open-Meteo forecast, marine and geocoding APIs
// into registry tools.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/harwoodlabs/kingfisher/internal/cache"
	"github.com/harwoodlabs/kingfisher/tools"
)

const (
	forecastURL = "https://api.open-meteo.com/v1/forecast"
	marineURL   = "https://marine-api.open-meteo.com/v1/marine"
	geocodeURL  = "https://geocoding-api.open-meteo.com/v1/search"
)

// Current holds present-moment atmospheric conditions.
type Current struct {
	Temp        float64 `json:"temp"`
	WindSpeed   float64 `json:"wind_speed"`
	WeatherCode int     `json:"weather_code,omitempty"`
}

// Day is one daily forecast entry.
type Day struct {
	Date    string  `json:"date"`
	TempMax float64 `json:"temp_max"`
	TempMin float64 `json:"temp_min"`
	Precip  float64 `json:"precip"`
	WindMax float64 `json:"wind_max"`
}

// Payload is the weather tool result.
type Payload struct {
	Location Location `json:"location"`
	Current  Current  `json:"current"`
	Forecast []Day    `json:"forecast"`
}

// MarineCurrent holds present-moment sea state.
type MarineCurrent struct {
	WaveHeight    float64 `json:"wave_height"`
	WaveDirection float64 `json:"wave_direction"`
	WavePeriod    float64 `json:"wave_period"`
	SwellPeriod   float64 `json:"swell_period"`
}

// MarineDay is one daily marine forecast entry.
type MarineDay struct {
	Date          string  `json:"date"`
	WaveHeightMax float64 `json:"wave_height_max"`
	WaveDirection float64 `json:"wave_direction"`
	WavePeriodMax float64 `json:"wave_period_max"`
}

// MarinePayload is the marine tool result.
type MarinePayload struct {
	Location Location      `json:"location"`
	Current  MarineCurrent `json:"current"`
	Forecast []MarineDay   `json:"forecast"`
}

// Location is a resolved coordinate pair.
type Location struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder resolves place names to coordinates.
type Geocoder struct {
	client  *http.Client
	offline bool
}

func NewGeocoder(timeout time.Duration, offline bool) *Geocoder {
	return &Geocoder{client: &http.Client{Timeout: timeout}, offline: offline}
}

// Lookup geocodes a place name via the Open-Meteo geocoding API.
func (g *Geocoder) Lookup(ctx context.Context, place string) (Location, error) {
	if g.offline {
		return Location{Lat: -29.43, Lon: 153.03}, nil
	}
	endpoint := fmt.Sprintf("%s?name=%s&count=1&language=en&format=json", geocodeURL, url.QueryEscape(place))
	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return Location{}, err
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return Location{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Location{}, fmt.Errorf("geocoding status %d", resp.StatusCode)
	}
	var raw struct {
		Results []struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Location{}, err
	}
	if len(raw.Results) == 0 {
		return Location{}, fmt.Errorf("could not geocode %q", place)
	}
	return Location{Lat: raw.Results[0].Latitude, Lon: raw.Results[0].Longitude}, nil
}

// Options configure the weather and marine tools.
type Options struct {
	Cache        cache.Cache
	TTL          time.Duration
	Offline      bool
	ForecastDays int
	DefaultPlace string
	HTTPTimeout  time.Duration
}

func (o Options) normalized() Options {
	if o.ForecastDays <= 0 {
		o.ForecastDays = 3
	}
	if o.DefaultPlace == "" {
		o.DefaultPlace = "Clarence River, NSW"
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 10 * time.Second
	}
	return o
}

type baseTool struct {
	opts     Options
	client   *http.Client
	geocoder *Geocoder
}

func newBase(opts Options) baseTool {
	opts = opts.normalized()
	return baseTool{
		opts:     opts,
		client:   &http.Client{Timeout: opts.HTTPTimeout},
		geocoder: NewGeocoder(opts.HTTPTimeout, opts.Offline),
	}
}

// resolve extracts lat/lon from params, geocoding the place parameter (or the
// configured default place) when coordinates are absent.
func (b baseTool) resolve(ctx context.Context, params map[string]any) (Location, error) {
	lat, latOK := toFloat(params["lat"])
	lon, lonOK := toFloat(params["lon"])
	if latOK && lonOK {
		return Location{Lat: lat, Lon: lon}, nil
	}
	place, _ := params["place"].(string)
	if place == "" {
		place = b.opts.DefaultPlace
	}
	return b.geocoder.Lookup(ctx, place)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// WeatherTool fetches an atmospheric forecast.
type WeatherTool struct{ baseTool }

func NewWeatherTool(opts Options) *WeatherTool { return &WeatherTool{newBase(opts)} }

func (t *WeatherTool) Kind() tools.Kind { return tools.KindWeather }

func (t *WeatherTool) Call(ctx context.Context, params map[string]any) (any, error) {
	loc, err := t.resolve(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("could not resolve location: %w", err)
	}
	key := tools.CallKey(tools.KindWeather, map[string]any{"lat": loc.Lat, "lon": loc.Lon, "days": t.opts.ForecastDays})
	if b, ok := t.opts.Cache.Get(ctx, key); ok {
		var p Payload
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	}

	var p Payload
	if t.opts.Offline {
		p = stubWeather(loc)
	} else {
		p, err = t.fetch(ctx, loc)
		if err != nil {
			return nil, err
		}
	}
	if b, err := json.Marshal(p); err == nil {
		t.opts.Cache.Set(ctx, key, b, t.opts.TTL)
	}
	return p, nil
}

func (t *WeatherTool) fetch(ctx context.Context, loc Location) (Payload, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("current", "temperature_2m,wind_speed_10m,weather_code")
	q.Set("daily", "temperature_2m_max,temperature_2m_min,precipitation_sum,wind_speed_10m_max")
	q.Set("forecast_days", fmt.Sprintf("%d", t.opts.ForecastDays))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, "GET", forecastURL+"?"+q.Encode(), nil)
	if err != nil {
		return Payload{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return Payload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Payload{}, fmt.Errorf("weather API returned %d", resp.StatusCode)
	}

	var raw struct {
		Current struct {
			Temperature float64 `json:"temperature_2m"`
			WindSpeed   float64 `json:"wind_speed_10m"`
			WeatherCode int     `json:"weather_code"`
		} `json:"current"`
		Daily struct {
			Time    []string  `json:"time"`
			TempMax []float64 `json:"temperature_2m_max"`
			TempMin []float64 `json:"temperature_2m_min"`
			Precip  []float64 `json:"precipitation_sum"`
			WindMax []float64 `json:"wind_speed_10m_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return Payload{}, err
	}

	p := Payload{
		Location: loc,
		Current: Current{
			Temp:        raw.Current.Temperature,
			WindSpeed:   raw.Current.WindSpeed,
			WeatherCode: raw.Current.WeatherCode,
		},
	}
	for i := range raw.Daily.Time {
		d := Day{Date: raw.Daily.Time[i]}
		if i < len(raw.Daily.TempMax) {
			d.TempMax = raw.Daily.TempMax[i]
		}
		if i < len(raw.Daily.TempMin) {
			d.TempMin = raw.Daily.TempMin[i]
		}
		if i < len(raw.Daily.Precip) {
			d.Precip = raw.Daily.Precip[i]
		}
		if i < len(raw.Daily.WindMax) {
			d.WindMax = raw.Daily.WindMax[i]
		}
		p.Forecast = append(p.Forecast, d)
	}
	return p, nil
}

// MarineTool fetches a sea-state forecast.
type MarineTool struct{ baseTool }

func NewMarineTool(opts Options) *MarineTool { return &MarineTool{newBase(opts)} }

func (t *MarineTool) Kind() tools.Kind { return tools.KindMarine }

func (t *MarineTool) Call(ctx context.Context, params map[string]any) (any, error) {
	loc, err := t.resolve(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("could not resolve location: %w", err)
	}
	key := tools.CallKey(tools.KindMarine, map[string]any{"lat": loc.Lat, "lon": loc.Lon, "days": t.opts.ForecastDays})
	if b, ok := t.opts.Cache.Get(ctx, key); ok {
		var p MarinePayload
		if err := json.Unmarshal(b, &p); err == nil {
			return p, nil
		}
	}

	var p MarinePayload
	if t.opts.Offline {
		p = stubMarine(loc)
	} else {
		p, err = t.fetch(ctx, loc)
		if err != nil {
			return nil, err
		}
	}
	if b, err := json.Marshal(p); err == nil {
		t.opts.Cache.Set(ctx, key, b, t.opts.TTL)
	}
	return p, nil
}

func (t *MarineTool) fetch(ctx context.Context, loc Location) (MarinePayload, error) {
	q := url.Values{}
	q.Set("latitude", fmt.Sprintf("%.4f", loc.Lat))
	q.Set("longitude", fmt.Sprintf("%.4f", loc.Lon))
	q.Set("current", "wave_height,wave_direction,wave_period,swell_wave_period")
	q.Set("daily", "wave_height_max,wave_direction_dominant,wave_period_max")
	q.Set("forecast_days", fmt.Sprintf("%d", t.opts.ForecastDays))
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, "GET", marineURL+"?"+q.Encode(), nil)
	if err != nil {
		return MarinePayload{}, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return MarinePayload{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return MarinePayload{}, fmt.Errorf("marine API returned %d", resp.StatusCode)
	}

	var raw struct {
		Current struct {
			WaveHeight    float64 `json:"wave_height"`
			WaveDirection float64 `json:"wave_direction"`
			WavePeriod    float64 `json:"wave_period"`
			SwellPeriod   float64 `json:"swell_wave_period"`
		} `json:"current"`
		Daily struct {
			Time          []string  `json:"time"`
			WaveHeightMax []float64 `json:"wave_height_max"`
			WaveDirection []float64 `json:"wave_direction_dominant"`
			WavePeriodMax []float64 `json:"wave_period_max"`
		} `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return MarinePayload{}, err
	}

	p := MarinePayload{
		Location: loc,
		Current: MarineCurrent{
			WaveHeight:    raw.Current.WaveHeight,
			WaveDirection: raw.Current.WaveDirection,
			WavePeriod:    raw.Current.WavePeriod,
			SwellPeriod:   raw.Current.SwellPeriod,
		},
	}
	for i := range raw.Daily.Time {
		d := MarineDay{Date: raw.Daily.Time[i]}
		if i < len(raw.Daily.WaveHeightMax) {
			d.WaveHeightMax = raw.Daily.WaveHeightMax[i]
		}
		if i < len(raw.Daily.WaveDirection) {
			d.WaveDirection = raw.Daily.WaveDirection[i]
		}
		if i < len(raw.Daily.WavePeriodMax) {
			d.WavePeriodMax = raw.Daily.WavePeriodMax[i]
		}
		p.Forecast = append(p.Forecast, d)
	}
	return p, nil
}

func stubWeather(loc Location) Payload {
	return Payload{
		Location: loc,
		Current:  Current{Temp: 22.5, WindSpeed: 15.0},
		Forecast: []Day{
			{Date: "2025-10-12", TempMax: 25, TempMin: 18, Precip: 0.5},
			{Date: "2025-10-13", TempMax: 24, TempMin: 17, Precip: 1.2},
			{Date: "2025-10-14", TempMax: 23, TempMin: 16, Precip: 0.0},
		},
	}
}

func stubMarine(loc Location) MarinePayload {
	return MarinePayload{
		Location: loc,
		Current:  MarineCurrent{WaveHeight: 1.2, WaveDirection: 90, WavePeriod: 8, SwellPeriod: 9},
		Forecast: []MarineDay{
			{Date: "2025-10-12", WaveHeightMax: 1.5, WavePeriodMax: 9},
			{Date: "2025-10-13", WaveHeightMax: 1.8, WavePeriodMax: 10},
			{Date: "2025-10-14", WaveHeightMax: 1.3, WavePeriodMax: 8},
		},
	}
}
