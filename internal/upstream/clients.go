// Package upstream holds the HTTP clients for the sibling source-of-truth
// services: inverter telemetry, meter readings and weather. All fetches carry
// a bounded timeout; callers treat failures as "no data" so one slow upstream
// never aborts a batch.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultTimeout = 30 * time.Second

// InverterRecord is one per-site-per-day telemetry row. Values is a map of
// named inverter channels; entries may arrive as numbers or strings and are
// coerced by the calculator, not here.
type InverterRecord struct {
	SiteName string                 `json:"siteName"`
	Date     interface{}            `json:"date"`
	Values   map[string]interface{} `json:"inverterValues"`
}

type inverterRecordsResponse struct {
	Records []InverterRecord `json:"records"`
}

// MeterRecord is keyed by a "DD-MM-YYYY" date string, not an instant.
type MeterRecord struct {
	Date               string  `json:"date"`
	ActiveEnergyExport float64 `json:"activeEnergyExport"`
}

type meterRecordsResponse struct {
	Data []MeterRecord `json:"data"`
}

// WeatherRecord dates arrive in any of the formats dateutil accepts; poa may
// come back as a number or a numeric string depending on the feed.
type WeatherRecord struct {
	SiteName string      `json:"siteName"`
	Date     interface{} `json:"date"`
	POA      interface{} `json:"poa"`
}

type weatherRecordsResponse struct {
	Records []WeatherRecord `json:"records"`
}

type InverterClient struct {
	baseURL string
	http    *http.Client
}

func NewInverterClient(baseURL string, timeout time.Duration) *InverterClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &InverterClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *InverterClient) Records(ctx context.Context, limit int) ([]InverterRecord, error) {
	var payload inverterRecordsResponse
	endpoint := fmt.Sprintf("%s/inverter/records?limit=%d", c.baseURL, limit)
	if err := getJSON(ctx, c.http, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

func (c *InverterClient) Sites(ctx context.Context) ([]string, error) {
	var sites []string
	endpoint := c.baseURL + "/inverter/sites"
	if err := getJSON(ctx, c.http, endpoint, &sites); err != nil {
		return nil, err
	}
	return sites, nil
}

type MeterClient struct {
	baseURL string
	http    *http.Client
}

func NewMeterClient(baseURL string, timeout time.Duration) *MeterClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &MeterClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

// Records fetches meter rows for one rendered day. The meter store is keyed
// by the DD-MM-YYYY string, so the date goes out verbatim as a query param.
func (c *MeterClient) Records(ctx context.Context, date string, limit int) ([]MeterRecord, error) {
	var payload meterRecordsResponse
	endpoint := c.baseURL + "?" + url.Values{
		"date":  []string{date},
		"limit": []string{strconv.Itoa(limit)},
	}.Encode()
	if err := getJSON(ctx, c.http, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Data, nil
}

type WeatherClient struct {
	baseURL string
	http    *http.Client
}

func NewWeatherClient(baseURL string, timeout time.Duration) *WeatherClient {
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &WeatherClient{baseURL: baseURL, http: &http.Client{Timeout: timeout}}
}

func (c *WeatherClient) Records(ctx context.Context, limit int) ([]WeatherRecord, error) {
	var payload weatherRecordsResponse
	endpoint := fmt.Sprintf("%s?limit=%d", c.baseURL, limit)
	if err := getJSON(ctx, c.http, endpoint, &payload); err != nil {
		return nil, err
	}
	return payload.Records, nil
}

func getJSON(ctx context.Context, client *http.Client, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("upstream returned status %d for %s", resp.StatusCode, endpoint)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
