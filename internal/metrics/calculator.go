// Package metrics derives the three daily energy measures a submission
// carries. All calculators treat "no data" and "fetch failed" the same way:
// they return 0 and log, because bulk recomputes and review screens must
// never crash on missing upstream data — a human checks the numbers before
// the record is promoted.
package metrics

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/helioserv/solarops-submissions/internal/dateutil"
	"github.com/helioserv/solarops-submissions/internal/upstream"
)

const (
	inverterFetchLimit = 1000
	meterFetchLimit    = 1000
	weatherFetchLimit  = 5000
)

type InverterSource interface {
	Records(ctx context.Context, limit int) ([]upstream.InverterRecord, error)
}

type MeterSource interface {
	Records(ctx context.Context, date string, limit int) ([]upstream.MeterRecord, error)
}

type WeatherSource interface {
	Records(ctx context.Context, limit int) ([]upstream.WeatherRecord, error)
}

type Calculator struct {
	inverter InverterSource
	meter    MeterSource
	weather  WeatherSource
	log      zerolog.Logger
}

func NewCalculator(inverter InverterSource, meter MeterSource, weather WeatherSource, log zerolog.Logger) *Calculator {
	return &Calculator{inverter: inverter, meter: meter, weather: weather, log: log}
}

// Values is one calculation result for a (site, day) pair, in kWh except POA
// which is kWh/m².
type Values struct {
	InvGen    float64 `json:"invGen"`
	AbtExport float64 `json:"abtExport"`
	POA       float64 `json:"poa"`
}

// CalculateAll runs the three calculators concurrently; they hit independent
// sources and have no ordering dependency.
func (c *Calculator) CalculateAll(ctx context.Context, site string, date time.Time) Values {
	var values Values
	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		values.InvGen = c.InverterGeneration(ctx, site, date)
	}()
	go func() {
		defer wg.Done()
		values.AbtExport = c.ABTExport(ctx, site, date)
	}()
	go func() {
		defer wg.Done()
		values.POA = c.POA(ctx, site, date)
	}()
	wg.Wait()
	return values
}

// InverterGeneration sums every numeric channel value across the site's
// inverter records for the day and converts Wh to kWh. Site match is
// case-sensitive; non-numeric channel entries are skipped.
func (c *Calculator) InverterGeneration(ctx context.Context, site string, date time.Time) float64 {
	records, err := c.inverter.Records(ctx, inverterFetchLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("site", site).Msg("inverter fetch failed, using 0")
		return 0
	}

	target := dateutil.Normalize(date)
	total := 0.0
	matched := 0
	for _, record := range records {
		if record.SiteName != site {
			continue
		}
		recordDate, err := dateutil.Parse(record.Date)
		if err != nil || !recordDate.Equal(target) {
			continue
		}
		matched++
		for _, raw := range record.Values {
			if value, ok := toNumber(raw); ok {
				total += value
			}
		}
	}
	if matched == 0 {
		c.log.Debug().Str("site", site).Str("date", dateutil.FormatISO(target)).Msg("no inverter records for day")
		return 0
	}
	return total / 1000
}

// ABTExport sums activeEnergyExport across the meter rows whose stored
// DD-MM-YYYY string equals the rendered day. Meter data is plant-wide, so the
// site only appears in logs.
func (c *Calculator) ABTExport(ctx context.Context, site string, date time.Time) float64 {
	rendered := dateutil.FormatDDMMYYYY(date)
	if rendered == "" {
		return 0
	}

	records, err := c.meter.Records(ctx, rendered, meterFetchLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("site", site).Str("date", rendered).Msg("meter fetch failed, using 0")
		return 0
	}

	total := 0.0
	for _, record := range records {
		if record.Date == rendered {
			total += record.ActiveEnergyExport
		}
	}
	return round2(total)
}

// POA sums plane-of-array irradiance for the day. Weather rows carry dates in
// any supported format, so each one is re-parsed and compared through the
// same DD-MM-YYYY rendering; the site match is case-insensitive.
func (c *Calculator) POA(ctx context.Context, site string, date time.Time) float64 {
	rendered := dateutil.FormatDDMMYYYY(date)
	if rendered == "" {
		return 0
	}

	records, err := c.weather.Records(ctx, weatherFetchLimit)
	if err != nil {
		c.log.Warn().Err(err).Str("site", site).Str("date", rendered).Msg("weather fetch failed, using 0")
		return 0
	}

	total := 0.0
	for _, record := range records {
		if !strings.EqualFold(record.SiteName, site) {
			continue
		}
		recordDate, err := dateutil.Parse(record.Date)
		if err != nil {
			c.log.Debug().Interface("date", record.Date).Msg("unparseable weather date, skipping")
			continue
		}
		if dateutil.FormatDDMMYYYY(recordDate) != rendered {
			continue
		}
		if value, ok := toNumber(record.POA); ok {
			total += value
		}
	}
	return round2(total / 1000)
}

func toNumber(raw interface{}) (float64, bool) {
	switch v := raw.(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case string:
		value, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		return value, true
	default:
		return 0, false
	}
}

func round2(value float64) float64 {
	return math.Round(value*100) / 100
}
