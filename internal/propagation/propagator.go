// Package propagation mirrors a submission's status onto the satellite
// collections that are correlated with it only by site name and calendar
// day. The submission itself is the source of truth; each mirror update is
// best-effort and independently attempted, so a failed target never blocks
// the others or the originating status change.
package propagation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/helioserv/solarops-submissions/internal/dateutil"
	"github.com/helioserv/solarops-submissions/internal/model"
)

// Store is the satellite update surface; repository.SatelliteRepository is
// the production implementation.
type Store interface {
	UpdateInverterStatus(ctx context.Context, site string, start, end time.Time, status model.SubmissionStatus) (int64, error)
	UpdateWeatherStatus(ctx context.Context, site, date string, status model.SubmissionStatus) (int64, error)
	UpdateMeterStatus(ctx context.Context, date string, status model.SubmissionStatus) (int64, error)
	FindSite(ctx context.Context, siteName string) (*model.Site, error)
	UpdateDailyGenerationStatus(ctx context.Context, siteID uuid.UUID, start, end time.Time, status model.SubmissionStatus) (int64, error)
	UpdateMonthlyGenerationStatus(ctx context.Context, siteID uuid.UUID, year, month int, status model.SubmissionStatus) (int64, error)
	UpdateBuildGenerationStatus(ctx context.Context, siteID uuid.UUID, year int, status model.SubmissionStatus) (int64, error)
}

// TargetResult is the outcome of one satellite update.
type TargetResult struct {
	Target  string
	Matched int64
	Err     error
}

// Report aggregates the per-target outcomes of one propagation run.
type Report struct {
	Site    string
	Date    string
	Status  model.SubmissionStatus
	Results []TargetResult
}

// Failed returns the targets that errored.
func (r Report) Failed() []TargetResult {
	var failed []TargetResult
	for _, result := range r.Results {
		if result.Err != nil {
			failed = append(failed, result)
		}
	}
	return failed
}

type Propagator struct {
	store Store
	log   zerolog.Logger
}

func NewPropagator(store Store, log zerolog.Logger) *Propagator {
	return &Propagator{store: store, log: log}
}

// SyncStatus pushes newStatus onto every satellite record correlated with
// (site, date). Instant-keyed collections match on the inclusive UTC day
// range, string-keyed ones on the rendered DD-MM-YYYY day, and the
// generation aggregates on site registry id + calendar period. Re-running
// with the same inputs is a no-op difference.
func (p *Propagator) SyncStatus(ctx context.Context, site string, date time.Time, newStatus model.SubmissionStatus) Report {
	dayStart, dayEnd := dateutil.DayRange(date)
	rendered := dateutil.FormatDDMMYYYY(date)
	year := dayStart.Year()
	monthZeroBased := int(dayStart.Month()) - 1

	report := Report{Site: site, Date: rendered, Status: newStatus}

	matched, err := p.store.UpdateInverterStatus(ctx, site, dayStart, dayEnd, newStatus)
	report.Results = append(report.Results, p.observe("inverter_records", matched, err))

	matched, err = p.store.UpdateWeatherStatus(ctx, site, rendered, newStatus)
	report.Results = append(report.Results, p.observe("weather_records", matched, err))

	matched, err = p.store.UpdateMeterStatus(ctx, rendered, newStatus)
	report.Results = append(report.Results, p.observe("meter_records", matched, err))

	siteDoc, err := p.store.FindSite(ctx, site)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		// Unregistered sites have no aggregates to mirror.
		p.log.Debug().Str("site", site).Msg("site not in registry, skipping generation aggregates")
	case err != nil:
		report.Results = append(report.Results, p.observe("site_registry", 0, err))
	default:
		matched, err = p.store.UpdateDailyGenerationStatus(ctx, siteDoc.ID, dayStart, dayEnd, newStatus)
		report.Results = append(report.Results, p.observe("daily_generations", matched, err))

		matched, err = p.store.UpdateMonthlyGenerationStatus(ctx, siteDoc.ID, year, monthZeroBased, newStatus)
		report.Results = append(report.Results, p.observe("monthly_generations", matched, err))

		matched, err = p.store.UpdateBuildGenerationStatus(ctx, siteDoc.ID, year, newStatus)
		report.Results = append(report.Results, p.observe("build_generations", matched, err))
	}

	if failed := report.Failed(); len(failed) > 0 {
		p.log.Error().
			Str("site", site).
			Str("date", rendered).
			Str("status", string(newStatus)).
			Int("failed_targets", len(failed)).
			Msg("status propagation completed with failures")
	} else {
		p.log.Info().
			Str("site", site).
			Str("date", rendered).
			Str("status", string(newStatus)).
			Msg("status propagation complete")
	}
	return report
}

func (p *Propagator) observe(target string, matched int64, err error) TargetResult {
	if err != nil {
		p.log.Warn().Err(err).Str("target", target).Msg("satellite status update failed")
	} else if matched > 0 {
		p.log.Info().Str("target", target).Int64("matched", matched).Msg("satellite status updated")
	}
	return TargetResult{Target: target, Matched: matched, Err: err}
}
