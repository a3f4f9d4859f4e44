package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/helioserv/solarops-submissions/internal/model"
)

// SatelliteRepository issues the status-mirroring updates against the
// collections owned by the sibling services. Every method is a plain
// update-many with no transaction around it: the propagator attempts each
// one independently.
type SatelliteRepository struct {
	db *gorm.DB
}

func NewSatelliteRepository(db *gorm.DB) *SatelliteRepository {
	return &SatelliteRepository{db: db}
}

func (r *SatelliteRepository) UpdateInverterStatus(ctx context.Context, site string, start, end time.Time, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.InverterRecord{}).
		Where("site_name = ? AND date >= ? AND date <= ?", site, start, end).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

func (r *SatelliteRepository) UpdateWeatherStatus(ctx context.Context, site, date string, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.WeatherRecord{}).
		Where("site_name = ? AND date = ?", site, date).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

// UpdateMeterStatus matches by date only; meter readings are plant-wide.
func (r *SatelliteRepository) UpdateMeterStatus(ctx context.Context, date string, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.MeterRecord{}).
		Where("date = ?", date).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

func (r *SatelliteRepository) FindSite(ctx context.Context, siteName string) (*model.Site, error) {
	var site model.Site
	err := r.db.WithContext(ctx).First(&site, "site_name = ?", siteName).Error
	if err != nil {
		return nil, err
	}
	return &site, nil
}

func (r *SatelliteRepository) UpdateDailyGenerationStatus(ctx context.Context, siteID uuid.UUID, start, end time.Time, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.DailyGeneration{}).
		Where("site_id = ? AND date >= ? AND date <= ?", siteID, start, end).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

// UpdateMonthlyGenerationStatus takes the aggregate store's zero-based month.
func (r *SatelliteRepository) UpdateMonthlyGenerationStatus(ctx context.Context, siteID uuid.UUID, year, month int, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.MonthlyGeneration{}).
		Where("site_id = ? AND year = ? AND month = ?", siteID, year, month).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

func (r *SatelliteRepository) UpdateBuildGenerationStatus(ctx context.Context, siteID uuid.UUID, year int, status model.SubmissionStatus) (int64, error) {
	result := r.db.WithContext(ctx).Model(&model.BuildGeneration{}).
		Where("site_id = ? AND year = ?", siteID, year).
		Updates(statusPatch(status))
	return result.RowsAffected, result.Error
}

func statusPatch(status model.SubmissionStatus) map[string]interface{} {
	return map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
}
