package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/helioserv/solarops-submissions/internal/model"
)

type SubmissionRepository struct {
	db *gorm.DB
}

func NewSubmissionRepository(db *gorm.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// ListFilter narrows the submission listing. Statuses is mandatory in
// practice: the service always scopes it by role before calling in.
type ListFilter struct {
	Statuses []model.SubmissionStatus
	Site     string
	Start    *time.Time
	End      *time.Time
	Page     int
	Limit    int
}

func (r *SubmissionRepository) Create(ctx context.Context, submission *model.Submission) error {
	if submission.ID == uuid.Nil {
		submission.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *SubmissionRepository) CreateBatch(ctx context.Context, submissions []model.Submission) error {
	if len(submissions) == 0 {
		return nil
	}
	for i := range submissions {
		if submissions[i].ID == uuid.Nil {
			submissions[i].ID = uuid.New()
		}
	}
	return r.db.WithContext(ctx).Create(&submissions).Error
}

func (r *SubmissionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Submission, error) {
	var submission model.Submission
	err := r.db.WithContext(ctx).First(&submission, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *SubmissionRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *SubmissionRepository) Save(ctx context.Context, submission *model.Submission) error {
	return r.db.WithContext(ctx).Save(submission).Error
}

// UpdateMeasures writes recalculated measures without touching status fields.
func (r *SubmissionRepository) UpdateMeasures(ctx context.Context, id uuid.UUID, invGen, abtExport float64) error {
	return r.db.WithContext(ctx).Model(&model.Submission{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"inv_gen":    invGen,
			"abt_export": abtExport,
			"updated_at": time.Now().UTC(),
		}).Error
}

func (r *SubmissionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&model.Submission{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *SubmissionRepository) DeleteAll(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("1 = 1").Delete(&model.Submission{})
	return result.RowsAffected, result.Error
}

func (r *SubmissionRepository) List(ctx context.Context, filter ListFilter) ([]model.Submission, int64, error) {
	query := r.applyFilter(ctx, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}

	var submissions []model.Submission
	err := query.
		Order("date DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&submissions).Error
	if err != nil {
		return nil, 0, err
	}
	return submissions, total, nil
}

func (r *SubmissionRepository) CountByStatus(ctx context.Context, filter ListFilter) (model.StatusCounts, error) {
	var rows []struct {
		Status model.SubmissionStatus
		Count  int64
	}
	err := r.applyFilter(ctx, filter).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return model.StatusCounts{}, err
	}

	var counts model.StatusCounts
	for _, row := range rows {
		counts.Total += row.Count
		switch row.Status {
		case model.StatusDraft:
			counts.Draft = row.Count
		case model.StatusSitePublish:
			counts.SitePublish = row.Count
		case model.StatusSendToHQ:
			counts.SendToHQApproval = row.Count
		case model.StatusHQApproved:
			counts.HQApproved = row.Count
		case model.StatusSiteHold:
			counts.SiteHold = row.Count
		}
	}
	return counts, nil
}

func (r *SubmissionRepository) DistinctSites(ctx context.Context) ([]string, error) {
	var sites []string
	err := r.db.WithContext(ctx).Model(&model.Submission{}).
		Distinct("site").
		Order("site ASC").
		Pluck("site", &sites).Error
	if err != nil {
		return nil, err
	}
	return sites, nil
}

// SiteDays returns every (site, date) pair present, for sync deduplication.
func (r *SubmissionRepository) SiteDays(ctx context.Context) ([]model.Submission, error) {
	var submissions []model.Submission
	err := r.db.WithContext(ctx).
		Select("id", "site", "date").
		Find(&submissions).Error
	if err != nil {
		return nil, err
	}
	return submissions, nil
}

func (r *SubmissionRepository) DistinctYears(ctx context.Context) ([]int, error) {
	var dates []time.Time
	err := r.db.WithContext(ctx).Model(&model.Submission{}).
		Pluck("date", &dates).Error
	if err != nil {
		return nil, err
	}

	seen := make(map[int]struct{}, len(dates))
	years := make([]int, 0, len(dates))
	for _, d := range dates {
		year := d.UTC().Year()
		if _, ok := seen[year]; ok {
			continue
		}
		seen[year] = struct{}{}
		years = append(years, year)
	}
	for i := 0; i < len(years); i++ {
		for j := i + 1; j < len(years); j++ {
			if years[j] > years[i] {
				years[i], years[j] = years[j], years[i]
			}
		}
	}
	return years, nil
}

func (r *SubmissionRepository) applyFilter(ctx context.Context, filter ListFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Model(&model.Submission{})
	if len(filter.Statuses) > 0 {
		query = query.Where("status IN ?", filter.Statuses)
	}
	if filter.Site != "" && filter.Site != "all" {
		query = query.Where("site = ?", filter.Site)
	}
	if filter.Start != nil {
		query = query.Where("date >= ?", *filter.Start)
	}
	if filter.End != nil {
		query = query.Where("date <= ?", *filter.End)
	}
	return query
}
