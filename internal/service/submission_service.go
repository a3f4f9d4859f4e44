package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/helioserv/solarops-submissions/internal/config"
	"github.com/helioserv/solarops-submissions/internal/dateutil"
	"github.com/helioserv/solarops-submissions/internal/metrics"
	"github.com/helioserv/solarops-submissions/internal/model"
	"github.com/helioserv/solarops-submissions/internal/propagation"
	"github.com/helioserv/solarops-submissions/internal/repository"
	"github.com/helioserv/solarops-submissions/internal/upstream"
)

// Calculator computes the derived measures; metrics.Calculator is the
// production implementation.
type Calculator interface {
	CalculateAll(ctx context.Context, site string, date time.Time) metrics.Values
	InverterGeneration(ctx context.Context, site string, date time.Time) float64
	ABTExport(ctx context.Context, site string, date time.Time) float64
}

// StatusPropagator mirrors a status change onto the satellite collections.
type StatusPropagator interface {
	SyncStatus(ctx context.Context, site string, date time.Time, status model.SubmissionStatus) propagation.Report
}

// InverterSource provides raw inverter rows and the site list for sync.
type InverterSource interface {
	Records(ctx context.Context, limit int) ([]upstream.InverterRecord, error)
	Sites(ctx context.Context) ([]string, error)
}

type SubmissionService struct {
	repo       *repository.SubmissionRepository
	calc       Calculator
	propagator StatusPropagator
	inverter   InverterSource
	log        zerolog.Logger

	recalcBatchSize int
	syncFetchLimit  int
	propTimeout     time.Duration

	background sync.WaitGroup
}

func NewSubmissionService(
	repo *repository.SubmissionRepository,
	calc Calculator,
	propagator StatusPropagator,
	inverter InverterSource,
	cfg *config.Config,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		repo:            repo,
		calc:            calc,
		propagator:      propagator,
		inverter:        inverter,
		log:             log,
		recalcBatchSize: cfg.Submissions.RecalcBatchSize,
		syncFetchLimit:  cfg.Submissions.SyncFetchLimit,
		propTimeout:     cfg.Upstream.Timeout,
	}
}

// Wait blocks until in-flight propagation goroutines finish. Called on
// shutdown so mirror updates are not abandoned mid-flight.
func (s *SubmissionService) Wait() {
	s.background.Wait()
}

// Calculate computes the three measures for one (site, day) concurrently.
func (s *SubmissionService) Calculate(ctx context.Context, site, rawDate string) (metrics.Values, error) {
	if strings.TrimSpace(site) == "" || strings.TrimSpace(rawDate) == "" {
		return metrics.Values{}, fmt.Errorf("%w: site and date are required", ErrInvalidInput)
	}
	date, err := dateutil.ParseString(rawDate)
	if err != nil {
		return metrics.Values{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	values := s.calc.CalculateAll(ctx, site, date)
	values.InvGen = round2(values.InvGen)
	values.AbtExport = round2(values.AbtExport)
	values.POA = round2(values.POA)
	return values, nil
}

// Sites merges the sites known to submissions with the inverter source's
// site list. The upstream half is optional: if it is down the local list is
// still served.
func (s *SubmissionService) Sites(ctx context.Context) ([]string, error) {
	dbSites, err := s.repo.DistinctSites(ctx)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]struct{}, len(dbSites))
	for _, site := range dbSites {
		if site != "" {
			merged[site] = struct{}{}
		}
	}

	upstreamSites, err := s.inverter.Sites(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("inverter site list unavailable, serving database sites only")
	} else {
		for _, site := range upstreamSites {
			if site != "" {
				merged[site] = struct{}{}
			}
		}
	}

	sites := make([]string, 0, len(merged))
	for site := range merged {
		sites = append(sites, site)
	}
	sort.Strings(sites)
	return sites, nil
}

func (s *SubmissionService) Years(ctx context.Context) ([]int, error) {
	return s.repo.DistinctYears(ctx)
}

// ListQuery carries the caller's listing filters before role scoping.
type ListQuery struct {
	Site      string
	Status    string
	Month     int
	Year      int
	StartDate string
	EndDate   string
	Page      int
	Limit     int
}

type ListResult struct {
	Submissions []model.Submission `json:"submissions"`
	Total       int64              `json:"total"`
	Page        int                `json:"page"`
	Limit       int                `json:"limit"`
	TotalPages  int                `json:"totalPages"`
}

func (s *SubmissionService) List(ctx context.Context, principal model.Principal, query ListQuery) (*ListResult, error) {
	filter, err := buildFilter(principal, query)
	if err != nil {
		return nil, err
	}

	submissions, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 100
	}
	return &ListResult{
		Submissions: submissions,
		Total:       total,
		Page:        page,
		Limit:       limit,
		TotalPages:  int(math.Ceil(float64(total) / float64(limit))),
	}, nil
}

func (s *SubmissionService) Stats(ctx context.Context, principal model.Principal, query ListQuery) (model.StatusCounts, error) {
	filter, err := buildFilter(principal, query)
	if err != nil {
		return model.StatusCounts{}, err
	}
	return s.repo.CountByStatus(ctx, filter)
}

// CreateInput holds an incoming submission. Measures left nil are filled by
// the calculator when AutoCalculate is set or the value is missing.
type CreateInput struct {
	Site          string
	Date          string
	InvGen        *float64
	AbtExport     *float64
	POA           *float64
	Status        model.SubmissionStatus
	AutoCalculate bool
}

func (s *SubmissionService) Create(ctx context.Context, input CreateInput) (*model.Submission, error) {
	submission, err := s.buildSubmission(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, submission); err != nil {
		return nil, err
	}
	return submission, nil
}

// BulkCreate validates and persists many submissions at once. Rows that need
// auto-calculation hit the upstream services, so building is chunked the same
// way recalculation is.
func (s *SubmissionService) BulkCreate(ctx context.Context, inputs []CreateInput) (int, error) {
	if len(inputs) == 0 {
		return 0, fmt.Errorf("%w: submissions array is empty", ErrInvalidInput)
	}

	submissions := make([]model.Submission, len(inputs))
	buildErrs := make([]error, len(inputs))
	for start := 0; start < len(inputs); start += s.recalcBatchSize {
		end := start + s.recalcBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				submission, err := s.buildSubmission(ctx, inputs[i])
				if err != nil {
					buildErrs[i] = err
					return
				}
				submissions[i] = *submission
			}(i)
		}
		wg.Wait()
	}
	for _, err := range buildErrs {
		if err != nil {
			return 0, err
		}
	}

	if err := s.repo.CreateBatch(ctx, submissions); err != nil {
		return 0, err
	}
	return len(submissions), nil
}

func (s *SubmissionService) buildSubmission(ctx context.Context, input CreateInput) (*model.Submission, error) {
	if strings.TrimSpace(input.Site) == "" {
		return nil, fmt.Errorf("%w: site is required", ErrInvalidInput)
	}
	date, err := dateutil.ParseString(input.Date)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	invGen := valueOrZero(input.InvGen)
	abtExport := valueOrZero(input.AbtExport)
	if input.AutoCalculate || input.InvGen == nil || input.AbtExport == nil {
		if input.InvGen == nil || input.AutoCalculate {
			invGen = s.calc.InverterGeneration(ctx, input.Site, date)
		}
		if input.AbtExport == nil || input.AutoCalculate {
			abtExport = s.calc.ABTExport(ctx, input.Site, date)
		}
	}

	status := input.Status
	if status == "" {
		status = model.StatusDraft
	}
	if !validStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, status)
	}

	return &model.Submission{
		Site:      input.Site,
		Date:      date,
		InvGen:    round2(invGen),
		AbtExport: round2(abtExport),
		POA:       round2(valueOrZero(input.POA)),
		Status:    status,
	}, nil
}

// FieldEdits are the non-status updates a request may carry alongside (or
// instead of) a workflow action.
type FieldEdits struct {
	Site      *string
	Date      *string
	InvGen    *float64
	AbtExport *float64
	POA       *float64
}

// ApplyTransition runs the workflow action (if any) through the transition
// rules, applies field edits, persists, and on a successful status change
// fires satellite propagation without blocking the caller.
func (s *SubmissionService) ApplyTransition(ctx context.Context, id uuid.UUID, principal model.Principal, action Action, edits FieldEdits) (*model.Submission, error) {
	submission, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: submission %s", ErrNotFound, id)
		}
		return nil, err
	}

	statusChanged := false
	if action != "" {
		if err := applyTransition(submission, principal, action); err != nil {
			return nil, err
		}
		statusChanged = true
	} else if submission.Status == model.StatusHQApproved {
		return nil, ErrLocked
	}

	if err := applyEdits(submission, edits); err != nil {
		return nil, err
	}
	submission.UpdatedAt = time.Now().UTC()

	if err := s.repo.Save(ctx, submission); err != nil {
		return nil, err
	}

	if statusChanged {
		s.dispatchPropagation(submission.Site, submission.Date, submission.Status)
	}
	return submission, nil
}

// dispatchPropagation runs the satellite sync on a detached context so it
// completes server-side even after the triggering response is flushed.
func (s *SubmissionService) dispatchPropagation(site string, date time.Time, status model.SubmissionStatus) {
	s.background.Add(1)
	go func() {
		defer s.background.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.propTimeout)
		defer cancel()
		s.propagator.SyncStatus(ctx, site, date, status)
	}()
}

func applyEdits(submission *model.Submission, edits FieldEdits) error {
	if edits.Site != nil {
		if strings.TrimSpace(*edits.Site) == "" {
			return fmt.Errorf("%w: site cannot be empty", ErrInvalidInput)
		}
		submission.Site = *edits.Site
	}
	if edits.Date != nil {
		date, err := dateutil.ParseString(*edits.Date)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		submission.Date = date
	}
	if edits.InvGen != nil {
		submission.InvGen = *edits.InvGen
	}
	if edits.AbtExport != nil {
		submission.AbtExport = *edits.AbtExport
	}
	if edits.POA != nil {
		submission.POA = *edits.POA
	}
	return nil
}

func (s *SubmissionService) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.repo.Delete(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: submission %s", ErrNotFound, id)
	}
	return err
}

func (s *SubmissionService) Cleanup(ctx context.Context) (int64, error) {
	return s.repo.DeleteAll(ctx)
}

// RecalcResult is one outcome of a bulk recalculation.
type RecalcResult struct {
	ID        uuid.UUID `json:"id"`
	InvGen    float64   `json:"invGen"`
	AbtExport float64   `json:"abtExport"`
}

// Recalculate refreshes invGen and abtExport for the given submissions.
// Work is chunked so a large selection does not fire unbounded concurrent
// requests at the upstream services.
func (s *SubmissionService) Recalculate(ctx context.Context, ids []uuid.UUID) ([]RecalcResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: submission ids are required", ErrInvalidInput)
	}

	submissions, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(submissions) == 0 {
		return nil, fmt.Errorf("%w: no submissions matched", ErrNotFound)
	}

	results := make([]RecalcResult, len(submissions))
	for start := 0; start < len(submissions); start += s.recalcBatchSize {
		end := start + s.recalcBatchSize
		if end > len(submissions) {
			end = len(submissions)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sub := submissions[i]
				results[i] = RecalcResult{
					ID:        sub.ID,
					InvGen:    round2(s.calc.InverterGeneration(ctx, sub.Site, sub.Date)),
					AbtExport: round2(s.calc.ABTExport(ctx, sub.Site, sub.Date)),
				}
			}(i)
		}
		wg.Wait()
	}

	for _, result := range results {
		if err := s.repo.UpdateMeasures(ctx, result.ID, result.InvGen, result.AbtExport); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// SyncResult reports a sync-from-source run.
type SyncResult struct {
	Created int `json:"created"`
	Total   int `json:"total"`
}

// SyncFromSource materializes one Draft submission per unique (site, day)
// found in the inverter source that has no submission yet. invGen is summed
// directly from the fetched rows; abtExport is calculated per day.
func (s *SubmissionService) SyncFromSource(ctx context.Context, site string) (*SyncResult, error) {
	records, err := s.inverter.Records(ctx, s.syncFetchLimit)
	if err != nil {
		return nil, fmt.Errorf("fetch inverter records: %w", err)
	}

	type pending struct {
		site   string
		date   time.Time
		invGen float64
	}

	grouped := make(map[string]*pending)
	order := make([]string, 0)
	for _, record := range records {
		if site != "" && record.SiteName != site {
			continue
		}
		date, err := dateutil.Parse(record.Date)
		if err != nil {
			continue
		}
		key := record.SiteName + "_" + dateutil.FormatISO(date)
		entry, ok := grouped[key]
		if !ok {
			entry = &pending{site: record.SiteName, date: date}
			grouped[key] = entry
			order = append(order, key)
		}
		for _, raw := range record.Values {
			if value, ok := toNumber(raw); ok {
				entry.invGen += value
			}
		}
	}

	existing, err := s.repo.SiteDays(ctx)
	if err != nil {
		return nil, err
	}
	existingKeys := make(map[string]struct{}, len(existing))
	for _, sub := range existing {
		existingKeys[sub.Site+"_"+dateutil.FormatISO(sub.Date)] = struct{}{}
	}

	var toCreate []*pending
	for _, key := range order {
		if _, ok := existingKeys[key]; ok {
			continue
		}
		toCreate = append(toCreate, grouped[key])
	}

	submissions := make([]model.Submission, 0, len(toCreate))
	for start := 0; start < len(toCreate); start += s.recalcBatchSize {
		end := start + s.recalcBatchSize
		if end > len(toCreate) {
			end = len(toCreate)
		}

		batch := make([]model.Submission, end-start)
		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				entry := toCreate[i]
				batch[i-start] = model.Submission{
					Site:      entry.site,
					Date:      entry.date,
					InvGen:    round2(entry.invGen / 1000),
					AbtExport: s.calc.ABTExport(ctx, entry.site, entry.date),
					Status:    model.StatusDraft,
				}
			}(i)
		}
		wg.Wait()
		submissions = append(submissions, batch...)
	}

	if len(submissions) > 0 {
		if err := s.repo.CreateBatch(ctx, submissions); err != nil {
			return nil, err
		}
	}

	s.log.Info().
		Int("created", len(submissions)).
		Int("source_days", len(grouped)).
		Msg("sync from inverter source complete")
	return &SyncResult{Created: len(submissions), Total: len(grouped)}, nil
}

func buildFilter(principal model.Principal, query ListQuery) (repository.ListFilter, error) {
	filter := repository.ListFilter{
		Site:  query.Site,
		Page:  query.Page,
		Limit: query.Limit,
	}

	// Each role works its own queue; HQ Approved is only visible to
	// superadmins when asked for explicitly (the submitted-data view).
	var visible []model.SubmissionStatus
	switch principal.Role {
	case model.RoleUser:
		visible = []model.SubmissionStatus{model.StatusDraft}
	case model.RoleAdmin:
		visible = []model.SubmissionStatus{model.StatusSitePublish, model.StatusSiteHold}
	case model.RoleSuperAdmin:
		visible = []model.SubmissionStatus{model.StatusSendToHQ, model.StatusSiteHold, model.StatusHQApproved}
	default:
		return filter, fmt.Errorf("%w: unknown role %q", ErrPermissionDenied, principal.Role)
	}

	if query.Status != "" && query.Status != "all" {
		requested := model.SubmissionStatus(query.Status)
		allowed := false
		for _, status := range visible {
			if status == requested {
				allowed = true
				break
			}
		}
		if !allowed {
			return filter, fmt.Errorf("%w: role %s cannot view status %q", ErrPermissionDenied, principal.Role, query.Status)
		}
		filter.Statuses = []model.SubmissionStatus{requested}
	} else {
		if principal.Role == model.RoleSuperAdmin {
			// Default HQ dashboard excludes already-approved records.
			visible = []model.SubmissionStatus{model.StatusSendToHQ, model.StatusSiteHold}
		}
		filter.Statuses = visible
	}

	// Custom range wins over month/year.
	switch {
	case query.StartDate != "" && query.EndDate != "":
		start, err := dateutil.ParseString(query.StartDate)
		if err != nil {
			return filter, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		end, err := dateutil.ParseString(query.EndDate)
		if err != nil {
			return filter, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		_, endOfDay := dateutil.DayRange(end)
		filter.Start = &start
		filter.End = &endOfDay
	case query.Year != 0:
		month := time.January
		endMonth := time.December
		if query.Month != 0 {
			if query.Month < 1 || query.Month > 12 {
				return filter, fmt.Errorf("%w: month out of range", ErrInvalidInput)
			}
			month = time.Month(query.Month)
			endMonth = month
		}
		start := time.Date(query.Year, month, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(query.Year, endMonth+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
		filter.Start = &start
		filter.End = &end
	}

	return filter, nil
}

func validStatus(status model.SubmissionStatus) bool {
	switch status {
	case model.StatusDraft, model.StatusSitePublish, model.StatusSendToHQ,
		model.StatusHQApproved, model.StatusSiteHold:
		return true
	}
	return false
}

func valueOrZero(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
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
