package service

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/helioserv/solarops-submissions/internal/config"
	"github.com/helioserv/solarops-submissions/internal/metrics"
	"github.com/helioserv/solarops-submissions/internal/model"
	"github.com/helioserv/solarops-submissions/internal/propagation"
	"github.com/helioserv/solarops-submissions/internal/repository"
	"github.com/helioserv/solarops-submissions/internal/upstream"
)

type mockCalculator struct {
	mock.Mock
}

func (m *mockCalculator) CalculateAll(ctx context.Context, site string, date time.Time) metrics.Values {
	args := m.Called(ctx, site, date)
	return args.Get(0).(metrics.Values)
}

func (m *mockCalculator) InverterGeneration(ctx context.Context, site string, date time.Time) float64 {
	args := m.Called(ctx, site, date)
	return args.Get(0).(float64)
}

func (m *mockCalculator) ABTExport(ctx context.Context, site string, date time.Time) float64 {
	args := m.Called(ctx, site, date)
	return args.Get(0).(float64)
}

type mockPropagator struct {
	mock.Mock
}

func (m *mockPropagator) SyncStatus(ctx context.Context, site string, date time.Time, status model.SubmissionStatus) propagation.Report {
	args := m.Called(ctx, site, date, status)
	return args.Get(0).(propagation.Report)
}

type mockInverterSource struct {
	mock.Mock
}

func (m *mockInverterSource) Records(ctx context.Context, limit int) ([]upstream.InverterRecord, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]upstream.InverterRecord), args.Error(1)
}

func (m *mockInverterSource) Sites(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

type serviceFixture struct {
	svc        *SubmissionService
	db         *gorm.DB
	repo       *repository.SubmissionRepository
	calc       *mockCalculator
	propagator *mockPropagator
	inverter   *mockInverterSource
}

func newFixture(t *testing.T) *serviceFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.Submission{}))

	calc := &mockCalculator{}
	propagator := &mockPropagator{}
	inverter := &mockInverterSource{}
	repo := repository.NewSubmissionRepository(db)

	cfg := &config.Config{
		Upstream:    config.UpstreamConfig{Timeout: 5 * time.Second},
		Submissions: config.SubmissionsConfig{RecalcBatchSize: 2, SyncFetchLimit: 100},
	}

	return &serviceFixture{
		svc:        NewSubmissionService(repo, calc, propagator, inverter, cfg, zerolog.Nop()),
		db:         db,
		repo:       repo,
		calc:       calc,
		propagator: propagator,
		inverter:   inverter,
	}
}

func (f *serviceFixture) seed(t *testing.T, site string, date time.Time, status model.SubmissionStatus) *model.Submission {
	t.Helper()
	sub := &model.Submission{
		ID:     uuid.New(),
		Site:   site,
		Date:   date,
		Status: status,
	}
	require.NoError(t, f.db.Create(sub).Error)
	return sub
}

var testDay = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func TestCalculate(t *testing.T) {
	f := newFixture(t)
	f.calc.On("CalculateAll", mock.Anything, "Alpha", testDay).
		Return(metrics.Values{InvGen: 4.005, AbtExport: 3.5, POA: 5.126})

	values, err := f.svc.Calculate(context.Background(), "Alpha", "01-06-2025")
	require.NoError(t, err)
	assert.InDelta(t, 4.01, values.InvGen, 1e-9)
	assert.InDelta(t, 3.5, values.AbtExport, 1e-9)
	assert.InDelta(t, 5.13, values.POA, 1e-9)
}

func TestCalculateInvalidInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Calculate(context.Background(), "", "01-06-2025")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Calculate(context.Background(), "Alpha", "31-02-2025")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestCreateAutoCalculates(t *testing.T) {
	f := newFixture(t)
	f.calc.On("InverterGeneration", mock.Anything, "Alpha", testDay).Return(4.2)
	f.calc.On("ABTExport", mock.Anything, "Alpha", testDay).Return(3.8)

	poa := 5.5
	sub, err := f.svc.Create(context.Background(), CreateInput{
		Site: "Alpha",
		Date: "01-06-2025",
		POA:  &poa,
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sub.ID)
	assert.InDelta(t, 4.2, sub.InvGen, 1e-9)
	assert.InDelta(t, 3.8, sub.AbtExport, 1e-9)
	assert.InDelta(t, 5.5, sub.POA, 1e-9)
	assert.Equal(t, model.StatusDraft, sub.Status)
	assert.True(t, sub.Date.Equal(testDay))
}

func TestCreateKeepsProvidedMeasures(t *testing.T) {
	f := newFixture(t)

	invGen, abtExport := 10.0, 8.0
	sub, err := f.svc.Create(context.Background(), CreateInput{
		Site:      "Alpha",
		Date:      "01-06-2025",
		InvGen:    &invGen,
		AbtExport: &abtExport,
	})
	require.NoError(t, err)
	assert.InDelta(t, 10.0, sub.InvGen, 1e-9)
	assert.InDelta(t, 8.0, sub.AbtExport, 1e-9)
	f.calc.AssertNotCalled(t, "InverterGeneration", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateRejectsBadInput(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateInput{Site: "", Date: "01-06-2025"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Create(context.Background(), CreateInput{Site: "Alpha", Date: "not a date"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	invGen, abtExport := 1.0, 1.0
	_, err = f.svc.Create(context.Background(), CreateInput{
		Site: "Alpha", Date: "01-06-2025",
		InvGen: &invGen, AbtExport: &abtExport,
		Status: "Approved-ish",
	})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestBulkCreate(t *testing.T) {
	f := newFixture(t)
	f.calc.On("InverterGeneration", mock.Anything, mock.Anything, mock.Anything).Return(1.0)
	f.calc.On("ABTExport", mock.Anything, mock.Anything, mock.Anything).Return(2.0)

	inputs := []CreateInput{
		{Site: "Alpha", Date: "01-06-2025"},
		{Site: "Alpha", Date: "02-06-2025"},
		{Site: "Beta", Date: "01-06-2025"},
	}
	created, err := f.svc.BulkCreate(context.Background(), inputs)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	var count int64
	require.NoError(t, f.db.Model(&model.Submission{}).Count(&count).Error)
	assert.Equal(t, int64(3), count)
}

func TestBulkCreateFailsAtomically(t *testing.T) {
	f := newFixture(t)
	f.calc.On("InverterGeneration", mock.Anything, mock.Anything, mock.Anything).Return(1.0)
	f.calc.On("ABTExport", mock.Anything, mock.Anything, mock.Anything).Return(2.0)

	inputs := []CreateInput{
		{Site: "Alpha", Date: "01-06-2025"},
		{Site: "Alpha", Date: "31-02-2025"},
	}
	_, err := f.svc.BulkCreate(context.Background(), inputs)
	assert.ErrorIs(t, err, ErrInvalidInput)

	var count int64
	require.NoError(t, f.db.Model(&model.Submission{}).Count(&count).Error)
	assert.Zero(t, count, "no rows persisted when any input is invalid")

	_, err = f.svc.BulkCreate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApplyTransitionPersistsAndPropagates(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, "Alpha", testDay, model.StatusDraft)

	f.propagator.On("SyncStatus", mock.Anything, "Alpha", mock.Anything, model.StatusSitePublish).
		Return(propagation.Report{})

	user := model.Principal{UserID: uuid.New(), Role: model.RoleUser}
	updated, err := f.svc.ApplyTransition(context.Background(), sub.ID, user, ActionSubmit, FieldEdits{})
	require.NoError(t, err)
	assert.Equal(t, model.StatusSitePublish, updated.Status)

	f.svc.Wait()
	f.propagator.AssertCalled(t, "SyncStatus", mock.Anything, "Alpha", mock.Anything, model.StatusSitePublish)

	var stored model.Submission
	require.NoError(t, f.db.First(&stored, "id = ?", sub.ID).Error)
	assert.Equal(t, model.StatusSitePublish, stored.Status)
	require.NotNil(t, stored.SubmittedBy)
	assert.Equal(t, user.UserID, *stored.SubmittedBy)
}

func TestApplyTransitionFieldEditsOnly(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, "Alpha", testDay, model.StatusDraft)

	invGen := 12.5
	updated, err := f.svc.ApplyTransition(context.Background(), sub.ID,
		model.Principal{UserID: uuid.New(), Role: model.RoleUser}, "", FieldEdits{InvGen: &invGen})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDraft, updated.Status)
	assert.InDelta(t, 12.5, updated.InvGen, 1e-9)

	// no status change, no propagation
	f.svc.Wait()
	f.propagator.AssertNotCalled(t, "SyncStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestApplyTransitionLockedRecord(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, "Alpha", testDay, model.StatusHQApproved)

	invGen := 1.0
	_, err := f.svc.ApplyTransition(context.Background(), sub.ID,
		model.Principal{UserID: uuid.New(), Role: model.RoleSuperAdmin}, "", FieldEdits{InvGen: &invGen})
	assert.ErrorIs(t, err, ErrLocked, "approved records reject even field-only edits")

	_, err = f.svc.ApplyTransition(context.Background(), sub.ID,
		model.Principal{UserID: uuid.New(), Role: model.RoleSuperAdmin}, ActionApprove, FieldEdits{})
	assert.ErrorIs(t, err, ErrLocked)
}

func TestApplyTransitionNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ApplyTransition(context.Background(), uuid.New(),
		model.Principal{UserID: uuid.New(), Role: model.RoleUser}, ActionSubmit, FieldEdits{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestApplyTransitionDeniedLeavesRecordUntouched(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, "Alpha", testDay, model.StatusSitePublish)

	_, err := f.svc.ApplyTransition(context.Background(), sub.ID,
		model.Principal{UserID: uuid.New(), Role: model.RoleUser}, ActionSubmit, FieldEdits{})
	assert.ErrorIs(t, err, ErrPermissionDenied)

	var stored model.Submission
	require.NoError(t, f.db.First(&stored, "id = ?", sub.ID).Error)
	assert.Equal(t, model.StatusSitePublish, stored.Status)
	f.propagator.AssertNotCalled(t, "SyncStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestListRoleScoping(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.seed(t, "Alpha", testDay.AddDate(0, 0, 1), model.StatusSitePublish)
	f.seed(t, "Beta", testDay, model.StatusSiteHold)
	f.seed(t, "Beta", testDay.AddDate(0, 0, 2), model.StatusSendToHQ)
	f.seed(t, "Gamma", testDay, model.StatusHQApproved)

	tests := []struct {
		name  string
		role  model.Role
		query ListQuery
		want  []model.SubmissionStatus
	}{
		{name: "user sees drafts", role: model.RoleUser, want: []model.SubmissionStatus{model.StatusDraft}},
		{name: "admin sees published and held", role: model.RoleAdmin,
			want: []model.SubmissionStatus{model.StatusSitePublish, model.StatusSiteHold}},
		{name: "superadmin default hides approved", role: model.RoleSuperAdmin,
			want: []model.SubmissionStatus{model.StatusSendToHQ, model.StatusSiteHold}},
		{name: "superadmin sees approved when asked", role: model.RoleSuperAdmin,
			query: ListQuery{Status: string(model.StatusHQApproved)},
			want:  []model.SubmissionStatus{model.StatusHQApproved}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal := model.Principal{UserID: uuid.New(), Role: tt.role}
			result, err := f.svc.List(context.Background(), principal, tt.query)
			require.NoError(t, err)
			require.Equal(t, int64(len(tt.want)), result.Total)

			got := make(map[model.SubmissionStatus]bool)
			for _, sub := range result.Submissions {
				got[sub.Status] = true
			}
			for _, status := range tt.want {
				assert.True(t, got[status], string(status))
			}
		})
	}
}

func TestListStatusOutsideRoleScope(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.List(context.Background(),
		model.Principal{UserID: uuid.New(), Role: model.RoleUser},
		ListQuery{Status: string(model.StatusHQApproved)})
	assert.ErrorIs(t, err, ErrPermissionDenied)
}

func TestListDateFilters(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", time.Date(2025, time.May, 20, 0, 0, 0, 0, time.UTC), model.StatusDraft)
	f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.seed(t, "Alpha", time.Date(2025, time.June, 15, 0, 0, 0, 0, time.UTC), model.StatusDraft)
	f.seed(t, "Alpha", time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC), model.StatusDraft)

	principal := model.Principal{UserID: uuid.New(), Role: model.RoleUser}

	result, err := f.svc.List(context.Background(), principal, ListQuery{Year: 2025, Month: 6})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Total)

	result, err = f.svc.List(context.Background(), principal, ListQuery{Year: 2025})
	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Total)

	// explicit range wins over month/year
	result, err = f.svc.List(context.Background(), principal, ListQuery{
		StartDate: "01-06-2025", EndDate: "01-06-2025", Year: 2024,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Total)

	_, err = f.svc.List(context.Background(), principal, ListQuery{Year: 2025, Month: 13})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", testDay, model.StatusSitePublish)
	f.seed(t, "Beta", testDay, model.StatusSitePublish)
	f.seed(t, "Beta", testDay.AddDate(0, 0, 1), model.StatusSiteHold)
	f.seed(t, "Gamma", testDay, model.StatusDraft)

	counts, err := f.svc.Stats(context.Background(),
		model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}, ListQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Total)
	assert.Equal(t, int64(2), counts.SitePublish)
	assert.Equal(t, int64(1), counts.SiteHold)
	assert.Zero(t, counts.Draft, "drafts are outside the admin scope")
}

func TestSitesMergesUpstream(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.seed(t, "Beta", testDay, model.StatusDraft)
	f.inverter.On("Sites", mock.Anything).Return([]string{"Beta", "Gamma"}, nil)

	sites, err := f.svc.Sites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Beta", "Gamma"}, sites)
}

func TestSitesToleratesUpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.inverter.On("Sites", mock.Anything).Return(nil, assert.AnError)

	sites, err := f.svc.Sites(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha"}, sites)
}

func TestYears(t *testing.T) {
	f := newFixture(t)
	f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.seed(t, "Alpha", time.Date(2023, time.March, 10, 0, 0, 0, 0, time.UTC), model.StatusDraft)
	f.seed(t, "Beta", time.Date(2023, time.July, 4, 0, 0, 0, 0, time.UTC), model.StatusDraft)

	years, err := f.svc.Years(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2025, 2023}, years)
}

func TestRecalculate(t *testing.T) {
	f := newFixture(t)
	subs := []*model.Submission{
		f.seed(t, "Alpha", testDay, model.StatusDraft),
		f.seed(t, "Alpha", testDay.AddDate(0, 0, 1), model.StatusDraft),
		f.seed(t, "Beta", testDay, model.StatusSitePublish),
	}

	f.calc.On("InverterGeneration", mock.Anything, mock.Anything, mock.Anything).Return(9.005)
	f.calc.On("ABTExport", mock.Anything, mock.Anything, mock.Anything).Return(7.5)

	ids := []uuid.UUID{subs[0].ID, subs[1].ID, subs[2].ID}
	results, err := f.svc.Recalculate(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, result := range results {
		assert.InDelta(t, 9.01, result.InvGen, 1e-9)
		assert.InDelta(t, 7.5, result.AbtExport, 1e-9)
	}

	var stored model.Submission
	require.NoError(t, f.db.First(&stored, "id = ?", subs[2].ID).Error)
	assert.InDelta(t, 9.01, stored.InvGen, 1e-9)
	assert.Equal(t, model.StatusSitePublish, stored.Status, "recalculation leaves status alone")
}

func TestRecalculateValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Recalculate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.svc.Recalculate(context.Background(), []uuid.UUID{uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSyncFromSource(t *testing.T) {
	f := newFixture(t)
	// "Alpha"/June 1 already has a submission and must be skipped
	f.seed(t, "Alpha", testDay, model.StatusSitePublish)

	f.inverter.On("Records", mock.Anything, 100).Return([]upstream.InverterRecord{
		{SiteName: "Alpha", Date: "01-06-2025", Values: map[string]interface{}{"inv1": 1500.0}},
		{SiteName: "Alpha", Date: "02-06-2025", Values: map[string]interface{}{"inv1": 2000.0, "inv2": "1000"}},
		{SiteName: "Alpha", Date: "02-06-2025", Values: map[string]interface{}{"inv1": 500.0}},
		{SiteName: "Beta", Date: "01-06-2025", Values: map[string]interface{}{"inv1": 4000.0}},
		{SiteName: "Beta", Date: "bad date", Values: map[string]interface{}{"inv1": 9000.0}},
	}, nil)
	f.calc.On("ABTExport", mock.Anything, mock.Anything, mock.Anything).Return(1.5)

	result, err := f.svc.SyncFromSource(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 3, result.Total)

	var created model.Submission
	require.NoError(t, f.db.First(&created, "site = ? AND status = ?", "Alpha", model.StatusDraft).Error)
	assert.InDelta(t, 3.5, created.InvGen, 1e-9, "rows of the same day are summed then scaled to kWh")
	assert.InDelta(t, 1.5, created.AbtExport, 1e-9)

	var total int64
	require.NoError(t, f.db.Model(&model.Submission{}).Count(&total).Error)
	assert.Equal(t, int64(3), total)
}

func TestSyncFromSourceSiteFilter(t *testing.T) {
	f := newFixture(t)
	f.inverter.On("Records", mock.Anything, 100).Return([]upstream.InverterRecord{
		{SiteName: "Alpha", Date: "01-06-2025", Values: map[string]interface{}{"inv1": 1000.0}},
		{SiteName: "Beta", Date: "01-06-2025", Values: map[string]interface{}{"inv1": 2000.0}},
	}, nil)
	f.calc.On("ABTExport", mock.Anything, "Beta", mock.Anything).Return(0.0)

	result, err := f.svc.SyncFromSource(context.Background(), "Beta")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)

	var count int64
	require.NoError(t, f.db.Model(&model.Submission{}).Where("site = ?", "Alpha").Count(&count).Error)
	assert.Zero(t, count)
}

func TestSyncFromSourceFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.inverter.On("Records", mock.Anything, 100).Return(nil, assert.AnError)

	_, err := f.svc.SyncFromSource(context.Background(), "")
	assert.Error(t, err)
}

func TestDeleteAndCleanup(t *testing.T) {
	f := newFixture(t)
	sub := f.seed(t, "Alpha", testDay, model.StatusDraft)
	f.seed(t, "Beta", testDay, model.StatusDraft)

	require.NoError(t, f.svc.Delete(context.Background(), sub.ID))
	assert.ErrorIs(t, f.svc.Delete(context.Background(), sub.ID), ErrNotFound)

	removed, err := f.svc.Cleanup(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
