package service

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helioserv/solarops-submissions/internal/model"
)

func TestParseAction(t *testing.T) {
	for _, raw := range []string{"submit", "approve", "site-hold", "release"} {
		got, err := ParseAction(raw)
		require.NoError(t, err)
		assert.Equal(t, Action(raw), got)
	}

	_, err := ParseAction("publish")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = ParseAction("")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestApplyTransition(t *testing.T) {
	tests := []struct {
		name       string
		role       model.Role
		action     Action
		status     model.SubmissionStatus
		previous   model.SubmissionStatus
		wantStatus model.SubmissionStatus
		wantErr    error
	}{
		{name: "user submits draft", role: model.RoleUser, action: ActionSubmit, status: model.StatusDraft, wantStatus: model.StatusSitePublish},
		{name: "user cannot submit published", role: model.RoleUser, action: ActionSubmit, status: model.StatusSitePublish, wantErr: ErrPermissionDenied},
		{name: "user cannot approve", role: model.RoleUser, action: ActionApprove, status: model.StatusSendToHQ, wantErr: ErrPermissionDenied},
		{name: "user cannot hold", role: model.RoleUser, action: ActionSiteHold, status: model.StatusSitePublish, wantErr: ErrPermissionDenied},
		{name: "user cannot release", role: model.RoleUser, action: ActionRelease, status: model.StatusSiteHold, wantErr: ErrPermissionDenied},

		{name: "admin holds published", role: model.RoleAdmin, action: ActionSiteHold, status: model.StatusSitePublish, wantStatus: model.StatusSiteHold},
		{name: "admin forwards published to hq", role: model.RoleAdmin, action: ActionSubmit, status: model.StatusSitePublish, wantStatus: model.StatusSendToHQ},
		{name: "admin releases hold to previous", role: model.RoleAdmin, action: ActionRelease, status: model.StatusSiteHold, previous: model.StatusSitePublish, wantStatus: model.StatusSitePublish},
		{name: "admin release defaults to published", role: model.RoleAdmin, action: ActionRelease, status: model.StatusSiteHold, wantStatus: model.StatusSitePublish},
		{name: "admin cannot touch hq queue", role: model.RoleAdmin, action: ActionSiteHold, status: model.StatusSendToHQ, wantErr: ErrPermissionDenied},
		{name: "admin cannot submit draft", role: model.RoleAdmin, action: ActionSubmit, status: model.StatusDraft, wantErr: ErrPermissionDenied},
		{name: "admin cannot approve", role: model.RoleAdmin, action: ActionApprove, status: model.StatusSitePublish, wantErr: ErrPermissionDenied},
		{name: "admin cannot hold draft", role: model.RoleAdmin, action: ActionSiteHold, status: model.StatusDraft, wantErr: ErrPermissionDenied},

		{name: "superadmin approves hq queue", role: model.RoleSuperAdmin, action: ActionApprove, status: model.StatusSendToHQ, wantStatus: model.StatusHQApproved},
		{name: "superadmin holds hq queue", role: model.RoleSuperAdmin, action: ActionSiteHold, status: model.StatusSendToHQ, wantStatus: model.StatusSiteHold},
		{name: "superadmin releases hold to previous", role: model.RoleSuperAdmin, action: ActionRelease, status: model.StatusSiteHold, previous: model.StatusSendToHQ, wantStatus: model.StatusSendToHQ},
		{name: "superadmin release defaults to hq queue", role: model.RoleSuperAdmin, action: ActionRelease, status: model.StatusSiteHold, wantStatus: model.StatusSendToHQ},
		{name: "superadmin cannot approve draft", role: model.RoleSuperAdmin, action: ActionApprove, status: model.StatusDraft, wantErr: ErrPermissionDenied},
		{name: "superadmin cannot approve published", role: model.RoleSuperAdmin, action: ActionApprove, status: model.StatusSitePublish, wantErr: ErrPermissionDenied},
		{name: "superadmin cannot hold published", role: model.RoleSuperAdmin, action: ActionSiteHold, status: model.StatusSitePublish, wantErr: ErrPermissionDenied},
		{name: "superadmin cannot submit", role: model.RoleSuperAdmin, action: ActionSubmit, status: model.StatusDraft, wantErr: ErrPermissionDenied},

		{name: "approved is terminal for user", role: model.RoleUser, action: ActionSubmit, status: model.StatusHQApproved, wantErr: ErrLocked},
		{name: "approved is terminal for admin", role: model.RoleAdmin, action: ActionSiteHold, status: model.StatusHQApproved, wantErr: ErrLocked},
		{name: "approved is terminal for superadmin", role: model.RoleSuperAdmin, action: ActionApprove, status: model.StatusHQApproved, wantErr: ErrLocked},

		{name: "unknown role rejected", role: model.Role("auditor"), action: ActionSubmit, status: model.StatusDraft, wantErr: ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &model.Submission{Status: tt.status, PreviousStatus: tt.previous}
			principal := model.Principal{UserID: uuid.New(), Role: tt.role}

			err := applyTransition(sub, principal, tt.action)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.status, sub.Status, "failed transition must not mutate status")
				assert.Equal(t, tt.previous, sub.PreviousStatus)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, sub.Status)
			assert.Equal(t, tt.status, sub.PreviousStatus)
		})
	}
}

func TestApplyTransitionRecordsSubmitterOnce(t *testing.T) {
	original := uuid.New()
	sub := &model.Submission{Status: model.StatusDraft, SubmittedBy: &original}

	err := applyTransition(sub, model.Principal{UserID: uuid.New(), Role: model.RoleUser}, ActionSubmit)
	require.NoError(t, err)
	assert.Equal(t, original, *sub.SubmittedBy, "submitter set on first submit must survive later transitions")

	fresh := &model.Submission{Status: model.StatusDraft}
	submitter := uuid.New()
	err = applyTransition(fresh, model.Principal{UserID: submitter, Role: model.RoleUser}, ActionSubmit)
	require.NoError(t, err)
	require.NotNil(t, fresh.SubmittedBy)
	assert.Equal(t, submitter, *fresh.SubmittedBy)
}

func TestApplyTransitionHoldReleaseRoundTrip(t *testing.T) {
	admin := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}

	sub := &model.Submission{Status: model.StatusSitePublish}
	require.NoError(t, applyTransition(sub, admin, ActionSiteHold))
	assert.Equal(t, model.StatusSiteHold, sub.Status)
	assert.Equal(t, model.StatusSitePublish, sub.PreviousStatus)

	require.NoError(t, applyTransition(sub, admin, ActionRelease))
	assert.Equal(t, model.StatusSitePublish, sub.Status)
	assert.Equal(t, model.StatusSiteHold, sub.PreviousStatus)
}

// Full lifecycle of one record: drafted by a user, forwarded by an admin,
// parked and released by a superadmin, then approved and locked.
func TestApplyTransitionLifecycle(t *testing.T) {
	user := model.Principal{UserID: uuid.New(), Role: model.RoleUser}
	admin := model.Principal{UserID: uuid.New(), Role: model.RoleAdmin}
	super := model.Principal{UserID: uuid.New(), Role: model.RoleSuperAdmin}

	sub := &model.Submission{Status: model.StatusDraft}

	require.NoError(t, applyTransition(sub, user, ActionSubmit))
	assert.Equal(t, model.StatusSitePublish, sub.Status)
	require.NotNil(t, sub.SubmittedBy)
	assert.Equal(t, user.UserID, *sub.SubmittedBy)

	require.NoError(t, applyTransition(sub, admin, ActionSubmit))
	assert.Equal(t, model.StatusSendToHQ, sub.Status)

	require.NoError(t, applyTransition(sub, super, ActionSiteHold))
	assert.Equal(t, model.StatusSiteHold, sub.Status)

	require.NoError(t, applyTransition(sub, super, ActionRelease))
	assert.Equal(t, model.StatusSendToHQ, sub.Status)

	require.NoError(t, applyTransition(sub, super, ActionApprove))
	assert.Equal(t, model.StatusHQApproved, sub.Status)

	err := applyTransition(sub, super, ActionRelease)
	assert.ErrorIs(t, err, ErrLocked)
	assert.Equal(t, model.StatusHQApproved, sub.Status)
}
