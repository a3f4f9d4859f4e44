package service

import (
	"fmt"

	"github.com/helioserv/solarops-submissions/internal/model"
)

// Action is a requested workflow operation on a submission.
type Action string

const (
	ActionSubmit   Action = "submit"
	ActionApprove  Action = "approve"
	ActionSiteHold Action = "site-hold"
	ActionRelease  Action = "release"
)

func ParseAction(raw string) (Action, error) {
	switch Action(raw) {
	case ActionSubmit, ActionApprove, ActionSiteHold, ActionRelease:
		return Action(raw), nil
	default:
		return "", fmt.Errorf("%w: unknown action %q", ErrInvalidInput, raw)
	}
}

// applyTransition mutates the submission's status fields according to the
// workflow rules, or returns an error leaving it untouched. The rules are
// role-exclusive: an admin cannot perform a user's submit and vice versa.
//
//	user        submit     Draft               -> Site Publish (records submitter)
//	admin       site-hold  Site Publish        -> Site Hold
//	admin       release    Site Hold           -> previous (default Site Publish)
//	admin       submit     Site Publish        -> Send to HQ Approval
//	superadmin  approve    Send to HQ Approval -> HQ Approved
//	superadmin  site-hold  Send to HQ Approval -> Site Hold
//	superadmin  release    Site Hold           -> previous (default Send to HQ Approval)
//
// HQ Approved is terminal; admins may not touch records already queued for
// HQ. Everything else is rejected, never silently ignored.
func applyTransition(sub *model.Submission, principal model.Principal, action Action) error {
	if sub.Status == model.StatusHQApproved {
		return ErrLocked
	}

	switch principal.Role {
	case model.RoleUser:
		if action == ActionSubmit && sub.Status == model.StatusDraft {
			sub.PreviousStatus = sub.Status
			sub.Status = model.StatusSitePublish
			if sub.SubmittedBy == nil {
				id := principal.UserID
				sub.SubmittedBy = &id
			}
			return nil
		}
		return fmt.Errorf("%w: users can only submit draft records", ErrPermissionDenied)

	case model.RoleAdmin:
		if sub.Status == model.StatusSendToHQ {
			return fmt.Errorf("%w: cannot modify records already sent to hq", ErrPermissionDenied)
		}
		switch {
		case action == ActionSiteHold && sub.Status == model.StatusSitePublish:
			sub.PreviousStatus = sub.Status
			sub.Status = model.StatusSiteHold
			return nil
		case action == ActionRelease && sub.Status == model.StatusSiteHold:
			restored := sub.PreviousStatus
			if restored == "" {
				restored = model.StatusSitePublish
			}
			sub.PreviousStatus = sub.Status
			sub.Status = restored
			return nil
		case action == ActionSubmit && sub.Status == model.StatusSitePublish:
			sub.PreviousStatus = sub.Status
			sub.Status = model.StatusSendToHQ
			return nil
		}
		return fmt.Errorf("%w: invalid status transition for admin", ErrPermissionDenied)

	case model.RoleSuperAdmin:
		switch {
		case action == ActionApprove && sub.Status == model.StatusSendToHQ:
			sub.PreviousStatus = sub.Status
			sub.Status = model.StatusHQApproved
			return nil
		case action == ActionSiteHold && sub.Status == model.StatusSendToHQ:
			sub.PreviousStatus = sub.Status
			sub.Status = model.StatusSiteHold
			return nil
		case action == ActionRelease && sub.Status == model.StatusSiteHold:
			restored := sub.PreviousStatus
			if restored == "" {
				restored = model.StatusSendToHQ
			}
			sub.PreviousStatus = sub.Status
			sub.Status = restored
			return nil
		}
		return fmt.Errorf("%w: invalid status transition for superadmin", ErrPermissionDenied)
	}

	return fmt.Errorf("%w: unknown role %q", ErrPermissionDenied, principal.Role)
}
