package academic

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/access"
)

var (
	errNoStudentsSelected = "no students selected"
	errNotAProctor        = "user is not a proctor"
)

// checkProctorTarget rejects users without a proctor profile.
func (svc *Service) checkProctorTarget(ctx context.Context, proctorUserID string) error {
	if _, err := svc.repo.GetProctorByUserID(ctx, proctorUserID); err != nil {
		if core.IsNotFound(err) {
			return core.NewValidationError(nil, core.FieldError{Field: "proctor_id", Error: errNotAProctor})
		}
		return errors.Wrap(err, "finding proctor profile")
	}
	return nil
}

// Reassign links the student with usn to the proctor. Reassigning to the current proctor is a no-op.
func (svc *Service) Reassign(ctx context.Context, p access.Principal, usn, proctorUserID string) (StudentProfile, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return StudentProfile{}, err
	}
	sp, err := svc.repo.GetStudentByUSN(ctx, CleanUSN(usn))
	if err != nil {
		return StudentProfile{}, err
	}
	proctorUserID = core.CleanString(proctorUserID)
	if err = svc.checkProctorTarget(ctx, proctorUserID); err != nil {
		return StudentProfile{}, err
	}
	if sp.ProctorUserID == proctorUserID {
		return sp, nil
	}

	if err = svc.repo.AssignProctor(ctx, []string{sp.ID}, proctorUserID); err != nil {
		return StudentProfile{}, errors.Wrap(err, "assigning proctor")
	}
	sp.ProctorUserID = proctorUserID
	return sp, nil
}

// BulkAssign links every selected student to the proctor in one transaction and returns how many were linked.
// Nothing is written when the selection is empty or names an unknown student.
func (svc *Service) BulkAssign(ctx context.Context, p access.Principal, data BulkAssignment) (int, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(data.StudentIDs))
	seen := make(map[string]bool, len(data.StudentIDs))
	for _, id := range data.StudentIDs {
		id = core.CleanString(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return 0, core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: errNoStudentsSelected})
	}

	proctorUserID := core.CleanString(data.ProctorID)
	if err := svc.checkProctorTarget(ctx, proctorUserID); err != nil {
		return 0, err
	}

	if err := svc.repo.AssignProctor(ctx, ids, proctorUserID); err != nil {
		if unknown, ok := errors.Cause(err).(*UnknownStudentsError); ok {
			return 0, core.NewValidationError(unknown, core.FieldError{Field: "student_ids", Error: unknown.Error()})
		}
		return 0, errors.Wrap(err, "assigning proctor")
	}
	return len(ids), nil
}
