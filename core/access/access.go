// Package access resolves what a principal may do.
//
// A Principal is resolved once per request from the authenticated user and its profiles.
// Every read or write of guarded data goes through Can (or Check) with the relevant Target facts.
package access

import "github.com/trezcool/spis/core"

// Role is a bit set: a principal may hold several roles at once.
type Role uint8

const (
	RoleStudent Role = 1 << iota
	RoleProctor
	RoleHOD
	RoleSuperuser
)

var roleNames = []struct {
	role Role
	name string
}{
	{RoleStudent, "student"},
	{RoleProctor, "proctor"},
	{RoleHOD, "hod"},
	{RoleSuperuser, "superuser"},
}

func (r Role) Has(role Role) bool { return r&role == role }

func (r Role) Names() []string {
	names := make([]string, 0, len(roleNames))
	for _, rn := range roleNames {
		if r.Has(rn.role) {
			names = append(names, rn.name)
		}
	}
	return names
}

// Principal is the authenticated user plus the facts its roles are derived from.
type Principal struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Roles    Role   `json:"-"`

	// set for students
	StudentID     string `json:"student_id,omitempty"`
	USN           string `json:"usn,omitempty"`
	Branch        string `json:"branch,omitempty"`
	ProctorUserID string `json:"proctor_user_id,omitempty"` // assigned proctor, if any

	// set for proctors
	ProctorID  string `json:"proctor_id,omitempty"`
	Department string `json:"department,omitempty"`

	// set for HODs with a profile
	HODDepartment string `json:"hod_department,omitempty"`
}

func (p Principal) IsSuperuser() bool { return p.Roles.Has(RoleSuperuser) }
func (p Principal) IsHOD() bool       { return p.Roles.Has(RoleHOD) }
func (p Principal) IsStudent() bool   { return p.Roles.Has(RoleStudent) }
func (p Principal) IsProctor() bool   { return p.Roles.Has(RoleProctor) }

// BroadcastDepartment is the department string broadcasts are matched against:
// a student's branch, a proctor's department or an HOD's department, in that order.
func (p Principal) BroadcastDepartment() string {
	switch {
	case p.IsStudent():
		return p.Branch
	case p.IsProctor() && p.Department != "":
		return p.Department
	case p.IsHOD():
		return p.HODDepartment
	}
	return ""
}

type Action int

const (
	// ViewStudent covers dashboards, profile detail, history and the performance API.
	ViewStudent Action = iota + 1
	// EditStudent uses the same rule as ViewStudent.
	EditStudent
	// EditRecords covers attendance and marks.
	EditRecords
	ScheduleMeeting
	MeetingChat
	ManageProfiles
	AuthorBroadcast
	ViewBroadcast
	// ProvisionHOD creates HOD accounts; HOD group membership alone unlocks ManageProfiles.
	ProvisionHOD
)

var actionNames = map[Action]string{
	ViewStudent:     "view_student",
	EditStudent:     "edit_student",
	EditRecords:     "edit_records",
	ScheduleMeeting: "schedule_meeting",
	MeetingChat:     "meeting_chat",
	ManageProfiles:  "manage_profiles",
	AuthorBroadcast: "author_broadcast",
	ViewBroadcast:   "view_broadcast",
	ProvisionHOD:    "provision_hod",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// Target carries the facts about the guarded entity that the rules need.
type Target struct {
	StudentUserID         string
	AssignedProctorUserID string

	MeetingProctorUserID string
	MeetingStudentIDs    []string

	Department string
}

// StudentTarget describes a student profile.
func StudentTarget(studentUserID, proctorUserID string) Target {
	return Target{StudentUserID: studentUserID, AssignedProctorUserID: proctorUserID}
}

// Can reports whether p may perform action on t. It never fails: unknown actions are denied.
func Can(p Principal, action Action, t Target) bool {
	if p.UserID == "" {
		return false
	}

	switch action {
	case ViewStudent, EditStudent:
		return p.IsSuperuser() || p.IsHOD() || isSelf(p, t) || isAssignedProctor(p, t)
	case EditRecords:
		return p.IsSuperuser() || isSelf(p, t) || isAssignedProctor(p, t)
	case ScheduleMeeting:
		return p.IsProctor()
	case MeetingChat:
		if p.IsProctor() && t.MeetingProctorUserID != "" && t.MeetingProctorUserID == p.UserID {
			return true
		}
		if p.IsStudent() {
			for _, id := range t.MeetingStudentIDs {
				if id == p.StudentID {
					return true
				}
			}
		}
		return false
	case ManageProfiles:
		return p.IsHOD() || p.IsSuperuser()
	case AuthorBroadcast:
		return p.IsHOD()
	case ViewBroadcast:
		dept := p.BroadcastDepartment()
		return dept != "" && dept == t.Department
	case ProvisionHOD:
		return p.IsSuperuser()
	}
	return false
}

// Check is Can returning core.ErrForbidden on denial.
func Check(p Principal, action Action, t Target) error {
	if !Can(p, action, t) {
		return core.ErrForbidden
	}
	return nil
}

func isSelf(p Principal, t Target) bool {
	return p.IsStudent() && t.StudentUserID != "" && t.StudentUserID == p.UserID
}

func isAssignedProctor(p Principal, t Target) bool {
	return t.AssignedProctorUserID != "" && t.AssignedProctorUserID == p.UserID
}
