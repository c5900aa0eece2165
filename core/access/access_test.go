package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/spis/core"
)

var (
	student = Principal{UserID: "u-student", Roles: RoleStudent, StudentID: "s-1", USN: "1AB21CS001", Branch: "CSE", ProctorUserID: "u-proctor"}
	other   = Principal{UserID: "u-other", Roles: RoleStudent, StudentID: "s-2", USN: "1AB21IS002", Branch: "ISE"}
	proctor = Principal{UserID: "u-proctor", Roles: RoleProctor, ProctorID: "p-1", Department: "CSE"}
	stray   = Principal{UserID: "u-stray", Roles: RoleProctor, ProctorID: "p-2", Department: "CSE"}
	hod     = Principal{UserID: "u-hod", Roles: RoleHOD, HODDepartment: "CSE"}
	admin   = Principal{UserID: "u-admin", Roles: RoleSuperuser}
	nobody  = Principal{UserID: "u-nobody"}

	studentTarget = StudentTarget("u-student", "u-proctor")
)

func TestRole_Names(t *testing.T) {
	assert.Equal(t, []string{"student"}, RoleStudent.Names())
	assert.Equal(t, []string{"proctor", "hod", "superuser"}, (RoleProctor | RoleHOD | RoleSuperuser).Names())
	assert.Empty(t, Role(0).Names())
}

func TestCan_viewStudent(t *testing.T) {
	tests := []struct {
		name string
		p    Principal
		want bool
	}{
		{name: "superuser", p: admin, want: true},
		{name: "hod", p: hod, want: true},
		{name: "self", p: student, want: true},
		{name: "assigned proctor", p: proctor, want: true},
		{name: "other proctor", p: stray},
		{name: "other student", p: other},
		{name: "no role", p: nobody},
		{name: "anonymous", p: Principal{}},
		{name: "superuser stacked on student", p: Principal{UserID: "u-x", Roles: RoleStudent | RoleSuperuser, StudentID: "s-9"}, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Can(tt.p, ViewStudent, studentTarget))
			assert.Equal(t, tt.want, Can(tt.p, EditStudent, studentTarget), "edit must share the view rule")
		})
	}
}

func TestCan_viewStudent_isTotal(t *testing.T) {
	roles := []Role{0, RoleStudent, RoleProctor, RoleHOD, RoleSuperuser, RoleStudent | RoleHOD, RoleProctor | RoleSuperuser}
	targets := []Target{{}, studentTarget, StudentTarget("u-any", ""), StudentTarget("u-any", "u-any")}

	for _, role := range roles {
		for _, tgt := range targets {
			p := Principal{UserID: "u-any", Roles: role, StudentID: "s-any"}
			want := role.Has(RoleSuperuser) || role.Has(RoleHOD) ||
				(role.Has(RoleStudent) && tgt.StudentUserID == p.UserID) ||
				(tgt.AssignedProctorUserID == p.UserID)
			assert.NotPanics(t, func() { Can(p, ViewStudent, tgt) })
			assert.Equal(t, want, Can(p, ViewStudent, tgt), "role=%v target=%+v", role.Names(), tgt)
		}
	}
}

func TestCan_editRecords(t *testing.T) {
	assert.True(t, Can(admin, EditRecords, studentTarget))
	assert.True(t, Can(student, EditRecords, studentTarget))
	assert.True(t, Can(proctor, EditRecords, studentTarget))
	assert.False(t, Can(hod, EditRecords, studentTarget))
	assert.False(t, Can(stray, EditRecords, studentTarget))
	assert.False(t, Can(other, EditRecords, studentTarget))
}

func TestCan_meetings(t *testing.T) {
	meeting := Target{MeetingProctorUserID: "u-proctor", MeetingStudentIDs: []string{"s-1"}}

	assert.True(t, Can(proctor, ScheduleMeeting, Target{}))
	assert.True(t, Can(stray, ScheduleMeeting, Target{}))
	assert.False(t, Can(student, ScheduleMeeting, Target{}))
	assert.False(t, Can(hod, ScheduleMeeting, Target{}))
	assert.False(t, Can(admin, ScheduleMeeting, Target{}))

	assert.True(t, Can(proctor, MeetingChat, meeting), "owner")
	assert.True(t, Can(student, MeetingChat, meeting), "member")
	assert.False(t, Can(stray, MeetingChat, meeting))
	assert.False(t, Can(other, MeetingChat, meeting))
	assert.False(t, Can(hod, MeetingChat, meeting))
	assert.False(t, Can(admin, MeetingChat, meeting))
}

func TestCan_manageAndBroadcast(t *testing.T) {
	assert.True(t, Can(hod, ManageProfiles, Target{}))
	assert.True(t, Can(admin, ManageProfiles, Target{}))
	assert.False(t, Can(proctor, ManageProfiles, Target{}))
	assert.False(t, Can(student, ManageProfiles, Target{}))

	assert.True(t, Can(hod, AuthorBroadcast, Target{}))
	assert.False(t, Can(admin, AuthorBroadcast, Target{}))
	assert.False(t, Can(proctor, AuthorBroadcast, Target{}))
}

func TestCan_viewBroadcast(t *testing.T) {
	cse := Target{Department: "CSE"}

	assert.True(t, Can(student, ViewBroadcast, cse))
	assert.False(t, Can(other, ViewBroadcast, cse))
	assert.True(t, Can(proctor, ViewBroadcast, cse))
	assert.True(t, Can(hod, ViewBroadcast, cse))
	assert.False(t, Can(student, ViewBroadcast, Target{Department: "cse"}), "match is case-sensitive")
	assert.False(t, Can(nobody, ViewBroadcast, Target{}), "empty departments never match")
}

func TestCan_provisionHOD(t *testing.T) {
	assert.True(t, Can(admin, ProvisionHOD, Target{}))
	assert.False(t, Can(hod, ProvisionHOD, Target{}), "HODs cannot mint other HODs")
	assert.False(t, Can(proctor, ProvisionHOD, Target{}))
	assert.False(t, Can(student, ProvisionHOD, Target{}))
	assert.False(t, Can(nobody, ProvisionHOD, Target{}))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(hod, ManageProfiles, Target{}))
	assert.Equal(t, core.ErrForbidden, Check(student, ManageProfiles, Target{}))
	assert.Equal(t, core.ErrForbidden, Check(admin, Action(99), Target{}))
	assert.Equal(t, "unknown", Action(99).String())
	assert.Equal(t, "view_student", ViewStudent.String())
}
