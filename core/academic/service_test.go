package academic_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/user"
	inmemdb "github.com/trezcool/spis/storage/database/inmem"
	"github.com/trezcool/spis/testutil"
)

func setup(t *testing.T) (*academic.Service, academic.Repository, user.Repository) {
	db := inmemdb.Open()
	usrRepo := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewAcademicRepository(db)
	return academic.NewService(repo, user.NewService(usrRepo)), repo, usrRepo
}

func fieldOf(t *testing.T, err error) string {
	t.Helper()
	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr), "want a validation error, got %v", err)
	require.NotEmpty(t, vErr.Fields)
	return vErr.Fields[0].Field
}

func TestService_Resolve(t *testing.T) {
	svc, repo, usrRepo := setup(t)
	ctx := context.Background()

	proctor := testutil.CreateProctor(t, repo, "proctor", "CSE")
	student := testutil.CreateStudent(t, repo, "student", "1CS001", "CSE", 3)
	testutil.Assign(t, repo, proctor.User.ID, student.Profile.ID)
	hod := testutil.CreateHOD(t, repo, "hod", "ISE")
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.edu", true)
	nobody := testutil.CreateUser(t, usrRepo, "nobody", "nobody@test.edu", false)

	// an HOD who also proctors
	both := testutil.CreateProctor(t, repo, "both", "ECE")
	_, err := svc.PromoteHOD(ctx, "both", "ECE")
	require.NoError(t, err)
	both.User, err = usrRepo.GetUser(ctx, user.GetFilter{ID: both.User.ID})
	require.NoError(t, err)

	tests := []struct {
		name  string
		usr   user.User
		roles []string
		check func(t *testing.T, p access.Principal)
	}{
		{
			name: "student", usr: student.User, roles: []string{"student"},
			check: func(t *testing.T, p access.Principal) {
				assert.Equal(t, student.Profile.ID, p.StudentID)
				assert.Equal(t, "CSE", p.Branch)
				assert.Equal(t, proctor.User.ID, p.ProctorUserID)
			},
		},
		{
			name: "proctor", usr: proctor.User, roles: []string{"proctor"},
			check: func(t *testing.T, p access.Principal) {
				assert.Equal(t, proctor.Profile.ID, p.ProctorID)
				assert.Equal(t, "CSE", p.Department)
			},
		},
		{
			name: "HOD", usr: hod.User, roles: []string{"hod"},
			check: func(t *testing.T, p access.Principal) { assert.Equal(t, "ISE", p.HODDepartment) },
		},
		{name: "superuser", usr: admin, roles: []string{"superuser"}},
		{name: "no role", usr: nobody, roles: []string{}},
		{
			name: "roles stack", usr: both.User, roles: []string{"proctor", "hod"},
			check: func(t *testing.T, p access.Principal) {
				assert.Equal(t, "ECE", p.Department)
				assert.Equal(t, "ECE", p.HODDepartment)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.Resolve(ctx, tt.usr)
			require.NoError(t, err)
			assert.Equal(t, tt.usr.ID, p.UserID)
			assert.Equal(t, tt.roles, p.Roles.Names())
			if tt.check != nil {
				tt.check(t, p)
			}
		})
	}
}

func TestService_Signups(t *testing.T) {
	svc, repo, usrRepo := setup(t)
	ctx := context.Background()
	validate, _ := testutil.Validator()

	signup := academic.StudentSignup{
		NewUser: user.NewUser{
			Username:        " Asha ",
			Email:           "asha@test.edu",
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
		},
		USN:    " 1cs001 ",
		Branch: "CSE",
	}
	require.NoError(t, signup.Validate(validate))
	assert.Equal(t, "asha", signup.Username)
	assert.Equal(t, "1CS001", signup.USN)
	assert.Equal(t, 1, signup.Semester)

	acc, err := svc.SignupStudent(ctx, signup)
	require.NoError(t, err)
	assert.NotEmpty(t, acc.User.ID)
	assert.Equal(t, acc.User.ID, acc.Profile.UserID)

	sp, err := repo.GetStudentByUSN(ctx, "1CS001")
	require.NoError(t, err)
	assert.Equal(t, "asha", sp.Username)

	t.Run("duplicate USN", func(t *testing.T) {
		dup := signup
		dup.Username, dup.Email = "other", "other@test.edu"
		_, err := svc.SignupStudent(ctx, dup)
		var cErr *core.ConflictError
		require.True(t, errors.As(err, &cErr), "got %v", err)
		assert.Equal(t, "usn", cErr.Field)
	})

	t.Run("duplicate username", func(t *testing.T) {
		_, err := svc.SignupProctor(ctx, academic.ProctorSignup{NewUser: user.NewUser{Username: "asha", Password: testutil.Password}})
		var cErr *core.ConflictError
		require.True(t, errors.As(err, &cErr), "got %v", err)
		assert.Equal(t, "username", cErr.Field)
	})

	hodSignup := academic.HODSignup{NewUser: user.NewUser{Username: "head", Password: testutil.Password}, Department: "CSE"}

	t.Run("HOD signup is reserved to superusers", func(t *testing.T) {
		hod := testutil.CreateHOD(t, repo, "hod", "CSE")
		for _, p := range []access.Principal{{}, testutil.Principal(t, svc, hod.User)} {
			_, err := svc.SignupHOD(ctx, p, hodSignup)
			assert.Equal(t, core.ErrForbidden, err)
		}
		_, err := usrRepo.GetUser(ctx, user.GetFilter{Username: "head"})
		assert.True(t, core.IsNotFound(err))
	})

	t.Run("HOD joins the group", func(t *testing.T) {
		admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.edu", true)
		acc, err := svc.SignupHOD(ctx, testutil.Principal(t, svc, admin), hodSignup)
		require.NoError(t, err)
		assert.True(t, acc.User.InGroup(user.GroupHOD))
		hp, err := repo.GetHODByUserID(ctx, acc.User.ID)
		require.NoError(t, err)
		assert.Equal(t, "CSE", hp.Department)
	})

	t.Run("invalid forms", func(t *testing.T) {
		bad := academic.StudentSignup{
			NewUser: user.NewUser{Username: "bob", Password: testutil.Password, PasswordConfirm: testutil.Password},
			USN:     "1CS-01",
			Branch:  "CSE",
		}
		assert.Error(t, bad.Validate(validate))

		bad.USN, bad.Semester = "1CS010", 9
		assert.Error(t, bad.Validate(validate))

		bad.Semester, bad.PasswordConfirm = 2, "nope"
		assert.Error(t, bad.Validate(validate))
	})
}

func TestService_StudentAccess(t *testing.T) {
	svc, repo, usrRepo := setup(t)
	ctx := context.Background()

	proctor := testutil.CreateProctor(t, repo, "proctor", "CSE")
	other := testutil.CreateProctor(t, repo, "other", "CSE")
	student := testutil.CreateStudent(t, repo, "student", "1CS001", "CSE", 3)
	peer := testutil.CreateStudent(t, repo, "peer", "1CS002", "CSE", 3)
	hod := testutil.CreateHOD(t, repo, "hod", "ME")
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.edu", true)
	testutil.Assign(t, repo, proctor.User.ID, student.Profile.ID)

	update := academic.StudentUpdate{USN: "1CS001", Branch: "CSE", Semester: 4, Phone: "9999"}

	tests := []struct {
		name    string
		usr     user.User
		wantErr error
	}{
		{name: "self", usr: student.User},
		{name: "assigned proctor", usr: proctor.User},
		{name: "any HOD", usr: hod.User},
		{name: "superuser", usr: admin},
		{name: "other proctor", usr: other.User, wantErr: core.ErrForbidden},
		{name: "other student", usr: peer.User, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testutil.Principal(t, svc, tt.usr)

			h, err := svc.StudentHistory(ctx, p, "1CS001")
			assert.Equal(t, tt.wantErr, err)
			if err == nil {
				assert.NotNil(t, h.Attendance)
				assert.NotNil(t, h.Marks)
			}

			sp, err := svc.UpdateStudent(ctx, p, "1cs001", update)
			assert.Equal(t, tt.wantErr, err)
			if err == nil {
				assert.Equal(t, "9999", sp.Phone)
				assert.Equal(t, proctor.User.ID, sp.ProctorUserID)
			}
		})
	}

	t.Run("unknown USN", func(t *testing.T) {
		p := testutil.Principal(t, svc, admin)
		_, err := svc.GetStudent(ctx, p, "NOPE")
		assert.Equal(t, academic.ErrStudentNotFound, err)
	})

	t.Run("USN taken", func(t *testing.T) {
		p := testutil.Principal(t, svc, admin)
		_, err := svc.UpdateStudent(ctx, p, "1CS001", academic.StudentUpdate{USN: "1CS002", Branch: "CSE", Semester: 4})
		var cErr *core.ConflictError
		require.True(t, errors.As(err, &cErr), "got %v", err)
		assert.Equal(t, "usn", cErr.Field)
	})

	t.Run("own profile", func(t *testing.T) {
		p := testutil.Principal(t, svc, peer.User)
		sp, err := svc.UpdateOwnProfile(ctx, p, academic.ProfileUpdate{Phone: "123", Semester: 5, Branch: "ISE", Section: "B"})
		require.NoError(t, err)
		assert.Equal(t, 5, sp.Semester)
		assert.Equal(t, "ISE", sp.Branch)

		p = testutil.Principal(t, svc, proctor.User)
		_, err = svc.UpdateOwnProfile(ctx, p, academic.ProfileUpdate{Semester: 5, Branch: "ISE"})
		assert.Equal(t, core.ErrForbidden, err)
	})
}

func TestService_SaveAttendance(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	validate, _ := testutil.Validator()

	proctor := testutil.CreateProctor(t, repo, "proctor", "CSE")
	student := testutil.CreateStudent(t, repo, "student", "1CS001", "CSE", 3)
	other := testutil.CreateStudent(t, repo, "other", "1CS002", "CSE", 3)
	hod := testutil.CreateHOD(t, repo, "hod", "CSE")
	testutil.Assign(t, repo, proctor.User.ID, student.Profile.ID)
	pp := testutil.Principal(t, svc, proctor.User)

	records, err := svc.SaveAttendance(ctx, pp, "1CS001", academic.AttendanceInput{Records: []academic.AttendanceRow{
		{Subject: "Maths", TotalClasses: 10, AttendedClasses: 8},
		{Subject: "DBMS", TotalClasses: 10, AttendedClasses: 9},
	}})
	require.NoError(t, err)
	require.Len(t, records, 2)
	maths, dbms := records[0], records[1]

	t.Run("update, create and delete together", func(t *testing.T) {
		records, err := svc.SaveAttendance(ctx, pp, "1CS001", academic.AttendanceInput{Records: []academic.AttendanceRow{
			{ID: maths.ID, Subject: "Maths", TotalClasses: 12, AttendedClasses: 12},
			{ID: dbms.ID, Delete: true},
			{Subject: "OS", TotalClasses: 5, AttendedClasses: 1},
		}})
		require.NoError(t, err)
		require.Len(t, records, 2)
		assert.Equal(t, maths.ID, records[0].ID)
		assert.Equal(t, 12, records[0].AttendedClasses)
		assert.Equal(t, "OS", records[1].Subject)
	})

	t.Run("foreign record leaves everything untouched", func(t *testing.T) {
		op := testutil.Principal(t, svc, other.User)
		foreign, err := svc.SaveAttendance(ctx, op, "1CS002", academic.AttendanceInput{Records: []academic.AttendanceRow{
			{Subject: "Maths", TotalClasses: 1, AttendedClasses: 1},
		}})
		require.NoError(t, err)

		_, err = svc.SaveAttendance(ctx, pp, "1CS001", academic.AttendanceInput{Records: []academic.AttendanceRow{
			{Subject: "New", TotalClasses: 1, AttendedClasses: 1},
			{ID: foreign[0].ID, Subject: "Maths", TotalClasses: 2, AttendedClasses: 2},
		}})
		assert.Equal(t, academic.ErrAttendanceNotFound, err)

		records, err := repo.QueryAttendance(ctx, student.Profile.ID)
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("HODs cannot edit records", func(t *testing.T) {
		hp := testutil.Principal(t, svc, hod.User)
		_, err := svc.SaveAttendance(ctx, hp, "1CS001", academic.AttendanceInput{})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("attended cannot exceed total", func(t *testing.T) {
		in := academic.AttendanceInput{Records: []academic.AttendanceRow{{Subject: "Maths", TotalClasses: 3, AttendedClasses: 4}}}
		assert.Error(t, in.Validate(validate))

		in = academic.AttendanceInput{Records: []academic.AttendanceRow{{ID: maths.ID, TotalClasses: 3, AttendedClasses: 4, Delete: true}}}
		assert.NoError(t, in.Validate(validate))
	})
	t.Run("history reports attendance per subject", func(t *testing.T) {
		h, err := svc.StudentHistory(ctx, pp, "1CS001")
		require.NoError(t, err)
		assert.Equal(t, map[string]float64{"Maths": 100, "OS": 20}, h.SubjectAttendance)
		assert.Equal(t, 76.47, h.AttendancePercent)
	})
}

func TestService_SaveSemesterMarks(t *testing.T) {
	svc, repo, _ := setup(t)
	ctx := context.Background()
	f64 := testutil.Float

	student := testutil.CreateStudent(t, repo, "student", "1CS001", "CSE", 3)
	sp := testutil.Principal(t, svc, student.User)

	all, err := svc.SaveMarks(ctx, sp, "1CS001", academic.MarksInput{Records: []academic.MarksRow{
		{Subject: "Maths", Internal1: f64(20)},
		{Semester: 1, Subject: "Physics", Internal1: f64(10)},
	}})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, 3, all[0].Semester)
	physics := all[1]

	t.Run("rows are forced into the semester", func(t *testing.T) {
		records, err := svc.SaveSemesterMarks(ctx, sp, "1CS001", 2, academic.MarksInput{Records: []academic.MarksRow{
			{Semester: 5, Subject: "Chemistry", External: f64(40)},
		}})
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 2, records[0].Semester)
	})

	t.Run("other semesters are out of reach", func(t *testing.T) {
		_, err := svc.SaveSemesterMarks(ctx, sp, "1CS001", 2, academic.MarksInput{Records: []academic.MarksRow{
			{ID: physics.ID, Delete: true},
		}})
		assert.Equal(t, academic.ErrMarksNotFound, err)
	})

	t.Run("invalid semester", func(t *testing.T) {
		_, err := svc.SaveSemesterMarks(ctx, sp, "1CS001", 0, academic.MarksInput{})
		assert.Equal(t, "semester", fieldOf(t, err))
	})
}

func TestService_Assignment(t *testing.T) {
	svc, repo, usrRepo := setup(t)
	ctx := context.Background()

	hod := testutil.CreateHOD(t, repo, "hod", "CSE")
	proctor := testutil.CreateProctor(t, repo, "proctor", "CSE")
	next := testutil.CreateProctor(t, repo, "next", "CSE")
	st1 := testutil.CreateStudent(t, repo, "st1", "1CS001", "CSE", 3)
	st2 := testutil.CreateStudent(t, repo, "st2", "1CS002", "CSE", 3)
	plain := testutil.CreateUser(t, usrRepo, "plain", "plain@test.edu", false)
	hp := testutil.Principal(t, svc, hod.User)

	t.Run("proctors cannot manage", func(t *testing.T) {
		pp := testutil.Principal(t, svc, proctor.User)
		_, err := svc.BulkAssign(ctx, pp, academic.BulkAssignment{StudentIDs: []string{st1.Profile.ID}, ProctorID: proctor.User.ID})
		assert.Equal(t, core.ErrForbidden, err)
	})

	t.Run("empty selection", func(t *testing.T) {
		n, err := svc.BulkAssign(ctx, hp, academic.BulkAssignment{StudentIDs: []string{" "}, ProctorID: proctor.User.ID})
		assert.Zero(t, n)
		assert.Equal(t, "student_ids", fieldOf(t, err))
	})

	t.Run("unknown student writes nothing", func(t *testing.T) {
		_, err := svc.BulkAssign(ctx, hp, academic.BulkAssignment{StudentIDs: []string{st1.Profile.ID, "ghost"}, ProctorID: proctor.User.ID})
		assert.Equal(t, "student_ids", fieldOf(t, err))
		assert.Contains(t, err.Error(), "ghost")

		sp, err := repo.GetStudent(ctx, st1.Profile.ID)
		require.NoError(t, err)
		assert.Empty(t, sp.ProctorUserID)
	})

	t.Run("target must be a proctor", func(t *testing.T) {
		_, err := svc.BulkAssign(ctx, hp, academic.BulkAssignment{StudentIDs: []string{st1.Profile.ID}, ProctorID: plain.ID})
		assert.Equal(t, "proctor_id", fieldOf(t, err))
		_, err = svc.Reassign(ctx, hp, "1CS001", plain.ID)
		assert.Equal(t, "proctor_id", fieldOf(t, err))
	})

	t.Run("bulk", func(t *testing.T) {
		n, err := svc.BulkAssign(ctx, hp, academic.BulkAssignment{
			StudentIDs: []string{st1.Profile.ID, st2.Profile.ID, st1.Profile.ID},
			ProctorID:  proctor.User.ID,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		students, err := repo.QueryStudents(ctx, academic.StudentQueryFilter{ProctorUserID: proctor.User.ID}, nil)
		require.NoError(t, err)
		assert.Len(t, students, 2)
	})

	t.Run("reassign is idempotent", func(t *testing.T) {
		sp, err := svc.Reassign(ctx, hp, "1cs001", next.User.ID)
		require.NoError(t, err)
		assert.Equal(t, next.User.ID, sp.ProctorUserID)

		again, err := svc.Reassign(ctx, hp, "1CS001", next.User.ID)
		require.NoError(t, err)
		assert.Equal(t, sp, again)
	})

	t.Run("deleting a proctor unassigns its students", func(t *testing.T) {
		require.NoError(t, svc.DeleteProctor(ctx, hp, next.Profile.ID))
		sp, err := repo.GetStudent(ctx, st1.Profile.ID)
		require.NoError(t, err)
		assert.Empty(t, sp.ProctorUserID)
	})
}

func TestService_Management(t *testing.T) {
	svc, repo, usrRepo := setup(t)
	ctx := context.Background()

	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.edu", true)
	proctor := testutil.CreateProctor(t, repo, "proctor", "CSE")
	testutil.CreateStudent(t, repo, "b", "1CS002", "ISE", 5)
	a := testutil.CreateStudent(t, repo, "a", "1CS001", "CSE", 3)
	ap := testutil.Principal(t, svc, admin)

	students, err := svc.QueryStudents(ctx, ap, academic.StudentQueryFilter{}, []core.DBOrdering{{Field: "semester", Ascending: false}, {Field: "password"}})
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "1CS002", students[0].USN)

	students, err = svc.QueryStudents(ctx, ap, academic.StudentQueryFilter{Branch: "CSE"}, nil)
	require.NoError(t, err)
	require.Len(t, students, 1)

	sp, err := svc.ManageStudent(ctx, ap, a.Profile.ID, academic.ManagedStudentUpdate{USN: "1CS001", Branch: "CSE", Semester: 4, ProctorID: proctor.User.ID})
	require.NoError(t, err)
	assert.Equal(t, proctor.User.ID, sp.ProctorUserID)

	sp, err = svc.ManageStudent(ctx, ap, a.Profile.ID, academic.ManagedStudentUpdate{USN: "1CS001", Branch: "CSE", Semester: 4})
	require.NoError(t, err)
	assert.Empty(t, sp.ProctorUserID)

	pp, err := svc.UpdateProctor(ctx, ap, proctor.Profile.ID, academic.ProctorUpdate{Department: "ISE"})
	require.NoError(t, err)
	assert.Equal(t, "ISE", pp.Department)

	require.NoError(t, svc.DeleteStudent(ctx, ap, a.Profile.ID))
	_, err = repo.GetStudent(ctx, a.Profile.ID)
	assert.Equal(t, academic.ErrStudentNotFound, err)

	sp2 := testutil.Principal(t, svc, proctor.User)
	_, err = svc.QueryProctors(ctx, sp2)
	assert.Equal(t, core.ErrForbidden, err)
}
