package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/testutil"
)

func Test_manageApi_students(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	hod := testutil.CreateHOD(t, f.academicRepo, "hod", "CSE")
	admin := testutil.CreateUser(t, f.usrRepo, "admin", "admin@test.edu", true)
	proctor := testutil.CreateProctor(t, f.academicRepo, "proctor", "CSE")
	s1 := testutil.CreateStudent(t, f.academicRepo, "s1", "1CS001", "CSE", 3)
	s2 := testutil.CreateStudent(t, f.academicRepo, "s2", "1CS002", "CSE", 5)
	s3 := testutil.CreateStudent(t, f.academicRepo, "s3", "1IS001", "ISE", 3)
	testutil.Assign(t, f.academicRepo, proctor.User.ID, s2.Profile.ID)

	get := func(acc academic.StudentAccount) academic.StudentProfile {
		sp, err := f.academicRepo.GetStudent(ctx, acc.Profile.ID)
		require.NoError(t, err)
		return sp
	}
	hodToken := f.token(t, hod.User)
	forbidden := marchallObj(t, errForbidden)

	f.run(t, []httpTest{
		{name: "auth required", path: "/api/manage/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "students may not manage", path: "/api/manage/students", token: f.token(t, s1.User), wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "proctors may not manage", path: "/api/manage/proctors", token: f.token(t, proctor.User), wantCode: http.StatusForbidden, wantData: forbidden},
		{
			name: "all, ordered", path: "/api/manage/students?ordering=-usn", token: hodToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(s3), get(s2), get(s1)),
		},
		{
			name: "branch", path: "/api/manage/students?branch=ISE", token: f.token(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, get(s3)),
		},
		{
			name: "semester", path: "/api/manage/students?semester=5", token: hodToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(s2)),
		},
		{
			name: "proctor", path: "/api/manage/students?proctor_id=" + proctor.User.ID, token: hodToken,
			wantCode: http.StatusOK, wantData: marchallList(t, get(s2)),
		},
		{
			name: "bad filter", path: "/api/manage/students?semester=five", token: hodToken,
			wantCode: http.StatusOK, wantData: []byte(`[]`),
		},
	})

	t.Run("update", func(t *testing.T) {
		body := marchallObj(t, academic.ManagedStudentUpdate{USN: "1cs001", Branch: "CSE", Semester: 4, ProctorID: proctor.User.ID})
		rec := f.do(http.MethodPut, "/api/manage/students/"+s1.Profile.ID, hodToken, body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sp academic.StudentProfile
		unmarchall(t, rec, &sp)
		assert.Equal(t, 4, sp.Semester)
		assert.Equal(t, proctor.User.ID, sp.ProctorUserID)

		rec = f.do(http.MethodPut, "/api/manage/students/nope", hodToken, body)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("delete", func(t *testing.T) {
		rec := f.do(http.MethodDelete, "/api/manage/students/"+s3.Profile.ID, hodToken)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		_, err := f.academicRepo.GetStudent(ctx, s3.Profile.ID)
		assert.True(t, core.IsNotFound(err))
	})
}

func Test_manageApi_proctors(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	hod := testutil.CreateHOD(t, f.academicRepo, "hod", "CSE")
	proctor := testutil.CreateProctor(t, f.academicRepo, "proctor", "CSE")
	student := testutil.CreateStudent(t, f.academicRepo, "student", "1CS001", "CSE", 3)
	testutil.Assign(t, f.academicRepo, proctor.User.ID, student.Profile.ID)
	token := f.token(t, hod.User)

	rec := f.do(http.MethodGet, "/api/manage/proctors", token)
	require.Equal(t, http.StatusOK, rec.Code)
	var proctors []academic.ProctorProfile
	unmarchall(t, rec, &proctors)
	require.Len(t, proctors, 1)
	assert.Equal(t, proctor.Profile.ID, proctors[0].ID)

	rec = f.do(http.MethodPut, "/api/manage/proctors/"+proctor.Profile.ID, token, marchallObj(t, academic.ProctorUpdate{Department: "ISE"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var pp academic.ProctorProfile
	unmarchall(t, rec, &pp)
	assert.Equal(t, "ISE", pp.Department)

	rec = f.do(http.MethodDelete, "/api/manage/proctors/"+proctor.Profile.ID, token)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	sp, err := f.academicRepo.GetStudent(ctx, student.Profile.ID)
	require.NoError(t, err)
	assert.Empty(t, sp.ProctorUserID)
}

func Test_manageApi_assign(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	hod := testutil.CreateHOD(t, f.academicRepo, "hod", "CSE")
	proctor := testutil.CreateProctor(t, f.academicRepo, "proctor", "CSE")
	s1 := testutil.CreateStudent(t, f.academicRepo, "s1", "1CS001", "CSE", 3)
	s2 := testutil.CreateStudent(t, f.academicRepo, "s2", "1CS002", "CSE", 3)
	token := f.token(t, hod.User)

	f.run(t, []httpTest{
		{
			name: "proctor required", method: http.MethodPost, path: "/api/manage/reassign/1CS001", token: token, body: []byte(`{}`),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"proctor_id": "this field is required"}),
		},
		{
			name: "not a proctor", method: http.MethodPost, path: "/api/manage/reassign/1CS001", token: token,
			body:     marchallObj(t, academic.Reassignment{ProctorID: s2.User.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"proctor_id": "user is not a proctor"}),
		},
		{
			name: "unknown student", method: http.MethodPost, path: "/api/manage/reassign/NOPE", token: token,
			body:     marchallObj(t, academic.Reassignment{ProctorID: proctor.User.ID}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{
			name: "nothing selected", method: http.MethodPost, path: "/api/manage/assign", token: token,
			body:     marchallObj(t, academic.BulkAssignment{ProctorID: proctor.User.ID}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"student_ids": "no students selected"}),
		},
		{
			name: "students may not assign", method: http.MethodPost, path: "/api/manage/assign", token: f.token(t, s1.User),
			body:     marchallObj(t, academic.BulkAssignment{StudentIDs: []string{s1.Profile.ID}, ProctorID: proctor.User.ID}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	t.Run("reassign", func(t *testing.T) {
		rec := f.do(http.MethodPost, "/api/manage/reassign/1cs001", token, marchallObj(t, academic.Reassignment{ProctorID: proctor.User.ID}))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var sp academic.StudentProfile
		unmarchall(t, rec, &sp)
		assert.Equal(t, proctor.User.ID, sp.ProctorUserID)
	})

	t.Run("bulk", func(t *testing.T) {
		body := marchallObj(t, academic.BulkAssignment{StudentIDs: []string{s1.Profile.ID, s2.Profile.ID, s2.Profile.ID}, ProctorID: proctor.User.ID})
		f.run(t, []httpTest{
			{
				name: "assigned", method: http.MethodPost, path: "/api/manage/assign", token: token, body: body,
				wantCode: http.StatusOK, wantData: marchallObj(t, AssignResponse{Assigned: 2}),
			},
		})
		sp, err := f.academicRepo.GetStudent(ctx, s2.Profile.ID)
		require.NoError(t, err)
		assert.Equal(t, proctor.User.ID, sp.ProctorUserID)
	})
}
