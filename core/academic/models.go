package academic

import (
	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/user"
)

var (
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrProctorNotFound    = core.NewNotFoundError("proctor")
	ErrHODNotFound        = core.NewNotFoundError("HOD profile")
	ErrAttendanceNotFound = core.NewNotFoundError("attendance record")
	ErrMarksNotFound      = core.NewNotFoundError("marks record")
)

type Branch struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Section struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type StudentProfile struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	USN      string `json:"usn"`
	Branch   string `json:"branch"`
	Semester int    `json:"semester"`
	Section  string `json:"section"`

	BloodGroup string `json:"blood_group"`
	DOB        string `json:"dob"` // YYYY-MM-DD
	Phone      string `json:"phone"`
	Email      string `json:"email"`

	FatherName  string `json:"father_name"`
	FatherPhone string `json:"father_phone"`
	MotherName  string `json:"mother_name"`
	MotherPhone string `json:"mother_phone"`

	PermanentAddress string `json:"permanent_address"`
	LocalAddress     string `json:"local_address"`

	FirstYearFee  *float64 `json:"first_year_fee"`
	SecondYearFee *float64 `json:"second_year_fee"`
	ThirdYearFee  *float64 `json:"third_year_fee"`
	FourthYearFee *float64 `json:"fourth_year_fee"`

	// ProctorUserID is the assigned proctor's user id; empty when unassigned.
	ProctorUserID string `json:"proctor_id"`
}

// Target returns the guard facts of the student.
func (sp StudentProfile) Target() access.Target {
	return access.StudentTarget(sp.UserID, sp.ProctorUserID)
}

type ProctorProfile struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	Department string `json:"department"`
}

type HODProfile struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id"`
	Username   string `json:"username"`
	Department string `json:"department"`
}

type AttendanceRecord struct {
	ID              string `json:"id"`
	StudentID       string `json:"student_id"`
	Subject         string `json:"subject"`
	TotalClasses    int    `json:"total_classes"`
	AttendedClasses int    `json:"attended_classes"`
}

// Percent is this record's own attendance, 0 when no class was held.
func (ar AttendanceRecord) Percent() float64 {
	if ar.TotalClasses == 0 {
		return 0
	}
	return core.Round2(float64(ar.AttendedClasses) / float64(ar.TotalClasses) * 100)
}

// MarksRecord numbers are all operator-entered; nil means not entered yet.
type MarksRecord struct {
	ID                   string   `json:"id"`
	StudentID            string   `json:"student_id"`
	Semester             int      `json:"semester"`
	Subject              string   `json:"subject"`
	SubjectCode          string   `json:"subject_code"`
	Internal1            *float64 `json:"internal1"`
	Internal2            *float64 `json:"internal2"`
	TotalInternal        *float64 `json:"total_internal"`
	External             *float64 `json:"external"`
	TotalMarks           *float64 `json:"total_marks"`
	AttendancePercentage *float64 `json:"attendance_percentage"`
	Percentage           *float64 `json:"percentage"`
}

// Total is internal1 + internal2 + external, missing values counting as 0.
func (mr MarksRecord) Total() float64 {
	return val(mr.Internal1) + val(mr.Internal2) + val(mr.External)
}

func val(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

// StudentQueryFilter narrows student listings; zero values match everything.
type StudentQueryFilter struct {
	Branch        string `query:"branch"`
	Semester      int    `query:"semester"`
	ProctorUserID string `query:"proctor_id"`
}

// StudentAccount is what a signup stores atomically.
type StudentAccount struct {
	User    user.User
	Profile StudentProfile
}

type ProctorAccount struct {
	User    user.User
	Profile ProctorProfile
}

type HODAccount struct {
	User    user.User
	Profile HODProfile
}

// AttendanceChanges are applied to one student in a single transaction.
type AttendanceChanges struct {
	Upserts   []AttendanceRecord // records without an ID are created
	DeleteIDs []string
}

// MarksChanges are applied to one student in a single transaction.
type MarksChanges struct {
	Upserts   []MarksRecord // records without an ID are created
	DeleteIDs []string
}
