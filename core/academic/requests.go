package academic

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/user"
)

type StudentSignup struct {
	user.NewUser
	USN      string `json:"usn" validate:"required,max=20,usn"`
	Branch   string `json:"branch" validate:"required,max=50"`
	Semester int    `json:"semester" validate:"semester"`
	Section  string `json:"section" validate:"omitempty,max=5"`
}

func (ss *StudentSignup) Validate(validate *validator.Validate) error {
	ss.NewUser.Clean()
	ss.USN = CleanUSN(ss.USN)
	ss.Branch = core.CleanString(ss.Branch)
	ss.Section = core.CleanString(ss.Section)
	if ss.Semester == 0 {
		ss.Semester = 1
	}
	return validate.Struct(ss)
}

type ProctorSignup struct {
	user.NewUser
	Department string `json:"department" validate:"omitempty,max=100"`
}

func (ps *ProctorSignup) Validate(validate *validator.Validate) error {
	ps.NewUser.Clean()
	ps.Department = core.CleanString(ps.Department)
	return validate.Struct(ps)
}

type HODSignup struct {
	user.NewUser
	Department string `json:"department" validate:"required,max=100"`
}

func (hs *HODSignup) Validate(validate *validator.Validate) error {
	hs.NewUser.Clean()
	hs.Department = core.CleanString(hs.Department)
	return validate.Struct(hs)
}

// StudentUpdate is the full profile form used by the student, their proctor, HODs and superusers.
// The proctor link is not part of it: see Service.Reassign.
type StudentUpdate struct {
	USN              string   `json:"usn" validate:"required,max=20,usn"`
	Branch           string   `json:"branch" validate:"required,max=50"`
	Semester         int      `json:"semester" validate:"semester"`
	Section          string   `json:"section" validate:"omitempty,max=5"`
	BloodGroup       string   `json:"blood_group" validate:"omitempty,max=5"`
	DOB              string   `json:"dob" validate:"omitempty,datetime=2006-01-02"`
	Phone            string   `json:"phone" validate:"omitempty,max=15"`
	Email            string   `json:"email" validate:"omitempty,email"`
	FatherName       string   `json:"father_name" validate:"omitempty,max=100"`
	FatherPhone      string   `json:"father_phone" validate:"omitempty,max=15"`
	MotherName       string   `json:"mother_name" validate:"omitempty,max=100"`
	MotherPhone      string   `json:"mother_phone" validate:"omitempty,max=15"`
	PermanentAddress string   `json:"permanent_address"`
	LocalAddress     string   `json:"local_address"`
	FirstYearFee     *float64 `json:"first_year_fee" validate:"omitempty,min=0"`
	SecondYearFee    *float64 `json:"second_year_fee" validate:"omitempty,min=0"`
	ThirdYearFee     *float64 `json:"third_year_fee" validate:"omitempty,min=0"`
	FourthYearFee    *float64 `json:"fourth_year_fee" validate:"omitempty,min=0"`
}

func (su *StudentUpdate) Validate(validate *validator.Validate) error {
	su.USN = CleanUSN(su.USN)
	su.Branch = core.CleanString(su.Branch)
	su.Section = core.CleanString(su.Section)
	su.Email = core.CleanString(su.Email, true /* lower */)
	su.DOB = core.CleanString(su.DOB)
	return validate.Struct(su)
}

func (su StudentUpdate) apply(sp StudentProfile) StudentProfile {
	sp.USN = su.USN
	sp.Branch = su.Branch
	sp.Semester = su.Semester
	sp.Section = su.Section
	sp.BloodGroup = su.BloodGroup
	sp.DOB = su.DOB
	sp.Phone = su.Phone
	sp.Email = su.Email
	sp.FatherName = su.FatherName
	sp.FatherPhone = su.FatherPhone
	sp.MotherName = su.MotherName
	sp.MotherPhone = su.MotherPhone
	sp.PermanentAddress = su.PermanentAddress
	sp.LocalAddress = su.LocalAddress
	sp.FirstYearFee = su.FirstYearFee
	sp.SecondYearFee = su.SecondYearFee
	sp.ThirdYearFee = su.ThirdYearFee
	sp.FourthYearFee = su.FourthYearFee
	return sp
}

// ProfileUpdate is what students may change on their own profile.
type ProfileUpdate struct {
	Phone    string `json:"phone" validate:"omitempty,max=15"`
	Semester int    `json:"semester" validate:"semester"`
	Branch   string `json:"branch" validate:"required,max=50"`
	Section  string `json:"section" validate:"omitempty,max=5"`
}

func (pu *ProfileUpdate) Validate(validate *validator.Validate) error {
	pu.Phone = core.CleanString(pu.Phone)
	pu.Branch = core.CleanString(pu.Branch)
	pu.Section = core.CleanString(pu.Section)
	return validate.Struct(pu)
}

// ManagedStudentUpdate is the management form. An empty ProctorID unassigns the student.
type ManagedStudentUpdate struct {
	USN       string `json:"usn" validate:"required,max=20,usn"`
	Branch    string `json:"branch" validate:"required,max=50"`
	Semester  int    `json:"semester" validate:"semester"`
	Section   string `json:"section" validate:"omitempty,max=5"`
	Phone     string `json:"phone" validate:"omitempty,max=15"`
	Email     string `json:"email" validate:"omitempty,email"`
	ProctorID string `json:"proctor_id"`
}

func (mu *ManagedStudentUpdate) Validate(validate *validator.Validate) error {
	mu.USN = CleanUSN(mu.USN)
	mu.Branch = core.CleanString(mu.Branch)
	mu.Section = core.CleanString(mu.Section)
	mu.Phone = core.CleanString(mu.Phone)
	mu.Email = core.CleanString(mu.Email, true /* lower */)
	mu.ProctorID = core.CleanString(mu.ProctorID)
	return validate.Struct(mu)
}

type ProctorUpdate struct {
	Department string `json:"department" validate:"omitempty,max=100"`
}

func (pu *ProctorUpdate) Validate(validate *validator.Validate) error {
	pu.Department = core.CleanString(pu.Department)
	return validate.Struct(pu)
}

type AttendanceRow struct {
	ID              string `json:"id"`
	Subject         string `json:"subject" validate:"required_without=Delete,max=100"`
	TotalClasses    int    `json:"total_classes" validate:"min=0"`
	AttendedClasses int    `json:"attended_classes" validate:"min=0"`
	Delete          bool   `json:"delete"`
}

type AttendanceInput struct {
	Records []AttendanceRow `json:"records" validate:"dive"`
}

func (ai *AttendanceInput) Validate(validate *validator.Validate) error {
	for i := range ai.Records {
		ai.Records[i].Subject = core.CleanString(ai.Records[i].Subject)
	}
	return validate.Struct(ai)
}

func (ai AttendanceInput) changes(studentID string) AttendanceChanges {
	var ch AttendanceChanges
	for _, row := range ai.Records {
		if row.Delete {
			if row.ID != "" {
				ch.DeleteIDs = append(ch.DeleteIDs, row.ID)
			}
			continue
		}
		ch.Upserts = append(ch.Upserts, AttendanceRecord{
			ID:              row.ID,
			StudentID:       studentID,
			Subject:         row.Subject,
			TotalClasses:    row.TotalClasses,
			AttendedClasses: row.AttendedClasses,
		})
	}
	return ch
}

type MarksRow struct {
	ID                   string   `json:"id"`
	Semester             int      `json:"semester" validate:"omitempty,semester"`
	Subject              string   `json:"subject" validate:"required_without=Delete,max=100"`
	SubjectCode          string   `json:"subject_code" validate:"omitempty,max=20"`
	Internal1            *float64 `json:"internal1" validate:"omitempty,min=0"`
	Internal2            *float64 `json:"internal2" validate:"omitempty,min=0"`
	TotalInternal        *float64 `json:"total_internal" validate:"omitempty,min=0"`
	External             *float64 `json:"external" validate:"omitempty,min=0"`
	TotalMarks           *float64 `json:"total_marks" validate:"omitempty,min=0"`
	AttendancePercentage *float64 `json:"attendance_percentage" validate:"omitempty,min=0,max=100"`
	Percentage           *float64 `json:"percentage" validate:"omitempty,min=0,max=100"`
	Delete               bool     `json:"delete"`
}

type MarksInput struct {
	Records []MarksRow `json:"records" validate:"dive"`
}

func (mi *MarksInput) Validate(validate *validator.Validate) error {
	for i := range mi.Records {
		mi.Records[i].Subject = core.CleanString(mi.Records[i].Subject)
		mi.Records[i].SubjectCode = core.CleanString(mi.Records[i].SubjectCode)
	}
	return validate.Struct(mi)
}

func (mi MarksInput) changes(studentID string, defaultSemester int) MarksChanges {
	var ch MarksChanges
	for _, row := range mi.Records {
		if row.Delete {
			if row.ID != "" {
				ch.DeleteIDs = append(ch.DeleteIDs, row.ID)
			}
			continue
		}
		sem := row.Semester
		if sem == 0 {
			sem = defaultSemester
		}
		ch.Upserts = append(ch.Upserts, MarksRecord{
			ID:                   row.ID,
			StudentID:            studentID,
			Semester:             sem,
			Subject:              row.Subject,
			SubjectCode:          row.SubjectCode,
			Internal1:            row.Internal1,
			Internal2:            row.Internal2,
			TotalInternal:        row.TotalInternal,
			External:             row.External,
			TotalMarks:           row.TotalMarks,
			AttendancePercentage: row.AttendancePercentage,
			Percentage:           row.Percentage,
		})
	}
	return ch
}

type Reassignment struct {
	ProctorID string `json:"proctor_id" validate:"required"`
}

type BulkAssignment struct {
	StudentIDs []string `json:"student_ids"`
	ProctorID  string   `json:"proctor_id" validate:"required"`
}
