package academic

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/user"
)

type Service struct {
	repo   Repository
	usrSvc *user.Service
}

func NewService(repo Repository, usrSvc *user.Service) *Service {
	return &Service{repo: repo, usrSvc: usrSvc}
}

// Resolve derives the principal of an authenticated user from its flags, groups and profiles.
func (svc *Service) Resolve(ctx context.Context, usr user.User) (access.Principal, error) {
	p := access.Principal{UserID: usr.ID, Username: usr.Username}
	if usr.IsSuperuser {
		p.Roles |= access.RoleSuperuser
	}

	if usr.InGroup(user.GroupHOD) {
		p.Roles |= access.RoleHOD
		hp, err := svc.repo.GetHODByUserID(ctx, usr.ID)
		switch {
		case err == nil:
			p.HODDepartment = hp.Department
		case !core.IsNotFound(err):
			return access.Principal{}, errors.Wrap(err, "finding HOD profile")
		}
	}

	sp, err := svc.repo.GetStudentByUserID(ctx, usr.ID)
	switch {
	case err == nil:
		p.Roles |= access.RoleStudent
		p.StudentID = sp.ID
		p.USN = sp.USN
		p.Branch = sp.Branch
		p.ProctorUserID = sp.ProctorUserID
	case !core.IsNotFound(err):
		return access.Principal{}, errors.Wrap(err, "finding student profile")
	}

	pp, err := svc.repo.GetProctorByUserID(ctx, usr.ID)
	switch {
	case err == nil:
		p.Roles |= access.RoleProctor
		p.ProctorID = pp.ID
		p.Department = pp.Department
	case !core.IsNotFound(err):
		return access.Principal{}, errors.Wrap(err, "finding proctor profile")
	}

	return p, nil
}

func (svc *Service) checkUSNUniqueness(ctx context.Context, usn string, excludedIDs ...string) error {
	if err := svc.repo.CheckUSNUniqueness(ctx, usn, excludedIDs...); err != nil {
		if errors.Cause(err) == ErrUSNExists {
			return core.NewConflictError("usn", ErrUSNExists.Error())
		}
		return errors.Wrap(err, "checking USN uniqueness")
	}
	return nil
}

// Signups

func (svc *Service) SignupStudent(ctx context.Context, data StudentSignup) (StudentAccount, error) {
	if err := svc.usrSvc.CheckUniqueness(ctx, data.Username, data.Email); err != nil {
		return StudentAccount{}, err
	}
	if err := svc.checkUSNUniqueness(ctx, data.USN); err != nil {
		return StudentAccount{}, err
	}

	usr, err := data.NewUser.Build()
	if err != nil {
		return StudentAccount{}, errors.Wrap(err, "building user")
	}
	acc := StudentAccount{
		User: usr,
		Profile: StudentProfile{
			USN:      data.USN,
			Branch:   data.Branch,
			Semester: data.Semester,
			Section:  data.Section,
			Email:    data.Email,
		},
	}
	return svc.repo.CreateStudentAccount(ctx, acc)
}

func (svc *Service) SignupProctor(ctx context.Context, data ProctorSignup) (ProctorAccount, error) {
	if err := svc.usrSvc.CheckUniqueness(ctx, data.Username, data.Email); err != nil {
		return ProctorAccount{}, err
	}

	usr, err := data.NewUser.Build()
	if err != nil {
		return ProctorAccount{}, errors.Wrap(err, "building user")
	}
	acc := ProctorAccount{User: usr, Profile: ProctorProfile{Department: data.Department}}
	return svc.repo.CreateProctorAccount(ctx, acc)
}

// SignupHOD is reserved to superusers.
func (svc *Service) SignupHOD(ctx context.Context, p access.Principal, data HODSignup) (HODAccount, error) {
	if err := access.Check(p, access.ProvisionHOD, access.Target{}); err != nil {
		return HODAccount{}, err
	}
	if err := svc.usrSvc.CheckUniqueness(ctx, data.Username, data.Email); err != nil {
		return HODAccount{}, err
	}

	usr, err := data.NewUser.Build(user.GroupHOD)
	if err != nil {
		return HODAccount{}, errors.Wrap(err, "building user")
	}
	acc := HODAccount{User: usr, Profile: HODProfile{Department: data.Department}}
	return svc.repo.CreateHODAccount(ctx, acc)
}

// PromoteHOD makes an existing user an HOD of department.
func (svc *Service) PromoteHOD(ctx context.Context, uname, department string) (HODProfile, error) {
	usr, err := svc.usrSvc.GetByUsernameOrEmail(ctx, uname)
	if err != nil {
		return HODProfile{}, err
	}
	if _, err = svc.usrSvc.JoinGroup(ctx, usr, user.GroupHOD); err != nil {
		return HODProfile{}, errors.Wrap(err, "joining HOD group")
	}
	return svc.repo.SaveHODProfile(ctx, HODProfile{UserID: usr.ID, Department: core.CleanString(department)})
}

// Lookups

func (svc *Service) Branches(ctx context.Context) ([]Branch, error) {
	return svc.repo.ListBranches(ctx)
}

func (svc *Service) Sections(ctx context.Context) ([]Section, error) {
	return svc.repo.ListSections(ctx)
}

// Students

// GetStudent returns the student with usn if p may view it.
func (svc *Service) GetStudent(ctx context.Context, p access.Principal, usn string) (StudentProfile, error) {
	sp, err := svc.repo.GetStudentByUSN(ctx, CleanUSN(usn))
	if err != nil {
		return StudentProfile{}, err
	}
	if err = access.Check(p, access.ViewStudent, sp.Target()); err != nil {
		return StudentProfile{}, err
	}
	return sp, nil
}

type History struct {
	Student           StudentProfile     `json:"student"`
	Attendance        []AttendanceRecord `json:"attendance"`
	Marks             []MarksRecord      `json:"marks"`
	AttendancePercent float64            `json:"attendance_percent"`
	SubjectAttendance map[string]float64 `json:"subject_attendance"`
}

func (svc *Service) StudentHistory(ctx context.Context, p access.Principal, usn string) (History, error) {
	sp, err := svc.GetStudent(ctx, p, usn)
	if err != nil {
		return History{}, err
	}
	attendance, err := svc.repo.QueryAttendance(ctx, sp.ID)
	if err != nil {
		return History{}, errors.Wrap(err, "querying attendance")
	}
	marks, err := svc.repo.QueryMarks(ctx, sp.ID, 0)
	if err != nil {
		return History{}, errors.Wrap(err, "querying marks")
	}
	return History{
		Student:           sp,
		Attendance:        nonNilAttendance(attendance),
		Marks:             nonNilMarks(marks),
		AttendancePercent: AttendancePercent(attendance),
		SubjectAttendance: SubjectAttendance(attendance),
	}, nil
}

func (svc *Service) UpdateStudent(ctx context.Context, p access.Principal, usn string, data StudentUpdate) (StudentProfile, error) {
	sp, err := svc.repo.GetStudentByUSN(ctx, CleanUSN(usn))
	if err != nil {
		return StudentProfile{}, err
	}
	if err = access.Check(p, access.EditStudent, sp.Target()); err != nil {
		return StudentProfile{}, err
	}
	if data.USN != sp.USN {
		if err = svc.checkUSNUniqueness(ctx, data.USN, sp.ID); err != nil {
			return StudentProfile{}, err
		}
	}
	return svc.repo.UpdateStudent(ctx, data.apply(sp))
}

// UpdateOwnProfile lets a student change their contact and class details.
func (svc *Service) UpdateOwnProfile(ctx context.Context, p access.Principal, data ProfileUpdate) (StudentProfile, error) {
	if !p.IsStudent() {
		return StudentProfile{}, core.ErrForbidden
	}
	sp, err := svc.repo.GetStudent(ctx, p.StudentID)
	if err != nil {
		return StudentProfile{}, err
	}
	sp.Phone = data.Phone
	sp.Semester = data.Semester
	sp.Branch = data.Branch
	sp.Section = data.Section
	return svc.repo.UpdateStudent(ctx, sp)
}

// Records

func (svc *Service) recordsOwner(ctx context.Context, p access.Principal, usn string) (StudentProfile, error) {
	sp, err := svc.repo.GetStudentByUSN(ctx, CleanUSN(usn))
	if err != nil {
		return StudentProfile{}, err
	}
	if err = access.Check(p, access.EditRecords, sp.Target()); err != nil {
		return StudentProfile{}, err
	}
	return sp, nil
}

// SaveAttendance applies the rows to the student's attendance: rows with an id update, rows without
// one are created and rows flagged delete are removed.
func (svc *Service) SaveAttendance(ctx context.Context, p access.Principal, usn string, data AttendanceInput) ([]AttendanceRecord, error) {
	sp, err := svc.recordsOwner(ctx, p, usn)
	if err != nil {
		return nil, err
	}
	records, err := svc.repo.SaveAttendance(ctx, sp.ID, data.changes(sp.ID))
	if err != nil {
		return nil, err
	}
	return nonNilAttendance(records), nil
}

// SaveMarks applies the rows to all the student's marks. Rows without a semester use the student's current one.
func (svc *Service) SaveMarks(ctx context.Context, p access.Principal, usn string, data MarksInput) ([]MarksRecord, error) {
	sp, err := svc.recordsOwner(ctx, p, usn)
	if err != nil {
		return nil, err
	}
	records, err := svc.repo.SaveMarks(ctx, sp.ID, data.changes(sp.ID, sp.Semester))
	if err != nil {
		return nil, err
	}
	return nonNilMarks(records), nil
}

// SaveSemesterMarks is SaveMarks restricted to one semester: every row is forced into it and
// existing rows of other semesters cannot be touched.
func (svc *Service) SaveSemesterMarks(ctx context.Context, p access.Principal, usn string, semester int, data MarksInput) ([]MarksRecord, error) {
	if !ValidSemester(semester) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "semester", Error: semesterText})
	}
	sp, err := svc.recordsOwner(ctx, p, usn)
	if err != nil {
		return nil, err
	}

	existing, err := svc.repo.QueryMarks(ctx, sp.ID, semester)
	if err != nil {
		return nil, errors.Wrap(err, "querying marks")
	}
	inSemester := make(map[string]bool, len(existing))
	for _, m := range existing {
		inSemester[m.ID] = true
	}
	for i, row := range data.Records {
		if row.ID != "" && !inSemester[row.ID] {
			return nil, ErrMarksNotFound
		}
		data.Records[i].Semester = semester
	}

	if _, err = svc.repo.SaveMarks(ctx, sp.ID, data.changes(sp.ID, semester)); err != nil {
		return nil, err
	}
	records, err := svc.repo.QueryMarks(ctx, sp.ID, semester)
	if err != nil {
		return nil, errors.Wrap(err, "querying marks")
	}
	return nonNilMarks(records), nil
}

// Management

func (svc *Service) QueryStudents(ctx context.Context, p access.Principal, filter StudentQueryFilter, ordering []core.DBOrdering) ([]StudentProfile, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return nil, err
	}
	students, err := svc.repo.QueryStudents(ctx, filter, CleanOrdering(ordering, StudentOrderingFields))
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	return nonNilStudents(students), nil
}

func (svc *Service) ManageStudent(ctx context.Context, p access.Principal, id string, data ManagedStudentUpdate) (StudentProfile, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return StudentProfile{}, err
	}
	sp, err := svc.repo.GetStudent(ctx, id)
	if err != nil {
		return StudentProfile{}, err
	}
	if data.USN != sp.USN {
		if err = svc.checkUSNUniqueness(ctx, data.USN, sp.ID); err != nil {
			return StudentProfile{}, err
		}
	}
	if data.ProctorID != "" && data.ProctorID != sp.ProctorUserID {
		if err = svc.checkProctorTarget(ctx, data.ProctorID); err != nil {
			return StudentProfile{}, err
		}
	}

	sp.USN = data.USN
	sp.Branch = data.Branch
	sp.Semester = data.Semester
	sp.Section = data.Section
	sp.Phone = data.Phone
	sp.Email = data.Email
	sp.ProctorUserID = data.ProctorID
	return svc.repo.UpdateStudent(ctx, sp)
}

func (svc *Service) DeleteStudent(ctx context.Context, p access.Principal, id string) error {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return err
	}
	return svc.repo.DeleteStudent(ctx, id)
}

func (svc *Service) QueryProctors(ctx context.Context, p access.Principal) ([]ProctorProfile, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return nil, err
	}
	proctors, err := svc.repo.QueryProctors(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying proctors")
	}
	if proctors == nil {
		proctors = []ProctorProfile{}
	}
	return proctors, nil
}

func (svc *Service) UpdateProctor(ctx context.Context, p access.Principal, id string, data ProctorUpdate) (ProctorProfile, error) {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return ProctorProfile{}, err
	}
	pp, err := svc.repo.GetProctor(ctx, id)
	if err != nil {
		return ProctorProfile{}, err
	}
	pp.Department = data.Department
	return svc.repo.UpdateProctor(ctx, pp)
}

func (svc *Service) DeleteProctor(ctx context.Context, p access.Principal, id string) error {
	if err := access.Check(p, access.ManageProfiles, access.Target{}); err != nil {
		return err
	}
	return svc.repo.DeleteProctor(ctx, id)
}

func nonNilStudents(s []StudentProfile) []StudentProfile {
	if s == nil {
		return []StudentProfile{}
	}
	return s
}

func nonNilAttendance(s []AttendanceRecord) []AttendanceRecord {
	if s == nil {
		return []AttendanceRecord{}
	}
	return s
}

func nonNilMarks(s []MarksRecord) []MarksRecord {
	if s == nil {
		return []MarksRecord{}
	}
	return s
}
