package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) ListBranches(context.Context) ([]academic.Branch, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return append([]academic.Branch{}, repo.db.branches...), nil
}

func (repo *academicRepository) ListSections(context.Context) ([]academic.Section, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return append([]academic.Section{}, repo.db.sections...), nil
}

// Accounts

func (repo *academicRepository) CreateStudentAccount(_ context.Context, acc academic.StudentAccount) (academic.StudentAccount, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.checkUSN(acc.Profile.USN, ""); err != nil {
		return academic.StudentAccount{}, err
	}
	usr, err := repo.db.addUser(acc.User)
	if err != nil {
		return academic.StudentAccount{}, err
	}
	sp := acc.Profile
	sp.ID = newID()
	sp.UserID = usr.ID
	repo.db.students[sp.ID] = &studentRow{seq: repo.db.nextSeq(), StudentProfile: sp}
	return academic.StudentAccount{User: usr, Profile: repo.student(repo.db.students[sp.ID])}, nil
}

func (repo *academicRepository) CreateProctorAccount(_ context.Context, acc academic.ProctorAccount) (academic.ProctorAccount, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, err := repo.db.addUser(acc.User)
	if err != nil {
		return academic.ProctorAccount{}, err
	}
	pp := acc.Profile
	pp.ID = newID()
	pp.UserID = usr.ID
	repo.db.proctors[pp.ID] = &proctorRow{seq: repo.db.nextSeq(), ProctorProfile: pp}
	return academic.ProctorAccount{User: usr, Profile: repo.proctor(repo.db.proctors[pp.ID])}, nil
}

func (repo *academicRepository) CreateHODAccount(_ context.Context, acc academic.HODAccount) (academic.HODAccount, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	usr, err := repo.db.addUser(acc.User)
	if err != nil {
		return academic.HODAccount{}, err
	}
	hp := acc.Profile
	hp.ID = newID()
	hp.UserID = usr.ID
	repo.db.hods[hp.ID] = &hodRow{seq: repo.db.nextSeq(), HODProfile: hp}
	hp.Username = usr.Username
	return academic.HODAccount{User: usr, Profile: hp}, nil
}

// Students

// checkUSN must be called with a lock held.
func (repo *academicRepository) checkUSN(usn, excludedID string) error {
	for _, sr := range repo.db.students {
		if sr.ID != excludedID && sr.USN == usn {
			return core.NewConflictError("usn", academic.ErrUSNExists.Error())
		}
	}
	return nil
}

func (repo *academicRepository) student(sr *studentRow) academic.StudentProfile {
	sp := sr.StudentProfile
	sp.Username = repo.db.username(sp.UserID)
	return sp
}

func (repo *academicRepository) CheckUSNUniqueness(_ context.Context, usn string, excludedIDs ...string) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]bool, len(excludedIDs))
	for _, id := range excludedIDs {
		excluded[id] = true
	}
	for _, sr := range repo.db.students {
		if !excluded[sr.ID] && sr.USN == usn {
			return academic.ErrUSNExists
		}
	}
	return nil
}

func (repo *academicRepository) findStudent(match func(sr *studentRow) bool) (academic.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, sr := range repo.db.students {
		if match(sr) {
			return repo.student(sr), nil
		}
	}
	return academic.StudentProfile{}, academic.ErrStudentNotFound
}

func (repo *academicRepository) GetStudent(_ context.Context, id string) (academic.StudentProfile, error) {
	return repo.findStudent(func(sr *studentRow) bool { return sr.ID == id })
}

func (repo *academicRepository) GetStudentByUSN(_ context.Context, usn string) (academic.StudentProfile, error) {
	return repo.findStudent(func(sr *studentRow) bool { return sr.USN == usn })
}

func (repo *academicRepository) GetStudentByUserID(_ context.Context, userID string) (academic.StudentProfile, error) {
	return repo.findStudent(func(sr *studentRow) bool { return sr.UserID == userID })
}

func (repo *academicRepository) QueryStudents(_ context.Context, filter academic.StudentQueryFilter, ordering []core.DBOrdering) ([]academic.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]academic.StudentProfile, 0)
	for _, sr := range repo.db.students {
		if filter.Branch != "" && sr.Branch != filter.Branch {
			continue
		}
		if filter.Semester != 0 && sr.Semester != filter.Semester {
			continue
		}
		if filter.ProctorUserID != "" && sr.ProctorUserID != filter.ProctorUserID {
			continue
		}
		students = append(students, repo.student(sr))
	}
	sortStudents(students, ordering)
	return students, nil
}

func studentField(sp academic.StudentProfile, field string) string {
	switch field {
	case "branch":
		return sp.Branch
	case "section":
		return sp.Section
	case "username":
		return sp.Username
	}
	return sp.USN
}

// sortStudents orders by the given fields then by usn.
func sortStudents(students []academic.StudentProfile, ordering []core.DBOrdering) {
	sort.SliceStable(students, func(i, j int) bool {
		a, b := students[i], students[j]
		for _, ord := range ordering {
			var less, greater bool
			if ord.Field == "semester" {
				less, greater = a.Semester < b.Semester, a.Semester > b.Semester
			} else {
				fa, fb := studentField(a, ord.Field), studentField(b, ord.Field)
				less, greater = fa < fb, fa > fb
			}
			if less || greater {
				return less == ord.Ascending
			}
		}
		return a.USN < b.USN
	})
}

func (repo *academicRepository) UpdateStudent(_ context.Context, sp academic.StudentProfile) (academic.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	sr, ok := repo.db.students[sp.ID]
	if !ok {
		return academic.StudentProfile{}, academic.ErrStudentNotFound
	}
	if err := repo.checkUSN(sp.USN, sp.ID); err != nil {
		return academic.StudentProfile{}, err
	}
	if _, ok = repo.db.users[sp.ProctorUserID]; sp.ProctorUserID != "" && !ok {
		return academic.StudentProfile{}, core.NewValidationError(nil, core.FieldError{Field: "proctor_id", Error: "user not found"})
	}
	sp.UserID = sr.UserID
	sr.StudentProfile = sp
	return repo.student(sr), nil
}

func (repo *academicRepository) DeleteStudent(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[id]; !ok {
		return academic.ErrStudentNotFound
	}
	delete(repo.db.students, id)
	for rid, ar := range repo.db.attendance {
		if ar.StudentID == id {
			delete(repo.db.attendance, rid)
		}
	}
	for rid, mr := range repo.db.marks {
		if mr.StudentID == id {
			delete(repo.db.marks, rid)
		}
	}
	for _, mr := range repo.db.meetings {
		mr.StudentIDs = without(mr.StudentIDs, id)
	}
	return nil
}

func without(ids []string, id string) []string {
	kept := make([]string, 0, len(ids))
	for _, i := range ids {
		if i != id {
			kept = append(kept, i)
		}
	}
	return kept
}

// Proctors

func (repo *academicRepository) proctor(pr *proctorRow) academic.ProctorProfile {
	pp := pr.ProctorProfile
	if u, ok := repo.db.users[pp.UserID]; ok {
		pp.Username = u.Username
		pp.Email = u.Email
	}
	return pp
}

func (repo *academicRepository) findProctor(match func(pr *proctorRow) bool) (academic.ProctorProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, pr := range repo.db.proctors {
		if match(pr) {
			return repo.proctor(pr), nil
		}
	}
	return academic.ProctorProfile{}, academic.ErrProctorNotFound
}

func (repo *academicRepository) GetProctor(_ context.Context, id string) (academic.ProctorProfile, error) {
	return repo.findProctor(func(pr *proctorRow) bool { return pr.ID == id })
}

func (repo *academicRepository) GetProctorByUserID(_ context.Context, userID string) (academic.ProctorProfile, error) {
	return repo.findProctor(func(pr *proctorRow) bool { return pr.UserID == userID })
}

func (repo *academicRepository) QueryProctors(context.Context) ([]academic.ProctorProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	proctors := make([]academic.ProctorProfile, 0, len(repo.db.proctors))
	for _, pr := range repo.db.proctors {
		proctors = append(proctors, repo.proctor(pr))
	}
	sort.Slice(proctors, func(i, j int) bool { return proctors[i].Username < proctors[j].Username })
	return proctors, nil
}

func (repo *academicRepository) UpdateProctor(_ context.Context, pp academic.ProctorProfile) (academic.ProctorProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pr, ok := repo.db.proctors[pp.ID]
	if !ok {
		return academic.ProctorProfile{}, academic.ErrProctorNotFound
	}
	pr.Department = pp.Department
	return repo.proctor(pr), nil
}

// DeleteProctor removes the profile, its meetings and unassigns its students.
func (repo *academicRepository) DeleteProctor(_ context.Context, id string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	pr, ok := repo.db.proctors[id]
	if !ok {
		return academic.ErrProctorNotFound
	}
	delete(repo.db.proctors, id)
	for _, sr := range repo.db.students {
		if sr.ProctorUserID == pr.UserID {
			sr.ProctorUserID = ""
		}
	}
	for mid, mr := range repo.db.meetings {
		if mr.ProctorID == id {
			delete(repo.db.meetings, mid)
		}
	}
	return nil
}

// HODs

func (repo *academicRepository) GetHODByUserID(_ context.Context, userID string) (academic.HODProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, hr := range repo.db.hods {
		if hr.UserID == userID {
			hp := hr.HODProfile
			hp.Username = repo.db.username(hp.UserID)
			return hp, nil
		}
	}
	return academic.HODProfile{}, academic.ErrHODNotFound
}

func (repo *academicRepository) SaveHODProfile(_ context.Context, hp academic.HODProfile) (academic.HODProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[hp.UserID]; !ok {
		return academic.HODProfile{}, core.NewNotFoundError("user")
	}
	var existing *hodRow
	for _, hr := range repo.db.hods {
		if hr.UserID == hp.UserID {
			existing = hr
			break
		}
	}
	if existing != nil {
		existing.Department = hp.Department
		hp = existing.HODProfile
	} else {
		hp.ID = newID()
		repo.db.hods[hp.ID] = &hodRow{seq: repo.db.nextSeq(), HODProfile: hp}
	}
	hp.Username = repo.db.username(hp.UserID)
	return hp, nil
}

// Assignment

func (repo *academicRepository) AssignProctor(_ context.Context, studentIDs []string, proctorUserID string) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var unknown []string
	for _, id := range studentIDs {
		if _, ok := repo.db.students[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return &academic.UnknownStudentsError{IDs: unknown}
	}
	for _, id := range studentIDs {
		repo.db.students[id].ProctorUserID = proctorUserID
	}
	return nil
}

// Records

func (repo *academicRepository) attendanceOf(studentID string) []academic.AttendanceRecord {
	rows := make([]*attendanceRow, 0)
	for _, ar := range repo.db.attendance {
		if ar.StudentID == studentID {
			rows = append(rows, ar)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	records := make([]academic.AttendanceRecord, 0, len(rows))
	for _, ar := range rows {
		records = append(records, ar.AttendanceRecord)
	}
	return records
}

func (repo *academicRepository) QueryAttendance(_ context.Context, studentID string) ([]academic.AttendanceRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.attendanceOf(studentID), nil
}

// SaveAttendance checks every change before applying any.
func (repo *academicRepository) SaveAttendance(_ context.Context, studentID string, changes academic.AttendanceChanges) ([]academic.AttendanceRecord, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[studentID]; !ok {
		return nil, academic.ErrStudentNotFound
	}
	owned := func(id string) bool {
		ar, ok := repo.db.attendance[id]
		return ok && ar.StudentID == studentID
	}
	for _, rec := range changes.Upserts {
		if rec.ID != "" && !owned(rec.ID) {
			return nil, academic.ErrAttendanceNotFound
		}
	}
	for _, id := range changes.DeleteIDs {
		if !owned(id) {
			return nil, academic.ErrAttendanceNotFound
		}
	}

	for _, rec := range changes.Upserts {
		rec.StudentID = studentID
		if rec.ID == "" {
			rec.ID = newID()
			repo.db.attendance[rec.ID] = &attendanceRow{seq: repo.db.nextSeq(), AttendanceRecord: rec}
			continue
		}
		repo.db.attendance[rec.ID].AttendanceRecord = rec
	}
	for _, id := range changes.DeleteIDs {
		delete(repo.db.attendance, id)
	}
	return repo.attendanceOf(studentID), nil
}

func (repo *academicRepository) marksOf(studentID string, semester int) []academic.MarksRecord {
	rows := make([]*marksRow, 0)
	for _, mr := range repo.db.marks {
		if mr.StudentID == studentID && (semester == 0 || mr.Semester == semester) {
			rows = append(rows, mr)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	records := make([]academic.MarksRecord, 0, len(rows))
	for _, mr := range rows {
		records = append(records, mr.MarksRecord)
	}
	return records
}

func (repo *academicRepository) QueryMarks(_ context.Context, studentID string, semester int) ([]academic.MarksRecord, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.marksOf(studentID, semester), nil
}

// SaveMarks checks every change before applying any.
func (repo *academicRepository) SaveMarks(_ context.Context, studentID string, changes academic.MarksChanges) ([]academic.MarksRecord, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.students[studentID]; !ok {
		return nil, academic.ErrStudentNotFound
	}
	owned := func(id string) bool {
		mr, ok := repo.db.marks[id]
		return ok && mr.StudentID == studentID
	}
	for _, rec := range changes.Upserts {
		if rec.ID != "" && !owned(rec.ID) {
			return nil, academic.ErrMarksNotFound
		}
	}
	for _, id := range changes.DeleteIDs {
		if !owned(id) {
			return nil, academic.ErrMarksNotFound
		}
	}

	for _, rec := range changes.Upserts {
		rec.StudentID = studentID
		if rec.ID == "" {
			rec.ID = newID()
			repo.db.marks[rec.ID] = &marksRow{seq: repo.db.nextSeq(), MarksRecord: rec}
			continue
		}
		repo.db.marks[rec.ID].MarksRecord = rec
	}
	for _, id := range changes.DeleteIDs {
		delete(repo.db.marks, id)
	}
	return repo.marksOf(studentID, 0), nil
}
