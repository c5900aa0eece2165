package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
)

const dateLayout = "2006-01-02"

type studentRow struct {
	ID               string       `db:"id"`
	UserID           string       `db:"user_id"`
	Username         string       `db:"username"`
	USN              string       `db:"usn"`
	Branch           string       `db:"branch"`
	Semester         int          `db:"semester"`
	Section          null.String  `db:"section"`
	BloodGroup       null.String  `db:"blood_group"`
	DOB              null.Time    `db:"dob"`
	Phone            null.String  `db:"phone"`
	Email            null.String  `db:"email"`
	FatherName       null.String  `db:"father_name"`
	FatherPhone      null.String  `db:"father_phone"`
	MotherName       null.String  `db:"mother_name"`
	MotherPhone      null.String  `db:"mother_phone"`
	PermanentAddress null.String  `db:"permanent_address"`
	LocalAddress     null.String  `db:"local_address"`
	FirstYearFee     null.Float64 `db:"first_year_fee"`
	SecondYearFee    null.Float64 `db:"second_year_fee"`
	ThirdYearFee     null.Float64 `db:"third_year_fee"`
	FourthYearFee    null.Float64 `db:"fourth_year_fee"`
	ProctorID        null.String  `db:"proctor_id"`
}

const studentSelect = `SELECT sp.id, sp.user_id, u.username, sp.usn, sp.branch, sp.semester, sp.section, sp.blood_group,
	sp.dob, sp.phone, sp.email, sp.father_name, sp.father_phone, sp.mother_name, sp.mother_phone,
	sp.permanent_address, sp.local_address, sp.first_year_fee, sp.second_year_fee, sp.third_year_fee,
	sp.fourth_year_fee, sp.proctor_id
	FROM student_profile sp JOIN "user" u ON u.id = sp.user_id`

func str(s string) null.String {
	return null.NewString(s, s != "")
}

func toStudentRow(sp academic.StudentProfile) studentRow {
	dob, err := time.Parse(dateLayout, sp.DOB)
	return studentRow{
		ID:               sp.ID,
		UserID:           sp.UserID,
		USN:              sp.USN,
		Branch:           sp.Branch,
		Semester:         sp.Semester,
		Section:          str(sp.Section),
		BloodGroup:       str(sp.BloodGroup),
		DOB:              null.NewTime(dob, err == nil),
		Phone:            str(sp.Phone),
		Email:            str(sp.Email),
		FatherName:       str(sp.FatherName),
		FatherPhone:      str(sp.FatherPhone),
		MotherName:       str(sp.MotherName),
		MotherPhone:      str(sp.MotherPhone),
		PermanentAddress: str(sp.PermanentAddress),
		LocalAddress:     str(sp.LocalAddress),
		FirstYearFee:     null.Float64FromPtr(sp.FirstYearFee),
		SecondYearFee:    null.Float64FromPtr(sp.SecondYearFee),
		ThirdYearFee:     null.Float64FromPtr(sp.ThirdYearFee),
		FourthYearFee:    null.Float64FromPtr(sp.FourthYearFee),
		ProctorID:        str(sp.ProctorUserID),
	}
}

func (r studentRow) toStudent() academic.StudentProfile {
	sp := academic.StudentProfile{
		ID:               r.ID,
		UserID:           r.UserID,
		Username:         r.Username,
		USN:              r.USN,
		Branch:           r.Branch,
		Semester:         r.Semester,
		Section:          r.Section.String,
		BloodGroup:       r.BloodGroup.String,
		Phone:            r.Phone.String,
		Email:            r.Email.String,
		FatherName:       r.FatherName.String,
		FatherPhone:      r.FatherPhone.String,
		MotherName:       r.MotherName.String,
		MotherPhone:      r.MotherPhone.String,
		PermanentAddress: r.PermanentAddress.String,
		LocalAddress:     r.LocalAddress.String,
		FirstYearFee:     r.FirstYearFee.Ptr(),
		SecondYearFee:    r.SecondYearFee.Ptr(),
		ThirdYearFee:     r.ThirdYearFee.Ptr(),
		FourthYearFee:    r.FourthYearFee.Ptr(),
		ProctorUserID:    r.ProctorID.String,
	}
	if r.DOB.Valid {
		sp.DOB = r.DOB.Time.Format(dateLayout)
	}
	return sp
}

type proctorRow struct {
	ID         string      `db:"id"`
	UserID     string      `db:"user_id"`
	Username   string      `db:"username"`
	Email      null.String `db:"email"`
	Department null.String `db:"department"`
}

const proctorSelect = `SELECT pp.id, pp.user_id, u.username, u.email, pp.department
	FROM proctor_profile pp JOIN "user" u ON u.id = pp.user_id`

func (r proctorRow) toProctor() academic.ProctorProfile {
	return academic.ProctorProfile{
		ID:         r.ID,
		UserID:     r.UserID,
		Username:   r.Username,
		Email:      r.Email.String,
		Department: r.Department.String,
	}
}

type hodRow struct {
	ID         string `db:"id"`
	UserID     string `db:"user_id"`
	Username   string `db:"username"`
	Department string `db:"department"`
}

type attendanceRow struct {
	ID              string `db:"id"`
	StudentID       string `db:"student_id"`
	Subject         string `db:"subject"`
	TotalClasses    int    `db:"total_classes"`
	AttendedClasses int    `db:"attended_classes"`
}

type marksRow struct {
	ID                   string       `db:"id"`
	StudentID            string       `db:"student_id"`
	Semester             int          `db:"semester"`
	Subject              string       `db:"subject"`
	SubjectCode          null.String  `db:"subject_code"`
	Internal1            null.Float64 `db:"internal1"`
	Internal2            null.Float64 `db:"internal2"`
	TotalInternal        null.Float64 `db:"total_internal"`
	External             null.Float64 `db:"external"`
	TotalMarks           null.Float64 `db:"total_marks"`
	AttendancePercentage null.Float64 `db:"attendance_percentage"`
	Percentage           null.Float64 `db:"percentage"`
}

const marksColumns = `id, student_id, semester, subject, subject_code, internal1, internal2, total_internal,
	external, total_marks, attendance_percentage, percentage`

func toMarksRow(mr academic.MarksRecord) marksRow {
	return marksRow{
		ID:                   mr.ID,
		StudentID:            mr.StudentID,
		Semester:             mr.Semester,
		Subject:              mr.Subject,
		SubjectCode:          str(mr.SubjectCode),
		Internal1:            null.Float64FromPtr(mr.Internal1),
		Internal2:            null.Float64FromPtr(mr.Internal2),
		TotalInternal:        null.Float64FromPtr(mr.TotalInternal),
		External:             null.Float64FromPtr(mr.External),
		TotalMarks:           null.Float64FromPtr(mr.TotalMarks),
		AttendancePercentage: null.Float64FromPtr(mr.AttendancePercentage),
		Percentage:           null.Float64FromPtr(mr.Percentage),
	}
}

func (r marksRow) toMarks() academic.MarksRecord {
	return academic.MarksRecord{
		ID:                   r.ID,
		StudentID:            r.StudentID,
		Semester:             r.Semester,
		Subject:              r.Subject,
		SubjectCode:          r.SubjectCode.String,
		Internal1:            r.Internal1.Ptr(),
		Internal2:            r.Internal2.Ptr(),
		TotalInternal:        r.TotalInternal.Ptr(),
		External:             r.External.Ptr(),
		TotalMarks:           r.TotalMarks.Ptr(),
		AttendancePercentage: r.AttendancePercentage.Ptr(),
		Percentage:           r.Percentage.Ptr(),
	}
}

type academicRepository struct {
	db *sqlx.DB
}

var _ academic.Repository = (*academicRepository)(nil)

func NewAcademicRepository(db *sqlx.DB) academic.Repository {
	return &academicRepository{db: db}
}

func (repo *academicRepository) ListBranches(ctx context.Context) ([]academic.Branch, error) {
	branches := make([]academic.Branch, 0)
	err := sqlx.SelectContext(ctx, repo.db, &branches, `SELECT id, name FROM branch ORDER BY id`)
	return branches, dbError(err, nil, "selecting branches")
}

func (repo *academicRepository) ListSections(ctx context.Context) ([]academic.Section, error) {
	sections := make([]academic.Section, 0)
	err := sqlx.SelectContext(ctx, repo.db, &sections, `SELECT id, name FROM section ORDER BY id`)
	return sections, dbError(err, nil, "selecting sections")
}

// Accounts

func insertStudent(ctx context.Context, ext sqlx.ExtContext, sp academic.StudentProfile) error {
	q := `INSERT INTO student_profile (id, user_id, usn, branch, semester, section, blood_group, dob, phone, email,
		father_name, father_phone, mother_name, mother_phone, permanent_address, local_address,
		first_year_fee, second_year_fee, third_year_fee, fourth_year_fee, proctor_id)
		VALUES (:id, :user_id, :usn, :branch, :semester, :section, :blood_group, :dob, :phone, :email,
		:father_name, :father_phone, :mother_name, :mother_phone, :permanent_address, :local_address,
		:first_year_fee, :second_year_fee, :third_year_fee, :fourth_year_fee, :proctor_id)`
	_, err := sqlx.NamedExecContext(ctx, ext, q, toStudentRow(sp))
	return dbError(err, nil, "inserting student profile")
}

func (repo *academicRepository) CreateStudentAccount(ctx context.Context, acc academic.StudentAccount) (academic.StudentAccount, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := insertUser(ctx, tx, acc.User)
		if err != nil {
			return err
		}
		acc.User = usr
		acc.Profile.ID = uuid.New().String()
		acc.Profile.UserID = usr.ID
		acc.Profile.Username = usr.Username
		return insertStudent(ctx, tx, acc.Profile)
	})
	if err != nil {
		return academic.StudentAccount{}, err
	}
	return acc, nil
}

func (repo *academicRepository) CreateProctorAccount(ctx context.Context, acc academic.ProctorAccount) (academic.ProctorAccount, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := insertUser(ctx, tx, acc.User)
		if err != nil {
			return err
		}
		acc.User = usr
		acc.Profile.ID = uuid.New().String()
		acc.Profile.UserID = usr.ID
		acc.Profile.Username = usr.Username
		acc.Profile.Email = usr.Email
		_, err = tx.ExecContext(ctx, `INSERT INTO proctor_profile (id, user_id, department) VALUES ($1, $2, $3)`,
			acc.Profile.ID, acc.Profile.UserID, str(acc.Profile.Department))
		return dbError(err, nil, "inserting proctor profile")
	})
	if err != nil {
		return academic.ProctorAccount{}, err
	}
	return acc, nil
}

func (repo *academicRepository) CreateHODAccount(ctx context.Context, acc academic.HODAccount) (academic.HODAccount, error) {
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		usr, err := insertUser(ctx, tx, acc.User)
		if err != nil {
			return err
		}
		acc.User = usr
		acc.Profile.ID = uuid.New().String()
		acc.Profile.UserID = usr.ID
		acc.Profile.Username = usr.Username
		_, err = tx.ExecContext(ctx, `INSERT INTO hod_profile (id, user_id, department) VALUES ($1, $2, $3)`,
			acc.Profile.ID, acc.Profile.UserID, acc.Profile.Department)
		return dbError(err, nil, "inserting HOD profile")
	})
	if err != nil {
		return academic.HODAccount{}, err
	}
	return acc, nil
}

// Students

func (repo *academicRepository) CheckUSNUniqueness(ctx context.Context, usn string, excludedIDs ...string) error {
	var taken bool
	q := `SELECT EXISTS (SELECT 1 FROM student_profile WHERE usn = $1 AND NOT (id::text = ANY($2)))`
	if err := sqlx.GetContext(ctx, repo.db, &taken, q, usn, notExcluded(excludedIDs)); err != nil {
		return dbError(err, nil, "checking USN uniqueness")
	}
	if taken {
		return academic.ErrUSNExists
	}
	return nil
}

func (repo *academicRepository) getStudent(ctx context.Context, where string, arg string) (academic.StudentProfile, error) {
	var r studentRow
	if err := sqlx.GetContext(ctx, repo.db, &r, studentSelect+` WHERE `+where, arg); err != nil {
		return academic.StudentProfile{}, dbError(err, academic.ErrStudentNotFound, "selecting student")
	}
	return r.toStudent(), nil
}

func (repo *academicRepository) GetStudent(ctx context.Context, id string) (academic.StudentProfile, error) {
	return repo.getStudent(ctx, "sp.id::text = $1", id)
}

func (repo *academicRepository) GetStudentByUSN(ctx context.Context, usn string) (academic.StudentProfile, error) {
	return repo.getStudent(ctx, "sp.usn = $1", usn)
}

func (repo *academicRepository) GetStudentByUserID(ctx context.Context, userID string) (academic.StudentProfile, error) {
	return repo.getStudent(ctx, "sp.user_id::text = $1", userID)
}

var studentOrderColumns = map[string]string{
	"usn":      "sp.usn",
	"branch":   "sp.branch",
	"semester": "sp.semester",
	"section":  "sp.section",
	"username": "u.username",
}

func (repo *academicRepository) QueryStudents(ctx context.Context, filter academic.StudentQueryFilter, ordering []core.DBOrdering) ([]academic.StudentProfile, error) {
	var (
		conds []string
		args  []interface{}
	)
	if filter.Branch != "" {
		args = append(args, filter.Branch)
		conds = append(conds, "sp.branch = ?")
	}
	if filter.Semester != 0 {
		args = append(args, filter.Semester)
		conds = append(conds, "sp.semester = ?")
	}
	if filter.ProctorUserID != "" {
		args = append(args, filter.ProctorUserID)
		conds = append(conds, "sp.proctor_id::text = ?")
	}

	q := studentSelect
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	orderBy := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		if col, ok := studentOrderColumns[ord.Field]; ok {
			orderBy = append(orderBy, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
		}
	}
	orderBy = append(orderBy, "sp.usn ASC")
	q += " ORDER BY " + strings.Join(orderBy, ", ")

	var rows []studentRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, repo.db.Rebind(q), args...); err != nil {
		return nil, dbError(err, nil, "selecting students")
	}
	students := make([]academic.StudentProfile, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toStudent())
	}
	return students, nil
}

func (repo *academicRepository) UpdateStudent(ctx context.Context, sp academic.StudentProfile) (academic.StudentProfile, error) {
	q := `UPDATE student_profile SET usn = :usn, branch = :branch, semester = :semester, section = :section,
		blood_group = :blood_group, dob = :dob, phone = :phone, email = :email,
		father_name = :father_name, father_phone = :father_phone, mother_name = :mother_name, mother_phone = :mother_phone,
		permanent_address = :permanent_address, local_address = :local_address,
		first_year_fee = :first_year_fee, second_year_fee = :second_year_fee,
		third_year_fee = :third_year_fee, fourth_year_fee = :fourth_year_fee, proctor_id = :proctor_id
		WHERE id = :id`
	res, err := sqlx.NamedExecContext(ctx, repo.db, q, toStudentRow(sp))
	if err != nil {
		return academic.StudentProfile{}, dbError(err, nil, "updating student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academic.StudentProfile{}, academic.ErrStudentNotFound
	}
	return repo.GetStudent(ctx, sp.ID)
}

func (repo *academicRepository) DeleteStudent(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM student_profile WHERE id::text = $1`, id)
	if err != nil {
		return dbError(err, nil, "deleting student")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academic.ErrStudentNotFound
	}
	return nil
}

// Proctors

func (repo *academicRepository) getProctor(ctx context.Context, where, arg string) (academic.ProctorProfile, error) {
	var r proctorRow
	if err := sqlx.GetContext(ctx, repo.db, &r, proctorSelect+` WHERE `+where, arg); err != nil {
		return academic.ProctorProfile{}, dbError(err, academic.ErrProctorNotFound, "selecting proctor")
	}
	return r.toProctor(), nil
}

func (repo *academicRepository) GetProctor(ctx context.Context, id string) (academic.ProctorProfile, error) {
	return repo.getProctor(ctx, "pp.id::text = $1", id)
}

func (repo *academicRepository) GetProctorByUserID(ctx context.Context, userID string) (academic.ProctorProfile, error) {
	return repo.getProctor(ctx, "pp.user_id::text = $1", userID)
}

func (repo *academicRepository) QueryProctors(ctx context.Context) ([]academic.ProctorProfile, error) {
	var rows []proctorRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, proctorSelect+` ORDER BY u.username`); err != nil {
		return nil, dbError(err, nil, "selecting proctors")
	}
	proctors := make([]academic.ProctorProfile, 0, len(rows))
	for _, r := range rows {
		proctors = append(proctors, r.toProctor())
	}
	return proctors, nil
}

func (repo *academicRepository) UpdateProctor(ctx context.Context, pp academic.ProctorProfile) (academic.ProctorProfile, error) {
	res, err := repo.db.ExecContext(ctx, `UPDATE proctor_profile SET department = $1 WHERE id::text = $2`, str(pp.Department), pp.ID)
	if err != nil {
		return academic.ProctorProfile{}, dbError(err, nil, "updating proctor")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academic.ProctorProfile{}, academic.ErrProctorNotFound
	}
	return repo.GetProctor(ctx, pp.ID)
}

// DeleteProctor removes the profile (and its meetings) and unassigns its students.
func (repo *academicRepository) DeleteProctor(ctx context.Context, id string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var userID string
		err := tx.GetContext(ctx, &userID, `DELETE FROM proctor_profile WHERE id::text = $1 RETURNING user_id`, id)
		if err != nil {
			return dbError(err, academic.ErrProctorNotFound, "deleting proctor")
		}
		_, err = tx.ExecContext(ctx, `UPDATE student_profile SET proctor_id = NULL WHERE proctor_id = $1`, userID)
		return dbError(err, nil, "unassigning students")
	})
}

// HODs

func (repo *academicRepository) GetHODByUserID(ctx context.Context, userID string) (academic.HODProfile, error) {
	var r hodRow
	q := `SELECT hp.id, hp.user_id, u.username, hp.department
		FROM hod_profile hp JOIN "user" u ON u.id = hp.user_id WHERE hp.user_id::text = $1`
	if err := sqlx.GetContext(ctx, repo.db, &r, q, userID); err != nil {
		return academic.HODProfile{}, dbError(err, academic.ErrHODNotFound, "selecting HOD profile")
	}
	return academic.HODProfile(r), nil
}

func (repo *academicRepository) SaveHODProfile(ctx context.Context, hp academic.HODProfile) (academic.HODProfile, error) {
	q := `INSERT INTO hod_profile (id, user_id, department) VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET department = EXCLUDED.department`
	if _, err := repo.db.ExecContext(ctx, q, uuid.New().String(), hp.UserID, hp.Department); err != nil {
		return academic.HODProfile{}, dbError(err, nil, "saving HOD profile")
	}
	return repo.GetHODByUserID(ctx, hp.UserID)
}

// Assignment

func (repo *academicRepository) AssignProctor(ctx context.Context, studentIDs []string, proctorUserID string) error {
	return inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		var found []string
		q := `SELECT id::text FROM student_profile WHERE id::text = ANY($1) FOR UPDATE`
		if err := tx.SelectContext(ctx, &found, q, pq.StringArray(studentIDs)); err != nil {
			return dbError(err, nil, "locking students")
		}
		if len(found) != len(studentIDs) {
			known := make(map[string]bool, len(found))
			for _, id := range found {
				known[id] = true
			}
			unknown := make([]string, 0)
			for _, id := range studentIDs {
				if !known[id] {
					unknown = append(unknown, id)
				}
			}
			return &academic.UnknownStudentsError{IDs: unknown}
		}

		q = `UPDATE student_profile SET proctor_id = $1 WHERE id::text = ANY($2)`
		_, err := tx.ExecContext(ctx, q, proctorUserID, pq.StringArray(studentIDs))
		return dbError(err, nil, "assigning proctor")
	})
}

// Records

func queryAttendance(ctx context.Context, q sqlx.QueryerContext, studentID string) ([]academic.AttendanceRecord, error) {
	var rows []attendanceRow
	err := sqlx.SelectContext(ctx, q, &rows, `SELECT id, student_id, subject, total_classes, attended_classes
		FROM attendance_record WHERE student_id::text = $1 ORDER BY seq`, studentID)
	if err != nil {
		return nil, dbError(err, nil, "selecting attendance")
	}
	records := make([]academic.AttendanceRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, academic.AttendanceRecord(r))
	}
	return records, nil
}

func (repo *academicRepository) QueryAttendance(ctx context.Context, studentID string) ([]academic.AttendanceRecord, error) {
	return queryAttendance(ctx, repo.db, studentID)
}

func checkRows(ctx context.Context, tx *sqlx.Tx, table, studentID string, ids []string) (bool, error) {
	if len(ids) == 0 {
		return true, nil
	}
	var n int
	q := `SELECT COUNT(*) FROM ` + table + ` WHERE student_id::text = $1 AND id::text = ANY($2)`
	if err := tx.GetContext(ctx, &n, q, studentID, pq.StringArray(ids)); err != nil {
		return false, err
	}
	return n == len(ids), nil
}

func lockStudent(ctx context.Context, tx *sqlx.Tx, studentID string) error {
	var one int
	err := tx.GetContext(ctx, &one, `SELECT 1 FROM student_profile WHERE id::text = $1 FOR UPDATE`, studentID)
	return dbError(err, academic.ErrStudentNotFound, "locking student")
}

func changedIDs(upserts []string, deletes []string) []string {
	seen := make(map[string]bool)
	ids := make([]string, 0, len(upserts)+len(deletes))
	for _, id := range append(upserts, deletes...) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

func (repo *academicRepository) SaveAttendance(ctx context.Context, studentID string, changes academic.AttendanceChanges) ([]academic.AttendanceRecord, error) {
	var records []academic.AttendanceRecord
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockStudent(ctx, tx, studentID); err != nil {
			return err
		}
		upsertIDs := make([]string, 0, len(changes.Upserts))
		for _, rec := range changes.Upserts {
			upsertIDs = append(upsertIDs, rec.ID)
		}
		ok, err := checkRows(ctx, tx, "attendance_record", studentID, changedIDs(upsertIDs, changes.DeleteIDs))
		if err != nil {
			return dbError(err, nil, "checking attendance")
		}
		if !ok {
			return academic.ErrAttendanceNotFound
		}

		for _, rec := range changes.Upserts {
			if rec.ID == "" {
				_, err = tx.ExecContext(ctx, `INSERT INTO attendance_record (id, student_id, subject, total_classes, attended_classes)
					VALUES ($1, $2, $3, $4, $5)`, uuid.New().String(), studentID, rec.Subject, rec.TotalClasses, rec.AttendedClasses)
			} else {
				_, err = tx.ExecContext(ctx, `UPDATE attendance_record SET subject = $1, total_classes = $2, attended_classes = $3
					WHERE id::text = $4`, rec.Subject, rec.TotalClasses, rec.AttendedClasses, rec.ID)
			}
			if err != nil {
				return dbError(err, nil, "saving attendance")
			}
		}
		if len(changes.DeleteIDs) > 0 {
			q := `DELETE FROM attendance_record WHERE id::text = ANY($1)`
			if _, err = tx.ExecContext(ctx, q, pq.StringArray(changes.DeleteIDs)); err != nil {
				return dbError(err, nil, "deleting attendance")
			}
		}

		records, err = queryAttendance(ctx, tx, studentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func queryMarks(ctx context.Context, q sqlx.QueryerContext, studentID string, semester int) ([]academic.MarksRecord, error) {
	var rows []marksRow
	query := `SELECT ` + marksColumns + ` FROM marks_record WHERE student_id::text = $1 AND ($2 = 0 OR semester = $2) ORDER BY seq`
	if err := sqlx.SelectContext(ctx, q, &rows, query, studentID, semester); err != nil {
		return nil, dbError(err, nil, "selecting marks")
	}
	records := make([]academic.MarksRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, r.toMarks())
	}
	return records, nil
}

func (repo *academicRepository) QueryMarks(ctx context.Context, studentID string, semester int) ([]academic.MarksRecord, error) {
	return queryMarks(ctx, repo.db, studentID, semester)
}

func (repo *academicRepository) SaveMarks(ctx context.Context, studentID string, changes academic.MarksChanges) ([]academic.MarksRecord, error) {
	var records []academic.MarksRecord
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		if err := lockStudent(ctx, tx, studentID); err != nil {
			return err
		}
		upsertIDs := make([]string, 0, len(changes.Upserts))
		for _, rec := range changes.Upserts {
			upsertIDs = append(upsertIDs, rec.ID)
		}
		ok, err := checkRows(ctx, tx, "marks_record", studentID, changedIDs(upsertIDs, changes.DeleteIDs))
		if err != nil {
			return dbError(err, nil, "checking marks")
		}
		if !ok {
			return academic.ErrMarksNotFound
		}

		for _, rec := range changes.Upserts {
			rec.StudentID = studentID
			var q string
			if rec.ID == "" {
				rec.ID = uuid.New().String()
				q = `INSERT INTO marks_record (` + marksColumns + `) VALUES (:id, :student_id, :semester, :subject,
					:subject_code, :internal1, :internal2, :total_internal, :external, :total_marks,
					:attendance_percentage, :percentage)`
			} else {
				q = `UPDATE marks_record SET semester = :semester, subject = :subject, subject_code = :subject_code,
					internal1 = :internal1, internal2 = :internal2, total_internal = :total_internal,
					external = :external, total_marks = :total_marks,
					attendance_percentage = :attendance_percentage, percentage = :percentage
					WHERE id = :id`
			}
			if _, err = sqlx.NamedExecContext(ctx, tx, q, toMarksRow(rec)); err != nil {
				return dbError(err, nil, "saving marks")
			}
		}
		if len(changes.DeleteIDs) > 0 {
			q := `DELETE FROM marks_record WHERE id::text = ANY($1)`
			if _, err = tx.ExecContext(ctx, q, pq.StringArray(changes.DeleteIDs)); err != nil {
				return dbError(err, nil, "deleting marks")
			}
		}

		records, err = queryMarks(ctx, tx, studentID, 0)
		return err
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
