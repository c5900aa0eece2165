package academic

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
)

var ErrUSNExists = errors.New("a student with this USN already exists")

// UnknownStudentsError lists the student ids an assignment could not find; nothing was written.
type UnknownStudentsError struct {
	IDs []string
}

func (err UnknownStudentsError) Error() string {
	return "unknown students: " + strings.Join(err.IDs, ", ")
}

// Repository persists profiles and academic records.
// Every write method is atomic: it either fully applies or leaves no trace.
type Repository interface {
	ListBranches(ctx context.Context) ([]Branch, error)
	ListSections(ctx context.Context) ([]Section, error)

	// Create*Account store the user and its profile together.
	CreateStudentAccount(ctx context.Context, acc StudentAccount) (StudentAccount, error)
	CreateProctorAccount(ctx context.Context, acc ProctorAccount) (ProctorAccount, error)
	CreateHODAccount(ctx context.Context, acc HODAccount) (HODAccount, error)

	// CheckUSNUniqueness returns ErrUSNExists when usn belongs to a student not in excludedIDs.
	CheckUSNUniqueness(ctx context.Context, usn string, excludedIDs ...string) error
	GetStudent(ctx context.Context, id string) (StudentProfile, error)
	GetStudentByUSN(ctx context.Context, usn string) (StudentProfile, error)
	GetStudentByUserID(ctx context.Context, userID string) (StudentProfile, error)
	QueryStudents(ctx context.Context, filter StudentQueryFilter, ordering []core.DBOrdering) ([]StudentProfile, error)
	UpdateStudent(ctx context.Context, sp StudentProfile) (StudentProfile, error)
	DeleteStudent(ctx context.Context, id string) error

	GetProctor(ctx context.Context, id string) (ProctorProfile, error)
	GetProctorByUserID(ctx context.Context, userID string) (ProctorProfile, error)
	QueryProctors(ctx context.Context) ([]ProctorProfile, error)
	UpdateProctor(ctx context.Context, pp ProctorProfile) (ProctorProfile, error)
	DeleteProctor(ctx context.Context, id string) error

	GetHODByUserID(ctx context.Context, userID string) (HODProfile, error)
	// SaveHODProfile creates or replaces the HOD profile of hp.UserID.
	SaveHODProfile(ctx context.Context, hp HODProfile) (HODProfile, error)

	// AssignProctor links every student to proctorUserID, or none of them.
	// Unknown student ids yield an UnknownStudentsError.
	AssignProctor(ctx context.Context, studentIDs []string, proctorUserID string) error

	// QueryAttendance returns the student's records in creation order.
	QueryAttendance(ctx context.Context, studentID string) ([]AttendanceRecord, error)
	SaveAttendance(ctx context.Context, studentID string, changes AttendanceChanges) ([]AttendanceRecord, error)
	// QueryMarks returns the student's records (of one semester if semester > 0) in creation order.
	QueryMarks(ctx context.Context, studentID string, semester int) ([]MarksRecord, error)
	SaveMarks(ctx context.Context, studentID string, changes MarksChanges) ([]MarksRecord, error)
}

// StudentOrderingFields are the fields students may be ordered by.
var StudentOrderingFields = []string{"usn", "branch", "semester", "section", "username"}

// CleanOrdering drops unknown ordering fields.
func CleanOrdering(ordering []core.DBOrdering, allowed []string) []core.DBOrdering {
	if len(ordering) == 0 {
		return nil
	}
	sorted := append([]string(nil), allowed...)
	sort.Strings(sorted)

	clean := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if i := sort.SearchStrings(sorted, ord.Field); i < len(sorted) && sorted[i] == ord.Field {
			clean = append(clean, ord)
		}
	}
	return clean
}
