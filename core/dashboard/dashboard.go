// Package dashboard composes the per-role views out of guarded academic and messaging data.
package dashboard

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
	"github.com/trezcool/spis/core/messaging"
)

type (
	Student struct {
		Student          academic.StudentProfile      `json:"student"`
		Semesters        []int                        `json:"semesters"`
		SelectedSemester int                          `json:"selected_semester"`
		Marks            []academic.MarksRecord       `json:"marks"`
		Performance      academic.Series              `json:"performance"`
		Broadcasts       []messaging.BroadcastMessage `json:"broadcasts"`
	}

	Proctor struct {
		Proctor    academic.ProctorProfile      `json:"proctor"`
		Students   []academic.StudentProfile    `json:"students"`
		Meetings   []messaging.Meeting          `json:"meetings"`
		Broadcasts []messaging.BroadcastMessage `json:"broadcasts"`
	}

	HOD struct {
		HOD      academic.HODProfile       `json:"hod_profile"`
		Proctors []academic.ProctorProfile `json:"proctors"`
		Students []academic.StudentProfile `json:"students"`
	}

	// Performance is the payload of the performance API.
	Performance struct {
		AttendancePercent float64            `json:"attendance_percent"`
		SubjectAvg        map[string]float64 `json:"subject_avg"`
	}
)

type Service struct {
	academicRepo  academic.Repository
	messagingRepo messaging.Repository
}

func NewService(academicRepo academic.Repository, messagingRepo messaging.Repository) *Service {
	return &Service{academicRepo: academicRepo, messagingRepo: messagingRepo}
}

func semesters() []int {
	sems := make([]int, 0, academic.MaxSemester)
	for s := academic.MinSemester; s <= academic.MaxSemester; s++ {
		sems = append(sems, s)
	}
	return sems
}

// StudentDashboard is the dashboard of the requesting student. sem 0 selects the current semester.
func (svc *Service) StudentDashboard(ctx context.Context, p access.Principal, sem int) (Student, error) {
	if !p.IsStudent() {
		return Student{}, core.ErrForbidden
	}
	sp, err := svc.academicRepo.GetStudent(ctx, p.StudentID)
	if err != nil {
		return Student{}, err
	}
	return svc.student(ctx, sp, sem)
}

// StudentDashboardFor is the dashboard of the student with usn, as seen by someone allowed to view it.
func (svc *Service) StudentDashboardFor(ctx context.Context, p access.Principal, usn string, sem int) (Student, error) {
	sp, err := svc.academicRepo.GetStudentByUSN(ctx, academic.CleanUSN(usn))
	if err != nil {
		return Student{}, err
	}
	if err = access.Check(p, access.ViewStudent, sp.Target()); err != nil {
		return Student{}, err
	}
	return svc.student(ctx, sp, sem)
}

func (svc *Service) student(ctx context.Context, sp academic.StudentProfile, sem int) (Student, error) {
	if sem == 0 {
		sem = sp.Semester
	}
	if !academic.ValidSemester(sem) {
		return Student{}, core.NewValidationError(nil, core.FieldError{Field: "sem", Error: "semester must be between 1 and 8"})
	}

	marks, err := svc.academicRepo.QueryMarks(ctx, sp.ID, sem)
	if err != nil {
		return Student{}, errors.Wrap(err, "querying marks")
	}
	if marks == nil {
		marks = []academic.MarksRecord{}
	}
	sort.SliceStable(marks, func(i, j int) bool { return marks[i].Subject < marks[j].Subject })

	// the student's department feed, whoever looks at the dashboard
	broadcasts, err := svc.messagingRepo.QueryBroadcasts(ctx, sp.Branch)
	if err != nil {
		return Student{}, errors.Wrap(err, "querying broadcasts")
	}
	if broadcasts == nil {
		broadcasts = []messaging.BroadcastMessage{}
	}

	return Student{
		Student:          sp,
		Semesters:        semesters(),
		SelectedSemester: sem,
		Marks:            marks,
		Performance:      academic.PerformanceSeries(marks, sem),
		Broadcasts:       broadcasts,
	}, nil
}

// ProctorDashboard lists the proctor's students, meetings and department broadcasts.
// Superusers without a proctor profile get the same view of their own (usually empty) data.
func (svc *Service) ProctorDashboard(ctx context.Context, p access.Principal) (Proctor, error) {
	if !p.IsProctor() && !p.IsSuperuser() {
		return Proctor{}, core.ErrForbidden
	}

	var pp academic.ProctorProfile
	if p.IsProctor() {
		var err error
		if pp, err = svc.academicRepo.GetProctorByUserID(ctx, p.UserID); err != nil {
			return Proctor{}, err
		}
	}

	students, err := svc.academicRepo.QueryStudents(ctx, academic.StudentQueryFilter{ProctorUserID: p.UserID}, nil)
	if err != nil {
		return Proctor{}, errors.Wrap(err, "querying students")
	}
	meetings, err := svc.messagingRepo.QueryMeetingsByProctor(ctx, p.UserID)
	if err != nil {
		return Proctor{}, errors.Wrap(err, "querying meetings")
	}
	broadcasts := []messaging.BroadcastMessage{}
	if pp.Department != "" {
		if broadcasts, err = svc.messagingRepo.QueryBroadcasts(ctx, pp.Department); err != nil {
			return Proctor{}, errors.Wrap(err, "querying broadcasts")
		}
	}

	if students == nil {
		students = []academic.StudentProfile{}
	}
	if meetings == nil {
		meetings = []messaging.Meeting{}
	}
	if broadcasts == nil {
		broadcasts = []messaging.BroadcastMessage{}
	}
	return Proctor{Proctor: pp, Students: students, Meetings: meetings, Broadcasts: broadcasts}, nil
}

// HODDashboard lists the proctors and students of the HOD's department.
func (svc *Service) HODDashboard(ctx context.Context, p access.Principal) (HOD, error) {
	if !p.IsHOD() {
		return HOD{}, core.ErrForbidden
	}
	hp, err := svc.academicRepo.GetHODByUserID(ctx, p.UserID)
	if err != nil {
		return HOD{}, err
	}

	all, err := svc.academicRepo.QueryProctors(ctx)
	if err != nil {
		return HOD{}, errors.Wrap(err, "querying proctors")
	}
	proctors := make([]academic.ProctorProfile, 0, len(all))
	for _, pp := range all {
		if pp.Department == hp.Department {
			proctors = append(proctors, pp)
		}
	}

	students, err := svc.academicRepo.QueryStudents(ctx, academic.StudentQueryFilter{Branch: hp.Department}, nil)
	if err != nil {
		return HOD{}, errors.Wrap(err, "querying students")
	}
	if students == nil {
		students = []academic.StudentProfile{}
	}
	return HOD{HOD: hp, Proctors: proctors, Students: students}, nil
}

// Performance rolls up the attendance and per-subject averages of the student with usn.
func (svc *Service) Performance(ctx context.Context, p access.Principal, usn string) (Performance, error) {
	sp, err := svc.academicRepo.GetStudentByUSN(ctx, academic.CleanUSN(usn))
	if err != nil {
		return Performance{}, err
	}
	if err = access.Check(p, access.ViewStudent, sp.Target()); err != nil {
		return Performance{}, err
	}

	attendance, err := svc.academicRepo.QueryAttendance(ctx, sp.ID)
	if err != nil {
		return Performance{}, errors.Wrap(err, "querying attendance")
	}
	marks, err := svc.academicRepo.QueryMarks(ctx, sp.ID, 0)
	if err != nil {
		return Performance{}, errors.Wrap(err, "querying marks")
	}
	return Performance{
		AttendancePercent: academic.AttendancePercent(attendance),
		SubjectAvg:        academic.SubjectAverages(marks),
	}, nil
}
