package academic

import (
	"sort"

	"github.com/trezcool/spis/core"
)

// maxSubjectTotal is what one marks record is scored out of.
const maxSubjectTotal = 100.0

// Series is the per-subject performance of one semester, index-aligned for charting.
type Series struct {
	Subjects   []string  `json:"subjects"`
	Marks      []float64 `json:"marks"`
	Attendance []float64 `json:"attendance"`
}

// AttendancePercent is the overall attendance: attended over held classes across all records.
// No class held gives 0.
func AttendancePercent(records []AttendanceRecord) float64 {
	var attended, total int
	for _, r := range records {
		attended += r.AttendedClasses
		total += r.TotalClasses
	}
	if total == 0 {
		return 0
	}
	return core.Round2(float64(attended) / float64(total) * 100)
}

// SubjectAttendance is each record's own attendance keyed by subject.
func SubjectAttendance(records []AttendanceRecord) map[string]float64 {
	pcts := make(map[string]float64, len(records))
	for _, r := range records {
		pcts[r.Subject] = r.Percent()
	}
	return pcts
}

// PerformanceSeries lists the semester's subjects by name, keeping input order for equal names.
// Marks are the raw internal1 + internal2 + external sum; attendance is the record's own
// attendance_percentage, not the computed overall attendance.
func PerformanceSeries(records []MarksRecord, semester int) Series {
	rows := make([]MarksRecord, 0, len(records))
	for _, r := range records {
		if r.Semester == semester {
			rows = append(rows, r)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Subject < rows[j].Subject })

	s := Series{
		Subjects:   make([]string, 0, len(rows)),
		Marks:      make([]float64, 0, len(rows)),
		Attendance: make([]float64, 0, len(rows)),
	}
	for _, r := range rows {
		s.Subjects = append(s.Subjects, r.Subject)
		s.Marks = append(s.Marks, core.Round2(r.Total()))
		s.Attendance = append(s.Attendance, val(r.AttendancePercentage))
	}
	return s
}

// SubjectAverages groups marks by subject: sum of totals over sum of max totals, as a percentage.
func SubjectAverages(records []MarksRecord) map[string]float64 {
	type acc struct{ total, max float64 }
	groups := make(map[string]*acc)
	for _, r := range records {
		g, ok := groups[r.Subject]
		if !ok {
			g = &acc{}
			groups[r.Subject] = g
		}
		g.total += r.Total()
		g.max += maxSubjectTotal
	}

	avgs := make(map[string]float64, len(groups))
	for subject, g := range groups {
		if g.max == 0 {
			avgs[subject] = 0
			continue
		}
		avgs[subject] = core.Round2(g.total / g.max * 100)
	}
	return avgs
}
