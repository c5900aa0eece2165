package academic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestAttendancePercent(t *testing.T) {
	tests := []struct {
		name    string
		records []AttendanceRecord
		want    float64
	}{
		{name: "no records", want: 0},
		{name: "no class held", records: []AttendanceRecord{{Subject: "DBMS"}, {Subject: "OS"}}, want: 0},
		{
			name:    "sums across subjects",
			records: []AttendanceRecord{{TotalClasses: 40, AttendedClasses: 30}, {TotalClasses: 60, AttendedClasses: 60}},
			want:    90,
		},
		{
			name:    "rounded to 2 places",
			records: []AttendanceRecord{{TotalClasses: 3, AttendedClasses: 2}},
			want:    66.67,
		},
		{
			name:    "one empty subject does not skew",
			records: []AttendanceRecord{{TotalClasses: 0}, {TotalClasses: 8, AttendedClasses: 6}},
			want:    75,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AttendancePercent(tt.records))
		})
	}
}

func TestAttendanceRecord_Percent(t *testing.T) {
	assert.Equal(t, 0.0, AttendanceRecord{}.Percent())
	assert.Equal(t, 33.33, AttendanceRecord{TotalClasses: 3, AttendedClasses: 1}.Percent())
}

func TestSubjectAttendance(t *testing.T) {
	assert.Empty(t, SubjectAttendance(nil))
	assert.Equal(t, map[string]float64{"Maths": 33.33, "Lab": 0}, SubjectAttendance([]AttendanceRecord{
		{Subject: "Maths", TotalClasses: 3, AttendedClasses: 1},
		{Subject: "Lab"},
	}))
}

func TestPerformanceSeries(t *testing.T) {
	records := []MarksRecord{
		{Semester: 3, Subject: "OS", Internal1: f(20), Internal2: f(20), External: f(50), AttendancePercentage: f(82.5)},
		{Semester: 3, Subject: "DBMS", Internal1: f(22), Internal2: f(20), External: f(45)},
		{Semester: 4, Subject: "AI", Internal1: f(25), Internal2: f(25), External: f(50)},
		{Semester: 3, Subject: "CN", Internal1: f(18), External: f(40), Percentage: f(99)},
	}

	got := PerformanceSeries(records, 3)
	assert.Equal(t, []string{"CN", "DBMS", "OS"}, got.Subjects)
	assert.Equal(t, []float64{58, 87, 90}, got.Marks)
	assert.Equal(t, []float64{0, 0, 82.5}, got.Attendance, "attendance comes from each record, not from attendance records")

	empty := PerformanceSeries(records, 8)
	assert.Empty(t, empty.Subjects)
	assert.NotNil(t, empty.Marks)
	assert.NotNil(t, empty.Attendance)
}

func TestPerformanceSeries_dbmsScenario(t *testing.T) {
	records := []MarksRecord{{Semester: 3, Subject: "DBMS", Internal1: f(22), Internal2: f(20), External: f(45)}}

	got := PerformanceSeries(records, 3)
	assert.Equal(t, Series{Subjects: []string{"DBMS"}, Marks: []float64{87}, Attendance: []float64{0}}, got)
}

func TestPerformanceSeries_stableOnEqualSubjects(t *testing.T) {
	records := []MarksRecord{
		{Semester: 1, Subject: "Maths", External: f(10)},
		{Semester: 1, Subject: "Chem", External: f(30)},
		{Semester: 1, Subject: "Maths", External: f(20)},
	}
	got := PerformanceSeries(records, 1)
	assert.Equal(t, []string{"Chem", "Maths", "Maths"}, got.Subjects)
	assert.Equal(t, []float64{30, 10, 20}, got.Marks)
}

func TestMarksRecord_Total(t *testing.T) {
	full := MarksRecord{Internal1: f(20), Internal2: f(20), External: f(50), TotalMarks: f(12), Percentage: f(3)}
	assert.Equal(t, 90.0, full.Total(), "stored totals and percentage are ignored")
	assert.Equal(t, 0.0, MarksRecord{}.Total())
	assert.Equal(t, 25.0, MarksRecord{Internal2: f(25)}.Total())
}

func TestSubjectAverages(t *testing.T) {
	records := []MarksRecord{
		{Semester: 1, Subject: "Maths", Internal1: f(20), Internal2: f(20), External: f(50)},
		{Semester: 2, Subject: "Maths", Internal1: f(10), Internal2: f(10), External: f(40)},
		{Semester: 1, Subject: "Physics", Internal1: f(12.5), Internal2: f(12.25), External: f(30)},
		{Semester: 2, Subject: "Chem"},
	}

	assert.Equal(t, map[string]float64{"Maths": 75, "Physics": 54.75, "Chem": 0}, SubjectAverages(records))
	assert.Empty(t, SubjectAverages(nil))
}
