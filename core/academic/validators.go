package academic

import (
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spis/core"
)

const (
	MinSemester = 1
	MaxSemester = 8
)

var (
	semesterTag  = "semester"
	semesterText = "semester must be between 1 and 8"

	usnTag   = "usn"
	usnText  = "USN may only contain letters and digits"
	usnRegex = regexp.MustCompile(`^[0-9A-Z]+$`)

	attendedLteTotalTag  = "attended_lte_total"
	attendedLteTotalText = "attended classes cannot exceed total classes"
)

// InitValidators registers the academic validation rules.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(semesterTag, semesterValidation)
	core.RegisterCustomTranslation(validate, translator, semesterTag, semesterText)

	_ = validate.RegisterValidation(usnTag, usnValidation)
	core.RegisterCustomTranslation(validate, translator, usnTag, usnText)

	validate.RegisterStructValidation(attendanceRowValidation, AttendanceRow{})
	core.RegisterCustomTranslation(validate, translator, attendedLteTotalTag, attendedLteTotalText)
}

func ValidSemester(sem int) bool {
	return sem >= MinSemester && sem <= MaxSemester
}

func semesterValidation(fl validator.FieldLevel) bool {
	return ValidSemester(int(fl.Field().Int()))
}

func usnValidation(fl validator.FieldLevel) bool {
	return usnRegex.MatchString(fl.Field().String())
}

// attendanceRowValidation enforces attended_classes <= total_classes.
func attendanceRowValidation(sl validator.StructLevel) {
	row, ok := sl.Current().Interface().(AttendanceRow)
	if !ok || row.Delete {
		return
	}
	if row.AttendedClasses > row.TotalClasses {
		sl.ReportError(row.AttendedClasses, "attended_classes", "AttendedClasses", attendedLteTotalTag, "")
	}
}

func CleanUSN(usn string) string {
	return strings.ToUpper(core.CleanString(usn))
}
