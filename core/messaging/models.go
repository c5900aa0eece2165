package messaging

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/access"
)

var (
	ErrMeetingNotFound = core.NewNotFoundError("meeting")

	// ErrNoProctorAssigned is returned to students who open direct messages before being assigned a proctor.
	// It is a recoverable state, not a failure.
	ErrNoProctorAssigned = &NoProctorError{}
)

type NoProctorError struct{}

func (NoProctorError) Error() string { return "no proctor assigned to you yet" }

type Meeting struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	ScheduledAt   time.Time `json:"datetime"`
	Notes         string    `json:"notes"`
	ProctorID     string    `json:"proctor_id"`
	ProctorUserID string    `json:"proctor_user_id"`
	StudentIDs    []string  `json:"student_ids"`
	CreatedAt     time.Time `json:"created_at"`
}

// Target returns the guard facts of the meeting.
func (m Meeting) Target() access.Target {
	return access.Target{MeetingProctorUserID: m.ProctorUserID, MeetingStudentIDs: m.StudentIDs}
}

type MeetingMessage struct {
	ID             int64     `json:"id"`
	MeetingID      string    `json:"meeting_id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

type DirectMessage struct {
	ID             int64     `json:"id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender"`
	ReceiverID     string    `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

type BroadcastMessage struct {
	ID             int64     `json:"id"`
	SenderID       string    `json:"sender_id"`
	SenderUsername string    `json:"sender"`
	Department     string    `json:"department"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"timestamp"`
}

type HelpMessage struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Message     string    `json:"message"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Requests

type NewMeeting struct {
	Title      string    `json:"title" validate:"required,notblank,max=100"`
	DateTime   time.Time `json:"datetime" validate:"required"`
	Notes      string    `json:"notes"`
	StudentIDs []string  `json:"student_ids" validate:"required,min=1,dive,required"`
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Notes = core.CleanString(nm.Notes)
	for i := range nm.StudentIDs {
		nm.StudentIDs[i] = core.CleanString(nm.StudentIDs[i])
	}
	return validate.Struct(nm)
}

type NewMessage struct {
	Content string `json:"content" validate:"required,notblank"`
}

func (nm *NewMessage) Validate(validate *validator.Validate) error {
	nm.Content = core.CleanString(nm.Content)
	return validate.Struct(nm)
}

type NewHelpMessage struct {
	Name    string `json:"name" validate:"required,max=100"`
	Email   string `json:"email" validate:"required,email"`
	Message string `json:"message" validate:"required,notblank"`
}

func (nh *NewHelpMessage) Validate(validate *validator.Validate) error {
	nh.Name = core.CleanString(nh.Name)
	nh.Email = core.CleanString(nh.Email, true /* lower */)
	nh.Message = core.CleanString(nh.Message)
	return validate.Struct(nh)
}
