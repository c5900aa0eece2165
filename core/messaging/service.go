package messaging

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/access"
)

const meetingTimeLayout = "02 Jan 2006, 03:04 PM"

var (
	errNotYourStudent = "is not one of your students"
	errSelectStudent  = "select a student to chat with"
)

type Service struct {
	repo         Repository
	academicRepo academic.Repository
	mailSvc      core.EmailService
	supportEmail mail.Address
	now          func() time.Time
}

func NewService(repo Repository, academicRepo academic.Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{
		repo:         repo,
		academicRepo: academicRepo,
		mailSvc:      mailSvc,
		supportEmail: conf.SupportEmail,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Meetings

// ScheduleMeeting creates a meeting with some of the proctor's students and
// notifies each of them with a direct message.
func (svc *Service) ScheduleMeeting(ctx context.Context, p access.Principal, data NewMeeting) (Meeting, error) {
	if err := access.Check(p, access.ScheduleMeeting, access.Target{}); err != nil {
		return Meeting{}, err
	}

	ids := make([]string, 0, len(data.StudentIDs))
	receivers := make([]string, 0, len(data.StudentIDs))
	seen := make(map[string]bool, len(data.StudentIDs))
	for _, id := range data.StudentIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		sp, err := svc.academicRepo.GetStudent(ctx, id)
		if err != nil && !core.IsNotFound(err) {
			return Meeting{}, errors.Wrap(err, "finding student")
		}
		if err != nil || sp.ProctorUserID != p.UserID {
			return Meeting{}, core.NewValidationError(nil, core.FieldError{
				Field: "student_ids",
				Error: fmt.Sprintf("%s %s", id, errNotYourStudent),
			})
		}
		ids = append(ids, sp.ID)
		receivers = append(receivers, sp.UserID)
	}

	now := svc.now()
	m := Meeting{
		Title:         data.Title,
		ScheduledAt:   data.DateTime,
		Notes:         data.Notes,
		ProctorID:     p.ProctorID,
		ProctorUserID: p.UserID,
		StudentIDs:    ids,
		CreatedAt:     now,
	}
	content := fmt.Sprintf("📅 New meeting scheduled: %s on %s.", m.Title, m.ScheduledAt.Format(meetingTimeLayout))
	notifications := make([]DirectMessage, 0, len(receivers))
	for _, rcv := range receivers {
		notifications = append(notifications, DirectMessage{
			SenderID:   p.UserID,
			ReceiverID: rcv,
			Content:    content,
			CreatedAt:  now,
		})
	}

	return svc.repo.CreateMeeting(ctx, m, notifications)
}

// ListMeetings returns a proctor's own meetings or the meetings a student attends.
func (svc *Service) ListMeetings(ctx context.Context, p access.Principal) ([]Meeting, error) {
	var (
		meetings []Meeting
		err      error
	)
	switch {
	case p.IsProctor():
		meetings, err = svc.repo.QueryMeetingsByProctor(ctx, p.UserID)
	case p.IsStudent():
		meetings, err = svc.repo.QueryMeetingsByStudent(ctx, p.StudentID)
	default:
		return nil, core.ErrForbidden
	}
	if err != nil {
		return nil, errors.Wrap(err, "querying meetings")
	}
	if meetings == nil {
		meetings = []Meeting{}
	}
	return meetings, nil
}

type MeetingChat struct {
	Meeting  Meeting          `json:"meeting"`
	Messages []MeetingMessage `json:"messages"`
}

func (svc *Service) chatMeeting(ctx context.Context, p access.Principal, meetingID string) (Meeting, error) {
	m, err := svc.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	if err = access.Check(p, access.MeetingChat, m.Target()); err != nil {
		return Meeting{}, err
	}
	return m, nil
}

func (svc *Service) MeetingMessages(ctx context.Context, p access.Principal, meetingID string) (MeetingChat, error) {
	m, err := svc.chatMeeting(ctx, p, meetingID)
	if err != nil {
		return MeetingChat{}, err
	}
	msgs, err := svc.repo.QueryMeetingMessages(ctx, m.ID)
	if err != nil {
		return MeetingChat{}, errors.Wrap(err, "querying meeting messages")
	}
	if msgs == nil {
		msgs = []MeetingMessage{}
	}
	return MeetingChat{Meeting: m, Messages: msgs}, nil
}

func (svc *Service) PostMeetingMessage(ctx context.Context, p access.Principal, meetingID string, data NewMessage) (MeetingMessage, error) {
	m, err := svc.chatMeeting(ctx, p, meetingID)
	if err != nil {
		return MeetingMessage{}, err
	}
	return svc.repo.CreateMeetingMessage(ctx, MeetingMessage{
		MeetingID:      m.ID,
		SenderID:       p.UserID,
		SenderUsername: p.Username,
		Content:        data.Content,
		CreatedAt:      svc.now(),
	})
}

// Direct messages

type Peer struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	USN      string `json:"usn,omitempty"`
}

type Thread struct {
	Peer     Peer            `json:"peer"`
	Messages []DirectMessage `json:"messages"`
}

// peer resolves who p talks to: a proctor picks a student by usn, a student always talks to their proctor.
func (svc *Service) peer(ctx context.Context, p access.Principal, usn string) (Peer, error) {
	usn = academic.CleanUSN(usn)
	switch {
	case p.IsProctor():
		if usn == "" {
			return Peer{}, core.NewValidationError(nil, core.FieldError{Field: "usn", Error: errSelectStudent})
		}
		sp, err := svc.academicRepo.GetStudentByUSN(ctx, usn)
		if err != nil {
			return Peer{}, err
		}
		return Peer{UserID: sp.UserID, Username: sp.Username, USN: sp.USN}, nil
	case p.IsStudent():
		if p.ProctorUserID == "" {
			return Peer{}, ErrNoProctorAssigned
		}
		pp, err := svc.academicRepo.GetProctorByUserID(ctx, p.ProctorUserID)
		if err != nil {
			return Peer{}, errors.Wrap(err, "finding assigned proctor")
		}
		return Peer{UserID: pp.UserID, Username: pp.Username}, nil
	}
	return Peer{}, core.ErrForbidden
}

// DirectThread returns the conversation between p and its peer, oldest first.
func (svc *Service) DirectThread(ctx context.Context, p access.Principal, usn string) (Thread, error) {
	peer, err := svc.peer(ctx, p, usn)
	if err != nil {
		return Thread{}, err
	}
	msgs, err := svc.repo.QueryThread(ctx, p.UserID, peer.UserID)
	if err != nil {
		return Thread{}, errors.Wrap(err, "querying thread")
	}
	if msgs == nil {
		msgs = []DirectMessage{}
	}
	return Thread{Peer: peer, Messages: msgs}, nil
}

func (svc *Service) SendDirect(ctx context.Context, p access.Principal, usn string, data NewMessage) (DirectMessage, error) {
	peer, err := svc.peer(ctx, p, usn)
	if err != nil {
		return DirectMessage{}, err
	}
	return svc.repo.CreateDirectMessage(ctx, DirectMessage{
		SenderID:       p.UserID,
		SenderUsername: p.Username,
		ReceiverID:     peer.UserID,
		Content:        data.Content,
		CreatedAt:      svc.now(),
	})
}

// Broadcasts

// PostBroadcast publishes to the HOD's own department.
func (svc *Service) PostBroadcast(ctx context.Context, p access.Principal, data NewMessage) (BroadcastMessage, error) {
	if err := access.Check(p, access.AuthorBroadcast, access.Target{}); err != nil {
		return BroadcastMessage{}, err
	}
	if p.HODDepartment == "" {
		return BroadcastMessage{}, academic.ErrHODNotFound
	}
	return svc.repo.CreateBroadcast(ctx, BroadcastMessage{
		SenderID:       p.UserID,
		SenderUsername: p.Username,
		Department:     p.HODDepartment,
		Content:        data.Content,
		CreatedAt:      svc.now(),
	})
}

// ListBroadcasts returns the broadcasts of p's department, newest first.
func (svc *Service) ListBroadcasts(ctx context.Context, p access.Principal) ([]BroadcastMessage, error) {
	dept := p.BroadcastDepartment()
	if err := access.Check(p, access.ViewBroadcast, access.Target{Department: dept}); err != nil {
		return nil, err
	}
	msgs, err := svc.repo.QueryBroadcasts(ctx, dept)
	if err != nil {
		return nil, errors.Wrap(err, "querying broadcasts")
	}
	if msgs == nil {
		msgs = []BroadcastMessage{}
	}
	return msgs, nil
}

// Help

// SubmitHelp stores the message and forwards it to the support mailbox.
func (svc *Service) SubmitHelp(ctx context.Context, data NewHelpMessage) (HelpMessage, error) {
	msg, err := svc.repo.CreateHelpMessage(ctx, HelpMessage{
		Name:        data.Name,
		Email:       data.Email,
		Message:     data.Message,
		SubmittedAt: svc.now(),
	})
	if err != nil {
		return HelpMessage{}, errors.Wrap(err, "storing help message")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{svc.supportEmail},
		ReplyTo:      &mail.Address{Name: msg.Name, Address: msg.Email},
		Subject:      "Help request from " + msg.Name,
		TemplateName: "help_request",
		TemplateData: msg,
	})
	return msg, nil
}
