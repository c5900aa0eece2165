package messaging

import "context"

// Repository persists meetings and every kind of message.
type Repository interface {
	// CreateMeeting stores the meeting, its attendees and the notifications together.
	CreateMeeting(ctx context.Context, m Meeting, notifications []DirectMessage) (Meeting, error)
	GetMeeting(ctx context.Context, id string) (Meeting, error)
	// QueryMeetingsByProctor returns the proctor's meetings, latest first.
	QueryMeetingsByProctor(ctx context.Context, proctorUserID string) ([]Meeting, error)
	// QueryMeetingsByStudent returns the student's meetings, latest first.
	QueryMeetingsByStudent(ctx context.Context, studentID string) ([]Meeting, error)

	CreateMeetingMessage(ctx context.Context, msg MeetingMessage) (MeetingMessage, error)
	// QueryMeetingMessages returns the meeting's chat, oldest first.
	QueryMeetingMessages(ctx context.Context, meetingID string) ([]MeetingMessage, error)

	CreateDirectMessage(ctx context.Context, msg DirectMessage) (DirectMessage, error)
	// QueryThread returns the messages exchanged between two users in either direction, oldest first.
	QueryThread(ctx context.Context, userA, userB string) ([]DirectMessage, error)

	CreateBroadcast(ctx context.Context, msg BroadcastMessage) (BroadcastMessage, error)
	// QueryBroadcasts returns the department's broadcasts, newest first.
	QueryBroadcasts(ctx context.Context, department string) ([]BroadcastMessage, error)

	CreateHelpMessage(ctx context.Context, msg HelpMessage) (HelpMessage, error)
}
