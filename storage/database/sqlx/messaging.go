package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/spis/core/messaging"
)

type meetingRow struct {
	ID            string         `db:"id"`
	Title         string         `db:"title"`
	ScheduledAt   time.Time      `db:"scheduled_at"`
	Notes         null.String    `db:"notes"`
	ProctorID     string         `db:"proctor_id"`
	ProctorUserID string         `db:"proctor_user_id"`
	StudentIDs    pq.StringArray `db:"student_ids"`
	CreatedAt     time.Time      `db:"created_at"`
}

const meetingSelect = `SELECT m.id, m.title, m.scheduled_at, m.notes, m.proctor_id, pp.user_id AS proctor_user_id,
	ARRAY(SELECT ms.student_id::text FROM meeting_student ms WHERE ms.meeting_id = m.id ORDER BY ms.student_id) AS student_ids,
	m.created_at
	FROM meeting m JOIN proctor_profile pp ON pp.id = m.proctor_id`

func (r meetingRow) toMeeting() messaging.Meeting {
	ids := []string(r.StudentIDs)
	if ids == nil {
		ids = []string{}
	}
	return messaging.Meeting{
		ID:            r.ID,
		Title:         r.Title,
		ScheduledAt:   r.ScheduledAt.UTC(),
		Notes:         r.Notes.String,
		ProctorID:     r.ProctorID,
		ProctorUserID: r.ProctorUserID,
		StudentIDs:    ids,
		CreatedAt:     r.CreatedAt.UTC(),
	}
}

// messageRow covers the meeting, direct and broadcast messages.
type messageRow struct {
	ID             int64       `db:"id"`
	MeetingID      string      `db:"meeting_id"`
	SenderID       string      `db:"sender_id"`
	SenderUsername string      `db:"sender_username"`
	ReceiverID     string      `db:"receiver_id"`
	Department     null.String `db:"department"`
	Content        string      `db:"content"`
	CreatedAt      time.Time   `db:"created_at"`
}

type messagingRepository struct {
	db *sqlx.DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *sqlx.DB) messaging.Repository {
	return &messagingRepository{db: db}
}

// Meetings

func insertDirectMessage(ctx context.Context, q sqlx.QueryerContext, msg messaging.DirectMessage) (messaging.DirectMessage, error) {
	query := `INSERT INTO direct_message (sender_id, receiver_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := sqlx.GetContext(ctx, q, &msg.ID, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.CreatedAt); err != nil {
		return messaging.DirectMessage{}, dbError(err, nil, "inserting direct message")
	}
	return msg, nil
}

func (repo *messagingRepository) CreateMeeting(ctx context.Context, m messaging.Meeting, notifications []messaging.DirectMessage) (messaging.Meeting, error) {
	m.ID = uuid.New().String()
	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO meeting (id, title, scheduled_at, notes, proctor_id, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)`, m.ID, m.Title, m.ScheduledAt, str(m.Notes), m.ProctorID, m.CreatedAt)
		if err != nil {
			return dbError(err, nil, "inserting meeting")
		}
		_, err = tx.ExecContext(ctx, `INSERT INTO meeting_student (meeting_id, student_id)
			SELECT $1::uuid, UNNEST($2::uuid[])`, m.ID, pq.StringArray(m.StudentIDs))
		if err != nil {
			return dbError(err, nil, "inserting meeting students")
		}
		for _, dm := range notifications {
			if _, err = insertDirectMessage(ctx, tx, dm); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return messaging.Meeting{}, err
	}
	return repo.GetMeeting(ctx, m.ID)
}

func (repo *messagingRepository) GetMeeting(ctx context.Context, id string) (messaging.Meeting, error) {
	var r meetingRow
	if err := sqlx.GetContext(ctx, repo.db, &r, meetingSelect+` WHERE m.id::text = $1`, id); err != nil {
		return messaging.Meeting{}, dbError(err, messaging.ErrMeetingNotFound, "selecting meeting")
	}
	return r.toMeeting(), nil
}

func (repo *messagingRepository) queryMeetings(ctx context.Context, query string, arg string) ([]messaging.Meeting, error) {
	var rows []meetingRow
	if err := sqlx.SelectContext(ctx, repo.db, &rows, query, arg); err != nil {
		return nil, dbError(err, nil, "selecting meetings")
	}
	meetings := make([]messaging.Meeting, 0, len(rows))
	for _, r := range rows {
		meetings = append(meetings, r.toMeeting())
	}
	return meetings, nil
}

func (repo *messagingRepository) QueryMeetingsByProctor(ctx context.Context, proctorUserID string) ([]messaging.Meeting, error) {
	q := meetingSelect + ` WHERE pp.user_id::text = $1 ORDER BY m.scheduled_at DESC, m.created_at DESC`
	return repo.queryMeetings(ctx, q, proctorUserID)
}

func (repo *messagingRepository) QueryMeetingsByStudent(ctx context.Context, studentID string) ([]messaging.Meeting, error) {
	q := meetingSelect + ` WHERE EXISTS (SELECT 1 FROM meeting_student ms WHERE ms.meeting_id = m.id AND ms.student_id::text = $1)
		ORDER BY m.scheduled_at DESC, m.created_at DESC`
	return repo.queryMeetings(ctx, q, studentID)
}

func (repo *messagingRepository) CreateMeetingMessage(ctx context.Context, msg messaging.MeetingMessage) (messaging.MeetingMessage, error) {
	q := `INSERT INTO meeting_message (meeting_id, sender_id, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := sqlx.GetContext(ctx, repo.db, &msg.ID, q, msg.MeetingID, msg.SenderID, msg.Content, msg.CreatedAt); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			return messaging.MeetingMessage{}, messaging.ErrMeetingNotFound
		}
		return messaging.MeetingMessage{}, dbError(err, nil, "inserting meeting message")
	}
	return msg, nil
}

func (repo *messagingRepository) QueryMeetingMessages(ctx context.Context, meetingID string) ([]messaging.MeetingMessage, error) {
	var rows []messageRow
	q := `SELECT mm.id, mm.meeting_id, mm.sender_id, u.username AS sender_username, mm.content, mm.created_at
		FROM meeting_message mm JOIN "user" u ON u.id = mm.sender_id
		WHERE mm.meeting_id::text = $1 ORDER BY mm.created_at, mm.id`
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, meetingID); err != nil {
		return nil, dbError(err, nil, "selecting meeting messages")
	}
	msgs := make([]messaging.MeetingMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messaging.MeetingMessage{
			ID:             r.ID,
			MeetingID:      r.MeetingID,
			SenderID:       r.SenderID,
			SenderUsername: r.SenderUsername,
			Content:        r.Content,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}

// Direct messages

func (repo *messagingRepository) CreateDirectMessage(ctx context.Context, msg messaging.DirectMessage) (messaging.DirectMessage, error) {
	return insertDirectMessage(ctx, repo.db, msg)
}

func (repo *messagingRepository) QueryThread(ctx context.Context, userA, userB string) ([]messaging.DirectMessage, error) {
	var rows []messageRow
	q := `SELECT dm.id, dm.sender_id, u.username AS sender_username, dm.receiver_id, dm.content, dm.created_at
		FROM direct_message dm JOIN "user" u ON u.id = dm.sender_id
		WHERE (dm.sender_id::text = $1 AND dm.receiver_id::text = $2) OR (dm.sender_id::text = $2 AND dm.receiver_id::text = $1)
		ORDER BY dm.created_at, dm.id`
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, userA, userB); err != nil {
		return nil, dbError(err, nil, "selecting direct messages")
	}
	msgs := make([]messaging.DirectMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messaging.DirectMessage{
			ID:             r.ID,
			SenderID:       r.SenderID,
			SenderUsername: r.SenderUsername,
			ReceiverID:     r.ReceiverID,
			Content:        r.Content,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}

// Broadcasts

func (repo *messagingRepository) CreateBroadcast(ctx context.Context, msg messaging.BroadcastMessage) (messaging.BroadcastMessage, error) {
	q := `INSERT INTO broadcast_message (sender_id, department, content, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := sqlx.GetContext(ctx, repo.db, &msg.ID, q, msg.SenderID, msg.Department, msg.Content, msg.CreatedAt); err != nil {
		return messaging.BroadcastMessage{}, dbError(err, nil, "inserting broadcast")
	}
	return msg, nil
}

func (repo *messagingRepository) QueryBroadcasts(ctx context.Context, department string) ([]messaging.BroadcastMessage, error) {
	var rows []messageRow
	q := `SELECT bm.id, bm.sender_id, u.username AS sender_username, bm.department, bm.content, bm.created_at
		FROM broadcast_message bm JOIN "user" u ON u.id = bm.sender_id
		WHERE bm.department = $1 ORDER BY bm.created_at DESC, bm.id DESC`
	if err := sqlx.SelectContext(ctx, repo.db, &rows, q, department); err != nil {
		return nil, dbError(err, nil, "selecting broadcasts")
	}
	msgs := make([]messaging.BroadcastMessage, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, messaging.BroadcastMessage{
			ID:             r.ID,
			SenderID:       r.SenderID,
			SenderUsername: r.SenderUsername,
			Department:     r.Department.String,
			Content:        r.Content,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return msgs, nil
}

// Help

func (repo *messagingRepository) CreateHelpMessage(ctx context.Context, msg messaging.HelpMessage) (messaging.HelpMessage, error) {
	q := `INSERT INTO help_message (name, email, message, submitted_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := sqlx.GetContext(ctx, repo.db, &msg.ID, q, msg.Name, msg.Email, msg.Message, msg.SubmittedAt); err != nil {
		return messaging.HelpMessage{}, dbError(err, nil, "inserting help message")
	}
	return msg, nil
}
