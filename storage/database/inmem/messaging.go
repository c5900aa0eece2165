package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/messaging"
)

type messagingRepository struct {
	db *DB
}

var _ messaging.Repository = (*messagingRepository)(nil)

func NewMessagingRepository(db *DB) messaging.Repository {
	return &messagingRepository{db: db}
}

// Meetings

func (repo *messagingRepository) CreateMeeting(_ context.Context, m messaging.Meeting, notifications []messaging.DirectMessage) (messaging.Meeting, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.proctors[m.ProctorID]; !ok {
		return messaging.Meeting{}, core.NewNotFoundError("proctor")
	}
	for _, id := range m.StudentIDs {
		if _, ok := repo.db.students[id]; !ok {
			return messaging.Meeting{}, core.NewNotFoundError("student")
		}
	}
	for _, dm := range notifications {
		if _, ok := repo.db.users[dm.ReceiverID]; !ok {
			return messaging.Meeting{}, core.NewNotFoundError("user")
		}
	}

	m.ID = newID()
	m.StudentIDs = append([]string{}, m.StudentIDs...)
	repo.db.meetings[m.ID] = &meetingRow{seq: repo.db.nextSeq(), Meeting: m}
	for _, dm := range notifications {
		repo.addDirectMessage(dm)
	}
	return m, nil
}

func (repo *messagingRepository) meeting(mr *meetingRow) messaging.Meeting {
	m := mr.Meeting
	m.StudentIDs = append([]string{}, mr.StudentIDs...)
	return m
}

func (repo *messagingRepository) GetMeeting(_ context.Context, id string) (messaging.Meeting, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if mr, ok := repo.db.meetings[id]; ok {
		return repo.meeting(mr), nil
	}
	return messaging.Meeting{}, messaging.ErrMeetingNotFound
}

func (repo *messagingRepository) queryMeetings(match func(mr *meetingRow) bool) []messaging.Meeting {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	rows := make([]*meetingRow, 0)
	for _, mr := range repo.db.meetings {
		if match(mr) {
			rows = append(rows, mr)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.ScheduledAt.Equal(b.ScheduledAt) {
			return a.ScheduledAt.After(b.ScheduledAt)
		}
		return a.seq > b.seq
	})

	meetings := make([]messaging.Meeting, 0, len(rows))
	for _, mr := range rows {
		meetings = append(meetings, repo.meeting(mr))
	}
	return meetings
}

func (repo *messagingRepository) QueryMeetingsByProctor(_ context.Context, proctorUserID string) ([]messaging.Meeting, error) {
	return repo.queryMeetings(func(mr *meetingRow) bool { return mr.ProctorUserID == proctorUserID }), nil
}

func (repo *messagingRepository) QueryMeetingsByStudent(_ context.Context, studentID string) ([]messaging.Meeting, error) {
	return repo.queryMeetings(func(mr *meetingRow) bool {
		for _, id := range mr.StudentIDs {
			if id == studentID {
				return true
			}
		}
		return false
	}), nil
}

func (repo *messagingRepository) CreateMeetingMessage(_ context.Context, msg messaging.MeetingMessage) (messaging.MeetingMessage, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.meetings[msg.MeetingID]; !ok {
		return messaging.MeetingMessage{}, messaging.ErrMeetingNotFound
	}
	msg.ID = int64(len(repo.db.meetingMessages) + 1)
	msg.SenderUsername = repo.db.username(msg.SenderID)
	repo.db.meetingMessages = append(repo.db.meetingMessages, msg)
	return msg, nil
}

func (repo *messagingRepository) QueryMeetingMessages(_ context.Context, meetingID string) ([]messaging.MeetingMessage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]messaging.MeetingMessage, 0)
	for _, msg := range repo.db.meetingMessages {
		if msg.MeetingID == meetingID {
			msg.SenderUsername = repo.db.username(msg.SenderID)
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// Direct messages

// addDirectMessage must be called with the write lock held.
func (repo *messagingRepository) addDirectMessage(msg messaging.DirectMessage) messaging.DirectMessage {
	msg.ID = int64(len(repo.db.directMessages) + 1)
	msg.SenderUsername = repo.db.username(msg.SenderID)
	repo.db.directMessages = append(repo.db.directMessages, msg)
	return msg
}

func (repo *messagingRepository) CreateDirectMessage(_ context.Context, msg messaging.DirectMessage) (messaging.DirectMessage, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[msg.ReceiverID]; !ok {
		return messaging.DirectMessage{}, core.NewNotFoundError("user")
	}
	return repo.addDirectMessage(msg), nil
}

func (repo *messagingRepository) QueryThread(_ context.Context, userA, userB string) ([]messaging.DirectMessage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]messaging.DirectMessage, 0)
	for _, msg := range repo.db.directMessages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) || (msg.SenderID == userB && msg.ReceiverID == userA) {
			msg.SenderUsername = repo.db.username(msg.SenderID)
			msgs = append(msgs, msg)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

// Broadcasts

func (repo *messagingRepository) CreateBroadcast(_ context.Context, msg messaging.BroadcastMessage) (messaging.BroadcastMessage, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	msg.ID = int64(len(repo.db.broadcasts) + 1)
	msg.SenderUsername = repo.db.username(msg.SenderID)
	repo.db.broadcasts = append(repo.db.broadcasts, msg)
	return msg, nil
}

func (repo *messagingRepository) QueryBroadcasts(_ context.Context, department string) ([]messaging.BroadcastMessage, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	msgs := make([]messaging.BroadcastMessage, 0)
	for i := len(repo.db.broadcasts) - 1; i >= 0; i-- {
		msg := repo.db.broadcasts[i]
		if msg.Department == department {
			msg.SenderUsername = repo.db.username(msg.SenderID)
			msgs = append(msgs, msg)
		}
	}
	// newest first; equal timestamps keep the latest insert first
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].CreatedAt.After(msgs[j].CreatedAt) })
	return msgs, nil
}

// Help

func (repo *messagingRepository) CreateHelpMessage(_ context.Context, msg messaging.HelpMessage) (messaging.HelpMessage, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	msg.ID = int64(len(repo.db.helpMessages) + 1)
	repo.db.helpMessages = append(repo.db.helpMessages, msg)
	return msg, nil
}
