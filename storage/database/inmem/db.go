// Package inmemdb keeps every table in memory. It backs the tests and local runs without Postgres.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/spis/core"
	"github.com/trezcool/spis/core/academic"
	"github.com/trezcool/spis/core/messaging"
	"github.com/trezcool/spis/core/user"
)

type (
	// DB is shared by all repositories; a single lock makes every multi-table write atomic.
	DB struct {
		mu  sync.RWMutex
		seq int64

		users    map[string]*user.User
		branches []academic.Branch
		sections []academic.Section

		students   map[string]*studentRow
		proctors   map[string]*proctorRow
		hods       map[string]*hodRow
		attendance map[string]*attendanceRow
		marks      map[string]*marksRow
		meetings   map[string]*meetingRow

		meetingMessages []messaging.MeetingMessage
		directMessages  []messaging.DirectMessage
		broadcasts      []messaging.BroadcastMessage
		helpMessages    []messaging.HelpMessage
	}

	// rows keep their insertion order next to the stored value.
	studentRow struct {
		seq int64
		academic.StudentProfile
	}
	proctorRow struct {
		seq int64
		academic.ProctorProfile
	}
	hodRow struct {
		seq int64
		academic.HODProfile
	}
	attendanceRow struct {
		seq int64
		academic.AttendanceRecord
	}
	marksRow struct {
		seq int64
		academic.MarksRecord
	}
	meetingRow struct {
		seq int64
		messaging.Meeting
	}
)

var (
	defaultBranches = []string{"CSE", "ISE", "ECE", "EEE", "ME", "CV"}
	defaultSections = []string{"A", "B", "C", "D"}
)

// Open returns an empty database seeded with the default branches and sections.
func Open() *DB {
	db := &DB{
		users:      make(map[string]*user.User),
		students:   make(map[string]*studentRow),
		proctors:   make(map[string]*proctorRow),
		hods:       make(map[string]*hodRow),
		attendance: make(map[string]*attendanceRow),
		marks:      make(map[string]*marksRow),
		meetings:   make(map[string]*meetingRow),
	}
	for i, name := range defaultBranches {
		db.branches = append(db.branches, academic.Branch{ID: i + 1, Name: name})
	}
	for i, name := range defaultSections {
		db.sections = append(db.sections, academic.Section{ID: i + 1, Name: name})
	}
	return db
}

// nextSeq must be called with the write lock held.
func (db *DB) nextSeq() int64 {
	db.seq++
	return db.seq
}

func newID() string {
	return uuid.New().String()
}

// checkUser must be called with a lock held.
func (db *DB) checkUser(usr user.User, excludedID string) error {
	for _, u := range db.users {
		if u.ID == excludedID {
			continue
		}
		if u.Username == usr.Username {
			return core.NewConflictError("username", user.ErrUsernameExists.Error())
		}
		if usr.Email != "" && u.Email == usr.Email {
			return core.NewConflictError("email", user.ErrEmailExists.Error())
		}
	}
	return nil
}

// addUser must be called with the write lock held.
func (db *DB) addUser(usr user.User) (user.User, error) {
	if err := db.checkUser(usr, ""); err != nil {
		return user.User{}, err
	}
	usr.ID = newID()
	usr.Groups = append([]string{}, usr.Groups...)
	db.users[usr.ID] = &usr
	return usr, nil
}

func (db *DB) username(userID string) string {
	if u, ok := db.users[userID]; ok {
		return u.Username
	}
	return ""
}
