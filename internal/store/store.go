// Package store defines the persistence model of the games and the
// per-entity store interfaces the worker depends on. Implementations live in
// store/pg.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

// Game kinds.
const (
	KindSingle = "single"
	KindGroup  = "group"
)

// User is a chat-platform account known to the games. Created on first
// participation, never removed.
type User struct {
	ID          int64
	Username    string
	FirstName   string
	TotalPoints int
}

// Session is one running or finished game in a chat. At most one session per
// chat is active. NextUserID zero means no player is on turn; PollID empty
// means no admission poll is open.
type Session struct {
	ID         int64
	ChatID     int64
	Kind       string
	IsActive   bool
	NextLetter string
	NextUserID int64
	PollID     string
	CreatorID  int64
	Words      string // space-joined capitalized words, oldest first

	// Settings snapshot taken at creation.
	ResponseTime  int
	PollTime      int
	AnonymousPoll bool
	StartingLives int

	CreatedAt time.Time
}

// Player is a user's state within one group session.
type Player struct {
	SessionID int64
	UserID    int64
	Username  string
	Lives     int
	Round     int
	Points    int
	PollVote  *bool // nil until the player votes in the current poll
}

// City is a reference city, pre-loaded.
type City struct {
	ID   int64
	Name string
}

// Settings is the process-wide defaults row, lazily created on first read.
type Settings struct {
	ResponseTime  int
	PollTime      int
	AnonymousPoll bool
	StartingLives int
}

// DefaultSettings seeds the settings row on first read.
var DefaultSettings = Settings{
	ResponseTime:  30,
	PollTime:      30,
	AnonymousPoll: false,
	StartingLives: 3,
}

// Users stores chat-platform accounts.
type Users interface {
	// Ensure inserts the user if absent. An existing row is left untouched.
	Ensure(ctx context.Context, u User) error
	ByID(ctx context.Context, id int64) (User, error)
	AddTotalPoints(ctx context.Context, id int64, points int) error
}

// Sessions stores game sessions.
type Sessions interface {
	Create(ctx context.Context, s Session) (Session, error)
	ByID(ctx context.Context, id int64) (Session, error)
	// ActiveByChat returns the latest active session of a chat.
	ActiveByChat(ctx context.Context, chatID int64) (Session, error)
	// ByPollID returns the active session bound to an open poll.
	ByPollID(ctx context.Context, pollID string) (Session, error)
	SetInactive(ctx context.Context, id int64) error
	SetNextLetter(ctx context.Context, id int64, letter string) error
	// SetNextUser records the player whose response is awaited.
	SetNextUser(ctx context.Context, id int64, userID int64) error
	// SetPollID binds an open poll to the session; empty clears the binding.
	SetPollID(ctx context.Context, id int64, pollID string) error
	AppendWord(ctx context.Context, id int64, word string) error
}

// Players stores per-player state of group sessions.
type Players interface {
	// Add binds a user to a session with the given starting lives.
	// Joining twice is a no-op.
	Add(ctx context.Context, sessionID, userID int64, lives int) error
	Get(ctx context.Context, sessionID, userID int64) (Player, error)
	// Alive lists players with lives remaining, fewest rounds first.
	Alive(ctx context.Context, sessionID int64) ([]Player, error)
	All(ctx context.Context, sessionID int64) ([]Player, error)
	RemoveLife(ctx context.Context, sessionID, userID int64) error
	// AddPointAndRound credits a successful word: points+1, round+1.
	AddPointAndRound(ctx context.Context, sessionID, userID int64) error
	SetPollVote(ctx context.Context, sessionID, userID int64, vote bool) error
	ClearPollVotes(ctx context.Context, sessionID int64) error
	// PollVotes counts recorded yes and no votes for the current poll.
	PollVotes(ctx context.Context, sessionID int64) (yes, no int, err error)
}

// Cities stores the reference city list and per-session usage.
type Cities interface {
	ByName(ctx context.Context, name string) (City, error)
	// RandomByLetter picks a random city starting with letter that the
	// session has not used yet. ErrNotFound when the letter is exhausted.
	RandomByLetter(ctx context.Context, sessionID int64, letter string) (City, error)
	MarkUsed(ctx context.Context, sessionID, cityID int64) error
	IsUsed(ctx context.Context, sessionID, cityID int64) (bool, error)
	// UsedNames lists the session's played cities in play order.
	UsedNames(ctx context.Context, sessionID int64) ([]string, error)
}

// Words stores the global word list and per-session usage.
type Words interface {
	// IsUsed reports whether the word was already played in the session.
	IsUsed(ctx context.Context, sessionID int64, name string) (bool, error)
	// MarkUsed records the word globally (if new) and for the session.
	MarkUsed(ctx context.Context, sessionID int64, name string) error
}

// SettingsStore reads the singleton defaults row.
type SettingsStore interface {
	Get(ctx context.Context) (Settings, error)
}

// Store bundles every per-entity store.
type Store struct {
	Users    Users
	Sessions Sessions
	Players  Players
	Cities   Cities
	Words    Words
	Settings SettingsStore
}
