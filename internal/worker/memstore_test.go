package worker

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/glagolgames/wordchain/internal/game"
	"github.com/glagolgames/wordchain/internal/store"
)

// memDB is an in-memory stand-in for the Postgres store, deterministic where
// the real one is random: RandomByLetter returns the first unused candidate
// in insertion order.
type memDB struct {
	users         map[int64]*store.User
	sessions      map[int64]*store.Session
	players       map[int64][]*store.Player
	cities        []store.City
	usedCities    map[int64][]int64
	usedWords     map[int64]map[string]bool
	nextSessionID int64
}

func newMemDB() *memDB {
	return &memDB{
		users:      make(map[int64]*store.User),
		sessions:   make(map[int64]*store.Session),
		players:    make(map[int64][]*store.Player),
		usedCities: make(map[int64][]int64),
		usedWords:  make(map[int64]map[string]bool),
	}
}

func (db *memDB) store() *store.Store {
	return &store.Store{
		Users:    memUsers{db},
		Sessions: memSessions{db},
		Players:  memPlayers{db},
		Cities:   memCities{db},
		Words:    memWords{db},
		Settings: memSettings{},
	}
}

func (db *memDB) addCities(names ...string) {
	for _, name := range names {
		db.cities = append(db.cities, store.City{
			ID:   int64(len(db.cities) + 1),
			Name: name,
		})
	}
}

func (db *memDB) session(id int64) *store.Session {
	return db.sessions[id]
}

func (db *memDB) player(sessionID, userID int64) *store.Player {
	for _, p := range db.players[sessionID] {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

type memUsers struct{ db *memDB }

func (m memUsers) Ensure(_ context.Context, u store.User) error {
	if _, ok := m.db.users[u.ID]; !ok {
		copied := u
		m.db.users[u.ID] = &copied
	}
	return nil
}

func (m memUsers) ByID(_ context.Context, id int64) (store.User, error) {
	if u, ok := m.db.users[id]; ok {
		return *u, nil
	}
	return store.User{}, store.ErrNotFound
}

func (m memUsers) AddTotalPoints(_ context.Context, id int64, points int) error {
	if u, ok := m.db.users[id]; ok {
		u.TotalPoints += points
	}
	return nil
}

type memSessions struct{ db *memDB }

func (m memSessions) Create(_ context.Context, s store.Session) (store.Session, error) {
	m.db.nextSessionID++
	s.ID = m.db.nextSessionID
	s.CreatedAt = time.Now()
	copied := s
	m.db.sessions[s.ID] = &copied
	return s, nil
}

func (m memSessions) ByID(_ context.Context, id int64) (store.Session, error) {
	if s, ok := m.db.sessions[id]; ok {
		return *s, nil
	}
	return store.Session{}, store.ErrNotFound
}

func (m memSessions) ActiveByChat(_ context.Context, chatID int64) (store.Session, error) {
	var latest *store.Session
	for _, s := range m.db.sessions {
		if s.ChatID == chatID && s.IsActive && (latest == nil || s.ID > latest.ID) {
			latest = s
		}
	}
	if latest == nil {
		return store.Session{}, store.ErrNotFound
	}
	return *latest, nil
}

func (m memSessions) ByPollID(_ context.Context, pollID string) (store.Session, error) {
	for _, s := range m.db.sessions {
		if s.IsActive && s.PollID == pollID && pollID != "" {
			return *s, nil
		}
	}
	return store.Session{}, store.ErrNotFound
}

func (m memSessions) SetInactive(_ context.Context, id int64) error {
	m.db.sessions[id].IsActive = false
	return nil
}

func (m memSessions) SetNextLetter(_ context.Context, id int64, letter string) error {
	m.db.sessions[id].NextLetter = letter
	return nil
}

func (m memSessions) SetNextUser(_ context.Context, id int64, userID int64) error {
	m.db.sessions[id].NextUserID = userID
	return nil
}

func (m memSessions) SetPollID(_ context.Context, id int64, pollID string) error {
	m.db.sessions[id].PollID = pollID
	return nil
}

func (m memSessions) AppendWord(_ context.Context, id int64, word string) error {
	s := m.db.sessions[id]
	s.Words = strings.TrimSpace(s.Words + " " + word)
	return nil
}

type memPlayers struct{ db *memDB }

func (m memPlayers) Add(_ context.Context, sessionID, userID int64, lives int) error {
	if m.db.player(sessionID, userID) != nil {
		return nil
	}
	var username string
	if u, ok := m.db.users[userID]; ok {
		username = u.Username
	}
	m.db.players[sessionID] = append(m.db.players[sessionID], &store.Player{
		SessionID: sessionID,
		UserID:    userID,
		Username:  username,
		Lives:     lives,
	})
	return nil
}

func (m memPlayers) Get(_ context.Context, sessionID, userID int64) (store.Player, error) {
	if p := m.db.player(sessionID, userID); p != nil {
		return *p, nil
	}
	return store.Player{}, store.ErrNotFound
}

func (m memPlayers) Alive(_ context.Context, sessionID int64) ([]store.Player, error) {
	var alive []store.Player
	for _, p := range m.db.players[sessionID] {
		if p.Lives > 0 {
			alive = append(alive, *p)
		}
	}
	sort.Slice(alive, func(i, j int) bool {
		if alive[i].Round != alive[j].Round {
			return alive[i].Round < alive[j].Round
		}
		return alive[i].UserID < alive[j].UserID
	})
	return alive, nil
}

func (m memPlayers) All(_ context.Context, sessionID int64) ([]store.Player, error) {
	var all []store.Player
	for _, p := range m.db.players[sessionID] {
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Points != all[j].Points {
			return all[i].Points > all[j].Points
		}
		return all[i].UserID < all[j].UserID
	})
	return all, nil
}

func (m memPlayers) RemoveLife(_ context.Context, sessionID, userID int64) error {
	if p := m.db.player(sessionID, userID); p != nil && p.Lives > 0 {
		p.Lives--
	}
	return nil
}

func (m memPlayers) AddPointAndRound(_ context.Context, sessionID, userID int64) error {
	if p := m.db.player(sessionID, userID); p != nil {
		p.Points++
		p.Round++
	}
	return nil
}

func (m memPlayers) SetPollVote(_ context.Context, sessionID, userID int64, vote bool) error {
	if p := m.db.player(sessionID, userID); p != nil {
		v := vote
		p.PollVote = &v
	}
	return nil
}

func (m memPlayers) ClearPollVotes(_ context.Context, sessionID int64) error {
	for _, p := range m.db.players[sessionID] {
		p.PollVote = nil
	}
	return nil
}

func (m memPlayers) PollVotes(_ context.Context, sessionID int64) (yes, no int, err error) {
	for _, p := range m.db.players[sessionID] {
		if p.PollVote == nil {
			continue
		}
		if *p.PollVote {
			yes++
		} else {
			no++
		}
	}
	return yes, no, nil
}

type memCities struct{ db *memDB }

func (m memCities) ByName(_ context.Context, name string) (store.City, error) {
	for _, c := range m.db.cities {
		if c.Name == name {
			return c, nil
		}
	}
	return store.City{}, store.ErrNotFound
}

func (m memCities) RandomByLetter(_ context.Context, sessionID int64, letter string) (store.City, error) {
	for _, c := range m.db.cities {
		if !game.StartsWith(c.Name, letter) {
			continue
		}
		if used, _ := m.IsUsed(context.Background(), sessionID, c.ID); !used {
			return c, nil
		}
	}
	return store.City{}, store.ErrNotFound
}

func (m memCities) MarkUsed(_ context.Context, sessionID, cityID int64) error {
	if used, _ := m.IsUsed(context.Background(), sessionID, cityID); used {
		return nil
	}
	m.db.usedCities[sessionID] = append(m.db.usedCities[sessionID], cityID)
	return nil
}

func (m memCities) IsUsed(_ context.Context, sessionID, cityID int64) (bool, error) {
	for _, id := range m.db.usedCities[sessionID] {
		if id == cityID {
			return true, nil
		}
	}
	return false, nil
}

func (m memCities) UsedNames(_ context.Context, sessionID int64) ([]string, error) {
	var names []string
	for _, id := range m.db.usedCities[sessionID] {
		for _, c := range m.db.cities {
			if c.ID == id {
				names = append(names, c.Name)
			}
		}
	}
	return names, nil
}

type memWords struct{ db *memDB }

func (m memWords) IsUsed(_ context.Context, sessionID int64, name string) (bool, error) {
	return m.db.usedWords[sessionID][name], nil
}

func (m memWords) MarkUsed(_ context.Context, sessionID int64, name string) error {
	if m.db.usedWords[sessionID] == nil {
		m.db.usedWords[sessionID] = make(map[string]bool)
	}
	m.db.usedWords[sessionID][name] = true
	return nil
}

type memSettings struct{}

func (memSettings) Get(context.Context) (store.Settings, error) {
	return store.DefaultSettings, nil
}
