package worker

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/store"
	"github.com/glagolgames/wordchain/internal/telegram"
)

const (
	privateChat = int64(100)
	groupChat   = int64(-200)
	alice       = int64(11)
	bob         = int64(12)
)

type published struct {
	key   string
	delay time.Duration
	ev    broker.Event
}

type pubRecorder struct {
	msgs []published
}

func (p *pubRecorder) Publish(_ context.Context, key string, delay time.Duration, ev broker.Event) error {
	p.msgs = append(p.msgs, published{key: key, delay: delay, ev: ev})
	return nil
}

func (p *pubRecorder) PublishRaw(context.Context, string, time.Duration, []byte) error {
	return errors.New("unexpected raw publish")
}

func (p *pubRecorder) reset() { p.msgs = nil }

// texts returns the chat texts published for the sender, in order.
func (p *pubRecorder) texts() []string {
	var out []string
	for _, m := range p.msgs {
		if msg, ok := m.ev.(broker.Message); ok {
			out = append(out, msg.Text)
		}
	}
	return out
}

func (p *pubRecorder) lastText(t *testing.T) string {
	t.Helper()
	texts := p.texts()
	if len(texts) == 0 {
		t.Fatal("no message published")
	}
	return texts[len(texts)-1]
}

func (p *pubRecorder) find(kind string) (published, bool) {
	for _, m := range p.msgs {
		if m.ev.Kind() == kind {
			return m, true
		}
	}
	return published{}, false
}

type fakeDict struct {
	nouns map[string]bool
}

func (d fakeDict) IsNoun(_ context.Context, word string) (bool, error) {
	return d.nouns[word], nil
}

var testSettings = store.Settings{
	ResponseTime:  10,
	PollTime:      5,
	AnonymousPoll: false,
	StartingLives: 3,
}

func newTestWorker(db *memDB, nouns map[string]bool) (*Worker, *pubRecorder) {
	pub := &pubRecorder{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := New(db.store(), pub, fakeDict{nouns: nouns}, testSettings, log)
	w.randInt = func(n int) int { return 0 }
	return w, pub
}

func deliverUpdate(t *testing.T, w *Worker, upd telegram.Update) {
	t.Helper()
	body, err := json.Marshal(upd)
	if err != nil {
		t.Fatalf("marshal update: %v", err)
	}
	if err := w.Handle(context.Background(), broker.KeyPoller, body); err != nil {
		t.Fatalf("handle update: %v", err)
	}
}

func deliverEvent(t *testing.T, w *Worker, ev broker.Event) {
	t.Helper()
	body, err := broker.Encode(ev)
	if err != nil {
		t.Fatalf("encode event: %v", err)
	}
	if err := w.Handle(context.Background(), broker.KeyWorker, body); err != nil {
		t.Fatalf("handle event: %v", err)
	}
}

func message(chatID int64, chatType string, userID int64, username, text string) telegram.Update {
	return telegram.Update{Message: &telegram.Message{
		MessageID: 1,
		From:      &telegram.User{ID: userID, Username: username},
		Chat:      telegram.Chat{ID: chatID, Type: chatType},
		Text:      text,
	}}
}

func private(userID int64, username, text string) telegram.Update {
	return message(privateChat, telegram.ChatPrivate, userID, username, text)
}

func group(userID int64, username, text string) telegram.Update {
	return message(groupChat, telegram.ChatGroup, userID, username, text)
}

func joinCallback(userID int64, username string) telegram.Update {
	return telegram.Update{CallbackQuery: &telegram.CallbackQuery{
		ID:      "cb",
		From:    telegram.User{ID: userID, Username: username},
		Message: &telegram.Message{Chat: telegram.Chat{ID: groupChat, Type: telegram.ChatGroup}},
		Data:    "/yes",
	}}
}

func TestPing(t *testing.T) {
	w, pub := newTestWorker(newMemDB(), nil)
	deliverUpdate(t, w, private(alice, "vasya", "/ping"))
	if got := pub.lastText(t); got != "vasya /pong" {
		t.Errorf("reply = %q", got)
	}
}

func TestHelp(t *testing.T) {
	w, pub := newTestWorker(newMemDB(), nil)
	for _, cmd := range []string{"/help", "/faq"} {
		pub.reset()
		deliverUpdate(t, w, private(alice, "vasya", cmd))
		if got := pub.lastText(t); !strings.Contains(got, "/play") {
			t.Errorf("%s reply = %q, want command list", cmd, got)
		}
	}
}

// startCityGame runs /play + /yes in a private chat and clears the recorder.
func startCityGame(t *testing.T, w *Worker, pub *pubRecorder) {
	t.Helper()
	deliverUpdate(t, w, private(alice, "vasya", "/play"))
	deliverUpdate(t, w, private(alice, "vasya", "/yes"))
	pub.reset()
}

func TestCityGameHappyPath(t *testing.T) {
	db := newMemDB()
	db.addCities("Архангельск", "Астрахань", "Калуга", "Москва")
	w, pub := newTestWorker(db, nil)

	deliverUpdate(t, w, private(alice, "vasya", "/play"))
	kb, ok := pub.find(broker.KindMessageKeyboard)
	if !ok {
		t.Fatal("no keyboard published for /play")
	}
	if kb.ev.(broker.MessageKeyboard).Keyboard != telegram.KeyboardStart {
		t.Errorf("keyboard %+v", kb.ev)
	}

	deliverUpdate(t, w, private(alice, "vasya", "/yes"))
	texts := pub.texts()
	if texts[0] != textLetsPlay {
		t.Errorf("first message %q", texts[0])
	}
	if got := texts[len(texts)-1]; got != "Архангельск. Тебе на К" {
		t.Errorf("bot turn = %q", got)
	}

	pub.reset()
	deliverUpdate(t, w, private(alice, "vasya", "Калуга"))
	texts = pub.texts()
	if texts[0] != "Есть такой город. Мне на А" {
		t.Errorf("acceptance = %q", texts[0])
	}
	if texts[1] != "Астрахань. Тебе на Н" {
		t.Errorf("bot turn = %q", texts[1])
	}

	s := db.session(1)
	if !s.IsActive || s.NextLetter != "Н" {
		t.Errorf("session %+v", s)
	}
	names, _ := db.store().Cities.UsedNames(context.Background(), 1)
	want := []string{"Архангельск", "Калуга", "Астрахань"}
	if len(names) != len(want) {
		t.Fatalf("used cities %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("used cities %v, want %v", names, want)
		}
	}
}

func TestCityRejections(t *testing.T) {
	db := newMemDB()
	db.addCities("Архангельск", "Москва", "Казань")
	w, pub := newTestWorker(db, nil)
	startCityGame(t, w, pub) // bot plays Архангельск, letter К

	tests := []struct {
		name string
		text string
		want string
	}{
		{"unknown city", "Нарния", textNoSuchCity},
		{"already played", "Архангельск", textCityWasPlayed},
		{"wrong letter", "Москва", textWrongLetter("К")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub.reset()
			deliverUpdate(t, w, private(alice, "vasya", tt.text))
			if got := pub.lastText(t); got != tt.want {
				t.Errorf("reply = %q, want %q", got, tt.want)
			}
			if used, _ := db.store().Cities.UsedNames(context.Background(), 1); len(used) != 1 {
				t.Errorf("used cities %v, want only the bot's", used)
			}
		})
	}
}

func TestCityStopPostsSummary(t *testing.T) {
	db := newMemDB()
	db.addCities("Архангельск", "Казань")
	w, pub := newTestWorker(db, nil)
	startCityGame(t, w, pub)

	deliverUpdate(t, w, private(alice, "vasya", "/stop"))
	if s := db.session(1); s.IsActive {
		t.Error("session still active after /stop")
	}
	if got := pub.lastText(t); !strings.Contains(got, "Архангельск") {
		t.Errorf("summary = %q", got)
	}
}

func TestCityBotLoses(t *testing.T) {
	db := newMemDB()
	db.addCities("Анапа", "Астрахань")
	w, pub := newTestWorker(db, nil)
	startCityGame(t, w, pub) // bot plays Анапа, letter А

	deliverUpdate(t, w, private(alice, "vasya", "Астрахань"))
	// No city on Н is left for the bot.
	if got := pub.lastText(t); got != textBotLost {
		t.Errorf("reply = %q, want %q", got, textBotLost)
	}
	if s := db.session(1); s.IsActive {
		t.Error("session still active after bot loss")
	}
}

func TestPlayWhileActiveSession(t *testing.T) {
	db := newMemDB()
	db.addCities("Анапа")
	w, pub := newTestWorker(db, nil)
	startCityGame(t, w, pub)

	deliverUpdate(t, w, private(alice, "vasya", "/play"))
	if got := pub.lastText(t); got != textAlreadyPlaying {
		t.Errorf("reply = %q, want %q", got, textAlreadyPlaying)
	}
}

// startWordsGame assembles a two-player group game and opens the first turn
// (alice, having the lower id, is drawn). The recorder is cleared.
func startWordsGame(t *testing.T, w *Worker, pub *pubRecorder) {
	t.Helper()
	deliverUpdate(t, w, group(alice, "vasya", "/play"))
	deliverUpdate(t, w, joinCallback(alice, "vasya"))
	deliverUpdate(t, w, joinCallback(bob, "petya"))
	deliverEvent(t, w, broker.PickLeader{ChatID: groupChat})
	pub.reset()
}

func TestWordsAssemblyAndFirstTurn(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)

	deliverUpdate(t, w, group(alice, "vasya", "/play"))
	kb, ok := pub.find(broker.KindMessageKeyboard)
	if !ok {
		t.Fatal("no join keyboard published")
	}
	ev := kb.ev.(broker.MessageKeyboard)
	if ev.Keyboard != telegram.KeyboardTeam || ev.LiveTime != teamAssemblySeconds {
		t.Errorf("keyboard event %+v", ev)
	}

	deliverUpdate(t, w, joinCallback(alice, "vasya"))
	deliverUpdate(t, w, joinCallback(bob, "petya"))
	deliverUpdate(t, w, joinCallback(alice, "vasya")) // double join is a no-op
	if n := len(db.players[1]); n != 2 {
		t.Fatalf("team size = %d, want 2", n)
	}
	if p := db.player(1, alice); p.Lives != testSettings.StartingLives {
		t.Errorf("alice lives = %d, want %d", p.Lives, testSettings.StartingLives)
	}

	pub.reset()
	deliverEvent(t, w, broker.PickLeader{ChatID: groupChat})
	if got := db.session(1).NextUserID; got != alice {
		t.Errorf("next user = %d, want %d", got, alice)
	}
	if got := pub.lastText(t); got != "@vasya, назови любое слово" {
		t.Errorf("prompt = %q", got)
	}
	timeout, ok := pub.find(broker.KindSlowPlayer)
	if !ok {
		t.Fatal("no slow_player scheduled")
	}
	if timeout.key != broker.KeyWorker || timeout.delay != 10*time.Second {
		t.Errorf("timeout key=%s delay=%s", timeout.key, timeout.delay)
	}
	sp := timeout.ev.(broker.SlowPlayer)
	if sp.GameID != 1 || sp.UserID != alice || sp.Round != 0 {
		t.Errorf("timeout event %+v", sp)
	}
}

func TestRightWordAdvancesTurn(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, map[string]bool{"Кот": true})
	startWordsGame(t, w, pub)
	db.session(1).NextLetter = "К"

	deliverUpdate(t, w, group(alice, "vasya", "кот"))

	p := db.player(1, alice)
	if p.Points != 1 || p.Round != 1 {
		t.Errorf("alice state %+v", p)
	}
	if used, _ := db.store().Words.IsUsed(context.Background(), 1, "Кот"); !used {
		t.Error("word not recorded")
	}
	s := db.session(1)
	if s.NextLetter != "Т" || s.Words != "Кот" {
		t.Errorf("session %+v", s)
	}
	if s.NextUserID != bob {
		t.Errorf("next user = %d, want %d", s.NextUserID, bob)
	}
	texts := pub.texts()
	if texts[0] != "Кот - правильно" {
		t.Errorf("acceptance = %q", texts[0])
	}
	if texts[1] != "@petya, назови слово на букву Т" {
		t.Errorf("prompt = %q", texts[1])
	}
}

func TestWrongTurnCostsLife(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, map[string]bool{"Кот": true})
	startWordsGame(t, w, pub)

	deliverUpdate(t, w, group(bob, "petya", "кот"))
	if got := pub.lastText(t); got != textNotYourTurn {
		t.Errorf("reply = %q", got)
	}
	if p := db.player(1, bob); p.Lives != 2 {
		t.Errorf("bob lives = %d, want 2", p.Lives)
	}
	if got := db.session(1).NextUserID; got != alice {
		t.Errorf("turn moved to %d", got)
	}
}

func TestWrongLetterNoPenalty(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, map[string]bool{"Арбуз": true})
	startWordsGame(t, w, pub)
	db.session(1).NextLetter = "К"

	deliverUpdate(t, w, group(alice, "vasya", "арбуз"))
	texts := pub.texts()
	if texts[0] != textWrongLetter("К") {
		t.Errorf("reply = %q", texts[0])
	}
	if p := db.player(1, alice); p.Lives != 3 {
		t.Errorf("alice lives = %d, want 3", p.Lives)
	}
	// Same player is re-prompted.
	if got := db.session(1).NextUserID; got != alice {
		t.Errorf("next user = %d, want %d", got, alice)
	}
	if _, ok := pub.find(broker.KindSlowPlayer); !ok {
		t.Error("no new timeout scheduled")
	}
}

func TestDuplicateWordNoPenalty(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, map[string]bool{"Кот": true})
	startWordsGame(t, w, pub)
	db.store().Words.MarkUsed(context.Background(), 1, "Кот")

	deliverUpdate(t, w, group(alice, "vasya", "кот"))
	if got := pub.texts()[0]; got != textWordWasPlayed("Кот") {
		t.Errorf("reply = %q", got)
	}
	if p := db.player(1, alice); p.Lives != 3 || p.Points != 0 {
		t.Errorf("alice state %+v", p)
	}
	if got := db.session(1).NextUserID; got != alice {
		t.Errorf("next user = %d, want %d", got, alice)
	}
}

func TestUnknownWordOpensPoll(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	deliverUpdate(t, w, group(alice, "vasya", "кракозябра"))
	m, ok := pub.find(broker.KindSendPoll)
	if !ok {
		t.Fatal("no poll published")
	}
	poll := m.ev.(broker.SendPoll)
	if poll.Word != "Кракозябра" || poll.Period != testSettings.PollTime {
		t.Errorf("poll %+v", poll)
	}
	if poll.Question != textPollQuestion("Кракозябра") {
		t.Errorf("question = %q", poll.Question)
	}
	if got := strings.Fields(poll.Question)[4]; got != "Кракозябра" {
		t.Errorf("5th question token = %q, want the word", got)
	}
}

func TestPollPausesAndAcceptsByPlayerVotes(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	deliverUpdate(t, w, group(alice, "vasya", "кракозябра"))
	deliverEvent(t, w, broker.PollID{PollID: "p1", ChatID: groupChat})
	if got := db.session(1).PollID; got != "p1" {
		t.Fatalf("poll id = %q", got)
	}

	// The turn timeout is dropped while the poll is open.
	deliverEvent(t, w, broker.SlowPlayer{GameID: 1, UserID: alice, Round: 0})
	if p := db.player(1, alice); p.Lives != 3 {
		t.Errorf("alice lives = %d, want 3", p.Lives)
	}

	// Both players vote yes; the option counts say no, but the recorded
	// votes win in a non-anonymous poll.
	deliverUpdate(t, w, telegram.Update{PollAnswer: &telegram.PollAnswer{
		PollID: "p1", User: telegram.User{ID: alice}, OptionIDs: []int{0},
	}})
	deliverUpdate(t, w, telegram.Update{PollAnswer: &telegram.PollAnswer{
		PollID: "p1", User: telegram.User{ID: bob}, OptionIDs: []int{0},
	}})
	pub.reset()
	deliverEvent(t, w, broker.PollResult{ChatID: groupChat, PollID: "p1", Result: "no", Word: "Кракозябра"})

	s := db.session(1)
	if s.PollID != "" {
		t.Error("poll id not cleared")
	}
	if p := db.player(1, alice); p.Points != 1 {
		t.Errorf("alice points = %d, want 1", p.Points)
	}
	if s.NextLetter != "А" {
		t.Errorf("next letter = %q", s.NextLetter)
	}

	// A duplicate result finds no session bound to the poll and changes
	// nothing.
	deliverEvent(t, w, broker.PollResult{ChatID: groupChat, PollID: "p1", Result: "no", Word: "Кракозябра"})
	if p := db.player(1, alice); p.Points != 1 {
		t.Errorf("duplicate result double-scored: %+v", p)
	}
}

func TestPollRejectedCostsLife(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	deliverUpdate(t, w, group(alice, "vasya", "кракозябра"))
	deliverEvent(t, w, broker.PollID{PollID: "p1", ChatID: groupChat})
	pub.reset()
	deliverEvent(t, w, broker.PollResult{ChatID: groupChat, PollID: "p1", Result: "no", Word: "Кракозябра"})

	if p := db.player(1, alice); p.Lives != 2 {
		t.Errorf("alice lives = %d, want 2", p.Lives)
	}
	if got := pub.texts()[0]; got != textPollRejected("Кракозябра") {
		t.Errorf("reply = %q", got)
	}
	// Turn passed on.
	if got := db.session(1).NextUserID; got != bob {
		t.Errorf("next user = %d, want %d", got, bob)
	}
}

func TestSlowPlayerTimeout(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	deliverEvent(t, w, broker.SlowPlayer{GameID: 1, UserID: alice, Round: 0})
	if p := db.player(1, alice); p.Lives != 2 {
		t.Errorf("alice lives = %d, want 2", p.Lives)
	}
	if got := pub.texts()[0]; got != textSlowPlayer("vasya") {
		t.Errorf("reply = %q", got)
	}
	if got := db.session(1).NextUserID; got != bob {
		t.Errorf("next user = %d, want %d", got, bob)
	}
}

func TestStaleSlowPlayerDropped(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	// The player answered in the meantime: their round advanced past the
	// captured value.
	db.player(1, alice).Round = 1
	deliverEvent(t, w, broker.SlowPlayer{GameID: 1, UserID: alice, Round: 0})
	if p := db.player(1, alice); p.Lives != 3 {
		t.Errorf("alice lives = %d, want 3", p.Lives)
	}

	// The turn moved to another player.
	db.session(1).NextUserID = bob
	deliverEvent(t, w, broker.SlowPlayer{GameID: 1, UserID: alice, Round: 1})
	if p := db.player(1, alice); p.Lives != 3 {
		t.Errorf("alice lives = %d, want 3", p.Lives)
	}
}

func TestStopRollsUpPoints(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, map[string]bool{"Кот": true})
	startWordsGame(t, w, pub)
	deliverUpdate(t, w, group(alice, "vasya", "кот"))

	pub.reset()
	deliverUpdate(t, w, group(bob, "petya", "/stop"))
	if s := db.session(1); s.IsActive {
		t.Error("session still active after /stop")
	}
	if u := db.users[alice]; u.TotalPoints != 1 {
		t.Errorf("alice total points = %d, want 1", u.TotalPoints)
	}
	stats := pub.lastText(t)
	if !strings.Contains(stats, "@vasya - 1") || !strings.Contains(stats, "@petya - 0") {
		t.Errorf("stats = %q", stats)
	}
}

func TestLastOneStandingEndsGame(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	db.player(1, bob).Lives = 0
	db.player(1, alice).Lives = 1
	deliverEvent(t, w, broker.PickLeader{ChatID: groupChat})
	if s := db.session(1); s.IsActive {
		t.Error("session still active with one player on one life")
	}
}

func TestTeamExhaustionEndsGame(t *testing.T) {
	db := newMemDB()
	w, pub := newTestWorker(db, nil)
	startWordsGame(t, w, pub)

	db.player(1, alice).Lives = 0
	db.player(1, bob).Lives = 0
	deliverEvent(t, w, broker.PickLeader{ChatID: groupChat})
	if s := db.session(1); s.IsActive {
		t.Error("session still active with nobody alive")
	}
	var found bool
	for _, text := range pub.texts() {
		if text == textTeamExhausted {
			found = true
		}
	}
	if !found {
		t.Errorf("texts %v, want %q among them", pub.texts(), textTeamExhausted)
	}
}

func TestMalformedUpdateDropped(t *testing.T) {
	w, _ := newTestWorker(newMemDB(), nil)
	err := w.Handle(context.Background(), broker.KeyPoller, []byte("not json"))
	if !broker.IsDrop(err) {
		t.Errorf("err = %v, want drop", err)
	}
}

func TestUnknownEventTypeAcked(t *testing.T) {
	w, _ := newTestWorker(newMemDB(), nil)
	err := w.Handle(context.Background(), broker.KeyWorker, []byte(`{"type_":"mystery"}`))
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}
