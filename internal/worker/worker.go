// Package worker drives the game state machines. It consumes raw Telegram
// updates (poller key) and its own scheduled events (worker key), mutates the
// database and emits outbound commands for the sender.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/store"
	"github.com/glagolgames/wordchain/internal/telegram"
)

// Dictionary is the one word-admission call the worker makes.
type Dictionary interface {
	IsNoun(ctx context.Context, word string) (bool, error)
}

// Worker holds the shared dependency bundle of both games.
type Worker struct {
	store    *store.Store
	pub      broker.Publisher
	dict     Dictionary
	settings store.Settings
	randInt  func(n int) int
	log      *slog.Logger
}

// New builds a worker. settings is the defaults row loaded at startup;
// each session snapshots it at creation.
func New(st *store.Store, pub broker.Publisher, dict Dictionary, settings store.Settings, log *slog.Logger) *Worker {
	return &Worker{
		store:    st,
		pub:      pub,
		dict:     dict,
		settings: settings,
		randInt:  rand.Intn,
		log:      log,
	}
}

// Handle processes one delivery from the worker queue. Routing key poller
// carries raw Telegram updates; routing key worker carries typed events.
func (w *Worker) Handle(ctx context.Context, key string, body []byte) error {
	switch key {
	case broker.KeyPoller:
		return w.handleUpdate(ctx, body)
	case broker.KeyWorker:
		return w.handleEvent(ctx, body)
	default:
		w.log.Info("message on unexpected key", slog.String("key", key))
		return nil
	}
}

func (w *Worker) handleUpdate(ctx context.Context, body []byte) error {
	upd, err := telegram.DecodeUpdate(body)
	if err != nil {
		return broker.Drop(err)
	}
	switch {
	case upd.Message != nil:
		return w.handleMessage(ctx, upd.Message)
	case upd.CallbackQuery != nil:
		return w.handleCallback(ctx, upd.CallbackQuery)
	case upd.PollAnswer != nil:
		return w.handlePollAnswer(ctx, upd.PollAnswer)
	default:
		w.log.Debug("update carries nothing to handle", slog.Int64("update_id", upd.UpdateID))
		return nil
	}
}

func (w *Worker) handleEvent(ctx context.Context, body []byte) error {
	ev, err := broker.Decode(body)
	if err != nil {
		if errors.Is(err, broker.ErrUnknownType) {
			w.log.Info("skipping event", slog.String("error", err.Error()))
			return nil
		}
		return broker.Drop(err)
	}
	switch ev := ev.(type) {
	case *broker.PickLeader:
		return w.onPickLeader(ctx, ev)
	case *broker.PollID:
		return w.onPollID(ctx, ev)
	case *broker.PollResult:
		return w.onPollResult(ctx, ev)
	case *broker.SlowPlayer:
		return w.onSlowPlayer(ctx, ev)
	default:
		w.log.Info("event not for this queue", slog.String("type", ev.Kind()))
		return nil
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg *telegram.Message) error {
	if msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if err := w.store.Users.Ensure(ctx, store.User{
		ID:        msg.From.ID,
		Username:  msg.From.Username,
		FirstName: msg.From.FirstName,
	}); err != nil {
		return err
	}

	private := msg.Chat.Type == telegram.ChatPrivate
	command := strings.Fields(msg.Text)[0]

	switch command {
	case "/play":
		if private {
			return w.offerCityGame(ctx, msg.Chat.ID)
		}
		return w.startWordsGame(ctx, msg.Chat.ID, msg.From.ID)
	case "/yes":
		if private {
			return w.startCityGame(ctx, msg.Chat.ID, msg.From.ID)
		}
		return nil // group joins come through the inline keyboard
	case "/stop":
		return w.stopGame(ctx, msg.Chat.ID)
	case "/ping":
		return w.send(ctx, msg.Chat.ID, textPong(msg.From.Name()))
	case "/help", "/faq":
		return w.send(ctx, msg.Chat.ID, textHelp)
	case "/last":
		return w.sendLastLetter(ctx, msg.Chat.ID)
	case "/stat":
		return w.sendStats(ctx, msg.Chat.ID)
	default:
		return w.handleFreeText(ctx, msg, private)
	}
}

func (w *Worker) handleFreeText(ctx context.Context, msg *telegram.Message, private bool) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, msg.Chat.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if private && s.Kind == store.KindSingle {
		return w.checkCity(ctx, s, msg.Text)
	}
	if !private && s.Kind == store.KindGroup {
		return w.checkWord(ctx, s, msg)
	}
	return nil
}

func (w *Worker) stopGame(ctx context.Context, chatID int64) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Kind == store.KindSingle {
		return w.stopCityGame(ctx, s)
	}
	return w.endWordsGame(ctx, s)
}

func (w *Worker) sendLastLetter(ctx context.Context, chatID int64) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return w.send(ctx, chatID, textYourLetter(s.NextLetter))
}

func (w *Worker) sendStats(ctx context.Context, chatID int64) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, chatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Kind == store.KindSingle {
		cities, err := w.store.Cities.UsedNames(ctx, s.ID)
		if err != nil {
			return err
		}
		return w.send(ctx, chatID, textCityStats(cities))
	}
	players, err := w.store.Players.All(ctx, s.ID)
	if err != nil {
		return err
	}
	return w.send(ctx, chatID, textWordStats(players))
}

// send publishes a plain message event for the sender.
func (w *Worker) send(ctx context.Context, chatID int64, text string) error {
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.Message{
		ChatID: chatID,
		Text:   text,
	})
}

func (w *Worker) sendForceReply(ctx context.Context, chatID int64, text string) error {
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.Message{
		ChatID:     chatID,
		Text:       text,
		ForceReply: true,
	})
}
