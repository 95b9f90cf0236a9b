// Package sender executes outbound Telegram commands consumed from the
// broker and schedules their delayed follow-ups: keyboard auto-removal and
// poll closure. The sender is stateless and never touches the database.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/telegram"
)

// pollTallyGrace is added to a poll's open period before the tally fires, so
// Telegram has closed the poll by the time stopPoll runs.
const pollTallyGrace = 2 * time.Second

// API is the Bot API surface the sender drives.
type API interface {
	SendMessage(ctx context.Context, chatID int64, text, keyboard string, forceReply bool) (int, error)
	RemoveInlineKeyboard(ctx context.Context, chatID int64, messageID int) error
	SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool, period int) (int, string, error)
	StopPoll(ctx context.Context, chatID int64, messageID int) (telegram.PollCounts, error)
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Sender translates broker events into Bot API calls.
type Sender struct {
	api API
	pub broker.Publisher
	log *slog.Logger
}

func New(api API, pub broker.Publisher, log *slog.Logger) *Sender {
	return &Sender{api: api, pub: pub, log: log}
}

// Handle processes one delivery from the sender queue.
func (s *Sender) Handle(ctx context.Context, key string, body []byte) error {
	ev, err := broker.Decode(body)
	if err != nil {
		if errors.Is(err, broker.ErrUnknownType) {
			s.log.Info("skipping event", slog.String("error", err.Error()))
			return nil
		}
		return broker.Drop(err)
	}

	switch ev := ev.(type) {
	case *broker.Message:
		_, err := s.api.SendMessage(ctx, ev.ChatID, ev.Text, "", ev.ForceReply)
		return err
	case *broker.MessageKeyboard:
		return s.sendKeyboard(ctx, ev)
	case *broker.RemoveInlineKeyboard:
		return s.removeKeyboard(ctx, ev)
	case *broker.CallbackAlert:
		return s.api.AnswerCallback(ctx, ev.CallbackID, ev.Text)
	case *broker.SendPoll:
		return s.sendPoll(ctx, ev)
	case *broker.SendPollAnswer:
		return s.tallyPoll(ctx, ev)
	default:
		s.log.Info("event not for this queue", slog.String("type", ev.Kind()))
		return nil
	}
}

func (s *Sender) sendKeyboard(ctx context.Context, ev *broker.MessageKeyboard) error {
	msgID, err := s.api.SendMessage(ctx, ev.ChatID, ev.Text, ev.Keyboard, false)
	if err != nil {
		return err
	}
	if ev.LiveTime <= 0 {
		return nil
	}
	return s.pub.Publish(ctx, broker.KeySender, time.Duration(ev.LiveTime)*time.Second,
		broker.RemoveInlineKeyboard{
			ChatID:            ev.ChatID,
			KeyboardMessageID: msgID,
		})
}

// removeKeyboard closes the team-assembly window: the keyboard disappears and
// the worker is told to open the first turn.
func (s *Sender) removeKeyboard(ctx context.Context, ev *broker.RemoveInlineKeyboard) error {
	if err := s.api.RemoveInlineKeyboard(ctx, ev.ChatID, ev.KeyboardMessageID); err != nil {
		return err
	}
	return s.pub.Publish(ctx, broker.KeyWorker, 0, broker.PickLeader{ChatID: ev.ChatID})
}

func (s *Sender) sendPoll(ctx context.Context, ev *broker.SendPoll) error {
	msgID, pollID, err := s.api.SendPoll(ctx, ev.ChatID, ev.Question, ev.Options, ev.Anonymous, ev.Period)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, broker.KeyWorker, 0, broker.PollID{
		PollID: pollID,
		ChatID: ev.ChatID,
	}); err != nil {
		return err
	}
	delay := time.Duration(ev.Period)*time.Second + pollTallyGrace
	return s.pub.Publish(ctx, broker.KeySender, delay, broker.SendPollAnswer{
		ChatID:        ev.ChatID,
		PollMessageID: msgID,
		PollID:        pollID,
		Word:          ev.Word,
	})
}

func (s *Sender) tallyPoll(ctx context.Context, ev *broker.SendPollAnswer) error {
	counts, err := s.api.StopPoll(ctx, ev.ChatID, ev.PollMessageID)
	if err != nil {
		return err
	}
	var yes, no int
	if len(counts.Options) > 0 {
		yes = counts.Options[0].Voters
	}
	if len(counts.Options) > 1 {
		no = counts.Options[1].Voters
	}
	result := "no"
	if yes > no {
		result = "yes"
	}
	word := ev.Word
	if word == "" {
		word = wordFromQuestion(counts.Question)
	}
	return s.pub.Publish(ctx, broker.KeyWorker, 0, broker.PollResult{
		ChatID: ev.ChatID,
		PollID: ev.PollID,
		Result: result,
		Word:   word,
	})
}

// wordFromQuestion recovers the voted word from the fixed poll question
// shape, where the word is the fifth token.
func wordFromQuestion(question string) string {
	fields := strings.Fields(question)
	if len(fields) < 5 {
		return ""
	}
	return fields[4]
}
