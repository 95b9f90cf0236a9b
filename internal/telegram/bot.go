package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// PollCounts is the final tally of a stopped poll, in option order.
type PollCounts struct {
	Question    string
	Options     []PollOptionCount
	TotalVoters int
}

// PollOptionCount is one option's vote count.
type PollOptionCount struct {
	Text   string
	Voters int
}

// Bot wraps the telego client with the narrow surface the poller and sender
// use.
type Bot struct {
	api *telego.Bot
}

// NewBot builds a Bot API client for the given token.
func NewBot(token string) (*Bot, error) {
	api, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &Bot{api: api}, nil
}

// GetUpdates long-polls for updates past offset, waiting up to timeout
// seconds.
func (b *Bot) GetUpdates(ctx context.Context, offset int, timeout int) ([]telego.Update, error) {
	return b.api.GetUpdates(ctx, &telego.GetUpdatesParams{
		Offset:  offset,
		Timeout: timeout,
	})
}

// SendMessage delivers text to a chat. A non-empty keyboard name attaches the
// named reply markup; forceReply attaches a force-reply marker instead.
// Returns the sent message id.
func (b *Bot) SendMessage(ctx context.Context, chatID int64, text, keyboard string, forceReply bool) (int, error) {
	params := &telego.SendMessageParams{
		ChatID: tu.ID(chatID),
		Text:   text,
	}
	if keyboard != "" {
		params.ReplyMarkup = Keyboard(keyboard)
	} else if forceReply {
		params.ReplyMarkup = &telego.ForceReply{ForceReply: true}
	}
	msg, err := b.api.SendMessage(ctx, params)
	if err != nil {
		return 0, fmt.Errorf("send message: %w", err)
	}
	return msg.MessageID, nil
}

// RemoveInlineKeyboard strips the inline keyboard from a sent message.
func (b *Bot) RemoveInlineKeyboard(ctx context.Context, chatID int64, messageID int) error {
	_, err := b.api.EditMessageReplyMarkup(ctx, &telego.EditMessageReplyMarkupParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
		ReplyMarkup: &telego.InlineKeyboardMarkup{
			InlineKeyboard: [][]telego.InlineKeyboardButton{},
		},
	})
	if err != nil {
		return fmt.Errorf("remove keyboard: %w", err)
	}
	return nil
}

// SendPoll opens a poll that auto-closes after period seconds. Returns the
// poll message id and the poll id.
func (b *Bot) SendPoll(ctx context.Context, chatID int64, question string, options []string, anonymous bool, period int) (int, string, error) {
	opts := make([]telego.InputPollOption, 0, len(options))
	for _, o := range options {
		opts = append(opts, telego.InputPollOption{Text: o})
	}
	msg, err := b.api.SendPoll(ctx, &telego.SendPollParams{
		ChatID:      tu.ID(chatID),
		Question:    question,
		Options:     opts,
		IsAnonymous: &anonymous,
		OpenPeriod:  period,
	})
	if err != nil {
		return 0, "", fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return 0, "", fmt.Errorf("send poll: reply carries no poll")
	}
	return msg.MessageID, msg.Poll.ID, nil
}

// StopPoll closes a poll and returns its final counts.
func (b *Bot) StopPoll(ctx context.Context, chatID int64, messageID int) (PollCounts, error) {
	poll, err := b.api.StopPoll(ctx, &telego.StopPollParams{
		ChatID:    tu.ID(chatID),
		MessageID: messageID,
	})
	if err != nil {
		return PollCounts{}, fmt.Errorf("stop poll: %w", err)
	}
	counts := PollCounts{Question: poll.Question, TotalVoters: poll.TotalVoterCount}
	for _, o := range poll.Options {
		counts.Options = append(counts.Options, PollOptionCount{
			Text:   o.Text,
			Voters: o.VoterCount,
		})
	}
	return counts, nil
}

// AnswerCallback answers an inline-button press with an alert toast.
func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string) error {
	err := b.api.AnswerCallbackQuery(ctx, &telego.AnswerCallbackQueryParams{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       true,
	})
	if err != nil {
		return fmt.Errorf("answer callback: %w", err)
	}
	return nil
}
