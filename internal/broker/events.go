package broker

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Routing keys of the delayed exchange. The worker queue binds poller and
// worker; the sender queue binds sender.
const (
	KeyPoller = "poller"
	KeyWorker = "worker"
	KeySender = "sender"
)

// Event kinds carried in the type_ field of every worker/sender payload.
// Updates published by the poller carry no type_: they are raw Telegram
// update objects and are recognized by their routing key.
const (
	KindMessage              = "message"
	KindMessageKeyboard      = "message_keyboard"
	KindRemoveInlineKeyboard = "message_inline_remove_keyboard"
	KindCallbackAlert        = "callback_alert"
	KindSendPoll             = "send_poll"
	KindSendPollAnswer       = "send_poll_answer"
	KindPickLeader           = "pick_leader"
	KindPollID               = "poll_id"
	KindPollResult           = "poll_result"
	KindSlowPlayer           = "slow_player"
)

// ErrUnknownType marks payloads whose type_ no consumer recognizes. Handlers
// acknowledge and skip these.
var ErrUnknownType = errors.New("unknown event type")

// Event is one broker payload. Concrete event structs are the only
// implementations, so dispatch is an exhaustive type switch.
type Event interface {
	Kind() string
}

// Message asks the sender to deliver a plain text message.
type Message struct {
	ChatID     int64  `json:"chat_id"`
	Text       string `json:"text"`
	ForceReply bool   `json:"force_reply,omitempty"`
}

func (Message) Kind() string { return KindMessage }

// MessageKeyboard asks the sender to deliver a message with a named keyboard.
// LiveTime > 0 makes the sender schedule removal of the inline keyboard that
// many seconds later; KeyboardMessageID is filled in on the rescheduled
// removal event.
type MessageKeyboard struct {
	ChatID            int64  `json:"chat_id"`
	Text              string `json:"text"`
	Keyboard          string `json:"keyboard"`
	LiveTime          int    `json:"live_time,omitempty"`
	KeyboardMessageID int    `json:"keyboard_message_id,omitempty"`
}

func (MessageKeyboard) Kind() string { return KindMessageKeyboard }

// RemoveInlineKeyboard clears the inline keyboard of a previously sent
// message and closes the team-assembly window by emitting pick_leader.
type RemoveInlineKeyboard struct {
	ChatID            int64 `json:"chat_id"`
	KeyboardMessageID int   `json:"keyboard_message_id"`
}

func (RemoveInlineKeyboard) Kind() string { return KindRemoveInlineKeyboard }

// CallbackAlert answers an inline-button press with a toast.
type CallbackAlert struct {
	CallbackID string `json:"callback_id"`
	Text       string `json:"text"`
}

func (CallbackAlert) Kind() string { return KindCallbackAlert }

// SendPoll opens a word-admission poll in the chat.
type SendPoll struct {
	ChatID    int64    `json:"chat_id"`
	Question  string   `json:"question"`
	Options   []string `json:"options"`
	Anonymous bool     `json:"anonymous"`
	Period    int      `json:"period"`
	Word      string   `json:"word"`
}

func (SendPoll) Kind() string { return KindSendPoll }

// SendPollAnswer closes a previously opened poll and tallies it. Scheduled
// by the sender itself with delay period+2s.
type SendPollAnswer struct {
	ChatID        int64  `json:"chat_id"`
	PollMessageID int    `json:"poll_message_id"`
	PollID        string `json:"poll_id"`
	Word          string `json:"word"`
}

func (SendPollAnswer) Kind() string { return KindSendPollAnswer }

// PickLeader tells the worker to open the next turn in a group game.
type PickLeader struct {
	ChatID int64 `json:"chat_id"`
}

func (PickLeader) Kind() string { return KindPickLeader }

// PollID binds a freshly created Telegram poll to the active game of a chat,
// pausing turn progression until the poll resolves.
type PollID struct {
	PollID string `json:"poll_id"`
	ChatID int64  `json:"chat_id"`
}

func (PollID) Kind() string { return KindPollID }

// PollResult reports the tallied outcome of a word-admission poll.
// Result is "yes" or "no".
type PollResult struct {
	ChatID int64  `json:"chat_id"`
	PollID string `json:"poll_id"`
	Result string `json:"poll_result"`
	Word   string `json:"word"`
}

func (PollResult) Kind() string { return KindPollResult }

// SlowPlayer is the self-scheduled response timeout for a turn. Round is the
// player's round counter captured when the turn opened; a mismatch on receipt
// means the player already answered and the timeout is stale.
type SlowPlayer struct {
	GameID int64 `json:"game_id"`
	UserID int64 `json:"user_id"`
	Round  int   `json:"round"`
}

func (SlowPlayer) Kind() string { return KindSlowPlayer }

// Encode serializes an event with its type_ discriminator.
func Encode(ev Event) ([]byte, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", ev.Kind(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("remarshal %s: %w", ev.Kind(), err)
	}
	fields["type_"], _ = json.Marshal(ev.Kind())
	return json.Marshal(fields)
}

// Decode parses a worker/sender payload into its concrete event type.
func Decode(body []byte) (Event, error) {
	var env struct {
		Type string `json:"type_"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var ev Event
	switch env.Type {
	case KindMessage:
		ev = &Message{}
	case KindMessageKeyboard:
		ev = &MessageKeyboard{}
	case KindRemoveInlineKeyboard:
		ev = &RemoveInlineKeyboard{}
	case KindCallbackAlert:
		ev = &CallbackAlert{}
	case KindSendPoll:
		ev = &SendPoll{}
	case KindSendPollAnswer:
		ev = &SendPollAnswer{}
	case KindPickLeader:
		ev = &PickLeader{}
	case KindPollID:
		ev = &PollID{}
	case KindPollResult:
		ev = &PollResult{}
	case KindSlowPlayer:
		ev = &SlowPlayer{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err := json.Unmarshal(body, ev); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return ev, nil
}
