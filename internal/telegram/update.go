// Package telegram holds the Bot API surface: plain decode records for
// inbound updates and a thin client for the handful of outbound methods the
// sender needs.
package telegram

import "encoding/json"

// Chat types as reported by the Bot API.
const (
	ChatPrivate    = "private"
	ChatGroup      = "group"
	ChatSupergroup = "supergroup"
)

// Update is one getUpdates entry. Only the fields the pipeline acts on are
// decoded; everything else is ignored.
type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message,omitempty"`
	CallbackQuery *CallbackQuery `json:"callback_query,omitempty"`
	PollAnswer    *PollAnswer    `json:"poll_answer,omitempty"`
}

// Message is an inbound chat message.
type Message struct {
	MessageID int64  `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// Chat identifies where a message came from.
type Chat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

// User is a Telegram account.
type User struct {
	ID        int64  `json:"id"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"first_name,omitempty"`
}

// Name returns the username, falling back to the first name.
func (u User) Name() string {
	if u.Username != "" {
		return u.Username
	}
	return u.FirstName
}

// CallbackQuery is an inline-keyboard button press.
type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message,omitempty"`
	Data    string   `json:"data,omitempty"`
}

// PollAnswer is one vote in a non-anonymous poll. An empty OptionIDs means
// the vote was retracted.
type PollAnswer struct {
	PollID    string `json:"poll_id"`
	User      User   `json:"user"`
	OptionIDs []int  `json:"option_ids"`
}

// DecodeUpdate parses one raw update as published by the poller.
func DecodeUpdate(body []byte) (Update, error) {
	var u Update
	err := json.Unmarshal(body, &u)
	return u, err
}
