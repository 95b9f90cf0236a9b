package telegram

import (
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

// Keyboard names carried in message_keyboard events. Events reference
// keyboards by name so their payloads stay free of Bot API types.
const (
	KeyboardStart = "start_keyboard"
	KeyboardTeam  = "keyboard_team"
)

// Keyboard resolves a keyboard name to its reply markup, or nil when the
// name is unknown.
func Keyboard(name string) telego.ReplyMarkup {
	switch name {
	case KeyboardStart:
		return tu.Keyboard(
			tu.KeyboardRow(
				tu.KeyboardButton("/yes"),
				tu.KeyboardButton("//no"),
			),
		).WithResizeKeyboard().WithOneTimeKeyboard().
			WithInputFieldPlaceholder("You wanna play?")
	case KeyboardTeam:
		return tu.InlineKeyboard(
			tu.InlineKeyboardRow(
				tu.InlineKeyboardButton("Yes").WithCallbackData("/yes"),
				tu.InlineKeyboardButton("No").WithCallbackData("//no"),
			),
		)
	default:
		return nil
	}
}
