package worker

import (
	"context"
	"errors"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/game"
	"github.com/glagolgames/wordchain/internal/store"
	"github.com/glagolgames/wordchain/internal/telegram"
)

// cityLetters are the opening letters the bot may draw for the first city.
// The silent-tail letters and the letters no Russian city starts with are
// excluded.
var cityLetters = []rune("абвгдежзиклмнопрстуфхчшэюя")

// offerCityGame replies to a private /play with the start keyboard; the game
// begins when the player answers /yes.
func (w *Worker) offerCityGame(ctx context.Context, chatID int64) error {
	_, err := w.store.Sessions.ActiveByChat(ctx, chatID)
	if err == nil {
		return w.send(ctx, chatID, textAlreadyPlaying)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.MessageKeyboard{
		ChatID:   chatID,
		Text:     textWannaPlay,
		Keyboard: telegram.KeyboardStart,
	})
}

func (w *Worker) startCityGame(ctx context.Context, chatID, userID int64) error {
	if _, err := w.store.Sessions.ActiveByChat(ctx, chatID); err == nil {
		return w.send(ctx, chatID, textAlreadyPlaying)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	s, err := w.store.Sessions.Create(ctx, store.Session{
		ChatID:        chatID,
		Kind:          store.KindSingle,
		IsActive:      true,
		CreatorID:     userID,
		ResponseTime:  w.settings.ResponseTime,
		PollTime:      w.settings.PollTime,
		AnonymousPoll: w.settings.AnonymousPoll,
		StartingLives: w.settings.StartingLives,
	})
	if err != nil {
		return err
	}
	if err := w.send(ctx, chatID, textLetsPlay); err != nil {
		return err
	}
	letter := string(cityLetters[w.randInt(len(cityLetters))])
	return w.pickCity(ctx, s, letter)
}

// pickCity plays the bot's turn: draw an unused city on letter, mark it used
// and hand the chain letter back to the player. No candidate left means the
// bot lost.
func (w *Worker) pickCity(ctx context.Context, s store.Session, letter string) error {
	city, err := w.store.Cities.RandomByLetter(ctx, s.ID, letter)
	if errors.Is(err, store.ErrNotFound) {
		if err := w.store.Sessions.SetInactive(ctx, s.ID); err != nil {
			return err
		}
		return w.send(ctx, s.ChatID, textBotLost)
	}
	if err != nil {
		return err
	}
	if err := w.store.Cities.MarkUsed(ctx, s.ID, city.ID); err != nil {
		return err
	}
	next := game.NextLetter(city.Name)
	if err := w.store.Sessions.SetNextLetter(ctx, s.ID, next); err != nil {
		return err
	}
	return w.send(ctx, s.ChatID, textCityPicked(city.Name, next))
}

// checkCity plays the player's turn.
func (w *Worker) checkCity(ctx context.Context, s store.Session, text string) error {
	name := game.Normalize(text)
	city, err := w.store.Cities.ByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return w.send(ctx, s.ChatID, textNoSuchCity)
	}
	if err != nil {
		return err
	}

	used, err := w.store.Cities.IsUsed(ctx, s.ID, city.ID)
	if err != nil {
		return err
	}
	if used {
		return w.send(ctx, s.ChatID, textCityWasPlayed)
	}
	if !game.StartsWith(city.Name, s.NextLetter) {
		return w.send(ctx, s.ChatID, textWrongLetter(s.NextLetter))
	}

	if err := w.store.Cities.MarkUsed(ctx, s.ID, city.ID); err != nil {
		return err
	}
	next := game.NextLetter(city.Name)
	if err := w.send(ctx, s.ChatID, textCityAccepted(next)); err != nil {
		return err
	}
	return w.pickCity(ctx, s, next)
}

func (w *Worker) stopCityGame(ctx context.Context, s store.Session) error {
	if err := w.store.Sessions.SetInactive(ctx, s.ID); err != nil {
		return err
	}
	cities, err := w.store.Cities.UsedNames(ctx, s.ID)
	if err != nil {
		return err
	}
	return w.send(ctx, s.ChatID, textCityStats(cities))
}
