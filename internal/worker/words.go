package worker

import (
	"context"
	"errors"
	"time"

	"github.com/glagolgames/wordchain/internal/broker"
	"github.com/glagolgames/wordchain/internal/game"
	"github.com/glagolgames/wordchain/internal/store"
	"github.com/glagolgames/wordchain/internal/telegram"
)

// teamAssemblySeconds is how long the join keyboard stays up before the
// sender removes it and the first turn opens.
const teamAssemblySeconds = 5

// startWordsGame creates a pending group session and posts the join
// keyboard. The session has no player on turn until pick_leader fires.
func (w *Worker) startWordsGame(ctx context.Context, chatID, userID int64) error {
	if _, err := w.store.Sessions.ActiveByChat(ctx, chatID); err == nil {
		return w.send(ctx, chatID, textAlreadyPlaying)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	_, err := w.store.Sessions.Create(ctx, store.Session{
		ChatID:        chatID,
		Kind:          store.KindGroup,
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
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.MessageKeyboard{
		ChatID:   chatID,
		Text:     textAssembleTeam,
		Keyboard: telegram.KeyboardTeam,
		LiveTime: teamAssemblySeconds,
	})
}

// handleCallback binds a /yes press to the pending session. Pressing twice
// is a no-op thanks to the insert-or-ignore.
func (w *Worker) handleCallback(ctx context.Context, cb *telegram.CallbackQuery) error {
	if cb.Data != "/yes" || cb.Message == nil {
		return nil
	}
	s, err := w.store.Sessions.ActiveByChat(ctx, cb.Message.Chat.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Kind != store.KindGroup {
		return nil
	}
	if err := w.store.Users.Ensure(ctx, store.User{
		ID:        cb.From.ID,
		Username:  cb.From.Username,
		FirstName: cb.From.FirstName,
	}); err != nil {
		return err
	}
	if err := w.store.Players.Add(ctx, s.ID, cb.From.ID, s.StartingLives); err != nil {
		return err
	}
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.CallbackAlert{
		CallbackID: cb.ID,
		Text:       textJoined(cb.From.Name()),
	})
}

// onPickLeader opens the next turn after team assembly or a resolved turn.
func (w *Worker) onPickLeader(ctx context.Context, ev *broker.PickLeader) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, ev.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Kind != store.KindGroup {
		return nil
	}
	return w.pickLeader(ctx, s, 0)
}

// pickLeader chooses the next player and schedules their response timeout.
// forcedUserID keeps the turn with a given player (re-prompt after a wrong
// attempt); zero means draw from the pool.
func (w *Worker) pickLeader(ctx context.Context, s store.Session, forcedUserID int64) error {
	alive, err := w.store.Players.Alive(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(alive) == 0 {
		return w.endWordsGame(ctx, s)
	}
	if len(alive) == 1 && alive[0].Lives == 1 {
		return w.endWordsGame(ctx, s)
	}

	chosen, ok := w.choose(alive, s.NextUserID, forcedUserID)
	if !ok {
		return w.endWordsGame(ctx, s)
	}
	if err := w.store.Sessions.SetNextUser(ctx, s.ID, chosen.UserID); err != nil {
		return err
	}
	if err := w.sendForceReply(ctx, s.ChatID, textNameWord(chosen.Username, s.NextLetter)); err != nil {
		return err
	}
	return w.pub.Publish(ctx, broker.KeyWorker,
		time.Duration(s.ResponseTime)*time.Second,
		broker.SlowPlayer{
			GameID: s.ID,
			UserID: chosen.UserID,
			Round:  chosen.Round,
		})
}

// choose draws the next player: the forced one when alive, otherwise a
// uniform pick among the alive players with the fewest rounds, excluding the
// previous leader when more than one candidate remains.
func (w *Worker) choose(alive []store.Player, previousUserID, forcedUserID int64) (store.Player, bool) {
	if forcedUserID != 0 {
		for _, p := range alive {
			if p.UserID == forcedUserID {
				return p, true
			}
		}
		return store.Player{}, false
	}

	pool := alive
	if len(alive) > 1 && previousUserID != 0 {
		pool = make([]store.Player, 0, len(alive)-1)
		for _, p := range alive {
			if p.UserID != previousUserID {
				pool = append(pool, p)
			}
		}
	}
	if len(pool) == 0 {
		return store.Player{}, false
	}
	// Alive is ordered by round ascending; keep only the least-played.
	minRound := pool[0].Round
	for _, p := range pool {
		if p.Round < minRound {
			minRound = p.Round
		}
	}
	least := pool[:0:0]
	for _, p := range pool {
		if p.Round == minRound {
			least = append(least, p)
		}
	}
	return least[w.randInt(len(least))], true
}

// onSlowPlayer is the turn timeout. Stale timeouts are dropped: the poll
// lock is held, the turn moved on, or the player already answered.
func (w *Worker) onSlowPlayer(ctx context.Context, ev *broker.SlowPlayer) error {
	s, err := w.store.Sessions.ByID(ctx, ev.GameID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !s.IsActive || s.PollID != "" || s.NextUserID != ev.UserID {
		return nil
	}
	p, err := w.store.Players.Get(ctx, s.ID, ev.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.Round != ev.Round {
		return nil
	}
	if err := w.store.Players.RemoveLife(ctx, s.ID, ev.UserID); err != nil {
		return err
	}
	if err := w.send(ctx, s.ChatID, textSlowPlayer(p.Username)); err != nil {
		return err
	}
	return w.pickLeader(ctx, s, 0)
}

// checkWord plays one submitted word.
func (w *Worker) checkWord(ctx context.Context, s store.Session, msg *telegram.Message) error {
	if s.NextUserID == 0 || s.PollID != "" {
		return nil
	}
	if msg.From.ID != s.NextUserID {
		_, err := w.store.Players.Get(ctx, s.ID, msg.From.ID)
		if errors.Is(err, store.ErrNotFound) {
			return nil // bystander, not in the team
		}
		if err != nil {
			return err
		}
		if err := w.store.Players.RemoveLife(ctx, s.ID, msg.From.ID); err != nil {
			return err
		}
		return w.send(ctx, s.ChatID, textNotYourTurn)
	}

	word := game.Normalize(msg.Text)
	if !game.StartsWith(word, s.NextLetter) {
		// No penalty for the wrong opening letter, the same player tries
		// again.
		if err := w.send(ctx, s.ChatID, textWrongLetter(s.NextLetter)); err != nil {
			return err
		}
		return w.pickLeader(ctx, s, s.NextUserID)
	}
	used, err := w.store.Words.IsUsed(ctx, s.ID, word)
	if err != nil {
		return err
	}
	if used {
		if err := w.send(ctx, s.ChatID, textWordWasPlayed(word)); err != nil {
			return err
		}
		return w.pickLeader(ctx, s, s.NextUserID)
	}

	isNoun, err := w.dict.IsNoun(ctx, word)
	if err != nil {
		return err
	}
	if isNoun {
		return w.rightWord(ctx, s, word)
	}
	// Not in the dictionary: let the chat vote.
	if err := w.store.Players.ClearPollVotes(ctx, s.ID); err != nil {
		return err
	}
	return w.pub.Publish(ctx, broker.KeySender, 0, broker.SendPoll{
		ChatID:    s.ChatID,
		Question:  textPollQuestion(word),
		Options:   []string{"Да", "Нет"},
		Anonymous: s.AnonymousPoll,
		Period:    s.PollTime,
		Word:      word,
	})
}

// rightWord credits the accepted word and advances the chain.
func (w *Worker) rightWord(ctx context.Context, s store.Session, word string) error {
	if err := w.store.Players.AddPointAndRound(ctx, s.ID, s.NextUserID); err != nil {
		return err
	}
	if err := w.store.Words.MarkUsed(ctx, s.ID, word); err != nil {
		return err
	}
	if err := w.store.Sessions.AppendWord(ctx, s.ID, word); err != nil {
		return err
	}
	next := game.NextLetter(word)
	if err := w.store.Sessions.SetNextLetter(ctx, s.ID, next); err != nil {
		return err
	}
	if err := w.send(ctx, s.ChatID, textRightWord(word)); err != nil {
		return err
	}
	s.NextLetter = next
	return w.pickLeader(ctx, s, 0)
}

// onPollID binds a freshly opened poll to the chat's session, pausing turn
// progression.
func (w *Worker) onPollID(ctx context.Context, ev *broker.PollID) error {
	s, err := w.store.Sessions.ActiveByChat(ctx, ev.ChatID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if s.Kind != store.KindGroup {
		return nil
	}
	return w.store.Sessions.SetPollID(ctx, s.ID, ev.PollID)
}

// onPollResult resolves a word-admission poll. Non-anonymous polls prefer
// the per-player recorded votes over the option counts. A duplicate result
// finds no session bound to the poll id and is a no-op.
func (w *Worker) onPollResult(ctx context.Context, ev *broker.PollResult) error {
	s, err := w.store.Sessions.ByPollID(ctx, ev.PollID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := w.store.Sessions.SetPollID(ctx, s.ID, ""); err != nil {
		return err
	}
	s.PollID = ""

	accepted := ev.Result == "yes"
	if !s.AnonymousPoll {
		yes, no, err := w.store.Players.PollVotes(ctx, s.ID)
		if err != nil {
			return err
		}
		if yes+no > 0 {
			accepted = yes > no
		}
	}
	if err := w.store.Players.ClearPollVotes(ctx, s.ID); err != nil {
		return err
	}

	if accepted {
		return w.rightWord(ctx, s, ev.Word)
	}
	if err := w.send(ctx, s.ChatID, textPollRejected(ev.Word)); err != nil {
		return err
	}
	if err := w.store.Players.RemoveLife(ctx, s.ID, s.NextUserID); err != nil {
		return err
	}
	return w.pickLeader(ctx, s, 0)
}

// handlePollAnswer records one player's vote in a non-anonymous poll.
// Retracted votes are ignored.
func (w *Worker) handlePollAnswer(ctx context.Context, pa *telegram.PollAnswer) error {
	if len(pa.OptionIDs) == 0 {
		return nil
	}
	s, err := w.store.Sessions.ByPollID(ctx, pa.PollID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	vote := pa.OptionIDs[0] == 0 // option 0 is the yes option
	return w.store.Players.SetPollVote(ctx, s.ID, pa.User.ID, vote)
}

// endWordsGame closes the session, rolls session points into lifetime
// totals and posts the final standings.
func (w *Worker) endWordsGame(ctx context.Context, s store.Session) error {
	if err := w.store.Sessions.SetInactive(ctx, s.ID); err != nil {
		return err
	}
	players, err := w.store.Players.All(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(players) == 0 {
		return w.send(ctx, s.ChatID, textNoPlayers)
	}
	for _, p := range players {
		if p.Points > 0 {
			if err := w.store.Users.AddTotalPoints(ctx, p.UserID, p.Points); err != nil {
				return err
			}
		}
	}
	alive, err := w.store.Players.Alive(ctx, s.ID)
	if err != nil {
		return err
	}
	if len(alive) == 0 {
		if err := w.send(ctx, s.ChatID, textTeamExhausted); err != nil {
			return err
		}
	}
	return w.send(ctx, s.ChatID, textWordStats(players))
}
