package worker

import (
	"fmt"
	"strings"

	"github.com/glagolgames/wordchain/internal/store"
)

// User-visible texts. Kept in one place so the games read as one voice.
const (
	textAlreadyPlaying = "тебе не много?"
	textLetsPlay       = "let's play"
	textWannaPlay      = "Сыграем?"
	textAssembleTeam   = "Собираем команду. Кто в игре?"
	textNoSuchCity     = "Нет такого города"
	textCityWasPlayed  = "Был такой город"
	textBotLost        = "Удивительно, я проиграл, опять слово на Ы"
	textNotYourTurn    = "Не твой ход минус жизнь"
	textNoPlayers      = "sad trombone"
	textTeamExhausted  = "Игорьков больше нет"
	textHelp           = "Команды:\n" +
		"/play - начать игру\n" +
		"/stop - закончить игру\n" +
		"/last - напомнить букву\n" +
		"/stat - статистика игры\n" +
		"/ping - проверить, жив ли бот\n" +
		"/help - эта справка"
)

func textPong(name string) string {
	return name + " /pong"
}

func textCityPicked(city, letter string) string {
	return fmt.Sprintf("%s. Тебе на %s", city, letter)
}

func textCityAccepted(letter string) string {
	return fmt.Sprintf("Есть такой город. Мне на %s", letter)
}

func textWrongLetter(letter string) string {
	return fmt.Sprintf("Не на ту букву, тебе на %s", letter)
}

func textYourLetter(letter string) string {
	if letter == "" {
		return "Любая буква"
	}
	return "Тебе на " + letter
}

func textNameWord(username, letter string) string {
	if letter == "" {
		return fmt.Sprintf("@%s, назови любое слово", username)
	}
	return fmt.Sprintf("@%s, назови слово на букву %s", username, letter)
}

func textWordWasPlayed(word string) string {
	return fmt.Sprintf("Слово %s уже было", word)
}

func textRightWord(word string) string {
	return word + " - правильно"
}

func textSlowPlayer(username string) string {
	return fmt.Sprintf("@%s думал слишком долго, минус жизнь", username)
}

func textJoined(name string) string {
	return name + ", теперь ты в игре"
}

// The word must stay the fifth token: the sender recovers it from the
// stopped poll's question when the payload lacks it.
func textPollQuestion(word string) string {
	return fmt.Sprintf("Граждане примем ли мы %s как допустимое слово?", word)
}

func textPollRejected(word string) string {
	return fmt.Sprintf("Граждане решили, что %s не слово, минус жизнь", word)
}

func textCityStats(cities []string) string {
	if len(cities) == 0 {
		return "Игра окончена. Городов не было"
	}
	return "Игра окончена. Города:\n" + strings.Join(cities, "\n")
}

func textWordStats(players []store.Player) string {
	lines := make([]string, 0, len(players)+1)
	lines = append(lines, "Игра окончена")
	for _, p := range players {
		lines = append(lines, fmt.Sprintf("@%s - %d", p.Username, p.Points))
	}
	return strings.Join(lines, "\n")
}
