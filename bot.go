package tgrelay

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/kennygrant/sanitize"
	tg "github.com/requilence/telegram-bot-api"
	log "github.com/sirupsen/logrus"
)

// BotAPI is the part of the Telegram Bot API client used by the relay. *tg.BotAPI satisfies it
type BotAPI interface {
	MakeRequest(endpoint string, params url.Values) (tg.APIResponse, error)
	Send(c tg.Chattable) (tg.Message, error)
}

// tags allowed inside HTML messages
var allowedHTMLTags = []string{"a", "b", "strong", "i", "em", "code", "pre"}

// NewBotAPI creates the Telegram client. It performs a getMe request to validate the token.
// Every request is bounded by Config.ClientTimeout
func NewBotAPI(c *Config) (*tg.BotAPI, error) {
	api, err := tg.NewBotAPIWithClient(c.BotToken, &http.Client{Timeout: c.ClientTimeout})
	if err != nil {
		return nil, err
	}
	api.Debug = c.Debug

	log.WithField("bot", api.Self.UserName).Info("Telegram bot authorized")
	return api, nil
}

// SendHTML sends HTML formatted text to the chat.
// Tags that Telegram doesn't support are stripped before sending
func SendHTML(api BotAPI, chatID int64, text string) (tg.Message, error) {
	if chatID == 0 {
		return tg.Message{}, errors.New("ChatID is empty")
	}
	if text == "" {
		return tg.Message{}, errors.New("Text is empty")
	}

	if sanitized, err := sanitize.HTMLAllowing(text, allowedHTMLTags, []string{"href"}); err == nil && sanitized != "" {
		text = sanitized
	}

	msg := tg.NewMessage(chatID, text)
	msg.ParseMode = tg.ModeHTML
	msg.DisableWebPagePreview = true

	return api.Send(msg)
}
