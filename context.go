package tgrelay

import (
	"regexp"
	"strings"

	tg "github.com/requilence/telegram-bot-api"
	log "github.com/sirupsen/logrus"
)

var commandRE = regexp.MustCompile(`(?s)^/([a-zA-Z0-9_]+)(?:@([a-zA-Z0-9_]+))?(?:\s+(.*))?$`)

// Context is passed to command handlers. It carries the update being processed
// and the clients needed to answer it
type Context struct {
	Update  *tg.Update
	Message *tg.Message // Message or EditedMessage of the update

	Command string // lowercased command without the leading slash
	Param   string // text after the command

	Bot    BotAPI
	Config *Config
}

// ChatID returns the ID of the chat the update came from
func (c *Context) ChatID() int64 {
	if c.Message == nil || c.Message.Chat == nil {
		return 0
	}
	return c.Message.Chat.ID
}

// ReplyHTML sends HTML formatted text back to the originating chat
func (c *Context) ReplyHTML(text string) error {
	_, err := SendHTML(c.Bot, c.ChatID(), text)
	return err
}

// Log returns logrus instance with related context info attached
func (c *Context) Log() *log.Entry {
	fields := log.Fields{}
	if c.Update != nil {
		fields["update_id"] = c.Update.UpdateID
	}
	if chatID := c.ChatID(); chatID != 0 {
		fields["chat"] = chatID
	}
	if c.Command != "" {
		fields["command"] = c.Command
	}
	return log.WithFields(fields)
}

// updateMessage returns the message carried by the update, edited messages included
func updateMessage(u *tg.Update) *tg.Message {
	if u == nil {
		return nil
	}
	if u.Message != nil {
		return u.Message
	}
	return u.EditedMessage
}

// parseCommand splits "/command@bot param" into its parts.
// Empty command means the text is not a command
func parseCommand(text string) (command, bot, param string) {
	if !strings.HasPrefix(text, "/") {
		return "", "", text
	}

	match := commandRE.FindStringSubmatch(text)
	if len(match) != 4 {
		return "", "", ""
	}
	return strings.ToLower(match[1]), match[2], strings.TrimSpace(match[3])
}
