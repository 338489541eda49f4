package tgrelay

import (
	"fmt"

	"github.com/requilence/tgrelay/html"
)

// StartText returns the greeting sent on /start
func StartText(c *Config) string {
	return fmt.Sprintf(
		"Hello! I am a bot running on the server with the ID %s.\n\n"+
			"To check if the bot is still running, call %s.\n\n",
		html.Fixed(c.AppID), html.Fixed(c.HealthcheckURL()),
	)
}

func startCommand(c *Context) error {
	return c.ReplyHTML(StartText(c.Config))
}

// RegisterCommands adds the bot commands to the dispatcher
func RegisterCommands(d *Dispatcher) {
	d.Handle("start", startCommand)
}
