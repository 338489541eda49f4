package tgrelay

import (
	"context"
	"strings"
	"sync"

	tg "github.com/requilence/telegram-bot-api"
	log "github.com/sirupsen/logrus"
)

// CommandHandler answers a single bot command
type CommandHandler func(c *Context) error

// Dispatcher drains the UpdateQueue and routes commands to the registered handlers.
// Updates are handled concurrently, at most Config.Workers at a time
type Dispatcher struct {
	queue  *UpdateQueue
	bot    BotAPI
	config *Config

	// used to skip commands addressed to other bots in group chats
	BotUsername string

	handlersMutex sync.RWMutex
	handlers      map[string]CommandHandler

	sem      chan struct{}
	inFlight sync.WaitGroup
	done     chan struct{}
	start    sync.Once
}

// NewDispatcher returns the dispatcher for queue. Handlers must be added before Start
func NewDispatcher(queue *UpdateQueue, bot BotAPI, c *Config) *Dispatcher {
	workers := c.Workers
	if workers < 1 {
		workers = 1
	}
	return &Dispatcher{
		queue:    queue,
		bot:      bot,
		config:   c,
		handlers: make(map[string]CommandHandler),
		sem:      make(chan struct{}, workers),
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for command (without the leading slash)
func (d *Dispatcher) Handle(command string, h CommandHandler) {
	d.handlersMutex.Lock()
	defer d.handlersMutex.Unlock()

	d.handlers[strings.ToLower(strings.TrimPrefix(command, "/"))] = h
}

func (d *Dispatcher) handler(command string) CommandHandler {
	d.handlersMutex.RLock()
	defer d.handlersMutex.RUnlock()

	return d.handlers[command]
}

// Start runs the consumer loop in its own goroutine. Calling it twice has no effect
func (d *Dispatcher) Start() {
	d.start.Do(func() {
		go d.listen()
		log.WithField("workers", cap(d.sem)).Info("Update dispatcher started")
	})
}

func (d *Dispatcher) listen() {
	defer close(d.done)

	for u := range d.queue.Updates() {
		d.sem <- struct{}{}
		d.inFlight.Add(1)

		go func(u *tg.Update) {
			defer func() {
				<-d.sem
				d.inFlight.Done()
			}()
			d.process(u)
		}(u)
	}
}

// Stop closes the queue, lets the dispatcher drain what is left and waits for running handlers.
// It returns ctx.Err() if ctx is done first
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.queue.Close()
	// Start may have never been called, drain anyway
	d.Start()

	finished := make(chan struct{})
	go func() {
		<-d.done
		d.inFlight.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		log.Info("Update dispatcher stopped")
		return nil
	case <-ctx.Done():
		log.WithField("pending", d.queue.Len()).Warn("Update dispatcher stop timed out")
		return ctx.Err()
	}
}

func (d *Dispatcher) process(u *tg.Update) {
	defer func() {
		if r := recover(); r != nil {
			stack := stack(3)
			log.WithField("update_id", u.UpdateID).Errorf("Panic recovery at update dispatcher -> %s\n%s\n", r, stack)
		}
	}()

	msg := updateMessage(u)
	if msg == nil {
		log.WithField("update_id", u.UpdateID).Debug("Update without message skipped")
		return
	}

	command, botName, param := parseCommand(msg.Text)
	if command == "" {
		return
	}

	if botName != "" && d.BotUsername != "" && !strings.EqualFold(botName, d.BotUsername) {
		log.WithField("update_id", u.UpdateID).Debugf("Command addressed to @%s skipped", botName)
		return
	}

	h := d.handler(command)
	if h == nil {
		log.WithField("update_id", u.UpdateID).WithField("command", command).Debug("No handler for command")
		return
	}

	ctx := &Context{Update: u, Message: msg, Command: command, Param: param, Bot: d.bot, Config: d.config}
	if err := h(ctx); err != nil {
		ctx.Log().WithError(err).Error("Command handler returned error")
	}
}
