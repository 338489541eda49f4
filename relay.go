package tgrelay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

// Relay wires the webhook listener to the update dispatcher
type Relay struct {
	Config     *Config
	Bot        BotAPI
	Queue      *UpdateQueue
	Dispatcher *Dispatcher

	server *http.Server
}

// New creates the relay. Nothing is started until Start and Serve are called
func New(c *Config, bot BotAPI) (*Relay, error) {
	queue := NewUpdateQueue(c.QueueSize)
	dispatcher := NewDispatcher(queue, bot, c)
	RegisterCommands(dispatcher)

	router, err := NewRouter(c, queue)
	if err != nil {
		return nil, err
	}

	return &Relay{
		Config:     c,
		Bot:        bot,
		Queue:      queue,
		Dispatcher: dispatcher,
		server: &http.Server{
			Addr:              c.ListenAddr(),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
	}, nil
}

// Handler returns the HTTP handler served by the relay
func (r *Relay) Handler() http.Handler {
	return r.server.Handler
}

// Start registers the webhook when running as master and starts the dispatcher,
// so the queue is drained before the listener accepts the first update
func (r *Relay) Start() error {
	log.WithFields(log.Fields{
		"app_id": r.Config.AppID,
		"master": r.Config.Master,
		"secret": checksumString(r.Config.CallbackSecret),
	}).Info("Starting webhook relay")

	if r.Config.Master {
		if err := RegisterWebhook(r.Bot, r.Config); err != nil {
			return err
		}
	}

	r.Dispatcher.Start()
	return nil
}

// Serve listens on Config.Port until Shutdown is called
func (r *Relay) Serve() error {
	ln, err := net.Listen("tcp", r.server.Addr)
	if err != nil {
		return err
	}
	return r.ServeListener(ln)
}

// ServeListener serves on the provided listener until Shutdown is called
func (r *Relay) ServeListener(ln net.Listener) error {
	log.WithField("addr", ln.Addr().String()).Info("Listening for webhooks")

	err := r.server.Serve(ln)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests, then drains the queue and waits for handlers
func (r *Relay) Shutdown(ctx context.Context) error {
	err := r.server.Shutdown(ctx)
	if err != nil {
		log.WithError(err).Error("HTTP server shutdown")
	}

	if derr := r.Dispatcher.Stop(ctx); derr != nil && err == nil {
		err = derr
	}
	return err
}
