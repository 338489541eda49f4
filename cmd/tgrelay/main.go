// tgrelay receives Telegram updates on the /telegram webhook and answers /start.
//
// Run one instance with --master to (re)register the webhook, the rest as replicas
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/requilence/tgrelay"
	log "github.com/sirupsen/logrus"
)

func main() {
	master := flag.Bool("master", false, "register the webhook on start")
	deleteWebhook := flag.Bool("delete-webhook", false, "remove the webhook registration and exit")
	flag.Parse()

	// .env is optional
	_ = godotenv.Load()

	cfg, err := tgrelay.LoadConfig(*master)
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	tgrelay.InitLogging(cfg)

	api, err := tgrelay.NewBotAPI(cfg)
	if err != nil {
		log.WithError(err).Fatal("Can't create the Telegram client")
	}

	if *deleteWebhook {
		if err := tgrelay.DeleteWebhook(api); err != nil {
			log.WithError(err).Fatal("Can't delete the webhook")
		}
		return
	}

	relay, err := tgrelay.New(cfg, api)
	if err != nil {
		log.WithError(err).Fatal("Can't create the relay")
	}
	relay.Dispatcher.BotUsername = api.Self.UserName

	if err := relay.Start(); err != nil {
		log.WithError(err).Fatal("Can't start the relay")
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	served := make(chan error, 1)
	go func() {
		served <- relay.Serve()
	}()

	var serveErr error
	select {
	case sig := <-stop:
		log.WithField("signal", sig.String()).Info("Shutting down")
	case err := <-served:
		serveErr = err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := relay.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Shutdown")
	}
	if serveErr != nil {
		log.WithError(serveErr).Fatal("HTTP listener failed")
	}
}
