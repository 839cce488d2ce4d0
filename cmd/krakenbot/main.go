package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/brainfrog/Telegram-Kraken-Bot/internal/bot"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/config"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/exchange/kraken"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/logging"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/monitor"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/notify"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/registry"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/resolver"
	"github.com/brainfrog/Telegram-Kraken-Bot/internal/session"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to the configuration file")
	flag.Parse()

	// Secrets may live in a .env file next to the binary.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.Init(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *configPath, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.WithError(err).Fatal("bot stopped")
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, configPath string, logger *logrus.Logger) error {
	client := kraken.New(cfg.Kraken, logger)
	scraper := kraken.NewScraper(logger)

	reg := registry.New(client, scraper, cfg.Trading.UsedPairs, logger)
	logger.Info("loading venue lookup tables")
	if err := reg.Refresh(ctx); err != nil {
		return fmt.Errorf("initialize lookup tables: %w", err)
	}

	var feed *kraken.Feed
	var priceFeed resolver.PriceFeed
	if cfg.Monitor.WSTicker {
		feed = kraken.NewFeed(reg.WSNames(), logger)
		priceFeed = feed
		go feed.Run(ctx)
	}
	res := resolver.New(client, reg, priceFeed, logger)

	// The notification queue is wired to the bot after both exist; the
	// closure keeps the monitor decoupled from that ordering.
	var queue *notify.Queue
	notifyOwner := func(text string) {
		if queue != nil {
			queue.Push(text)
		}
	}
	mon := monitor.New(client, time.Duration(cfg.Monitor.CheckTradeTimeSec)*time.Second, notifyOwner, logger)
	if cfg.Notifications.SendErrors {
		mon.NotifyErrors(notifyOwner)
	}
	defer mon.Stop()

	engine := session.NewEngine(session.Options{
		Config:     cfg,
		ConfigPath: configPath,
		Exchange:   client,
		Registry:   reg,
		Resolver:   res,
		Monitor:    mon,
		Status:     scraper,
		Restart:    func() { restart(logger) },
		Log:        logger,
	})

	tg, err := bot.New(cfg, engine, logger)
	if err != nil {
		return err
	}
	queue = notify.NewQueue(tg, 64, logger)
	tg.SetNotifyQueue(queue)
	queue.Start(ctx)

	if cfg.Monitor.CheckTrades && cfg.Monitor.TrackOpenOnStart {
		msgID, perr := tg.SendProgress("Checking open orders...")
		n, err := mon.Reconcile(ctx)
		if err != nil {
			logger.WithError(err).Warn("open order reconciliation failed")
		}
		status := fmt.Sprintf("Bot ready. Tracking %d open orders", n)
		if perr != nil || tg.EditProgress(msgID, status) != nil {
			logger.Info(status)
		}
	}

	return tg.Run(ctx)
}

// restart replaces the running process with a fresh instance so a saved
// configuration change takes effect.
func restart(logger *logrus.Logger) {
	exe, err := os.Executable()
	if err != nil {
		logger.WithError(err).Error("restart failed")
		return
	}
	logger.Info("restarting")
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		logger.WithError(err).Error("restart failed")
	}
}
