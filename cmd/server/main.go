package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sheikh-saqib/household-ledger/internal/config"
	"github.com/sheikh-saqib/household-ledger/internal/events/kafka"
	"github.com/sheikh-saqib/household-ledger/internal/httpapi"
	"github.com/sheikh-saqib/household-ledger/internal/ledger"
	"github.com/sheikh-saqib/household-ledger/internal/storage"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatal(err)
	}
	log, err := cfg.Log.NewLogger()
	if err != nil {
		logrus.Fatal(err)
	}

	store, closeStore, err := storage.Open(ctx, cfg.Store, log)
	if err != nil {
		log.WithError(err).Fatal("open store")
	}
	defer closeStore()

	opts := []ledger.Option{
		ledger.WithLogger(log),
		ledger.WithTxTimeout(cfg.Store.TxTimeout),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher := kafka.NewPublisher(cfg.Kafka.Brokers)
		defer publisher.Close()
		opts = append(opts, ledger.WithPublisher(publisher, cfg.Kafka.Topic))
		log.WithField("topic", cfg.Kafka.Topic).Info("publishing ledger events to kafka")
	}

	ledgerService := ledger.NewLedger(store, opts...)
	server := httpapi.NewServer(
		ledgerService,
		ledger.NewJournal(ledgerService, cfg.RebalanceOnEdit),
		ledger.NewGoalTracker(ledgerService),
		ledger.NewDebtTracker(ledgerService),
		log,
	)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"addr": cfg.HTTPAddr, "store": cfg.Store.Driver}).Info("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server stopped")
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	log.Info("server stopped")
}
