package app

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/openshelf/library-service/config"
	"github.com/openshelf/library-service/internal/handler"
	"github.com/openshelf/library-service/internal/repository"
	"github.com/openshelf/library-service/internal/server"
	"github.com/openshelf/library-service/internal/service"
	"github.com/openshelf/library-service/migrations"
	"github.com/openshelf/library-service/pkg/auth"
	"github.com/openshelf/library-service/pkg/kafka"
	"github.com/openshelf/library-service/pkg/logger"
	"github.com/openshelf/library-service/pkg/postgres"
)

func Run(cfg *config.Config) {
	log := logger.NewLogger(cfg.Log, "library")

	db, err := postgres.NewPostgresDB(context.Background(), &cfg.Database, migrations.MigrationFiles)
	if err != nil {
		log.Fatal("db init", zap.Error(err))
	}

	repo, err := repository.NewRepository(db, log)
	if err != nil {
		log.Fatal("repo", zap.Error(err))
	}
	svc := service.NewService(repo, log,
		service.WithStrictTransitions(cfg.Lifecycle.Strict))

	var (
		statsLog handler.StatsLog = handler.NopStatsLog{}
		producer sarama.AsyncProducer
	)
	if cfg.Kafka.Enabled() {
		producer, err = kafka.NewAsyncProducer(cfg.Kafka)
		if err != nil {
			log.Fatal("kafka.NewAsyncProducer", zap.Error(err))
		}
		statsLog = handler.NewStatsLog(producer, kafka.StatsTopic)
	}

	h := handler.New(svc, auth.NewHeaderResolver(), statsLog, log)
	srv := server.NewServer(cfg.Server, h.NewRouter())
	log.Info("http server start ON: ",
		zap.String("addr",
			net.JoinHostPort(cfg.Server.Host, cfg.Server.Port)))

	g := new(errgroup.Group)
	g.Go(func() error {
		return srv.Run()
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	termSig := <-sig

	log.Debug("Graceful shutdown", zap.Any("signal", termSig))

	closeCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
	defer cancel()

	if err = srv.Stop(closeCtx); err != nil {
		log.DPanic("srv.Stop", zap.Error(err))
	}
	_ = g.Wait()
	if producer != nil {
		_ = producer.Close()
	}
	db.Close()
	log.Info("Graceful shutdown finished")
}
