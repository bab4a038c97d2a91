// flowkit-worker — одноразовый процесс агента.
//
// Worker:
//   - Читает TASK_ID и тип из окружения
//   - Загружает task из хранилища состояния
//   - Выполняет обработчик (list, map, reduce)
//   - Записывает ровно один исход: результат или ошибку
//   - Дублирует исход в RabbitMQ, если задан RABBITMQ_URL
//
// Код выхода 1 только если исход записать не удалось.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Flowkit/internal/mq"
	"github.com/shaiso/Flowkit/internal/store"
	"github.com/shaiso/Flowkit/internal/telemetry"
	"github.com/shaiso/Flowkit/internal/worker"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := telemetry.SetupLogger()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := worker.ConfigFromEnv()
	if err != nil {
		logger.Error("invalid worker environment", "error", err)
		return 1
	}
	logger = telemetry.WithTaskID(logger, cfg.TaskID)
	logger.Info("starting flowkit-worker", "task_type", cfg.TaskType)

	rdb, err := store.Connect(ctx)
	if err != nil {
		logger.Error("failed to connect to state store", "error", err)
		return 1
	}
	st := store.New(rdb, store.WithLogger(logger))
	defer st.Close()

	opts := []worker.Option{worker.WithLogger(logger)}

	// RabbitMQ опционален: исход в хранилище пишется в любом случае
	if url := os.Getenv("RABBITMQ_URL"); url != "" {
		conn, err := mq.Dial(url, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, outcome mirroring disabled", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			opts = append(opts, worker.WithMirror(mq.NewPublisher(conn, logger)))
		}
	}

	if port := os.Getenv("WORKER_METRICS_PORT"); port != "" {
		srv := &http.Server{Addr: ":" + port, Handler: metricsMux()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Warn("metrics server error", "error", err)
			}
		}()
		defer srv.Close()
	}

	report, err := worker.New(cfg, st, opts...).Run(ctx)
	if err != nil {
		logger.Error("worker failed", "error", err)
		return 1
	}

	logger.Info("flowkit-worker finished",
		"outcome", report.Outcome,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return 0
}

func metricsMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}
