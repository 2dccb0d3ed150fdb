// Command gridlet-demo stands up a miniature cluster in-process, submits a
// sample job, and serves the debug inspector until interrupted.
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/gridlet/gridlet/internal/inspect"
	"github.com/gridlet/gridlet/internal/observability"
	"github.com/gridlet/gridlet/pkg/actor"
	"github.com/gridlet/gridlet/pkg/harness"
	"github.com/gridlet/gridlet/pkg/roles"
	"github.com/gridlet/gridlet/pkg/roles/worker"
)

func main() {
	addr := flag.String("addr", ":8080", "inspector listen address")
	workers := flag.Int("workers", 2, "number of workers to start")
	flag.Parse()

	logger, err := observability.Setup(observability.LogConfig{
		Level:       "info",
		Format:      "console",
		Development: true,
	})
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	sys := actor.NewLocal("gridlet-demo", logger)

	coord, err := harness.StartCoordinator(sys, nil, "demo")
	if err != nil {
		logger.Fatal("start coordinator", zap.Error(err))
	}
	for i := 0; i < *workers; i++ {
		if _, err := harness.StartWorker(ctx, sys, coord, nil, true, true,
			harness.WithWorkerExecutors(worker.EchoExecutor{})); err != nil {
			logger.Fatal("start worker", zap.Error(err))
		}
	}
	if _, err := harness.StartResourceManager(sys, coord.Ref, nil); err != nil {
		logger.Fatal("start resource manager", zap.Error(err))
	}

	job := roles.Job{
		Name: "demo-echo",
		Tasks: []roles.TaskSpec{
			{Handler: "echo", Payload: []byte("hello")},
			{Handler: "echo", Payload: []byte("gridlet")},
		},
	}
	result, err := harness.SubmitJobAndWait(ctx, sys, coord, job, nil)
	if err != nil {
		logger.Fatal("submit job", zap.Error(err))
	}
	logger.Info("sample job finished",
		zap.String("job", result.JobID), zap.Int("tasks", len(result.Results)))

	archive, _ := sys.Lookup("demo-archive")
	srv := &http.Server{Addr: *addr, Handler: inspect.NewRouter(sys, coord.Ref, archive)}
	go func() {
		logger.Info("inspector listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("inspector server", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	_ = sys.Shutdown(shutdownCtx)
}
