package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	enumspb "go.temporal.io/api/enums/v1"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	natsadapter "github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/nats"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/adapters/postgres"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/config"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/pkg/logging"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/workflows"
)

// conqueror consumes conquest events from JetStream and runs one
// ConquestWorkflow per award.
func main() {
	cfg, err := config.Load("izakaya-checkin-conqueror")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    slogAdapter{slog.Default()},
	})
	if err != nil {
		log.Fatalf("temporal client: %v", err)
	}
	defer c.Close()

	w := worker.New(c, workflows.TaskQueue, worker.Options{})
	w.RegisterWorkflow(workflows.ConquestWorkflow)
	w.RegisterActivity(&workflows.ConquestActivities{
		// The worker records awards itself; no publisher.
		Conquests: usecases.NewConquestService(postgres.NewConquestRepo(db), nil),
	})
	if err := w.Start(); err != nil {
		log.Fatalf("worker: %v", err)
	}
	defer w.Stop()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	err = sub.SubscribeConquests(ctx, func(ctx context.Context, cq *domain.Conquest) error {
		return startConquest(ctx, c, *cq)
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("conqueror worker started", "task_queue", workflows.TaskQueue)
	<-ctx.Done()
	slog.Info("conqueror stopping")
}

// startConquest starts the workflow for an award. Redelivered events map to
// the same workflow id and are accepted without starting a second run.
func startConquest(ctx context.Context, c client.Client, cq domain.Conquest) error {
	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:                    workflows.WorkflowID(cq),
		TaskQueue:             workflows.TaskQueue,
		WorkflowIDReusePolicy: enumspb.WORKFLOW_ID_REUSE_POLICY_REJECT_DUPLICATE,
	}, workflows.ConquestWorkflow, cq)
	if err != nil {
		var started *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &started) {
			slog.Debug("conquest workflow already started", "conquest_id", cq.ID)
			return nil
		}
		return err
	}
	slog.Info("conquest workflow started", "conquest_id", cq.ID, "user_id", cq.UserID,
		"workflow_id", run.GetID(), "run_id", run.GetRunID())
	return nil
}
