package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
)

// TaskQueue is the Temporal task queue the conqueror worker polls.
const TaskQueue = "checkin-conquests"

// ConquestWorkflow records a conquest award and notifies the user. If the
// notification fails, the award is deleted (saga compensation).
func ConquestWorkflow(ctx workflow.Context, c domain.Conquest) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting conquest workflow", "userID", c.UserID, "station", c.Station)

	actOpts := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, actOpts)

	// Step 1: Persist the award
	if err := workflow.ExecuteActivity(ctx, "RecordConquest", c).Get(ctx, nil); err != nil {
		return err
	}

	// Step 2: Tell the user
	err := workflow.ExecuteActivity(ctx, "NotifyConqueror", c).Get(ctx, nil)
	if err != nil {
		logger.Warn("notification failed, compensating", "error", err)
		_ = workflow.ExecuteActivity(ctx, "RevokeConquest", c.ID).Get(ctx, nil)
		return err
	}

	logger.Info("Conquest awarded", "conquestID", c.ID)
	return nil
}

// WorkflowID derives a stable id so a redelivered event does not award twice.
func WorkflowID(c domain.Conquest) string {
	return "conquest-" + c.ID
}
