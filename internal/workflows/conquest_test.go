package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.temporal.io/sdk/testsuite"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/workflows"
)

type memConquests struct {
	mu      sync.Mutex
	created []string
	deleted []string
}

func (m *memConquests) Create(ctx context.Context, c *domain.Conquest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.created = append(m.created, c.ID)
	return nil
}

func (m *memConquests) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *memConquests) ListByUser(ctx context.Context, userID string) ([]domain.Conquest, error) {
	return nil, nil
}

type mockNotifier struct {
	sendPushFn func(ctx context.Context, userID, title, body string) error
}

func (m *mockNotifier) SendPush(ctx context.Context, userID, title, body string) error {
	if m.sendPushFn != nil {
		return m.sendPushFn(ctx, userID, title, body)
	}
	return nil
}

func sampleConquest() domain.Conquest {
	return domain.Conquest{
		ID:          "c-1",
		UserID:      "42",
		Station:     "Shibuya Station",
		VenueCount:  2,
		ConqueredAt: time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC),
	}
}

func TestConquestWorkflow_Success(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	repo := &memConquests{}
	var pushedTo string
	env.RegisterActivity(&workflows.ConquestActivities{
		Conquests: usecases.NewConquestService(repo, nil),
		Notifier: &mockNotifier{sendPushFn: func(ctx context.Context, userID, title, body string) error {
			pushedTo = userID
			return nil
		}},
	})

	env.ExecuteWorkflow(workflows.ConquestWorkflow, sampleConquest())

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if err := env.GetWorkflowError(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.created) != 1 || repo.created[0] != "c-1" {
		t.Errorf("expected c-1 to be recorded, got %v", repo.created)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("expected no revocation, got %v", repo.deleted)
	}
	if pushedTo != "42" {
		t.Errorf("expected push to user 42, got %q", pushedTo)
	}
}

func TestConquestWorkflow_NotifyFailureRevokes(t *testing.T) {
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()

	repo := &memConquests{}
	env.RegisterActivity(&workflows.ConquestActivities{
		Conquests: usecases.NewConquestService(repo, nil),
		Notifier: &mockNotifier{sendPushFn: func(ctx context.Context, userID, title, body string) error {
			return errors.New("push gateway down")
		}},
	})

	env.ExecuteWorkflow(workflows.ConquestWorkflow, sampleConquest())

	if !env.IsWorkflowCompleted() {
		t.Fatal("workflow did not complete")
	}
	if env.GetWorkflowError() == nil {
		t.Fatal("expected workflow error")
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != "c-1" {
		t.Errorf("expected c-1 to be revoked, got %v", repo.deleted)
	}
}

func TestWorkflowID(t *testing.T) {
	if got := workflows.WorkflowID(sampleConquest()); got != "conquest-c-1" {
		t.Errorf("expected conquest-c-1, got %s", got)
	}
}
