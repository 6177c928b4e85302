package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/domain"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/ports"
	"github.com/unnshoyuukou4515/izakaya-checkin/internal/core/usecases"
)

// ConquestActivities holds the activity implementations for the conquest workflow.
type ConquestActivities struct {
	Conquests *usecases.ConquestService
	Notifier  ports.NotificationService
}

// RecordConquest persists the award.
func (a *ConquestActivities) RecordConquest(ctx context.Context, c domain.Conquest) error {
	return a.Conquests.Record(ctx, &c)
}

// NotifyConqueror sends the user a push notification about the award.
func (a *ConquestActivities) NotifyConqueror(ctx context.Context, c domain.Conquest) error {
	title := "Area conquered!"
	body := fmt.Sprintf("You have visited all %d izakayas around %s.", c.VenueCount, c.Station)
	if a.Notifier == nil {
		slog.Info("push (no notifier)", "user_id", c.UserID, "title", title, "body", body)
		return nil
	}
	return a.Notifier.SendPush(ctx, c.UserID, title, body)
}

// RevokeConquest removes an award (saga compensation / rollback).
func (a *ConquestActivities) RevokeConquest(ctx context.Context, id string) error {
	if err := a.Conquests.Revoke(ctx, id); err != nil {
		return err
	}
	slog.Info("conquest revoked (saga compensation)", "conquest_id", id)
	return nil
}
