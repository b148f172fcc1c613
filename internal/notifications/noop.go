package notifications

import (
	"context"

	"github.com/senyabanana/escrow-service/internal/models"
)

// NoopDispatcher используется, когда Redis/asynq не сконфигурирован.
type NoopDispatcher struct{}

// NewNoopDispatcher создает новый экземпляр NoopDispatcher.
func NewNoopDispatcher() *NoopDispatcher {
	return &NoopDispatcher{}
}

// Dispatch подтверждает отправку, ничего не делая.
func (d *NoopDispatcher) Dispatch(ctx context.Context, kind models.NotificationKind, payload Payload) error {
	return nil
}

var _ Dispatcher = (*NoopDispatcher)(nil)
