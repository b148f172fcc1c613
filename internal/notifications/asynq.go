package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/senyabanana/escrow-service/internal/models"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// TaskDispatcher отправляет уведомления через очередь задач asynq.
type TaskDispatcher struct {
	client *asynq.Client
	log    zerolog.Logger
}

// NewTaskDispatcher создает новый экземпляр TaskDispatcher поверх Redis.
func NewTaskDispatcher(redisOpt asynq.RedisClientOpt, log zerolog.Logger) *TaskDispatcher {
	return &TaskDispatcher{client: asynq.NewClient(redisOpt), log: log}
}

// Close закрывает клиент очереди.
func (d *TaskDispatcher) Close() error {
	return d.client.Close()
}

// Dispatch ставит задачу уведомления в очередь. Ошибка возвращается вызывающей
// стороне как неподтверждённая отправка; флаг идемпотентности не выставляется.
func (d *TaskDispatcher) Dispatch(ctx context.Context, kind models.NotificationKind, payload Payload) error {
	taskType, ok := TaskTypeFor(kind)
	if !ok {
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	task := asynq.NewTask(taskType, body)
	_, err = d.client.EnqueueContext(ctx, task, asynq.TaskID(fmt.Sprintf("%s:%s", taskType, payload.LedgerID)))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		// Задача уже в очереди - повторная отправка считается подтверждённой.
		return nil
	}
	if err != nil {
		d.log.Warn().Err(err).Str("kind", string(kind)).Str("ledger_id", payload.LedgerID).Msg("enqueue notification failed")
		return err
	}
	return nil
}

var _ Dispatcher = (*TaskDispatcher)(nil)
