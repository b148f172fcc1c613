package documents

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Виды формируемых документов.
const (
	KindPayoutConfirmation = "payout_confirmation"
)

// DocumentRef - ссылка на сформированный документ.
type DocumentRef struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	URI       string    `json:"uri"`
	CreatedAt time.Time `json:"createdAt"`
}

// Renderer формирует долговечный документ по событию. Ошибка рендеринга
// не блокирует ни переход состояния, ни само уведомление.
type Renderer interface {
	Render(ctx context.Context, kind string, payload map[string]string) (*DocumentRef, error)
}

// LogRenderer пишет документ в лог и возвращает детерминированную ссылку.
// Реальная генерация PDF живёт за этой границей.
type LogRenderer struct {
	log zerolog.Logger
}

// NewLogRenderer создает новый экземпляр LogRenderer.
func NewLogRenderer(log zerolog.Logger) *LogRenderer {
	return &LogRenderer{log: log}
}

// Render формирует ссылку на документ и логирует его содержимое.
func (r *LogRenderer) Render(ctx context.Context, kind string, payload map[string]string) (*DocumentRef, error) {
	ref := DocumentRef{
		ID:        uuid.New().String(),
		Kind:      kind,
		URI:       fmt.Sprintf("documents://%s/%s", kind, payload["ledger_id"]),
		CreatedAt: time.Now().UTC(),
	}
	r.log.Info().Str("kind", kind).Str("uri", ref.URI).Fields(map[string]interface{}{"payload": payload}).Msg("document rendered (log only; configure a PDF backend for real documents)")
	return &ref, nil
}

var _ Renderer = (*LogRenderer)(nil)
