package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/senyabanana/escrow-service/internal/documents"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// Worker обрабатывает задачи уведомлений из очереди asynq.
type Worker struct {
	srv      *asynq.Server
	mux      *asynq.ServeMux
	renderer documents.Renderer
	log      zerolog.Logger
}

// NewWorker создает сервер asynq и регистрирует обработчики. Запуск через Run().
func NewWorker(redisOpt asynq.RedisClientOpt, renderer documents.Renderer, log zerolog.Logger) *Worker {
	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 2,
		LogLevel:    asynq.InfoLevel,
	})
	mux := asynq.NewServeMux()
	w := &Worker{srv: srv, mux: mux, renderer: renderer, log: log}
	mux.HandleFunc(TypeProposalAccepted, w.handleProposalAccepted)
	mux.HandleFunc(TypeReleaseRequested, w.handleReleaseRequested)
	mux.HandleFunc(TypePaymentReleased, w.handlePaymentReleased)
	return w
}

func decodePayload(t *asynq.Task) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return Payload{}, err
	}
	return p, nil
}

func (w *Worker) handleProposalAccepted(ctx context.Context, t *asynq.Task) error {
	p, err := decodePayload(t)
	if err != nil {
		w.log.Error().Err(err).Msg("proposal accepted task payload invalid")
		return err
	}
	// Письмо исполнителю; реальная доставка живёт за SMTP-границей.
	w.log.Info().
		Str("project_id", p.ProjectID).
		Str("freelancer_id", p.FreelancerID).
		Float64("amount", p.Amount).
		Msg("proposal accepted email (log only; configure SMTP for real email)")
	return nil
}

func (w *Worker) handleReleaseRequested(ctx context.Context, t *asynq.Task) error {
	p, err := decodePayload(t)
	if err != nil {
		w.log.Error().Err(err).Msg("release requested task payload invalid")
		return err
	}
	w.log.Info().
		Str("project_id", p.ProjectID).
		Str("ledger_id", p.LedgerID).
		Float64("amount", p.Amount).
		Msg("payment release requested, notifying payout operator")
	return nil
}

func (w *Worker) handlePaymentReleased(ctx context.Context, t *asynq.Task) error {
	p, err := decodePayload(t)
	if err != nil {
		w.log.Error().Err(err).Msg("payment released task payload invalid")
		return err
	}
	ref, err := w.renderer.Render(ctx, documents.KindPayoutConfirmation, map[string]string{
		"ledger_id":     p.LedgerID,
		"project_id":    p.ProjectID,
		"freelancer_id": p.FreelancerID,
		"amount":        fmt.Sprintf("%.2f", p.Amount),
	})
	if err != nil {
		// Документ не обязателен для уведомления.
		w.log.Warn().Err(err).Str("ledger_id", p.LedgerID).Msg("payout confirmation render failed")
	}
	event := w.log.Info().
		Str("project_id", p.ProjectID).
		Str("freelancer_id", p.FreelancerID).
		Float64("amount", p.Amount)
	if ref != nil {
		event = event.Str("document_uri", ref.URI)
	}
	event.Msg("payment released email (log only; configure SMTP for real email)")
	return nil
}

// Run блокируется до остановки сервера.
func (w *Worker) Run() error {
	return w.srv.Run(w.mux)
}

// Shutdown останавливает обработку задач.
func (w *Worker) Shutdown() {
	w.srv.Shutdown()
}
