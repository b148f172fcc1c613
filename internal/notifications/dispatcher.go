package notifications

import (
	"context"

	"github.com/senyabanana/escrow-service/internal/models"
)

// Типы задач очереди для каждого вида уведомления.
const (
	TypeProposalAccepted = "escrow:proposal_accepted"
	TypeReleaseRequested = "escrow:release_requested"
	TypePaymentReleased  = "escrow:payment_released"
)

// Payload - данные уведомления, передаваемые обработчику задачи.
type Payload struct {
	ProjectID    string  `json:"project_id"`
	LedgerID     string  `json:"ledger_id"`
	ClientID     string  `json:"client_id"`
	FreelancerID string  `json:"freelancer_id"`
	Amount       float64 `json:"amount"`
}

// Dispatcher отправляет уведомление о побочном эффекте. Подтверждённая
// отправка (nil) позволяет оркестратору выставить идемпотентный флаг.
type Dispatcher interface {
	Dispatch(ctx context.Context, kind models.NotificationKind, payload Payload) error
}

// TaskTypeFor возвращает тип задачи очереди для вида уведомления.
func TaskTypeFor(kind models.NotificationKind) (string, bool) {
	switch kind {
	case models.ProposalAcceptedNotification:
		return TypeProposalAccepted, true
	case models.ReleaseRequestedNotification:
		return TypeReleaseRequested, true
	case models.PaymentReleasedNotification:
		return TypePaymentReleased, true
	}
	return "", false
}
