package models

import (
	"math"
	"time"
)

type (
	PaymentStatus       string // Статус платежа по эскроу
	LedgerProjectStatus string // Зеркальный статус проекта в записи эскроу
)

const (
	PendingPayment  PaymentStatus = "pending"          // Платёж ещё не внесён
	EscrowDeposited PaymentStatus = "escrow_deposited" // Средства внесены на эскроу
	ReleasedPayment PaymentStatus = "released"         // Выплата исполнителю произведена
	RefundedPayment PaymentStatus = "refunded"         // Средства возвращены клиенту (споры, вне ядра)

	LedgerInProgress LedgerProjectStatus = "in_progress"
	LedgerCompleted  LedgerProjectStatus = "completed"
	LedgerApproved   LedgerProjectStatus = "approved"
	LedgerDisputed   LedgerProjectStatus = "disputed"
)

// CommissionRate - комиссия платформы от суммы принятого предложения.
const CommissionRate = 0.10

// NotificationKind - вид побочного эффекта, отмечаемого на записи эскроу.
type NotificationKind string

const (
	ProposalAcceptedNotification NotificationKind = "proposal_accepted"
	ReleaseRequestedNotification NotificationKind = "release_requested"
	PaymentReleasedNotification  NotificationKind = "payment_released"
)

// ClientApproval фиксирует одобрение выполненной работы клиентом.
type ClientApproval struct {
	Approved   bool       `json:"approved"`
	ApprovedAt *time.Time `json:"approvedAt,omitempty"`
}

// EmailNotifications хранит флаги уже отправленных уведомлений,
// каждый выставляется не более одного раза.
type EmailNotifications struct {
	ProposalAcceptedSent bool `json:"proposalAcceptedSent"`
	PaymentReleaseSent   bool `json:"paymentReleaseSent"`
	PaymentCompletedSent bool `json:"paymentCompletedSent"`
}

// LedgerEntry представляет финансовую запись эскроу по одному проекту.
// Создаётся при внесении средств и никогда не удаляется.
type LedgerEntry struct {
	ID                 string              `json:"id"`
	ProjectID          string              `json:"projectId"`
	ClientID           string              `json:"clientId"`
	FreelancerID       string              `json:"freelancerId"`
	BidAmount          float64             `json:"bidAmount"`
	PlatformCommission float64             `json:"platformCommission"`
	EscrowAmount       float64             `json:"escrowAmount"`
	PaymentStatus      PaymentStatus       `json:"paymentStatus"`
	ProjectStatus      LedgerProjectStatus `json:"projectStatus"`
	ClientApproval     ClientApproval      `json:"clientApproval"`
	EmailNotifications EmailNotifications  `json:"emailNotifications"`
	PaymentReleasedAt  *time.Time          `json:"paymentReleasedAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// Round2 округляет денежную сумму до двух знаков.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// ComputeCommission считает комиссию платформы от суммы предложения.
func ComputeCommission(bidAmount float64) float64 {
	return Round2(bidAmount * CommissionRate)
}

// ComputeEscrow считает полную сумму эскроу: ставка плюс комиссия.
func ComputeEscrow(bidAmount float64) float64 {
	return Round2(bidAmount + ComputeCommission(bidAmount))
}
