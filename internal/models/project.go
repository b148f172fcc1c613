package models

import "time"

type ProjectStatus string // Статус проекта

const (
	OpenProject       ProjectStatus = "open"        // Проект открыт для предложений
	InProgressProject ProjectStatus = "in_progress" // Работа по проекту идёт
	CompletedProject  ProjectStatus = "completed"   // Работа завершена
	CancelledProject  ProjectStatus = "cancelled"   // Проект отменён
)

// Project представляет модель проекта с вложенным списком предложений.
type Project struct {
	ID                 string        `json:"id"`
	ClientID           string        `json:"clientId"`
	Title              string        `json:"title"`
	Description        string        `json:"description"`
	Status             ProjectStatus `json:"status"`
	Progress           int           `json:"progress"`
	AssignedFreelancer *string       `json:"assignedFreelancer,omitempty"`
	ClientApproved     bool          `json:"clientApproved"`
	PaymentReleased    bool          `json:"paymentReleased"`
	CompletedAt        *time.Time    `json:"completedAt,omitempty"`
	Version            int           `json:"version"`
	CreatedAt          time.Time     `json:"createdAt"`
	Bids               []Bid         `json:"bids,omitempty"`
}

// ProjectRequest представляет структуру запроса для создания проекта.
type ProjectRequest struct {
	ClientID    string `json:"clientId" validate:"required,uuid4"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required"`
}
