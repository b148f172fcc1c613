package models

import "time"

type BidStatus string // Статус предложения

const (
	PendingBid  BidStatus = "pending"  // Предложение ожидает решения
	AcceptedBid BidStatus = "accepted" // Предложение принято
	RejectedBid BidStatus = "rejected" // Предложение отклонено
)

// Bid представляет модель предложения фрилансера по проекту.
type Bid struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"projectId"`
	FreelancerID string    `json:"freelancerId"`
	Amount       float64   `json:"amount"`
	Proposal     string    `json:"proposal"`
	Status       BidStatus `json:"status"`
	SubmittedAt  time.Time `json:"submittedAt"`
}

// BidRequest представляет структуру запроса для создания предложения.
type BidRequest struct {
	FreelancerID string  `json:"freelancerId" validate:"required,uuid4"`
	Amount       float64 `json:"amount" validate:"required,gt=0"`
	Proposal     string  `json:"proposal" validate:"required"`
}

// BidDecisionSet описывает полный набор изменений списка предложений при
// принятии одного из них: принятое предложение, все отклоняемые и назначение
// исполнителя. Набор применяется к проекту одной атомарной записью.
type BidDecisionSet struct {
	ProjectID    string   `json:"projectId"`
	AcceptedID   string   `json:"acceptedId"`
	FreelancerID string   `json:"freelancerId"`
	RejectedIDs  []string `json:"rejectedIds"`
}
