package models

// BidDecisionRequest - запрос клиента на принятие или отклонение предложения.
type BidDecisionRequest struct {
	ClientID string `json:"clientId" validate:"required,uuid4"`
}

// FundEscrowRequest - запрос клиента на финансирование эскроу.
type FundEscrowRequest struct {
	BidID    string `json:"bidId" validate:"required,uuid4"`
	ClientID string `json:"clientId" validate:"required,uuid4"`
}

// ProgressRequest - запрос исполнителя на обновление прогресса.
type ProgressRequest struct {
	FreelancerID string `json:"freelancerId" validate:"required,uuid4"`
	Progress     int    `json:"progress" validate:"min=0,max=100"`
}

// ApproveRequest - запрос клиента на одобрение выполненной работы.
type ApproveRequest struct {
	ClientID string `json:"clientId" validate:"required,uuid4"`
}

// ReleaseRequest - запрос оператора на выплату.
type ReleaseRequest struct {
	OperatorID string `json:"operatorId" validate:"required,uuid4"`
}

// ReconcileRequest - запрос оператора на внеочередную сверку.
type ReconcileRequest struct {
	OperatorID string `json:"operatorId" validate:"required,uuid4"`
}
