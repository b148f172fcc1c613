package models

// Коды причин ошибок, видимые вызывающей стороне.
const (
	ReasonForbidden       = "forbidden"
	ReasonNotFound        = "not_found"
	ReasonInvalidState    = "invalid_state"
	ReasonDuplicateBid    = "duplicate_bid"
	ReasonInvalidInput    = "invalid_input"
	ReasonAlreadyFunded   = "already_funded"
	ReasonAlreadyReleased = "already_released"
)

// ErrorResponse описывает ошибку с HTTP-кодом, причиной и сообщением.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Reason     string `json:"reason"`
	Message    string `json:"message"`
}

// NewErrorResponse создает новую ошибку с кодом, причиной и сообщением.
func NewErrorResponse(statusCode int, reason, message string) *ErrorResponse {
	return &ErrorResponse{
		StatusCode: statusCode,
		Reason:     reason,
		Message:    message}
}

// Реализация метода Error() для удовлетворения интерфейса error.
func (e *ErrorResponse) Error() string {
	return e.Message
}
