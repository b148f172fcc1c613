package models

import "time"

type Role string // Роль участника платформы

const (
	ClientRole     Role = "client"     // Клиент, владелец проектов
	FreelancerRole Role = "freelancer" // Исполнитель, подаёт предложения
	OperatorRole   Role = "operator"   // Оператор выплат платформы
)

// User представляет участника платформы.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}
