package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType names what changed in a user's budget.
type EventType string

const (
	EventIncomeChanged   EventType = "income.changed"
	EventExpenseCreated  EventType = "expense.created"
	EventExpenseUpdated  EventType = "expense.updated"
	EventExpenseDeleted  EventType = "expense.deleted"
	EventCategoryChanged EventType = "category.changed"
	EventAccountChanged  EventType = "account.changed"
	EventExportRequested EventType = "export.requested"
	EventUserRegistered  EventType = "user.registered"
)

// BudgetEvent is published after every write to a user's budget. It carries
// only identifiers; consumers reload what they need from the database.
type BudgetEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	UserID    int64     `json:"user_id"`
	EntityID  int64     `json:"entity_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBudgetEvent(t EventType, userID, entityID int64) *BudgetEvent {
	return &BudgetEvent{
		ID:        uuid.NewString(),
		Type:      t,
		UserID:    userID,
		EntityID:  entityID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *BudgetEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetEventFromJSON decodes and checks an event body.
func BudgetEventFromJSON(data []byte) (*BudgetEvent, error) {
	var msg BudgetEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" || msg.UserID <= 0 {
		return nil, fmt.Errorf("incomplete budget event %q", msg.ID)
	}
	return &msg, nil
}

// PasswordResetMessage asks an external mailer to deliver a reset link.
type PasswordResetMessage struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Timestamp time.Time `json:"timestamp"`
}

func NewPasswordResetMessage(userID int64, username, token string, expiresAt time.Time) *PasswordResetMessage {
	return &PasswordResetMessage{
		ID:        uuid.NewString(),
		UserID:    userID,
		Username:  username,
		Token:     token,
		ExpiresAt: expiresAt.UTC(),
		Timestamp: time.Now().UTC(),
	}
}

func (m *PasswordResetMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// PasswordResetMessageFromJSON is what a mailer consuming the reset queue
// calls on each body.
func PasswordResetMessageFromJSON(data []byte) (*PasswordResetMessage, error) {
	var msg PasswordResetMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Token == "" || msg.UserID <= 0 {
		return nil, fmt.Errorf("incomplete password reset message %q", msg.ID)
	}
	return &msg, nil
}
