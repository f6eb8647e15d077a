package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	NotificationStatusPending = "pending"
	NotificationStatusSuccess = "success"
	NotificationStatusError   = "error"
)

// Notification tracks one wallet transaction started from an action flow.
type Notification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner   string `gorm:"index;size:42;not null" json:"owner"` // lowercase
	ChainID uint64 `gorm:"index;not null" json:"chain_id"`
	Action  string `gorm:"size:20;not null" json:"action"`
	Solver  string `gorm:"size:40" json:"solver"`
	Status  string `gorm:"index;size:20;default:'pending'" json:"status"`

	Vault      string `gorm:"size:42" json:"vault"`
	FromToken  string `gorm:"size:42" json:"from_token"`
	FromAmount string `gorm:"size:80" json:"from_amount"`
	ToToken    string `gorm:"size:42" json:"to_token"`
	ToAmount   string `gorm:"size:80" json:"to_amount"`

	TxHash       string  `gorm:"size:66;index" json:"tx_hash,omitempty"`
	BlockNumber  uint64  `json:"block_number,omitempty"`
	ErrorMessage string  `gorm:"type:text" json:"error_message,omitempty"`
	Metadata     JSONMap `gorm:"type:text" json:"metadata,omitempty"`

	SettledAt *time.Time `json:"settled_at,omitempty"`
}

func (*Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.Status == "" {
		n.Status = NotificationStatusPending
	}
	return nil
}

func (n *Notification) IsPending() bool {
	return n.Status == NotificationStatusPending
}

func (n *Notification) IsSettled() bool {
	return n.Status == NotificationStatusSuccess || n.Status == NotificationStatusError
}

func (n *Notification) MarkAsSuccess(txHash string, block uint64) {
	now := time.Now().UTC()
	n.Status = NotificationStatusSuccess
	n.TxHash = txHash
	n.BlockNumber = block
	n.SettledAt = &now
}

func (n *Notification) MarkAsError(txHash, errorMsg string) {
	now := time.Now().UTC()
	n.Status = NotificationStatusError
	n.TxHash = txHash
	n.ErrorMessage = errorMsg
	n.SettledAt = &now
}
