package models

import (
	"time"
)

// ClientState is a durable key/value record for client side state such as the session
type ClientState struct {
	Key       string    `gorm:"primaryKey" json:"key"`
	ValueEnc  string    `gorm:"type:text;not null;column:value_enc" json:"-"` // Encrypted, never expose in JSON
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (ClientState) TableName() string {
	return "client_state"
}
