package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// TransactionsChangedMessage announces that an account's transactions were
// written. Consumers drop whatever they derived from the old set; the
// message carries no transaction data.
type TransactionsChangedMessage struct {
	AccountID string    `json:"account_id"`
	Count     int       `json:"count"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTransactionsChangedMessage stamps the message with the current time
func NewTransactionsChangedMessage(accountID string, count int) *TransactionsChangedMessage {
	return &TransactionsChangedMessage{
		AccountID: accountID,
		Count:     count,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *TransactionsChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// TransactionsChangedMessageFromJSON decodes a message body
func TransactionsChangedMessageFromJSON(data []byte) (*TransactionsChangedMessage, error) {
	var msg TransactionsChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Count < 0 {
		return nil, errors.New("negative transaction count")
	}
	return &msg, nil
}
