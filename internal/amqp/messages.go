package amqp

import (
	"encoding/json"
	"errors"
	"time"
)

// BackupRequestMessage asks the worker to push a user's local data to the
// remote backup. The worker reads the data itself, so the message stays small.
type BackupRequestMessage struct {
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

func NewBackupRequestMessage(userID string) *BackupRequestMessage {
	return &BackupRequestMessage{
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func (m *BackupRequestMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BackupRequestMessageFromJSON decodes a message and rejects one without a
// user id.
func BackupRequestMessageFromJSON(data []byte) (*BackupRequestMessage, error) {
	var msg BackupRequestMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.UserID == "" {
		return nil, errors.New("backup request without user id")
	}
	return &msg, nil
}
