package sync

import (
	"encoding/json"
	"fmt"
)

// encodeTaskPayload serializes a task payload for the queue
func encodeTaskPayload(p TaskPayload) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal task payload: %w", err)
	}
	return data, nil
}

// DecodeTaskPayload deserializes a queue task payload
func DecodeTaskPayload(data []byte) (TaskPayload, error) {
	var p TaskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}
	return p, nil
}
