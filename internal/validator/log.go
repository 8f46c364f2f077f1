package validator

import (
	"encoding/json"
	"log"
	"time"
)

// logEvent logs a structured event in JSON format.
func logEvent(instanceName, component, eventType string, data map[string]interface{}) {
	if data == nil {
		data = make(map[string]interface{})
	}
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = component
	data["event_type"] = eventType
	data["instance"] = instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
