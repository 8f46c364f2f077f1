package console

import "fmt"

// Frame tags. The alert tag prefixes every outbound alert; the validation tag
// may prefix inbound decisions.
const (
	AlertTag      = "victim_goal"
	ValidationTag = "victim_validation"
)

// Default decision tokens, as sent by the operator console.
const (
	DefaultConfirmToken = "true"
	DefaultRejectToken  = "false"
)

// AlertsChannel returns the Pub/Sub channel alerts are broadcast on.
// Pattern: vigil:{instance_name}:victim_alerts
func AlertsChannel(instanceName string) string {
	return fmt.Sprintf("vigil:%s:victim_alerts", instanceName)
}

// DecisionsChannel returns the Pub/Sub channel operator decisions arrive on.
// Pattern: vigil:{instance_name}:victim_validation
func DecisionsChannel(instanceName string) string {
	return fmt.Sprintf("vigil:%s:%s", instanceName, ValidationTag)
}
