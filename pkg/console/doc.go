// Package console provides the wire types and Redis Pub/Sub client used to talk
// to the human operator console.
//
// # Overview
//
// The operator console is a separate program that watches for victim alerts and
// answers each one with a confirm/reject decision. The bridge and the console
// never call each other directly: alerts are broadcast on one channel and
// decisions come back on another. This package owns both directions of that
// exchange and nothing else; turning it into a blocking call is the job of
// internal/validator.
//
// # Wire format
//
// Alerts are text frames of the form
//
//	victim_goal {"id":"v1","x":1,"y":2,"probability":0.8,"sensors":["thermal","co2"]}
//
// The JSON object carries exactly the keys id, x, y, probability and sensors,
// plus request_id when correlation is enabled.
//
// Decisions are literal tokens, "true" or "false" by default. A decision may be
// prefixed by the victim_validation tag and may be followed by the request_id
// of the alert it answers:
//
//	true
//	victim_validation false
//	true 3b8e1c4a-5d1f-4c1e-9d0b-0f5f2b7e6a11
//
// # Redis schema
//
// All channels are namespaced by instance name so several bridges can share a
// Redis server:
//
//	Alerts:    vigil:{instance_name}:victim_alerts
//	Decisions: vigil:{instance_name}:victim_validation
package console
