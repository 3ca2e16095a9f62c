// Package bridge connects the thermostat to the MQTT bus.
//
// Receive side: MQTT handlers only enqueue messages; RunReceive routes
// them. Orders on the command topic go to the device (c, f, p) or ask for
// the cached status (s). The presence topic toggles presence. The room
// sensor's JSON telemetry feeds the control loop. Settings topics
// (<prefix>/set/<field>) reach the thermostat setters.
//
// Publish side: RunPublish renders device events and status snapshots as
// French log lines on the log topic:
//
//	pong
//	allumage du chauffe-eau
//	extinction du chauffe-eau
//	présent: true, relay: Hot, garage: 18.2°C, 61.0%
//	présent: false, relay: Cold, garage: error Bus
package bridge
