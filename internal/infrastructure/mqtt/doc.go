// Package mqtt mirrors console state onto an MQTT broker.
//
// The mirror is publish-only and optional: when enabled, routing and
// channel-name changes are published retained so dashboards and other
// studio tooling can follow the console without speaking OSC themselves.
// A Last Will message flips the status topic to offline when the service
// dies unexpectedly.
package mqtt
