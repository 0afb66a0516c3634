// Package project stores named allocation projects and runs the pin
// allocator for them.
//
// A project is a Spec (target MCU, catalog sensor references, custom
// sensors, pin locks and constraints) plus a name. The Planner resolves a
// Spec against a catalog.Registry into the engine's inputs; the Service
// ties the Planner to a Repository and records every allocation as a Run.
//
// Catalog sensor ids may repeat in a Spec. Each repeat becomes its own
// instance: bme280, bme280_2, bme280_3 with names "BME280", "BME280 #2" and
// so on. Locks are keyed by instance id.
//
// After a project allocation the Service notifies the optional sinks:
// a ResultPublisher (MQTT), any MetricsRecorders (InfluxDB, Prometheus)
// and a Broadcaster (WebSocket). Sink errors are logged only.
package project
