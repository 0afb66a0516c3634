// Package mqtt connects pinforge to an MQTT broker.
//
// It manages:
//   - The broker connection with auto-reconnect and restored subscriptions
//   - The retained system status, with a Last Will for unclean exits
//   - Retained per-project allocation summaries (project.ResultPublisher)
//   - Ad-hoc allocation requests answered on a per-request response topic
//
// # Topics
//
//	pinforge/system/status                    retained online/offline status
//	pinforge/allocation/<project_id>          retained project.Event JSON
//	pinforge/request/allocate/<request_id>    {"spec": {...}}
//	pinforge/response/allocate/<request_id>   {"request_id", "ok", "error" | "result"}
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	service.SetPublisher(client)
//	responder := mqtt.NewAllocationResponder(service, client, byte(cfg.MQTT.QoS))
//	if err := responder.Start(client); err != nil {
//	    return err
//	}
//
// Use TLS (broker.tls) for anything but a local broker. Payloads are not
// encrypted beyond the transport.
package mqtt
