// Package mqtt provides MQTT connectivity for Gray Logic Fleet.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and subscription restore
//   - Last Will and Testament (LWT) on {prefix}/system/status
//   - Publishing fleet events to {prefix}/device/{serial}/{event}
//   - Device self-reports received on {prefix}/report/{serial}
//
// Devices that cannot reach the HTTP API (or prefer a persistent broker
// session) publish {"serial":"...","ip_address":"..."} to their report
// topic. Both fields are optional; a missing serial is taken from the
// topic's last level.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	client.SetLogger(logger)
//	reconciler.SetEventSink(mqtt.NewEventSink(client, client.Topics(), client.QoS()))
//	err = client.SubscribeReports(reconciler)
package mqtt
