// Package influxdb records device heartbeat telemetry in InfluxDB v2.
//
// Every RegisterDevice reconciliation becomes one device_heartbeat point:
//
//	device_heartbeat,serial=PI-001 ip_address="10.0.0.7",created=true <timestamp>
//
// The store keeps only the latest address per device; the points keep the
// history, which the management plane uses to spot devices that stopped
// reporting or keep changing address.
//
// Writes are non-blocking and batched. Asynchronous write errors are
// delivered to the callback set with SetOnError.
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	sinks = append(sinks, influxdb.NewHeartbeatSink(client))
package influxdb
