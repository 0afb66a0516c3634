// Package influxdb records pinforge allocation metrics in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 library. Each allocation,
// saved project or preview, becomes a point in the allocation_runs
// measurement, so pin pressure per MCU can be charted over time. The
// catalog size at startup goes to catalog_loads.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics are optional
//	}
//	defer client.Close()
//
//	service.AddRecorder(client)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are non-blocking and
// batched according to batch_size and flush_interval; write errors are
// delivered to the SetOnError callback.
package influxdb
