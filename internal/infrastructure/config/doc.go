// Package config handles loading and validating pinforge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (PINFORGE_*)
//   - Validation of required fields
//   - Default value handling
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
// set through the environment rather than the file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Service.Name)
package config
