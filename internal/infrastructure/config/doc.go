// Package config handles loading and validating the Roku service configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (GRAYLOGIC_ROKU_*)
//   - Validation of required fields
//
// Sensitive values (MQTT password, InfluxDB token, JWT secret) should be
// set via environment variables or a .env file rather than the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Protocols.Roku.ConfigFile)
package config
