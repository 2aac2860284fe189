// Package config handles loading and validating plantnode configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Loading broker credentials from an optional .env file
//   - Overriding with PLANTNODE_* environment variables
//   - Validation of required fields
//
// Durations are written as Go duration strings ("60s", "500ms").
//
// Security Considerations:
//   - The broker password and InfluxDB token should come from the
//     environment or .env, not from the committed config file
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Device.ID)
package config
