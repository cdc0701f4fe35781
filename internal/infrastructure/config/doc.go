// Package config handles loading and validating dubswitch configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Environment variable overrides (DUBSWITCH_* prefix)
//   - Validation of all configuration values
//   - Sensible defaults for optional settings
//
// # Configuration Loading Order
//
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
