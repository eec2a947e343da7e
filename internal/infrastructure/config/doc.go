// Package config handles loading and validating Gray Logic Fleet configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file for secrets
//   - Overriding with FLEET_* environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Database and broker passwords should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Database.Driver)
package config
