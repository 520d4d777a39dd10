// Package config handles loading and validating the uplink switcher configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields and cross references (depends_on)
//   - Default value handling, including per-session switcher defaults
//
// Security Considerations:
//   - Broadcasting software passwords and broker credentials should be set
//     via environment variables (UPLINK_OBS_PASSWORD, UPLINK_MQTT_PASSWORD)
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range cfg.Sessions {
//	    fmt.Println(s.User, len(s.Switcher.StreamServers))
//	}
package config
