// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and CODELAB_* environment variables. It
// covers server settings, sandbox execution limits, the language toolchains,
// the error explanation model and request rate limiting.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Execution timeout: %s\n", cfg.GetTimeout())
package config
