// Package config loads playrelay's TOML configuration file, applies
// RELAY_GS_* environment overrides, and validates the result.
//
// # Loading
//
//	cfg, err := config.Load("config.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A missing file causes Load to write config.Default() to disk and
// return it; a present file that fails validation aborts with a
// wrapped error. Every field is documented on the Config struct.
package config
