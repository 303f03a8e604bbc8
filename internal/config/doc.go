// Package config loads runtime configuration from multiple sources (.env file,
// environment variables, a YAML file, CLI flags) with precedence: CLI flags >
// YAML config > Environment variables > Defaults. String values in the YAML
// file may carry @env, @format and @math tokens; they are resolved before the
// file is decoded.
package config
