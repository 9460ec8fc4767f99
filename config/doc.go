// Package config loads service settings from defaults, an optional YAML file,
// a .env file and the process environment, in that order of precedence.
package config
