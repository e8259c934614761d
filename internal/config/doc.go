// Package config loads the gosession-server configuration.
//
// Sources are layered: built-in defaults, then an optional YAML file, then
// environment variables (after a .env file, if one is found, has been
// loaded into the environment). Later sources win.
package config
