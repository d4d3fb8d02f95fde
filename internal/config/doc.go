// Package config loads and validates the YAML configuration file and
// supports hot-reloading it while the daemon runs. Secrets never live in
// the file itself — the config names environment variables and the values
// are resolved at use time.
package config
