package config

import "os"

// ExpandEnv expands environment variables in YAML content using Go's
// standard library. Supports both ${VAR} and $VAR syntax (standard
// shell-style).
//
// Examples:
//   - ${LLM_API_KEY}       -> value of LLM_API_KEY
//   - $DB_HOST:$DB_PORT    -> hostname:port, both expanded
//
// Missing variables expand to the empty string; the defaults merge
// treats an empty field as unset, so the built-in default applies.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
