package config

import "os"

// ExpandEnv expands environment variables in YAML content using the
// standard shell-style $VAR / ${VAR} syntax. Missing variables expand to
// empty string — validation is what catches a required field left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
