// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// Load applies no defaults; LoadAndValidate is what the binary uses.
package config
