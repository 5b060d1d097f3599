// Package configs embeds the configuration template written by
// `claimsync config init`.
//
// The template lists every key with its default value. Loading order is
// documented on config.Load.
package configs

import _ "embed"

// ConfigTemplate is the commented user configuration template.
//
//go:embed config.example.yaml
var ConfigTemplate string
