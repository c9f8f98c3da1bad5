// Package configs provides the embedded configuration templates written by
// `spanlabel config init`.
//
// Configuration hierarchy (see internal/config Load):
//  1. Hardcoded defaults (config.NewConfig)
//  2. User config (~/.config/spanlabel/config.yaml)
//  3. Project config (.spanlabel.yaml)
//  4. Environment variables (SPANLABEL_*)
package configs

import _ "embed"

// UserConfigTemplate is written to ~/.config/spanlabel/config.yaml.
// It holds settings that apply to every project on this machine.
//
//go:embed user-config.example.yaml
var UserConfigTemplate string

// ProjectConfigTemplate is written to .spanlabel.yaml in the project root.
//
//go:embed project-config.example.yaml
var ProjectConfigTemplate string
