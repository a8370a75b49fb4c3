// Package configs provides the embedded configuration template for protoscope.
//
// The template is written by `protoscope config init` to the user config path
// (see internal/config GetUserConfigPath). It is also a valid project file
// when copied to protoscope.yaml.
package configs

import _ "embed"

// UserConfigTemplate is the commented starting point for a config file.
//
//go:embed protoscope.example.yaml
var UserConfigTemplate string
