// Package configs provides the embedded starter configuration template.
//
// The template is embedded at build time so 'caseflow config init' can
// write a commented caseflow.yaml without any files shipped alongside
// the binary.
package configs

import _ "embed"

// ConfigTemplate is the commented starter caseflow.yaml.
//
//go:embed caseflow.example.yaml
var ConfigTemplate string
