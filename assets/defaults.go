package assets

import (
	_ "embed"
)

// DefaultConfigYAML contains the embedded default configuration.
//
//go:embed defaults/config.yaml
var DefaultConfigYAML []byte

// DefaultRiskRulesYAML contains the embedded default risk classification rules.
//
//go:embed defaults/risk_rules.yaml
var DefaultRiskRulesYAML []byte
