package security

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/doeshing/genosma/assets"
	"github.com/doeshing/genosma/internal/domain"
	"github.com/doeshing/genosma/internal/pkg/filesystem"
)

// RiskPattern describes a regex-based classification rule.
type RiskPattern struct {
	Pattern string `yaml:"pattern"`
	Tier    string `yaml:"tier"`
	Message string `yaml:"message"`
}

// RulesFile is the YAML schema root.
type RulesFile struct {
	Rules struct {
		RiskPatterns []RiskPattern `yaml:"risk_patterns"`
	} `yaml:"rules"`
}

type compiledPattern struct {
	re   *regexp.Regexp
	tier domain.RiskTier
	rule RiskPattern
}

// ResolveRulesPath expands the configured rules path, defaulting to
// ~/.genosma/risk_rules.yaml.
func ResolveRulesPath(path string) string {
	if path == "" {
		return filesystem.DataPath("risk_rules.yaml")
	}
	return filesystem.ExpandPath(path)
}

// loadRules reads the rules file, falling back to the embedded defaults when
// the file is missing or lists no patterns.
func loadRules(path string) (RulesFile, error) {
	var rules RulesFile
	data, err := os.ReadFile(ResolveRulesPath(path))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return RulesFile{}, err
		}
		return defaultRules()
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse rules: %w", err)
	}
	if len(rules.Rules.RiskPatterns) == 0 {
		return defaultRules()
	}
	return rules, nil
}

func defaultRules() (RulesFile, error) {
	var rules RulesFile
	if err := yaml.Unmarshal(assets.DefaultRiskRulesYAML, &rules); err != nil {
		return RulesFile{}, fmt.Errorf("parse embedded rules: %w", err)
	}
	return rules, nil
}

// compile orders patterns HIGH, MEDIUM, LOW while keeping file order within
// a tier, so evaluation can stop at the first match.
func compile(rules RulesFile) ([]compiledPattern, error) {
	buckets := map[domain.RiskTier][]compiledPattern{}
	for _, pattern := range rules.Rules.RiskPatterns {
		tier, ok := domain.ParseRiskTier(pattern.Tier)
		if !ok {
			return nil, fmt.Errorf("rule %q: unknown tier %q", pattern.Pattern, pattern.Tier)
		}
		re, err := regexp.Compile(pattern.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", pattern.Pattern, err)
		}
		buckets[tier] = append(buckets[tier], compiledPattern{re: re, tier: tier, rule: pattern})
	}
	var ordered []compiledPattern
	for _, tier := range []domain.RiskTier{domain.RiskHigh, domain.RiskMedium, domain.RiskLow} {
		ordered = append(ordered, buckets[tier]...)
	}
	return ordered, nil
}

func firstMatch(patterns []compiledPattern, tier domain.RiskTier, command string) (compiledPattern, bool) {
	for _, p := range patterns {
		if p.tier == tier && p.re.MatchString(strings.TrimSpace(command)) {
			return p, true
		}
	}
	return compiledPattern{}, false
}

// firstMatchIn tries every script of a command line in order.
func firstMatchIn(patterns []compiledPattern, tier domain.RiskTier, scripts []string) (compiledPattern, bool) {
	for _, script := range scripts {
		if p, ok := firstMatch(patterns, tier, script); ok {
			return p, true
		}
	}
	return compiledPattern{}, false
}
