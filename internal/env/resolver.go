package env

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment identifies a deployment tier derived from the serving hostname.
type Environment string

const (
	Localhost Environment = "localhost"
	Staging   Environment = "staging"
	QA        Environment = "qa"
	UAT       Environment = "uat"
	Prod      Environment = "prod"
)

// Endpoints holds per-environment upstream URLs.
type Endpoints struct {
	WebhookURL string `yaml:"webhook_url"`
	APIBaseURL string `yaml:"api_base_url"`
}

// Policy centralizes environment-conditional behavior so call sites never
// re-derive "is this production" on their own.
type Policy struct {
	RequireToken        bool
	AllowEngineOverride bool
}

// Config is the resolved, immutable environment configuration for one
// process lifetime.
type Config struct {
	Environment Environment
	Endpoints   Endpoints
	Policy      Policy
}

var defaultEndpoints = map[Environment]Endpoints{
	Localhost: {WebhookURL: "https://elder-link-staging-n8n.fwoasm.easypanel.host/webhook/76c09305-9123-4cfb-831e-4bceaa51a561"},
	Staging:   {WebhookURL: "https://elder-link-staging-n8n.fwoasm.easypanel.host/webhook/76c09305-9123-4cfb-831e-4bceaa51a561"},
	QA:        {WebhookURL: "https://elder-link-staging-n8n.fwoasm.easypanel.host/webhook/76c09305-9123-4cfb-831e-4bceaa51a561"},
	UAT:       {WebhookURL: "https://elder-link-staging-n8n.fwoasm.easypanel.host/webhook/76c09305-9123-4cfb-831e-4bceaa51a561"},
	Prod:      {WebhookURL: "https://n8n-pc98.onrender.com/webhook/76c09305-9123-4cfb-831e-4bceaa51a561"},
}

// Detect maps a hostname to an Environment by substring match, in priority
// order. Unknown hostnames resolve to Prod so an unrecognized deployment
// always gets the strictest policy.
func Detect(hostname string) Environment {
	h := strings.ToLower(strings.TrimSpace(hostname))
	switch {
	case strings.Contains(h, "localhost") || strings.Contains(h, "127.0.0.1"):
		return Localhost
	case strings.Contains(h, "staging"):
		return Staging
	case strings.Contains(h, "qa"):
		return QA
	case strings.Contains(h, "uat"):
		return UAT
	default:
		return Prod
	}
}

// Resolve builds the immutable environment configuration for hostname.
// endpointsFile optionally points at a YAML table overriding the built-in
// endpoint URLs per environment.
func Resolve(hostname, endpointsFile string) (Config, error) {
	environment := Detect(hostname)

	table := make(map[Environment]Endpoints, len(defaultEndpoints))
	for k, v := range defaultEndpoints {
		table[k] = v
	}
	if strings.TrimSpace(endpointsFile) != "" {
		if err := applyOverrides(table, endpointsFile); err != nil {
			return Config{}, err
		}
	}

	return Config{
		Environment: environment,
		Endpoints:   table[environment],
		Policy: Policy{
			RequireToken:        environment == Prod,
			AllowEngineOverride: environment != Prod,
		},
	}, nil
}

func applyOverrides(table map[Environment]Endpoints, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read endpoints file %q: %w", path, err)
	}

	var parsed map[string]Endpoints
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse endpoints file %q: %w", path, err)
	}

	for name, ep := range parsed {
		environment := Environment(strings.ToLower(strings.TrimSpace(name)))
		base, ok := table[environment]
		if !ok {
			return fmt.Errorf("endpoints file %q: unknown environment %q", path, name)
		}
		if strings.TrimSpace(ep.WebhookURL) != "" {
			base.WebhookURL = ep.WebhookURL
		}
		if strings.TrimSpace(ep.APIBaseURL) != "" {
			base.APIBaseURL = ep.APIBaseURL
		}
		table[environment] = base
	}
	return nil
}
