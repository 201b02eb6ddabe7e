// Package persona loads the agent's personality profile: a name, a role,
// a speaking style, and a set of behavioral rules. The profile is read
// once at startup and injected into the model's system instruction; it is
// never mutated at runtime.
package persona

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Profile describes the agent's personality.
type Profile struct {
	Name  string   `json:"name"`
	Role  string   `json:"role"`
	Style Style    `json:"style"`
	Rules []string `json:"rules"`
}

// Style describes how the agent speaks.
type Style struct {
	Tone        string   `json:"tone"`
	Formality   string   `json:"formality"`
	DomainFocus []string `json:"domain_focus"`
}

// DefaultSystemPrompt is used when no persona file is configured.
const DefaultSystemPrompt = "You are Agent Friend, a helpful conversational assistant. " +
	"You can look up weather, tell the time, and manage Ethereum wallets " +
	"through your tools. Be concise and friendly."

// Load reads a profile from a JSON document.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse persona file %s: %w", path, err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("persona file %s: name is required", path)
	}
	return &p, nil
}

// SystemPrompt renders the profile as the model's system instruction.
func (p *Profile) SystemPrompt() string {
	var rules strings.Builder
	for _, r := range p.Rules {
		rules.WriteString("- ")
		rules.WriteString(r)
		rules.WriteString("\n")
	}

	return fmt.Sprintf(
		"You are %s, %s. \n\n"+
			"Style: \n"+
			"- Tone: %s \n"+
			"- Formality: %s \n"+
			"- Domain Focus: %s \n\n"+
			"Rules: \n%s",
		p.Name,
		p.Role,
		p.Style.Tone,
		p.Style.Formality,
		strings.Join(p.Style.DomainFocus, ", "),
		strings.TrimRight(rules.String(), "\n"),
	)
}
