// Agent configuration file loading for CLI commands.
//
// Information Hiding:
// - YAML schema hidden from the command layer
// - Translation into agent.SubagentConfig and approval policies hidden
package cli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/chrispangg/ai-sdk-deepagent/agent"
)

// AgentsFile is the YAML shape of an agents.yaml configuration:
//
//	system_prompt: |
//	  You are a careful coding agent.
//	interrupt:
//	  - write_file
//	  - execute
//	subagents:
//	  - name: researcher
//	    description: reads sources and summarizes
//	    prompt: |
//	      You research. Answer concisely.
//	    max_steps: 30
type AgentsFile struct {
	SystemPrompt string         `yaml:"system_prompt"`
	Interrupt    []string       `yaml:"interrupt"`
	Subagents    []SubagentSpec `yaml:"subagents"`
}

// SubagentSpec is one named delegate in the configuration file.
type SubagentSpec struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"`
	MaxSteps    int      `yaml:"max_steps"`
	Interrupt   []string `yaml:"interrupt"`
}

// LoadAgentsFile parses an agents.yaml configuration.
func LoadAgentsFile(path string) (*AgentsFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}

	var cfg AgentsFile
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse agents file: %w", err)
	}
	for i, s := range cfg.Subagents {
		if s.Name == "" {
			return nil, fmt.Errorf("subagent %d has no name", i)
		}
	}
	return &cfg, nil
}

// InterruptPolicies renders a tool-name list as always-approve gating.
func InterruptPolicies(names []string) map[string]agent.ApprovalPolicy {
	if len(names) == 0 {
		return nil
	}
	policies := make(map[string]agent.ApprovalPolicy, len(names))
	for _, name := range names {
		policies[name] = agent.AlwaysApprove()
	}
	return policies
}

// SubagentConfigs converts the file specs for agent.Config.
func (c *AgentsFile) SubagentConfigs() []agent.SubagentConfig {
	if c == nil {
		return nil
	}
	configs := make([]agent.SubagentConfig, 0, len(c.Subagents))
	for _, s := range c.Subagents {
		configs = append(configs, agent.SubagentConfig{
			Name:        s.Name,
			Description: s.Description,
			Prompt:      s.Prompt,
			MaxSteps:    s.MaxSteps,
			InterruptOn: InterruptPolicies(s.Interrupt),
		})
	}
	return configs
}
