package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"grievance/models"

	"gopkg.in/yaml.v3"
)

// LadderFile is the YAML layout of an escalation ladder seed file:
//
//	levels:
//	  - level: 1
//	    assignee_role: SUPER_ADMIN
//	    time_limit_hours: 12
//	    recipients: [ops@example.com]
type LadderFile struct {
	Levels []LadderRung `yaml:"levels"`
}

// LadderRung is one level of a seed file. TimeLimitHours and Active are
// optional; an omitted Active means true.
type LadderRung struct {
	Level          int      `yaml:"level"`
	TimeLimitHours *int     `yaml:"time_limit_hours"`
	AssigneeRole   string   `yaml:"assignee_role"`
	Recipients     []string `yaml:"recipients"`
	Active         *bool    `yaml:"active"`
}

// LoadLadderFile reads and validates a ladder seed file
func LoadLadderFile(path string) ([]models.EscalationConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ladder file: %w", err)
	}
	defer f.Close()
	return ParseLadder(f)
}

// ParseLadder decodes a ladder seed document into escalation configs
func ParseLadder(r io.Reader) ([]models.EscalationConfig, error) {
	var file LadderFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("ladder file is empty")
		}
		return nil, fmt.Errorf("failed to parse ladder file: %w", err)
	}

	seen := map[int]bool{}
	configs := make([]models.EscalationConfig, 0, len(file.Levels))
	for _, rung := range file.Levels {
		if rung.Level < 1 {
			return nil, fmt.Errorf("ladder level must be at least 1, got %d", rung.Level)
		}
		if seen[rung.Level] {
			return nil, fmt.Errorf("ladder level %d defined twice", rung.Level)
		}
		seen[rung.Level] = true

		cfg := models.EscalationConfig{
			Level:        rung.Level,
			AssigneeRole: strings.TrimSpace(rung.AssigneeRole),
			Recipients:   strings.Join(models.SplitRecipients(strings.Join(rung.Recipients, ",")), ","),
			Active:       rung.Active == nil || *rung.Active,
		}
		if rung.TimeLimitHours != nil {
			if *rung.TimeLimitHours <= 0 {
				return nil, fmt.Errorf("ladder level %d: time_limit_hours must be positive", rung.Level)
			}
			hours := int64(*rung.TimeLimitHours)
			cfg.TimeLimitHours = &hours
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}
