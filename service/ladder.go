package service

import (
	"fmt"
	"sort"

	"grievance/models"
)

// Ladder is the ordered chain of active escalation rungs starting at level 1.
// Rungs stop at the first missing level; anything past that hole is
// unreachable by the automatic path.
type Ladder struct {
	rungs []models.EscalationConfig
}

// NewLadder builds a ladder from configs in any order. Inactive configs are ignored.
func NewLadder(configs []models.EscalationConfig) *Ladder {
	active := make([]models.EscalationConfig, 0, len(configs))
	for _, c := range configs {
		if c.Active {
			active = append(active, c)
		}
	}
	sort.Slice(active, func(i, j int) bool { return active[i].Level < active[j].Level })

	l := &Ladder{}
	for _, c := range active {
		if c.Level != len(l.rungs)+1 {
			break
		}
		l.rungs = append(l.rungs, c)
	}
	return l
}

// Rung returns the config for level, or nil when the level is off the ladder.
func (l *Ladder) Rung(level int) *models.EscalationConfig {
	if level < 1 || level > len(l.rungs) {
		return nil
	}
	return &l.rungs[level-1]
}

// Next returns the rung above level, or nil when level is terminal.
func (l *Ladder) Next(level int) *models.EscalationConfig {
	return l.Rung(level + 1)
}

// IsTerminal reports whether no automatic escalation exists above level.
func (l *Ladder) IsTerminal(level int) bool {
	return l.Next(level) == nil
}

// Top is the highest reachable level, 0 for an empty ladder.
func (l *Ladder) Top() int {
	return len(l.rungs)
}

// Len returns the number of reachable rungs
func (l *Ladder) Len() int {
	return len(l.rungs)
}

// roleForLevel labels the holder of a level in history records.
func roleForLevel(level int) string {
	switch level {
	case 0:
		return models.HistoryFromInitial
	case 1:
		return models.HistoryFromAdmin
	default:
		return fmt.Sprintf("LEVEL_%d", level)
	}
}
