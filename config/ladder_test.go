package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLadder = `
levels:
  - level: 1
    assignee_role: ADMIN
    recipients: [" admin@it.local ", ""]
  - level: 2
    assignee_role: SUPER_ADMIN
    time_limit_hours: 6
    recipients: [super@it.local, cio@it.local]
    active: false
`

func TestParseLadder(t *testing.T) {
	configs, err := ParseLadder(strings.NewReader(sampleLadder))
	require.NoError(t, err)
	require.Len(t, configs, 2)

	assert.Equal(t, 1, configs[0].Level)
	assert.Equal(t, "ADMIN", configs[0].AssigneeRole)
	assert.Equal(t, "admin@it.local", configs[0].Recipients)
	assert.Nil(t, configs[0].TimeLimitHours)
	assert.True(t, configs[0].Active)

	assert.Equal(t, "super@it.local,cio@it.local", configs[1].Recipients)
	require.NotNil(t, configs[1].TimeLimitHours)
	assert.Equal(t, int64(6), *configs[1].TimeLimitHours)
	assert.False(t, configs[1].Active)
}

func TestParseLadderErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{name: "empty", doc: "", want: "empty"},
		{name: "level zero", doc: "levels:\n  - level: 0\n", want: "at least 1"},
		{name: "duplicate", doc: "levels:\n  - level: 1\n  - level: 1\n", want: "defined twice"},
		{name: "bad time limit", doc: "levels:\n  - level: 1\n    time_limit_hours: 0\n", want: "must be positive"},
		{name: "unknown field", doc: "levels:\n  - level: 1\n    role: ADMIN\n", want: "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLadder(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadLadderFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ladder.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleLadder), 0o600))

	configs, err := LoadLadderFile(path)
	require.NoError(t, err)
	assert.Len(t, configs, 2)

	_, err = LoadLadderFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
