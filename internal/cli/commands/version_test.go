package commands

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVersionCommand(t *testing.T) {
	info := VersionInfo{Version: "1.2.3", Commit: "abc1234", BuildDate: "2025-01-02", GoVersion: "go1.24.0"}

	tests := []struct {
		name    string
		args    []string
		wantOut []string
		exact   string
	}{
		{
			name:    "full",
			wantOut: []string{"leapsort v1.2.3", "commit:  abc1234", "built:   2025-01-02", "go:      go1.24.0"},
		},
		{
			name:  "short",
			args:  []string{"--short"},
			exact: "1.2.3\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewVersionCommand(info)
			buf := new(bytes.Buffer)
			cmd.SetOut(buf)
			cmd.SetErr(buf)
			cmd.SetArgs(tt.args)

			require.NoError(t, cmd.Execute())

			if tt.exact != "" {
				assert.Equal(t, tt.exact, buf.String())
			}
			for _, want := range tt.wantOut {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestVersionCommand_DefaultsGoVersion(t *testing.T) {
	cmd := NewVersionCommand(VersionInfo{Version: "dev"})
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "go:      go")
	assert.Equal(t, "version", cmd.Use)
	assert.NotEmpty(t, cmd.Long)
}
