package control_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/t3eHawk/rapo/internal/domain/control"
)

func TestVariablesExpand(t *testing.T) {
	window := control.WindowBetween(
		date("2024-02-01 00:00:00"), date("2024-02-29 23:59:59"))
	vars := control.NewVariables("bank_recon", 42, window)

	tests := []struct {
		name    string
		text    string
		want    string
		wantErr string
	}{
		{
			name: "all placeholders",
			text: "insert into audit values ({process_id}, '{control_name}', '{control_date_from}')",
			want: "insert into audit values (42, 'bank_recon', '2024-02-01 00:00:00')",
		},
		{
			name: "doubled braces escape",
			text: "select '{{literal}}' from dual where id = {process_id}",
			want: "select '{literal}' from dual where id = 42",
		},
		{
			name:    "unknown placeholder",
			text:    "select {nope}",
			wantErr: "unknown placeholder",
		},
		{
			name:    "unclosed placeholder",
			text:    "select {process_id",
			wantErr: "unclosed placeholder",
		},
		{
			name:    "stray closing brace",
			text:    "select }",
			wantErr: "stray brace",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := vars.Expand(tt.text)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVariablesWithTrigger(t *testing.T) {
	window := control.WindowForDay(date("2024-02-01 10:00:00"))
	vars := control.NewVariables("c", 1, window).WithTrigger(date("2024-02-02 03:00:00"))
	got, err := vars.Expand("{control_trigger}")
	require.NoError(t, err)
	assert.Equal(t, "2024-02-02 03:00:00", got)
}
