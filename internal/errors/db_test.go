package errors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func TestMapDBError_NilError(t *testing.T) {
	err := MapDBError(nil)
	if err != nil {
		t.Errorf("MapDBError(nil) = %v, want nil", err)
	}
}

func TestMapDBError_ContextErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode ErrorCode
	}{
		{
			name:     "deadline exceeded",
			err:      context.DeadlineExceeded,
			wantCode: ErrCodeTimeout,
		},
		{
			name:     "canceled",
			err:      context.Canceled,
			wantCode: ErrCodeCanceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.err)
			if !IsAppError(err, tt.wantCode) {
				t.Errorf("MapDBError() code = %v, want %v", GetCode(err), tt.wantCode)
			}
		})
	}
}

func TestMapDBError_NoRows(t *testing.T) {
	err := MapDBError(pgx.ErrNoRows)
	if !IsNotFound(err) {
		t.Errorf("MapDBError(pgx.ErrNoRows) should be NotFound, got %v", GetCode(err))
	}
}

func TestMapDBError_UniqueViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "unique violation with column name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "rapo_config_control_name_key",
				ColumnName:     "control_name",
			},
			wantCode:  ErrCodeConflict,
			wantField: "control_name",
		},
		{
			name: "unique violation with Detail message",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "rapo_config_control_name_key",
				Detail:         `Key (control_name)=(sales_check) already exists.`,
			},
			wantCode:  ErrCodeConflict,
			wantField: "control_name", // extracted from Detail
		},
		{
			name: "unique violation with multi-column Detail",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "rapo_checkpoint_control_id_process_id_key",
				Detail:         `Key (control_id, process_id)=(1, 42) already exists.`,
			},
			wantCode:  ErrCodeConflict,
			wantField: "control_id, process_id", // extracted from Detail
		},
		{
			name: "unique violation without column name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "rapo_config_control_name_key",
			},
			wantCode:  ErrCodeConflict,
			wantField: "control_name", // inferred from constraint name
		},
		{
			name: "unique violation with unknown table prefix",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.UniqueViolation,
				ConstraintName: "some_table_field_key",
			},
			wantCode:  ErrCodeConflict,
			wantField: "", // cannot infer without a known table prefix
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsConflict(err) {
				t.Errorf("MapDBError() should be Conflict, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_ForeignKeyViolation(t *testing.T) {
	tests := []struct {
		name         string
		pgErr        *pgconn.PgError
		wantCode     ErrorCode
		wantContains string
	}{
		{
			name: "foreign key violation - parent deletion (Detail)",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rapo_log_control_id_fkey",
				Detail:         `Key (control_id)=(42) is still referenced from table "rapo_log".`,
			},
			wantCode:     ErrCodeForeignKey,
			wantContains: "in use by Control Run",
		},
		{
			name: "foreign key violation - missing parent (Detail)",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rapo_log_control_id_fkey",
				Detail:         `Key (control_id)=(42) is not present in table "rapo_config".`,
			},
			wantCode:     ErrCodeForeignKey,
			wantContains: "does not exist",
		},
		{
			name: "foreign key violation with table name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rapo_log_control_id_fkey",
				TableName:      "rapo_log",
			},
			wantCode:     ErrCodeForeignKey,
			wantContains: "Control Run",
		},
		{
			name: "foreign key violation without table name",
			pgErr: &pgconn.PgError{
				Code:           pgerrcode.ForeignKeyViolation,
				ConstraintName: "rapo_log_control_id_fkey",
			},
			wantCode:     ErrCodeForeignKey,
			wantContains: "Control Run",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsForeignKey(err) {
				t.Errorf("MapDBError() should be ForeignKey, got %v", GetCode(err))
			}
			var appErr *AppError
			if errors.As(err, &appErr) {
				msgLower := strings.ToLower(appErr.Message)
				wantLower := strings.ToLower(tt.wantContains)
				if !strings.Contains(msgLower, wantLower) {
					t.Errorf("MapDBError() message = %q, want to contain %q", appErr.Message, tt.wantContains)
				}
			}
		})
	}
}

func TestMapDBError_NotNullViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "not null violation with column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.NotNullViolation,
				ColumnName: "control_name",
			},
			wantCode:  ErrCodeValidation,
			wantField: "control_name",
		},
		{
			name: "not null violation without column name",
			pgErr: &pgconn.PgError{
				Code: pgerrcode.NotNullViolation,
			},
			wantCode:  ErrCodeValidation,
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsValidation(err) {
				t.Errorf("MapDBError() should be Validation, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_CheckViolation(t *testing.T) {
	tests := []struct {
		name      string
		pgErr     *pgconn.PgError
		wantCode  ErrorCode
		wantField string
	}{
		{
			name: "check violation with column name",
			pgErr: &pgconn.PgError{
				Code:       pgerrcode.CheckViolation,
				ColumnName: "days_back",
			},
			wantCode:  ErrCodeValidation,
			wantField: "days_back",
		},
		{
			name: "check violation without column name",
			pgErr: &pgconn.PgError{
				Code: pgerrcode.CheckViolation,
			},
			wantCode:  ErrCodeValidation,
			wantField: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := MapDBError(tt.pgErr)
			if !IsValidation(err) {
				t.Errorf("MapDBError() should be Validation, got %v", GetCode(err))
			}
			if field := GetField(err); field != tt.wantField {
				t.Errorf("MapDBError() field = %v, want %v", field, tt.wantField)
			}
		})
	}
}

func TestMapDBError_UnknownPgError(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:    "99999", // unknown error code
		Message: "unknown error",
	}
	err := MapDBError(pgErr)
	if !IsInternal(err) {
		t.Errorf("MapDBError() should be Internal for unknown pg error, got %v", GetCode(err))
	}
}

func TestMapDBError_StandardError(t *testing.T) {
	stdErr := errors.New("standard error")
	err := MapDBError(stdErr)
	if !errors.Is(err, stdErr) {
		t.Errorf("MapDBError() should return original error for non-db errors, got %v", err)
	}
}

func TestInferFieldFromConstraint(t *testing.T) {
	tests := []struct {
		name           string
		constraintName string
		want           string
	}{
		{
			name:           "config unique constraint",
			constraintName: "rapo_config_control_name_key",
			want:           "control_name",
		},
		{
			name:           "unique suffix variant",
			constraintName: "rapo_config_control_name_unique",
			want:           "control_name",
		},
		{
			name:           "bak prefix wins over config prefix",
			constraintName: "rapo_config_bak_revision_key",
			want:           "revision",
		},
		{
			name:           "unknown table prefix",
			constraintName: "secrets_name_key",
			want:           "",
		},
		{
			name:           "expression index",
			constraintName: "rapo_config_lower_key",
			want:           "", // function name, not field
		},
		{
			name:           "empty constraint name",
			constraintName: "",
			want:           "",
		},
		{
			name:           "no recognized suffix",
			constraintName: "rapo_config_control_name",
			want:           "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := inferFieldFromConstraint(tt.constraintName); got != tt.want {
				t.Errorf("inferFieldFromConstraint() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInferForeignKeyMessage(t *testing.T) {
	tests := []struct {
		name           string
		constraintName string
		wantContains   string
	}{
		{
			name:           "checkpoint constraint",
			constraintName: "rapo_checkpoint_process_id_fkey",
			wantContains:   "Checkpoint",
		},
		{
			name:           "config backup constraint",
			constraintName: "rapo_config_bak_control_id_fkey",
			wantContains:   "Control Version",
		},
		{
			name:           "run log constraint",
			constraintName: "rapo_log_control_id_fkey",
			wantContains:   "Control Run",
		},
		{
			name:           "scheduler constraint",
			constraintName: "rapo_scheduler_control_id_fkey",
			wantContains:   "Schedule Record",
		},
		{
			name:           "bare control constraint",
			constraintName: "control_id_fkey",
			wantContains:   "Control",
		},
		{
			name:           "unknown constraint",
			constraintName: "unknown_fkey",
			wantContains:   "in use",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := inferForeignKeyMessage(tt.constraintName)
			if got == "" {
				t.Errorf("inferForeignKeyMessage() returned empty string")
			}
			// Assert that the message contains the expected substring (case-insensitive)
			gotLower := strings.ToLower(got)
			wantLower := strings.ToLower(tt.wantContains)
			if !strings.Contains(gotLower, wantLower) {
				t.Errorf("inferForeignKeyMessage() = %q, want to contain %q", got, tt.wantContains)
			}
		})
	}
}

func TestIsFunctionName(t *testing.T) {
	tests := []struct {
		name string
		s    string
		want bool
	}{
		{name: "lower", s: "lower", want: true},
		{name: "upper", s: "upper", want: true},
		{name: "LOWER (uppercase)", s: "LOWER", want: true},
		{name: "not a function", s: "control_name", want: false},
		{name: "empty", s: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isFunctionName(tt.s); got != tt.want {
				t.Errorf("isFunctionName() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMapTableToDomain(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		want      string
	}{
		{name: "config", tableName: "rapo_config", want: "Control"},
		{name: "config backup", tableName: "rapo_config_bak", want: "Control Version"},
		{name: "run log", tableName: "rapo_log", want: "Control Run"},
		{name: "scheduler", tableName: "rapo_scheduler", want: "Schedule Record"},
		{name: "checkpoint", tableName: "rapo_checkpoint", want: "Checkpoint"},
		{name: "web api", tableName: "rapo_web_api", want: "Web API Record"},
		{name: "uppercase", tableName: "RAPO_CONFIG", want: "Control"},
		{name: "with spaces", tableName: "  rapo_config  ", want: "Control"},
		{name: "unknown rapo table", tableName: "rapo_audit_trail", want: "Audit Trail"},
		{name: "unknown table", tableName: "some_table", want: "Some Table"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mapTableToDomain(tt.tableName); got != tt.want {
				t.Errorf("mapTableToDomain() = %v, want %v", got, tt.want)
			}
		})
	}
}

// Helper function for tests.
func IsAppError(err error, code ErrorCode) bool {
	return GetCode(err) == code
}
