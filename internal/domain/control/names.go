package control

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/t3eHawk/rapo/internal/domain/model"
)

// TempPrefix starts every per-run temporary table name.
const TempPrefix = "rapo_temp_"

// Temporary table roles. The full name is <prefix><role>_<process_id>.
const (
	TempFetched     = "fd"
	TempFetchedA    = "fd_a"
	TempFetchedB    = "fd_b"
	TempErrors      = "err"
	TempErrorsA     = "err_a"
	TempErrorsB     = "err_b"
	TempMatched     = "md"
	TempMismatched  = "nmd"
	TempCombined    = "comb"
	TempDuplicatesA = "dup_a"
	TempDuplicatesB = "dup_b"
	TempNotFoundA   = "nf_a"
	TempNotFoundB   = "nf_b"
	TempResultsA    = "res_a"
	TempResultsB    = "res_b"
)

// TempTableName builds the physical name of one temp table role.
func TempTableName(role string, processID int64) string {
	return fmt.Sprintf("%s%s_%d", TempPrefix, role, processID)
}

// TempTableRoles enumerates every role a control kind may create. The
// drop sweep walks this list, so it errs on the side of completeness.
func TempTableRoles(controlType model.ControlType) []string {
	switch controlType {
	case model.ControlTypeAnalysis, model.ControlTypeReport:
		return []string{TempFetched, TempErrors}
	case model.ControlTypeComparison:
		return []string{TempFetchedA, TempFetchedB, TempMatched, TempMismatched}
	case model.ControlTypeReconciliation:
		return []string{
			TempFetchedA, TempFetchedB, TempCombined,
			TempDuplicatesA, TempDuplicatesB,
			TempNotFoundA, TempNotFoundB,
			TempErrorsA, TempErrorsB,
			TempResultsA, TempResultsB,
		}
	}
	return nil
}

// TempTableNames enumerates the full temp table names of one run.
func TempTableNames(controlType model.ControlType, processID int64) []string {
	roles := TempTableRoles(controlType)
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, TempTableName(role, processID))
	}
	return names
}

var tempNameRe = regexp.MustCompile(`^rapo_temp_([a-z]+(?:_[ab])?)_(\d+)$`)

// ParseTempTableName recognizes a temp table and extracts its role and
// process id. Used by the stale table sweep.
func ParseTempTableName(name string) (role string, processID int64, ok bool) {
	m := tempNameRe.FindStringSubmatch(strings.ToLower(name))
	if m == nil {
		return "", 0, false
	}
	pid, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return m[1], pid, true
}

// Mandatory reconciliation columns attached to issue and stage rows.
const (
	DiscrepancyIDColumn          = "rapo_discrepancy_id"
	DiscrepancyDescriptionColumn = "rapo_discrepancy_description"
)

// MandatoryColumns lists the synthesized rapo_* columns a kind carries
// in its output rows next to the configured ones.
func MandatoryColumns(controlType model.ControlType) []string {
	switch controlType {
	case model.ControlTypeAnalysis:
		return []string{ResultKeyColumn, ResultValueColumn, ResultTypeColumn}
	case model.ControlTypeReconciliation:
		return []string{ResultTypeColumn, DiscrepancyIDColumn, DiscrepancyDescriptionColumn}
	}
	return nil
}

// ResultTableName is the single-sided output table of a control.
func ResultTableName(controlName string) string {
	return "rapo_rest_" + strings.ToLower(controlName)
}

// ResultTableNameA is the A-side output table of a reconciliation.
func ResultTableNameA(controlName string) string {
	return "rapo_resa_" + strings.ToLower(controlName)
}

// ResultTableNameB is the B-side output table of a reconciliation.
func ResultTableNameB(controlName string) string {
	return "rapo_resb_" + strings.ToLower(controlName)
}

// ResultTableNames lists every output table a control writes to.
func ResultTableNames(controlType model.ControlType, controlName string) []string {
	if controlType == model.ControlTypeReconciliation {
		return []string{ResultTableNameA(controlName), ResultTableNameB(controlName)}
	}
	return []string{ResultTableName(controlName)}
}

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*$`)

// ValidIdentifier guards configured names that land in identifier
// positions of generated SQL.
func ValidIdentifier(name string) bool {
	return identifierRe.MatchString(name)
}

// RequireIdentifier returns the lowercased name or an error when it
// cannot be used as an identifier.
func RequireIdentifier(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if !ValidIdentifier(trimmed) {
		return "", fmt.Errorf("invalid identifier: %q", name)
	}
	return strings.ToLower(trimmed), nil
}

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$#]*(\.[A-Za-z_][A-Za-z0-9_$#]*)?$`)

// RequireTableName validates an optionally schema-qualified table name
// and returns it lowercased.
func RequireTableName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if !tableNameRe.MatchString(trimmed) {
		return "", fmt.Errorf("invalid table name: %q", name)
	}
	return strings.ToLower(trimmed), nil
}
