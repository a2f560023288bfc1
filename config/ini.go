package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	ini "gopkg.in/ini.v1"
)

// EnvConfigPath names the environment variable overriding the INI path.
const EnvConfigPath = "RAPO_CONFIG"

// DefaultINIPath returns ~/.rapo/rapo.ini, or the $RAPO_CONFIG override.
func DefaultINIPath() string {
	if path := strings.TrimSpace(os.Getenv(EnvConfigPath)); path != "" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".rapo", "rapo.ini")
}

// ApplyINI overlays values from the INI file at path onto cfg. Keys only
// apply when their environment variable counterpart is unset, so the
// precedence stays environment > file > defaults. A missing file is not
// an error. The returned warnings name deprecated keys that were
// accepted; callers should log them.
func ApplyINI(cfg *AppConfig, path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("stat config file %s: %w", path, err)
	}
	file, err := ini.LoadSources(ini.LoadOptions{Insensitive: true}, path)
	if err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}

	var warnings []string
	warn := func(section, key, replacement string) {
		warnings = append(warnings, fmt.Sprintf(
			"config file key [%s] %s is deprecated, use %s", section, key, replacement))
	}

	db := file.Section("DATABASE")
	applyString(&cfg.Database.Vendor, db, "vendor_name", "RAPO_DB_VENDOR")
	if applyString(&cfg.Database.Vendor, db, "vendor", "RAPO_DB_VENDOR") {
		warn("DATABASE", "vendor", "vendor_name")
	}
	applyString(&cfg.Database.Host, db, "host", "RAPO_DB_HOST")
	applyInt(&cfg.Database.Port, db, "port", "RAPO_DB_PORT")
	applyString(&cfg.Database.Name, db, "name", "RAPO_DB_NAME")
	if applyString(&cfg.Database.Name, db, "service", "RAPO_DB_NAME") {
		warn("DATABASE", "service", "name")
	}
	applyString(&cfg.Database.Username, db, "username", "RAPO_DB_USERNAME")
	if applyString(&cfg.Database.Username, db, "user", "RAPO_DB_USERNAME") {
		warn("DATABASE", "user", "username")
	}
	applyString(&cfg.Database.Password, db, "password", "RAPO_DB_PASSWORD")
	applyString(&cfg.Database.SSLMode, db, "ssl_mode", "RAPO_DB_SSL_MODE")
	applyInt(&cfg.Database.MaxOpenConns, db, "max_open_conns", "RAPO_DB_MAX_OPEN_CONNS")
	applyInt(&cfg.Database.MaxIdleConns, db, "max_idle_conns", "RAPO_DB_MAX_IDLE_CONNS")
	applyBool(&cfg.Database.RunMigrationsOnStart, db, "run_migrations_on_start",
		"RAPO_DB_RUN_MIGRATIONS_ON_START")

	sched := file.Section("SCHEDULER")
	applyInt(&cfg.Scheduler.ControlParallelism, sched, "control_parallelism",
		"RAPO_SCHEDULER_CONTROL_PARALLELISM")
	applyInt(&cfg.Scheduler.DispatchQueueSize, sched, "dispatch_queue_size",
		"RAPO_SCHEDULER_DISPATCH_QUEUE_SIZE")
	applyDuration(&cfg.Scheduler.RefreshInterval, sched, "refresh_interval",
		"RAPO_SCHEDULER_REFRESH_INTERVAL")
	applyDuration(&cfg.Scheduler.MaintenanceInterval, sched, "maintenance_interval",
		"RAPO_SCHEDULER_MAINTENANCE_INTERVAL")
	applyDuration(&cfg.Scheduler.DatabaseReportInterval, sched, "database_report_interval",
		"RAPO_SCHEDULER_DB_REPORT_INTERVAL")
	applyDuration(&cfg.Scheduler.RecordCheckInterval, sched, "record_check_interval",
		"RAPO_SCHEDULER_RECORD_CHECK_INTERVAL")

	api := file.Section("API")
	applyString(&cfg.API.Addr, api, "addr", "RAPO_API_ADDR")
	applyString(&cfg.API.Token, api, "token", "RAPO_API_TOKEN")
	applyInt(&cfg.API.MaxConnections, api, "max_connections", "RAPO_API_MAX_CONNECTIONS")

	logging := file.Section("LOGGING")
	applyString(&cfg.Logging.Level, logging, "level", "RAPO_LOG_LEVEL")
	applyString(&cfg.Logging.Format, logging, "format", "RAPO_LOG_FORMAT")
	applyString(&cfg.Logging.File, logging, "file", "RAPO_LOG_FILE")

	return warnings, nil
}

// normalizeScalar trims the raw INI value and maps the conventional
// placeholders onto "unset". NONE and the empty string mean the key is
// present but carries no value.
func normalizeScalar(raw string) (string, bool) {
	v := strings.TrimSpace(raw)
	if v == "" || strings.EqualFold(v, "NONE") || strings.EqualFold(v, "NULL") {
		return "", false
	}
	return v, true
}

func iniValue(section *ini.Section, key, envName string) (string, bool) {
	if _, set := os.LookupEnv(envName); set {
		return "", false
	}
	if section == nil || !section.HasKey(key) {
		return "", false
	}
	return normalizeScalar(section.Key(key).String())
}

func applyString(target *string, section *ini.Section, key, envName string) bool {
	v, ok := iniValue(section, key, envName)
	if !ok {
		return false
	}
	*target = v
	return true
}

func applyInt(target *int, section *ini.Section, key, envName string) bool {
	v, ok := iniValue(section, key, envName)
	if !ok {
		return false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return false
	}
	*target = n
	return true
}

func applyBool(target *bool, section *ini.Section, key, envName string) bool {
	v, ok := iniValue(section, key, envName)
	if !ok {
		return false
	}
	switch strings.ToUpper(v) {
	case "TRUE", "YES", "Y", "1":
		*target = true
	case "FALSE", "NO", "N", "0":
		*target = false
	default:
		return false
	}
	return true
}

func applyDuration(target *time.Duration, section *ini.Section, key, envName string) bool {
	v, ok := iniValue(section, key, envName)
	if !ok {
		return false
	}
	// Bare numbers read as seconds, matching the historical file format.
	if n, err := strconv.Atoi(v); err == nil {
		*target = time.Duration(n) * time.Second
		return true
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return false
	}
	*target = d
	return true
}
