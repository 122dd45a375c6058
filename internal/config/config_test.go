package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	msync "github.com/mdmirror/mdmirror/internal/mirror/sync"
)

// isolate clears every variable Load reads so the host environment cannot
// leak into a test. t.Setenv restores the original values afterwards.
func isolate(t *testing.T, extra ...string) {
	t.Helper()
	keys := append([]string{
		APIKeyEnv,
		"MIRROR_ROOT",
		"MIRROR_DB_PATH",
		"MIRROR_DB_DRIVER",
		"MIRROR_DEBOUNCE",
		"MIRROR_DASHBOARD_PORT",
		"MIRROR_LOG_LEVEL",
		"MIRROR_SUMMARY_PROVIDER",
	}, extra...)
	for _, k := range keys {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func loadFrom(t *testing.T, dir string, flags *pflag.FlagSet) *Config {
	t.Helper()
	cfg, err := Load(Options{
		EnvFile:    filepath.Join(dir, ".env"),
		SearchDirs: []string{dir},
		Flags:      flags,
	})
	require.NoError(t, err)
	return cfg
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	isolate(t)
	cfg := loadFrom(t, t.TempDir(), nil)

	require.Equal(t, ".", cfg.Root)
	require.Equal(t, "mirror.db", cfg.DB.Path)
	require.Equal(t, "sqlite3", cfg.DB.Driver)
	require.Equal(t, 500*time.Millisecond, cfg.Debounce)
	require.Equal(t, 5*time.Minute, cfg.FullSyncInterval)
	require.Equal(t, msync.DefaultFiles, cfg.Files)
	require.Equal(t, msync.DefaultNotesGlob, cfg.Notes.Glob)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, 8080, cfg.Dashboard.Port)
	require.Equal(t, ProviderNone, cfg.Summary.Provider)
	require.Empty(t, cfg.File)
}

func TestLoad_YAMLFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "mirror.yaml", `
root: /srv/notes
debounce: 2s
files:
  tasks: todo.md
dashboard:
  enabled: true
  port: 9090
`)

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, path, cfg.File)
	require.Equal(t, "/srv/notes", cfg.Root)
	require.Equal(t, 2*time.Second, cfg.Debounce)
	require.Equal(t, "todo.md", cfg.Files.Tasks)
	require.Equal(t, "JOBS.md", cfg.Files.Jobs, "unset keys keep defaults")
	require.True(t, cfg.Dashboard.Enabled)
	require.Equal(t, 9090, cfg.Dashboard.Port)
}

func TestLoad_TOMLFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "mirror.toml", `
full_sync_interval = "10m"

[notes]
glob = "journal/*.md"
`)

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, 10*time.Minute, cfg.FullSyncInterval)
	require.Equal(t, "journal/*.md", cfg.Notes.Glob)
}

func TestLoad_JSONCFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "mirror.jsonc", `{
  // notes live next to the repo
  "root": "../notes",
  "log": {
    "level": "debug", /* noisy */
  },
}`)

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, "../notes", cfg.Root)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_InvalidJSONC(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.jsonc", `{"root": `)

	_, err := Load(Options{File: path, EnvFile: filepath.Join(dir, ".env")})
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid JSONC")
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	isolate(t)
	dir := t.TempDir()

	_, err := Load(Options{File: filepath.Join(dir, "nope.yaml"), EnvFile: filepath.Join(dir, ".env")})
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "mirror.yaml", "db:\n  path: from-file.db\ndashboard:\n  port: 9090\n")
	t.Setenv("MIRROR_DB_PATH", "from-env.db")
	t.Setenv("MIRROR_DASHBOARD_PORT", "7000")

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, "from-env.db", cfg.DB.Path)
	require.Equal(t, 7000, cfg.Dashboard.Port)
}

func TestLoad_DotEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "MIRROR_LOG_LEVEL=warn\nANTHROPIC_API_KEY=sk-test\n")

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, "warn", cfg.Log.Level)
	require.Equal(t, "sk-test", cfg.Summary.APIKey)
}

func TestLoad_DotEnvDoesNotOverrideEnv(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, ".env", "MIRROR_LOG_LEVEL=warn\n")
	t.Setenv("MIRROR_LOG_LEVEL", "error")

	cfg := loadFrom(t, dir, nil)
	require.Equal(t, "error", cfg.Log.Level)
}

func TestLoad_FlagsOverrideEverything(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeFile(t, dir, "mirror.yaml", "db:\n  path: from-file.db\ndashboard:\n  port: 9090\n")
	t.Setenv("MIRROR_DASHBOARD_PORT", "7000")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 8080, "")
	flags.String("db", "", "")
	flags.Bool("log-json", false, "")
	flags.String("unrelated", "", "")
	require.NoError(t, flags.Parse([]string{"--port", "9999", "--log-json"}))

	cfg := loadFrom(t, dir, flags)
	require.Equal(t, 9999, cfg.Dashboard.Port)
	require.Equal(t, "json", cfg.Log.Format)
	require.Equal(t, "from-file.db", cfg.DB.Path, "unset flags do not shadow the file")
}

func TestValidate_Default(t *testing.T) {
	cfg := Default()
	cfg.Root = t.TempDir()
	require.NoError(t, cfg.Validate())
}

func TestValidate_CollectsErrors(t *testing.T) {
	cfg := Default()
	cfg.Root = filepath.Join(t.TempDir(), "missing")
	cfg.DB.Driver = "postgres"
	cfg.Debounce = 0
	cfg.Files.Jobs = "sub/JOBS.md"
	cfg.Notes.Glob = "memory/[*.md"
	cfg.Log.Level = "loud"
	cfg.Dashboard.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.True(t, strings.HasPrefix(msg, "configuration validation failed:"))
	for _, want := range []string{
		"root must be an existing directory",
		"db.driver must be one of",
		"debounce must be positive",
		"files.jobs must be a file name",
		"notes.glob is not a valid pattern",
		"log.level must be one of",
		"dashboard.port must be between",
	} {
		require.Contains(t, msg, want)
	}
}

func TestValidate_AnthropicNeedsKey(t *testing.T) {
	cfg := Default()
	cfg.Root = t.TempDir()
	cfg.Summary.Provider = ProviderAnthropic

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), APIKeyEnv)

	cfg.Summary.APIKey = "sk-test"
	require.NoError(t, cfg.Validate())
}

func TestWrite_RoundTrip(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	want := Default()
	want.Root = "/srv/notes"
	want.Debounce = 750 * time.Millisecond
	want.Dashboard.Enabled = true
	want.Files.Tasks = "todo.md"

	path := filepath.Join(dir, "nested", DefaultFile)
	require.NoError(t, Write(path, want))

	got, err := Load(Options{File: path, EnvFile: filepath.Join(dir, ".env")})
	require.NoError(t, err)
	got.File = ""
	require.Equal(t, want, got)
}

func TestWrite_Overwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, DefaultFile)
	require.NoError(t, os.WriteFile(path, []byte("root: old\n"), 0o644))

	cfg := Default()
	cfg.Root = "new"
	require.NoError(t, Write(path, cfg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "root: new")
	require.NotContains(t, string(data), "old")
}
