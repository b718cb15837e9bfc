package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"fixtureprep/internal/meshref"
)

// ErrUsage marks command-line mistakes; callers exit with status 2.
var ErrUsage = errors.New("usage")

// Config holds the settings of one fixtureprep invocation.
type Config struct {
	Format      string
	FixtureRoot string
	OutDir      string
	ClearOut    bool
	Exclude     []string
	Workers     int
	JSON        bool
	Env         string
	LedgerDSN   string
	Artifact    ArtifactConfig
}

// ArtifactConfig selects the object store a staged fixture is published to.
type ArtifactConfig struct {
	Enabled   bool
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type stringListFlag struct {
	values []string
}

func (s *stringListFlag) String() string {
	if s == nil || len(s.values) == 0 {
		return ""
	}
	return strings.Join(s.values, ",")
}

func (s *stringListFlag) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	s.values = append(s.values, v)
	return nil
}

// Load reads .env (if present), then parses args (without the program name).
// Flags win over environment variables, which win over built-in defaults.
func Load(args []string, stderr io.Writer) (*Config, error) {
	_ = godotenv.Load()

	env := firstNonEmpty(strings.TrimSpace(os.Getenv("APP_ENV")), "local")

	fs := flag.NewFlagSet("fixtureprep", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var exclude stringListFlag
	format := fs.String("format", "", "fixture format: "+formatNames())
	fixtureRoot := fs.String("fixture-root",
		firstNonEmpty(strings.TrimSpace(os.Getenv("FIXTURE_ROOT")), "fixtures"),
		"root containing format folders (dae/stl/unity/mjcf)")
	outDir := fs.String("out-dir",
		firstNonEmpty(strings.TrimSpace(os.Getenv("FIXTURE_OUT_DIR")), filepath.Join(os.TempDir(), "zoo-fixtures-prepared")),
		"output root; the staged format folder is created inside this path")
	clearOut := fs.Bool("clear-out", false, "delete existing out-dir/<format> before staging")
	workers := fs.Int("workers", envInt("FIXTURE_WORKERS", 1), "number of description files rewritten in parallel")
	asJSON := fs.Bool("json", false, "print the run summary as JSON")
	publish := fs.Bool("publish", envBool("ARTIFACT_PUBLISH", false), "upload the staged fixture to the artifact store")
	ledger := fs.String("ledger", strings.TrimSpace(os.Getenv("FIXTURE_LEDGER_DSN")),
		"run ledger DSN: a SQLite file path or a postgres:// URL (empty disables)")
	fs.Var(&exclude, "exclude", "glob of description files to leave untouched (repeatable)")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("%w: unexpected arguments %v", ErrUsage, fs.Args())
	}
	if strings.TrimSpace(*format) == "" {
		return nil, fmt.Errorf("%w: --format is required", ErrUsage)
	}
	if _, err := meshref.ParseFormat(*format); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUsage, err)
	}
	if *workers < 1 {
		return nil, fmt.Errorf("%w: --workers must be at least 1", ErrUsage)
	}

	art := loadArtifactConfig(env)
	art.Enabled = *publish

	return &Config{
		Format:      strings.TrimSpace(*format),
		FixtureRoot: *fixtureRoot,
		OutDir:      *outDir,
		ClearOut:    *clearOut,
		Exclude:     exclude.values,
		Workers:     *workers,
		JSON:        *asJSON,
		Env:         env,
		LedgerDSN:   strings.TrimSpace(*ledger),
		Artifact:    art,
	}, nil
}

func loadArtifactConfig(env string) ArtifactConfig {
	return ArtifactConfig{
		Endpoint:  resolveArtifactEndpoint(env),
		Region:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_REGION")), "us-east-1"),
		AccessKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_ACCESS_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_USER"))),
		SecretKey: firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_SECRET_KEY")), strings.TrimSpace(os.Getenv("MINIO_ROOT_PASSWORD"))),
		Bucket:    firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_S3_BUCKET")), "fixtures-prepared"),
		UseSSL:    resolveArtifactUseSSL(env),
	}
}

func resolveArtifactEndpoint(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return firstNonEmpty(strings.TrimSpace(os.Getenv("ARTIFACT_MINIO_ENDPOINT")), "localhost:9000")
	}
	return strings.TrimSpace(os.Getenv("ARTIFACT_S3_ENDPOINT"))
}

func resolveArtifactUseSSL(env string) bool {
	if strings.EqualFold(strings.TrimSpace(env), "local") {
		return false
	}
	return envBool("ARTIFACT_S3_USE_SSL", true)
}

func envBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func envInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

func formatNames() string {
	names := make([]string, len(meshref.Formats))
	for i, f := range meshref.Formats {
		names[i] = string(f)
	}
	return strings.Join(names, ", ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
