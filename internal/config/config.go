package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the compiled-in configuration with optional overrides.
type Config struct {
	SchemaVersion string        `json:"schemaVersion" mapstructure:"schemaVersion"`
	App           AppConfig     `json:"app" mapstructure:"app"`
	Paths         PathsConfig   `json:"paths" mapstructure:"paths"`
	Run           RunConfig     `json:"run" mapstructure:"run"`
	Logging       LoggingConfig `json:"logging" mapstructure:"logging"`
	Scan          ScanConfig    `json:"scan" mapstructure:"scan"`
	Apply         ApplyConfig   `json:"apply" mapstructure:"apply"`
	History       HistoryConfig `json:"history" mapstructure:"history"`
	Storage       StorageConfig `json:"storage" mapstructure:"storage"`
	Signing       SigningConfig `json:"signing" mapstructure:"signing"`
}

type AppConfig struct {
	Name string `json:"name" mapstructure:"name"`
}

type PathsConfig struct {
	WorkspaceRoot string `json:"workspaceRoot" mapstructure:"workspaceRoot"`
	StateDir      string `json:"stateDir" mapstructure:"stateDir"`
	ReportsDir    string `json:"reportsDir" mapstructure:"reportsDir"`
	BaselineDir   string `json:"baselineDir" mapstructure:"baselineDir"`
	WaiverFile    string `json:"waiverFile" mapstructure:"waiverFile"`
}

type RunConfig struct {
	DefaultMode  string `json:"defaultMode" mapstructure:"defaultMode"`
	LookbackDays int    `json:"lookbackDays" mapstructure:"lookbackDays"`
	TopFiles     int    `json:"topFiles" mapstructure:"topFiles"`
	Concurrency  int    `json:"concurrency" mapstructure:"concurrency"`
}

type LoggingConfig struct {
	Level string `json:"level" mapstructure:"level"`
	JSON  bool   `json:"json" mapstructure:"json"`
}

type ScanConfig struct {
	Scanners         []string         `json:"scanners" mapstructure:"scanners"`
	ExcludeDirs      []string         `json:"excludeDirs" mapstructure:"excludeDirs"`
	SourceExtensions []string         `json:"sourceExtensions" mapstructure:"sourceExtensions"`
	MaxFileBytes     int64            `json:"maxFileBytes" mapstructure:"maxFileBytes"`
	I18n             I18nConfig       `json:"i18n" mapstructure:"i18n"`
	Routes           RoutesConfig     `json:"routes" mapstructure:"routes"`
	Duplicates       DuplicatesConfig `json:"duplicates" mapstructure:"duplicates"`
	Structure        StructureConfig  `json:"structure" mapstructure:"structure"`
	Console          ConsoleConfig    `json:"console" mapstructure:"console"`
}

type CatalogConfig struct {
	Locale string `json:"locale" mapstructure:"locale"`
	Path   string `json:"path" mapstructure:"path"`
}

type I18nConfig struct {
	Catalogs           []CatalogConfig `json:"catalogs" mapstructure:"catalogs"`
	Functions          []string        `json:"functions" mapstructure:"functions"`
	TransComponents    []string        `json:"transComponents" mapstructure:"transComponents"`
	NamespaceSeparator string          `json:"namespaceSeparator" mapstructure:"namespaceSeparator"`
	ReportUnused       bool            `json:"reportUnused" mapstructure:"reportUnused"`
}

type RoutesConfig struct {
	Globs   []string `json:"globs" mapstructure:"globs"`
	Methods []string `json:"methods" mapstructure:"methods"`
}

type DuplicatesConfig struct {
	IgnoreNames []string `json:"ignoreNames" mapstructure:"ignoreNames"`
}

// BucketRule maps files to a canonical bucket. Kind is one of suffix,
// contains, ext or prefix; the first matching rule wins.
type BucketRule struct {
	Kind   string `json:"kind" mapstructure:"kind"`
	Match  string `json:"match" mapstructure:"match"`
	Bucket string `json:"bucket" mapstructure:"bucket"`
}

type StructureConfig struct {
	Buckets        []string     `json:"buckets" mapstructure:"buckets"`
	Rules          []BucketRule `json:"rules" mapstructure:"rules"`
	AllowRootFiles bool         `json:"allowRootFiles" mapstructure:"allowRootFiles"`
}

type ConsoleConfig struct {
	Methods []string `json:"methods" mapstructure:"methods"`
}

type ApplyConfig struct {
	BranchPrefix  string            `json:"branchPrefix" mapstructure:"branchPrefix"`
	CommitMessage string            `json:"commitMessage" mapstructure:"commitMessage"`
	Aliases       map[string]string `json:"aliases" mapstructure:"aliases"`
}

type HistoryConfig struct {
	MaxSnapshots int `json:"maxSnapshots" mapstructure:"maxSnapshots"`
	KeepDays     int `json:"keepDays" mapstructure:"keepDays"`
}

// StorageConfig points at an S3-compatible bucket used for baseline push/pull.
type StorageConfig struct {
	Endpoint  string `json:"endpoint" mapstructure:"endpoint"`
	Region    string `json:"region" mapstructure:"region"`
	Bucket    string `json:"bucket" mapstructure:"bucket"`
	Prefix    string `json:"prefix" mapstructure:"prefix"`
	AccessKey string `json:"accessKey" mapstructure:"accessKey"`
	SecretKey string `json:"secretKey" mapstructure:"secretKey"`
	UseSSL    bool   `json:"useSSL" mapstructure:"useSSL"`
}

type SigningConfig struct {
	KeyPath string `json:"keyPath" mapstructure:"keyPath"`
}

type Flags struct {
	ConfigPath string
}

// Default returns the compiled-in defaults.
func Default() Config {
	return Config{
		SchemaVersion: "1.0",
		App: AppConfig{
			Name: "fixzit-agent",
		},
		Paths: PathsConfig{
			WorkspaceRoot: ".",
			StateDir:      ".fixzit",
			ReportsDir:    ".fixzit/reports",
			BaselineDir:   ".fixzit/baseline",
			WaiverFile:    ".fixzit/waivers.json",
		},
		Run: RunConfig{
			DefaultMode:  "report",
			LookbackDays: 14,
			TopFiles:     20,
		},
		Logging: LoggingConfig{
			Level: "info",
			JSON:  false,
		},
		Scan: ScanConfig{
			Scanners: []string{"i18n", "routes", "duplicates", "structure", "console", "imports"},
			ExcludeDirs: []string{
				".git",
				".fixzit",
				"node_modules",
				".next",
				".turbo",
				".vercel",
				"dist",
				"build",
				"out",
				"coverage",
				".cache",
				"vendor",
				"__pycache__",
				".venv",
			},
			SourceExtensions: []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"},
			MaxFileBytes:     2 << 20,
			I18n: I18nConfig{
				Catalogs: []CatalogConfig{
					{Locale: "en", Path: "i18n/en.json"},
					{Locale: "ar", Path: "i18n/ar.json"},
				},
				Functions:          []string{"t", "i18n.t"},
				TransComponents:    []string{"Trans"},
				NamespaceSeparator: ":",
				ReportUnused:       true,
			},
			Routes: RoutesConfig{
				Globs: []string{
					"app/**/route.{ts,js}",
					"src/app/**/route.{ts,js}",
					"pages/api/**/*.{ts,js}",
					"src/pages/api/**/*.{ts,js}",
				},
				Methods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
			},
			Duplicates: DuplicatesConfig{
				IgnoreNames: []string{
					"index.ts", "index.tsx", "index.js",
					"route.ts", "route.js",
					"page.tsx", "page.ts", "layout.tsx", "loading.tsx", "error.tsx", "not-found.tsx",
					"types.ts", "README.md", ".gitkeep", ".DS_Store",
					"package-lock.json", "pnpm-lock.yaml", "yarn.lock", "go.sum",
				},
			},
			Structure: StructureConfig{
				Buckets: []string{
					"app/", "components/", "contexts/", "hooks/", "lib/", "server/",
					"services/", "types/", "i18n/", "public/", "styles/",
					"tests/", "scripts/", "docs/", "config/",
				},
				Rules: []BucketRule{
					{Kind: "contains", Match: "/__tests__/", Bucket: "tests/"},
					{Kind: "suffix", Match: ".test.ts", Bucket: "tests/"},
					{Kind: "suffix", Match: ".test.tsx", Bucket: "tests/"},
					{Kind: "suffix", Match: ".spec.ts", Bucket: "tests/"},
					{Kind: "suffix", Match: ".spec.tsx", Bucket: "tests/"},
					{Kind: "ext", Match: ".md", Bucket: "docs/"},
					{Kind: "ext", Match: ".py", Bucket: "scripts/"},
					{Kind: "ext", Match: ".sh", Bucket: "scripts/"},
					{Kind: "ext", Match: ".css", Bucket: "styles/"},
					{Kind: "ext", Match: ".tsx", Bucket: "components/"},
					{Kind: "ext", Match: ".ts", Bucket: "lib/"},
					{Kind: "ext", Match: ".js", Bucket: "lib/"},
				},
				AllowRootFiles: true,
			},
			Console: ConsoleConfig{
				Methods: []string{"log", "debug", "info", "warn", "error", "trace"},
			},
		},
		Apply: ApplyConfig{
			BranchPrefix:  "fixzit/reorg-",
			CommitMessage: "chore(structure): move files into canonical buckets",
			Aliases:       map[string]string{"@/": ""},
		},
		History: HistoryConfig{
			MaxSnapshots: 50,
			KeepDays:     14,
		},
		Storage: StorageConfig{
			Region: "us-east-1",
			Prefix: "fixzit/baseline",
			UseSSL: true,
		},
	}
}

// Load reads a YAML or JSON config from disk. FIXZIT_* environment variables
// override file values (FIXZIT_RUN_LOOKBACKDAYS, FIXZIT_STORAGE_SECRETKEY, ...).
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FIXZIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetDefault("scan.i18n.reportUnused", true)
	v.SetDefault("scan.structure.allowRootFiles", true)
	v.SetDefault("storage.useSSL", true)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Resolve applies defaults and optional overrides, then validates.
func Resolve(flags Flags) (Config, string, []string, error) {
	cfg := Default()
	var cfgPath string
	var warnings []string

	if flags.ConfigPath != "" {
		loaded, err := Load(flags.ConfigPath)
		if err != nil {
			return Config{}, "", nil, err
		}
		mergeConfigDefaults(&loaded, &cfg)
		cfg = loaded
		cfgPath = flags.ConfigPath
	}

	if cfg.SchemaVersion == "" {
		cfg.SchemaVersion = "1.0"
	}
	if cfg.Run.LookbackDays < 0 {
		cfg.Run.LookbackDays = Default().Run.LookbackDays
		warnings = append(warnings, "run.lookbackDays must not be negative; using default")
	}
	if len(cfg.Scan.I18n.Catalogs) == 1 {
		warnings = append(warnings, "only one i18n catalog configured; parity checks need two")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, "", nil, err
	}

	return cfg, cfgPath, warnings, nil
}

// Validate checks the resolved configuration for consistency.
func (c *Config) Validate() error {
	if c.SchemaVersion != "1.0" {
		return fmt.Errorf("unsupported schemaVersion: %s (expected 1.0)", c.SchemaVersion)
	}
	switch c.Run.DefaultMode {
	case "report", "apply":
	default:
		return fmt.Errorf("unsupported run.defaultMode: %s (expected report or apply)", c.Run.DefaultMode)
	}
	known := map[string]bool{"i18n": true, "routes": true, "duplicates": true, "structure": true, "console": true, "imports": true}
	for _, s := range c.Scan.Scanners {
		if !known[s] {
			return fmt.Errorf("unknown scanner in scan.scanners: %s", s)
		}
	}
	for i, r := range c.Scan.Structure.Rules {
		switch r.Kind {
		case "suffix", "contains", "ext", "prefix":
		default:
			return fmt.Errorf("scan.structure.rules[%d]: unknown kind %q", i, r.Kind)
		}
		if r.Match == "" || r.Bucket == "" {
			return fmt.Errorf("scan.structure.rules[%d]: match and bucket are required", i)
		}
	}
	for i, cat := range c.Scan.I18n.Catalogs {
		if cat.Locale == "" || cat.Path == "" {
			return fmt.Errorf("scan.i18n.catalogs[%d]: locale and path are required", i)
		}
	}
	return nil
}

func mergeConfigDefaults(cfg *Config, defaults *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = defaults.App.Name
	}
	if cfg.Paths.WorkspaceRoot == "" {
		cfg.Paths.WorkspaceRoot = defaults.Paths.WorkspaceRoot
	}
	if cfg.Paths.StateDir == "" {
		cfg.Paths.StateDir = defaults.Paths.StateDir
	}
	if cfg.Paths.ReportsDir == "" {
		cfg.Paths.ReportsDir = defaults.Paths.ReportsDir
	}
	if cfg.Paths.BaselineDir == "" {
		cfg.Paths.BaselineDir = defaults.Paths.BaselineDir
	}
	if cfg.Paths.WaiverFile == "" {
		cfg.Paths.WaiverFile = defaults.Paths.WaiverFile
	}
	if cfg.Run.DefaultMode == "" {
		cfg.Run.DefaultMode = defaults.Run.DefaultMode
	}
	if cfg.Run.LookbackDays == 0 {
		cfg.Run.LookbackDays = defaults.Run.LookbackDays
	}
	if cfg.Run.TopFiles == 0 {
		cfg.Run.TopFiles = defaults.Run.TopFiles
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = defaults.Logging.Level
	}
	if len(cfg.Scan.Scanners) == 0 {
		cfg.Scan.Scanners = defaults.Scan.Scanners
	}
	if len(cfg.Scan.ExcludeDirs) == 0 {
		cfg.Scan.ExcludeDirs = defaults.Scan.ExcludeDirs
	}
	if len(cfg.Scan.SourceExtensions) == 0 {
		cfg.Scan.SourceExtensions = defaults.Scan.SourceExtensions
	}
	if cfg.Scan.MaxFileBytes == 0 {
		cfg.Scan.MaxFileBytes = defaults.Scan.MaxFileBytes
	}
	if len(cfg.Scan.I18n.Catalogs) == 0 {
		cfg.Scan.I18n.Catalogs = defaults.Scan.I18n.Catalogs
	}
	if len(cfg.Scan.I18n.Functions) == 0 {
		cfg.Scan.I18n.Functions = defaults.Scan.I18n.Functions
	}
	if len(cfg.Scan.I18n.TransComponents) == 0 {
		cfg.Scan.I18n.TransComponents = defaults.Scan.I18n.TransComponents
	}
	if cfg.Scan.I18n.NamespaceSeparator == "" {
		cfg.Scan.I18n.NamespaceSeparator = defaults.Scan.I18n.NamespaceSeparator
	}
	if len(cfg.Scan.Routes.Globs) == 0 {
		cfg.Scan.Routes.Globs = defaults.Scan.Routes.Globs
	}
	if len(cfg.Scan.Routes.Methods) == 0 {
		cfg.Scan.Routes.Methods = defaults.Scan.Routes.Methods
	}
	if cfg.Scan.Duplicates.IgnoreNames == nil {
		cfg.Scan.Duplicates.IgnoreNames = defaults.Scan.Duplicates.IgnoreNames
	}
	if len(cfg.Scan.Structure.Buckets) == 0 {
		cfg.Scan.Structure.Buckets = defaults.Scan.Structure.Buckets
	}
	if cfg.Scan.Structure.Rules == nil {
		cfg.Scan.Structure.Rules = defaults.Scan.Structure.Rules
	}
	if len(cfg.Scan.Console.Methods) == 0 {
		cfg.Scan.Console.Methods = defaults.Scan.Console.Methods
	}
	if cfg.Apply.BranchPrefix == "" {
		cfg.Apply.BranchPrefix = defaults.Apply.BranchPrefix
	}
	if cfg.Apply.CommitMessage == "" {
		cfg.Apply.CommitMessage = defaults.Apply.CommitMessage
	}
	if cfg.Apply.Aliases == nil {
		cfg.Apply.Aliases = defaults.Apply.Aliases
	}
	if cfg.History.MaxSnapshots == 0 {
		cfg.History.MaxSnapshots = defaults.History.MaxSnapshots
	}
	if cfg.History.KeepDays == 0 {
		cfg.History.KeepDays = defaults.History.KeepDays
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = defaults.Storage.Region
	}
	if cfg.Storage.Prefix == "" {
		cfg.Storage.Prefix = defaults.Storage.Prefix
	}
}
