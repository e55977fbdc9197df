package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/mxcd/renovate-datasource/internal/configuration"
	"github.com/mxcd/renovate-datasource/internal/output"
	"github.com/mxcd/renovate-datasource/internal/pipeline"
	"github.com/mxcd/renovate-datasource/internal/provider"
	"github.com/mxcd/renovate-datasource/internal/providers"
	"github.com/mxcd/renovate-datasource/internal/util"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var version = "development"

const defaultConfigPath = ".datasourceconfig.yml"

func main() {

	cli.VersionFlag = &cli.BoolFlag{
		Name:    "version",
		Aliases: []string{},
		Usage:   "print only the version",
	}

	cmd := &cli.Command{
		Name:    "renovate-datasource",
		Version: version,
		Usage:   "Generate Renovate custom datasource manifests from upstream version sources",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "debug output",
				Sources: cli.EnvVars("RENOVATE_DATASOURCE_VERBOSE"),
			},
			&cli.BoolFlag{
				Name:    "very-verbose",
				Aliases: []string{"vv"},
				Usage:   "trace output",
				Sources: cli.EnvVars("RENOVATE_DATASOURCE_VERY_VERBOSE"),
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return initCli(ctx, cmd)
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List available datasource providers",
				Flags: []cli.Flag{
					configFlag(),
				},
				Action: listCommand,
			},
			{
				Name:  "validate",
				Usage: "Validate configuration",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:  "output",
						Usage: "Output format: table, json",
						Value: "table",
					},
				},
				Action: validateCommand,
			},
			{
				Name:      "generate",
				Usage:     "Generate a manifest for a single provider",
				ArgsUsage: "<provider>",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringSliceFlag{
						Name:    "opt",
						Aliases: []string{"O"},
						Usage:   "Provider option as key=value (repeatable)",
					},
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Directory to write the manifest into",
						Value:   "./output",
						Sources: cli.EnvVars("RENOVATE_DATASOURCE_OUTPUT_DIR"),
					},
					&cli.StringFlag{
						Name:  "output-file",
						Usage: "Write the manifest to this exact path instead of the output directory",
					},
					&cli.BoolFlag{
						Name:  "stdout",
						Usage: "Print the manifest to stdout instead of writing a file",
					},
					&cli.BoolFlag{
						Name:  "allow-empty",
						Usage: "Treat a provider that found no versions as success and emit the empty manifest",
					},
				},
				Action: generateCommand,
			},
			{
				Name:  "all",
				Usage: "Generate manifests for all providers",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "output-dir",
						Aliases: []string{"o"},
						Usage:   "Directory to write manifests into",
						Value:   "./output",
						Sources: cli.EnvVars("RENOVATE_DATASOURCE_OUTPUT_DIR"),
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of providers to run concurrently",
						Value: pipeline.DefaultWorkers,
					},
					&cli.BoolFlag{
						Name:  "no-progress",
						Usage: "Disable the progress bar",
					},
				},
				Action: allCommand,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal().Err(err).Msg("command terminated with error")
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   defaultConfigPath,
		Sources: cli.EnvVars("RENOVATE_DATASOURCE_CONFIG"),
	}
}

func initCli(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	godotenv.Load()
	util.SetCliLoggerDefaults()
	util.SetCliLogLevel(cmd)
	log.Trace().Msg("Trace logging enabled")
	log.Debug().Msg("Debug logging enabled")
	log.Info().Msg("Info logging enabled")

	return ctx, nil
}

// loadConfig reads the configuration file named by the --config flag. The
// file is optional: when the flag is left at its default and no file
// exists, an empty configuration is returned instead of an error.
func loadConfig(cmd *cli.Command) (*configuration.Config, error) {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if !cmd.IsSet("config") {
			log.Debug().Str("config", configPath).Msg("no configuration file found, using defaults")
			return &configuration.Config{}, nil
		}
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	log.Debug().Str("config", configPath).Msg("loading configuration")
	config, err := configuration.LoadConfiguration(configPath)
	if err != nil {
		return nil, err
	}

	validationResult := configuration.ValidateConfiguration(config)
	if !validationResult.Valid {
		for _, validationErr := range validationResult.Errors {
			log.Error().Str("field", validationErr.Field).Msg(validationErr.Message)
		}
		return nil, fmt.Errorf("configuration validation failed with %d error(s)", len(validationResult.Errors))
	}

	return config, nil
}

func listCommand(ctx context.Context, cmd *cli.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return cli.Exit(fmt.Sprintf("Configuration load error: %v", err), 3)
	}

	registry, err := providers.NewRegistry(config)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build provider registry")
		return cli.Exit(fmt.Sprintf("Registry error: %v", err), 1)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("📦 Datasource Providers")
	t.AppendHeader(table.Row{"Name", "Configured"})

	for _, name := range registry.Names() {
		configured := "-"
		if config.ProviderSettingsByName(name) != nil {
			configured = "✓"
		}
		t.AppendRow(table.Row{name, configured})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Println()

	return nil
}

func validateCommand(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	outputFormat := cmd.String("output")

	log.Info().Str("config", configPath).Msg("Loading configuration...")

	config, err := configuration.LoadConfiguration(configPath)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return cli.Exit(fmt.Sprintf("Configuration load error: %v", err), 3)
	}

	validationResult := configuration.ValidateConfiguration(config)

	if err := outputValidationResult(validationResult, outputFormat); err != nil {
		log.Error().Err(err).Msg("Failed to output validation results")
		return cli.Exit(fmt.Sprintf("Output error: %v", err), 1)
	}

	if !validationResult.Valid {
		return cli.Exit("Configuration validation failed", 3)
	}

	log.Info().Msg("Configuration is valid")
	return nil
}

func outputValidationResult(result *configuration.ValidationResult, format string) error {
	switch format {
	case "table":
		if result.Valid {
			fmt.Println("✓ Configuration is valid")
			return nil
		}
		fmt.Println("✗ Configuration validation failed:")
		fmt.Println()
		for _, err := range result.Errors {
			fmt.Printf("  • %s\n", err.Error())
		}
		fmt.Printf("\nTotal errors: %d\n", len(result.Errors))
		return nil
	case "json":
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		return encoder.Encode(result)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

func generateCommand(ctx context.Context, cmd *cli.Command) error {
	providerName := cmd.Args().First()
	if providerName == "" {
		return cli.Exit("Usage: renovate-datasource generate <provider>", 3)
	}

	config, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return cli.Exit(fmt.Sprintf("Configuration load error: %v", err), 3)
	}

	registry, err := providers.NewRegistry(config)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build provider registry")
		return cli.Exit(fmt.Sprintf("Registry error: %v", err), 1)
	}

	overrides, err := parseOptionPairs(cmd.StringSlice("opt"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("Invalid --opt value: %v", err), 3)
	}
	opts := providers.ConfiguredOptions(config, providerName, overrides)

	log.Info().Str("provider", providerName).Msg("Generating manifest...")

	p := pipeline.New(registry, 1)
	m, err := p.Run(ctx, providerName, opts)

	var unknownErr *provider.UnknownProviderError
	if errors.As(err, &unknownErr) {
		log.Error().Err(err).Msg("Unknown provider")
		return cli.Exit(fmt.Sprintf("Unknown provider: %s (see 'list' for available providers)", providerName), 3)
	}

	var emptyErr *provider.NoVersionsFoundError
	if errors.As(err, &emptyErr) && cmd.Bool("allow-empty") {
		log.Warn().Str("provider", providerName).Msg("No versions found, emitting empty manifest")
		err = nil
	}
	if err != nil {
		log.Error().Err(err).Str("provider", providerName).Msg("Manifest generation failed")
		return cli.Exit(fmt.Sprintf("Manifest generation error: %v", err), 1)
	}

	if cmd.Bool("stdout") {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(m); err != nil {
			return cli.Exit(fmt.Sprintf("Output error: %v", err), 1)
		}
		return nil
	}

	var sink output.Sink
	if path := cmd.String("output-file"); path != "" {
		sink = &output.FileSink{Path: path}
	} else {
		sink = output.NewDirectorySink(outputDir(cmd, config))
	}

	path, err := sink.Write(m, manifestName(providerName, opts))
	if err != nil {
		log.Error().Err(err).Msg("Failed to write manifest")
		return cli.Exit(fmt.Sprintf("Output error: %v", err), 1)
	}

	log.Info().
		Str("provider", providerName).
		Int("releases", len(m.Releases)).
		Str("path", path).
		Msg("Manifest written")
	return nil
}

func allCommand(ctx context.Context, cmd *cli.Command) error {
	config, err := loadConfig(cmd)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return cli.Exit(fmt.Sprintf("Configuration load error: %v", err), 3)
	}

	registry, err := providers.NewRegistry(config)
	if err != nil {
		log.Error().Err(err).Msg("Failed to build provider registry")
		return cli.Exit(fmt.Sprintf("Registry error: %v", err), 1)
	}

	optsByProvider := make(map[string]provider.Options)
	for _, name := range registry.Names() {
		optsByProvider[name] = providers.ConfiguredOptions(config, name, nil)
	}

	p := pipeline.New(registry, cmd.Int("workers"))
	p.Progress = !cmd.Bool("no-progress")

	result := p.RunAll(ctx, optsByProvider)

	sink := output.NewDirectorySink(outputDir(cmd, config))
	paths := make(map[string]string, result.Succeeded)
	for _, r := range result.Results {
		if r.Err != nil {
			continue
		}
		path, writeErr := sink.Write(r.Manifest, manifestName(r.Provider, optsByProvider[r.Provider]))
		if writeErr != nil {
			log.Error().Err(writeErr).Str("provider", r.Provider).Msg("Failed to write manifest")
			continue
		}
		paths[r.Provider] = path
	}

	outputBatchTable(result, paths)

	if result.HasErrors() || len(paths) < result.Succeeded {
		return cli.Exit(fmt.Sprintf("%d of %d provider(s) failed", len(result.Results)-len(paths), len(result.Results)), 1)
	}

	log.Info().Int("manifests", len(paths)).Msg("All manifests generated")
	return nil
}

func outputBatchTable(result *pipeline.BatchResult, paths map[string]string) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle("📦 Manifest Generation")
	t.AppendHeader(table.Row{"Provider", "Releases", "Output", "Status"})

	for _, r := range result.Results {
		if r.Err != nil {
			t.AppendRow(table.Row{r.Provider, "-", "-", fmt.Sprintf("❌ %v", r.Err)})
			continue
		}
		path, written := paths[r.Provider]
		if !written {
			t.AppendRow(table.Row{r.Provider, len(r.Manifest.Releases), "-", "❌ write failed"})
			continue
		}
		t.AppendRow(table.Row{r.Provider, len(r.Manifest.Releases), path, "✅"})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
	fmt.Println()
}

func parseOptionPairs(pairs []string) (provider.Options, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	opts := make(provider.Options, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("expected key=value, got %q", pair)
		}
		opts[key] = value
	}
	return opts, nil
}

// manifestName derives the output file base name from the provider name
// plus the option that distinguishes parallel configurations of the same
// provider, so two images never overwrite each other's manifest.
func manifestName(name string, opts provider.Options) string {
	if image := opts.String("image", ""); image != "" {
		return name + "-" + image
	}
	if imagePath := opts.String("image-path", ""); imagePath != "" {
		return name + "-" + imagePath
	}
	return name
}

func outputDir(cmd *cli.Command, config *configuration.Config) string {
	if cmd.IsSet("output-dir") {
		return cmd.String("output-dir")
	}
	if config.OutputDir != "" {
		return config.OutputDir
	}
	return cmd.String("output-dir")
}
