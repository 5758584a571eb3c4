// Package initcmder provides the init command for initializing a local .spool
// directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/spool/pkg/config"
)

const (
	dirName    = ".spool"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .spool/ directory in the current working directory.

Creates a local .spool/ directory that takes precedence over the default
~/.spool/ directory for configuration, context state, and local databases,
and writes a config.toml with default values.

Use --preset to start from a named vector store preset (local, chroma,
qdrant, pinecone, pgvector) or from a config.toml served at an HTTP(S) URL.
Without --preset an existing config.toml is left untouched; with --preset it
is overwritten.

Examples:
  spool init
  spool init --preset local
  spool init --preset qdrant
  spool init --preset https://example.com/spool/config.toml`

const initShortDesc string = "Initialize a local .spool/ directory"

type initCommander struct {
	preset string
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return cmder.run()
		},
	}

	cmd.Flags().StringVar(&cmder.preset, "preset", "",
		"Vector store preset name or config.toml URL")

	return cmd
}

func (c *initCommander) run() error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .spool directory: %w", err)
	}

	configPath := filepath.Join(dir, configFile)

	if c.preset == "" {
		// Without a preset, never clobber an existing config.
		if _, err := os.Stat(configPath); err == nil {
			fmt.Printf("Already initialized: %s\n", dir)
			return nil
		} else if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("checking config: %w", err)
		}

		if err := writeConfig(configPath, config.NewDefaultConfig()); err != nil {
			return err
		}

		fmt.Printf("Initialized .spool directory: %s\n", dir)
		return nil
	}

	cfg, err := resolvePreset(c.preset)
	if err != nil {
		return err
	}

	if err := writeConfig(configPath, cfg); err != nil {
		return err
	}

	fmt.Printf("Initialized .spool directory with %q preset: %s\n", c.preset, dir)
	return nil
}

// resolvePreset turns a preset argument into a Config. HTTP(S) values are
// fetched and parsed as a config.toml document; anything else is looked up
// as a named preset.
func resolvePreset(preset string) (*config.Config, error) {
	if strings.HasPrefix(preset, "http://") || strings.HasPrefix(preset, "https://") {
		return fetchRemoteConfig(preset)
	}
	return config.PresetConfig(preset)
}

func fetchRemoteConfig(url string) (*config.Config, error) {
	resp, err := http.Get(url) //nolint:gosec // URL is user-provided by design
	if err != nil {
		return nil, fmt.Errorf("fetching remote config: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching remote config: HTTP %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading remote config: %w", err)
	}

	return config.ParseConfigTOML(data)
}

func writeConfig(path string, cfg *config.Config) error {
	cfger, err := config.NewConfiger(filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}
