package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Aman-CERP/spanlabel/configs"
	"github.com/Aman-CERP/spanlabel/internal/config"
	"github.com/Aman-CERP/spanlabel/internal/output"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
		Long: `Manage spanlabel configuration files.

Configuration precedence (lowest to highest):
  1. Hardcoded defaults
  2. User config (~/.config/spanlabel/config.yaml)
  3. Project config (.spanlabel.yaml)
  4. Environment variables (SPANLABEL_*)`,
		Example: `  # Create user config from template
  spanlabel config init

  # Create .spanlabel.yaml in the project
  spanlabel config init --project

  # Show effective configuration
  spanlabel config show`,
	}

	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigPathCmd())
	cmd.AddCommand(newConfigUpgradeCmd())

	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force, project bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file from a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			path := config.GetUserConfigPath()
			template := configs.UserConfigTemplate
			if project {
				root, err := resolveProject()
				if err != nil {
					return err
				}
				path = filepath.Join(root, ".spanlabel.yaml")
				template = configs.ProjectConfigTemplate
			}

			if _, err := os.Stat(path); err == nil && !force {
				out.Warning("Configuration already exists")
				out.Statusf("📁", "Location: %s", path)
				out.Hint("Use 'spanlabel config upgrade' to add new defaults, or --force to overwrite")
				return nil
			}

			if err := writeFile(path, template); err != nil {
				return err
			}
			out.Success("Created configuration")
			out.Statusf("📁", "Location: %s", path)
			out.Hint("Run 'spanlabel config show' to verify")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	cmd.Flags().BoolVar(&project, "project", false, "Create .spanlabel.yaml in the project instead of the user config")
	return cmd
}

func writeFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func newConfigUpgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upgrade",
		Short: "Back up the user config and add options introduced since it was written",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())
			path := config.GetUserConfigPath()

			existing, err := config.LoadUserConfig()
			if err != nil {
				return err
			}
			if existing == nil {
				out.Warning("No user configuration file found")
				out.Hint("Run 'spanlabel config init' to create one")
				return nil
			}

			backup, err := config.BackupUserConfig()
			if err != nil {
				return err
			}
			added := existing.MergeNewDefaults()
			if err := existing.WriteYAML(path); err != nil {
				return err
			}

			out.Success("Configuration upgraded")
			out.Statusf("📁", "Location: %s", path)
			out.Statusf("💾", "Backup: %s", backup)
			if len(added) == 0 {
				out.Status("", "Already up to date")
				return nil
			}
			out.Status("✨", "New options added with defaults:")
			for _, field := range added {
				out.Statusf("", "  - %s", field)
			}
			return nil
		},
	}
}

func newConfigShowCmd() *cobra.Command {
	var (
		jsonOutput bool
		source     string
	)

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var (
				cfg  *config.Config
				desc string
			)
			switch source {
			case "merged":
				root, loaded, err := loadConfig()
				if err != nil {
					return err
				}
				cfg = loaded
				desc = fmt.Sprintf("merged (defaults + user + project + env) for %s", root)
			case "user":
				loaded, err := config.LoadUserConfig()
				if err != nil {
					return err
				}
				if loaded == nil {
					out := output.New(cmd.OutOrStdout())
					out.Warning("No user configuration file found")
					out.Statusf("📁", "Expected at: %s", config.GetUserConfigPath())
					return nil
				}
				cfg = loaded
				desc = fmt.Sprintf("user (%s)", config.GetUserConfigPath())
			case "project":
				root, err := resolveProject()
				if err != nil {
					return err
				}
				path := config.ProjectConfigPath(root)
				if path == "" {
					out := output.New(cmd.OutOrStdout())
					out.Warningf("No project configuration in %s", root)
					out.Hint("Run 'spanlabel config init --project' to create one")
					return nil
				}
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read config file: %w", err)
				}
				var raw map[string]any
				if err := yaml.Unmarshal(data, &raw); err != nil {
					return fmt.Errorf("failed to parse %s: %w", path, err)
				}
				return printConfig(cmd, raw, fmt.Sprintf("project (%s)", path), jsonOutput)
			case "defaults":
				cfg = config.NewConfig()
				desc = "defaults (hardcoded)"
			default:
				return fmt.Errorf("unknown source %q (use merged, user, project or defaults)", source)
			}

			return printConfig(cmd, cfg, desc, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	cmd.Flags().StringVar(&source, "source", "merged", "Config source: merged, user, project, defaults")
	return cmd
}

// printConfig writes v as indented JSON, or as YAML under a source comment.
func printConfig(cmd *cobra.Command, v any, desc string, asJSON bool) error {
	w := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	_, _ = fmt.Fprintf(w, "# Source: %s\n", desc)
	_, err = w.Write(data)
	return err
}

func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print user config file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), config.GetUserConfigPath())
			return err
		},
	}
}
