package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	scopeerr "github.com/Aman-CERP/protoscope/internal/errors"
	"github.com/Aman-CERP/protoscope/internal/output"
	"github.com/Aman-CERP/protoscope/internal/protocol"
)

func newPluginsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect and probe protocol plugins",
		Long: `Inspect the protocol plugins compiled into protoscope.

Each plugin publishes metadata, a configuration schema and an instance
lifecycle (connect, poll, disconnect).`,
		Example: `  # List plugins
  protoscope plugins list

  # Show a plugin's settings
  protoscope plugins schema example.simple

  # Run one full lifecycle against a plugin
  protoscope plugins probe example.simple --set dummy=3`,
	}

	cmd.AddCommand(newPluginsListCmd(a))
	cmd.AddCommand(newPluginsSchemaCmd(a))
	cmd.AddCommand(newPluginsProbeCmd(a))

	return cmd
}

// pluginSummary is the JSON form of one listed plugin.
type pluginSummary struct {
	protocol.Metadata
	SchemaFields int `json:"schema_fields"`
}

func newPluginsListCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			plugins := m.Plugins()
			summaries := make([]pluginSummary, 0, len(plugins))
			for _, p := range plugins {
				summaries = append(summaries, pluginSummary{Metadata: p.Metadata(), SchemaFields: len(p.ConfigSchema())})
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(summaries)
			}

			for _, s := range summaries {
				out.Statusf("🔌", "%s  %s (version %s, api %s, %d settings)",
					s.ID, s.Name, s.Version, s.APIVersion, s.SchemaFields)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newPluginsSchemaCmd(a *app) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "schema <plugin-id>",
		Short: "Show a plugin's configuration schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.manager(cmd)
			if err != nil {
				return err
			}
			p, err := m.Lookup(args[0])
			if err != nil {
				return err
			}

			schema := p.ConfigSchema()
			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				if schema == nil {
					schema = protocol.Schema{}
				}
				return out.JSON(schema)
			}

			meta := p.Metadata()
			out.Header(fmt.Sprintf("%s (%s)", meta.ID, meta.Name))
			if len(schema) == 0 {
				out.Dim("  no settings")
				return nil
			}
			for _, f := range schema {
				out.Statusf("•", "%s: %s", f.Name, describeField(f))
				if f.Description != "" {
					out.Status("", "  "+f.Description)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func newPluginsProbeCmd(a *app) *cobra.Command {
	var (
		sets       []string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "probe <plugin-id>",
		Short: "Validate, create, connect, poll once and disconnect",
		Long: `Run one complete instance lifecycle against a plugin and report what
came back. Settings are given with --set and parsed as YAML scalars, so
--set port=502 is an integer and --set host=plc1 a string.

The whole probe is bounded by poll.timeout from the configuration.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := parseSettings(sets)
			if err != nil {
				return err
			}

			m, err := a.manager(cmd)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if timeout := a.cfg.SessionOptions().Timeout; timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			report, err := m.Probe(ctx, args[0], settings)
			if err != nil {
				return err
			}

			out := output.New(cmd.OutOrStdout())
			if jsonOutput {
				return out.JSON(report)
			}

			out.KeyValue("Plugin id", 18, report.Metadata.ID)
			out.KeyValue("Schema fields", 18, report.SchemaFields)
			out.KeyValue("Polled value count", 18, len(report.Sample))
			for _, kv := range formatSample(report.Sample) {
				out.Status("", kv)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "Plugin setting as key=value (repeatable)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

// parseSettings turns key=value pairs into a plugin config. Values are YAML
// scalars; anything that is not a scalar is kept as the raw string.
func parseSettings(pairs []string) (protocol.Config, error) {
	cfg := protocol.Config{}
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, scopeerr.ValidationError(fmt.Sprintf("invalid --set %q", pair), nil).
				WithSuggestion("Use --set key=value")
		}

		var value any = raw
		var decoded any
		if err := yaml.Unmarshal([]byte(raw), &decoded); err == nil {
			switch decoded.(type) {
			case int, float64, bool, string:
				value = decoded
			}
		}
		cfg[key] = value
	}
	return cfg, nil
}

func describeField(f protocol.ConfigField) string {
	parts := []string{f.Type.String()}
	if f.Required {
		parts = append(parts, "required")
	} else {
		parts = append(parts, "optional")
	}
	if f.Default != nil {
		parts = append(parts, fmt.Sprintf("default %v", f.Default))
	}

	c := f.Constraints
	if c.Min != nil {
		parts = append(parts, fmt.Sprintf("min %g", *c.Min))
	}
	if c.Max != nil {
		parts = append(parts, fmt.Sprintf("max %g", *c.Max))
	}
	if len(c.Options) > 0 {
		parts = append(parts, "one of "+strings.Join(c.Options, "|"))
	}
	if c.Pattern != "" {
		parts = append(parts, "matching "+c.Pattern)
	}
	return strings.Join(parts, ", ")
}

// formatSample renders a sample as sorted key=value strings.
func formatSample(s protocol.Sample) []string {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = fmt.Sprintf("%s=%v", k, s[k])
	}
	return out
}
