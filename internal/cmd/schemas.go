package cmd

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/faisal-shah/logmerge/internal/schema"
)

var (
	styleName  = lipgloss.NewStyle().Bold(true)
	styleField = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	styleType  = lipgloss.NewStyle().Faint(true)
)

var schemasCmd = &cobra.Command{
	Use:   "schemas [name-or-file...]",
	Short: "Describe built-in plugins or schema files",
	Long: `Without arguments, list every built-in schema plugin. With arguments,
load each schema (plugin name or .toml file) and describe its fields.`,
	RunE: runSchemas,
}

func init() {
	rootCmd.AddCommand(schemasCmd)
}

func runSchemas(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		names = schema.Plugins()
	}

	out := cmd.OutOrStdout()
	for _, name := range names {
		sc, err := schema.Load(name)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, styleName.Render(sc.Name))
		for _, fd := range sc.Fields {
			line := fmt.Sprintf("  %s %s", styleField.Render(fd.Name), styleType.Render(fd.Type.String()))
			if fd.Name == sc.TimestampField {
				line += " (timestamp)"
			}
			if len(fd.Enum) > 0 {
				opts := make([]string, 0, len(fd.Enum))
				for _, o := range fd.Enum {
					opts = append(opts, o.Value+"="+o.Name)
				}
				line += " [" + strings.Join(opts, " ") + "]"
			}
			fmt.Fprintln(out, line)
		}
	}
	return nil
}
