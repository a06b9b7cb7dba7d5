package cmd

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
)

var (
	nameStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Width(14)
	uriStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

func init() {
	rootCmd.AddCommand(modulesCmd)
}

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Lists the available modules",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRegistry()
		if err != nil {
			return err
		}
		for _, name := range r.Names() {
			d := r.Descriptors[name]
			fmt.Fprintln(cmd.OutOrStdout(), lipgloss.JoinHorizontal(lipgloss.Top,
				nameStyle.Render(d.Name),
				d.Description+"\n"+uriStyle.Render(d.URI),
			))
		}
		return nil
	},
}
