package cmd

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/robmorgan/orbit/atom"
	"github.com/robmorgan/orbit/timecapsule"
	"github.com/spf13/cobra"
	"gitlab.com/gomidi/midi/v2"
)

var beatStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Width(12).Align(lipgloss.Right)

func init() {
	rootCmd.AddCommand(inspectCmd)
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Dumps a timecapsule archive",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(cmd.OutOrStdout(), args[0])
	},
}

func inspect(w io.Writer, path string) error {
	r, err := timecapsule.Open(path)
	if err != nil {
		return err
	}
	defer r.Close()

	n := 0
	for {
		rec, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		n++
		fmt.Fprintf(w, "%s  %s\n", beatStyle.Render(fmt.Sprintf("%.3f", rec.Beats)), describe(rec.URI, rec.Body))
	}
	fmt.Fprintf(w, "%d records\n", n)
	return nil
}

// describe renders an event body, decoding MIDI messages.
func describe(uri string, body []byte) string {
	if uri == atom.URIMidiEvent {
		return midi.Message(body).String()
	}
	return fmt.Sprintf("%s (%d bytes)", uriStyle.Render(uri), len(body))
}
