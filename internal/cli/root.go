package cli

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "nudge",
	Short: "Escalating task reminders that don't take silence for an answer",
	Long:  "Nudge turns a task's due time into an escalating sequence of notifications (push, then SMS, then a phone call) and interprets your replies to decide what happens next.",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tickCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(replyCmd)
}
