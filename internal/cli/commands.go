package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lazypower/nudge/internal/config"
	"github.com/lazypower/nudge/internal/engine"
	"github.com/lazypower/nudge/internal/llm"
	"github.com/lazypower/nudge/internal/notify"
	"github.com/lazypower/nudge/internal/store"
	"github.com/spf13/cobra"
)

// buildEngine wires a one-shot engine for CLI commands.
func buildEngine() (*engine.Engine, *store.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	dbPath := cfg.Database.Path
	if dbPath == "" {
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			return nil, nil, err
		}
	}
	db, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}

	var llmClient llm.Client
	if client, err := llm.NewClient(cfg.LLM); err == nil {
		llmClient = client
	}

	eng := engine.New(db, llmClient, notify.New(db, cfg))
	eng.LLMTimeout = cfg.LLM.Timeout
	return eng, db, nil
}

// --- tick command ---

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Run one escalation pass",
	Long:  "Process all due reminders once and exit. Suitable for cron when the server's built-in scheduler is not running.",
	RunE:  runTick,
}

func runTick(cmd *cobra.Command, args []string) error {
	eng, db, err := buildEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	stats, err := eng.Tick(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}

	fmt.Println(stats)
	return nil
}

// --- schedule command ---

var scheduleCmd = &cobra.Command{
	Use:   "schedule <item-id>",
	Short: "Schedule (or reset) the reminder for an item",
	Args:  cobra.ExactArgs(1),
	RunE:  runSchedule,
}

func runSchedule(cmd *cobra.Command, args []string) error {
	itemID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid item id %q", args[0])
	}

	eng, db, err := buildEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	reminder, err := eng.ScheduleReminder(itemID)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	fmt.Printf("reminder %d scheduled, first escalation at %s\n",
		reminder.ID, reminder.NextEscalationAt.Format(time.RFC3339))
	return nil
}

// --- reply command ---

var replyChannel string

var replyCmd = &cobra.Command{
	Use:   "reply <reminder-id> <text...>",
	Short: "Submit a reply to a reminder",
	Long:  "Run the response interpreter on a reply, exactly as if it arrived over a channel. Useful for testing classification without a provider.",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runReply,
}

func runReply(cmd *cobra.Command, args []string) error {
	reminderID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid reminder id %q", args[0])
	}
	text := strings.Join(args[1:], " ")

	eng, db, err := buildEngine()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := eng.Interpret(ctx, reminderID, replyChannel, text)
	if err != nil {
		return fmt.Errorf("reply: %w", err)
	}

	fmt.Printf("action: %s\n", result.Action)
	if result.NewReminderAt != nil {
		fmt.Printf("new reminder at: %s\n", result.NewReminderAt.Format(time.RFC3339))
	}
	if result.PushbackMessage != "" {
		fmt.Printf("pushback: %s\n", result.PushbackMessage)
	}
	return nil
}

func init() {
	replyCmd.Flags().StringVarP(&replyChannel, "channel", "c", store.ChannelApp, "Channel the reply arrived on (push, sms, call, app)")
}
