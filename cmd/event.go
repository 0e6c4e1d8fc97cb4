package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/frahmantamala/ward-census/internal/core/events"
	"github.com/frahmantamala/ward-census/internal/notification"
	notificationpg "github.com/frahmantamala/ward-census/internal/notification/postgres"
	"github.com/frahmantamala/ward-census/internal/user"
	userpg "github.com/frahmantamala/ward-census/internal/user/postgres"
	"github.com/frahmantamala/ward-census/pkg/logger"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Replay ward form lifecycle events, e.g. to resend notifications that failed to deliver.`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [finalized|approved|rejected|previous_missing]",
	Short: "Publish a ward form event",
	Long:  `Publish a ward form event through the notification subscriber`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := publishFormEvent(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	},
}

var (
	eventFormID    int64
	eventWard      string
	eventDate      string
	eventShift     string
	eventActorID   int64
	eventCreatorID int64
	eventReason    string
)

var formEventTypes = map[string]string{
	"finalized":        events.EventTypeFormFinalized,
	"approved":         events.EventTypeFormApproved,
	"rejected":         events.EventTypeFormRejected,
	"previous_missing": events.EventTypeFormPreviousMissing,
}

func publishFormEvent(name string) error {
	eventType, ok := formEventTypes[name]
	if !ok {
		return fmt.Errorf("unknown event %q", name)
	}

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	lg := logger.LoggerWrapper()

	db, err := initDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to init db: %w", err)
	}
	defer db.Close()

	gdb, err := initGorm(db)
	if err != nil {
		return fmt.Errorf("failed to init gorm: %w", err)
	}

	bus := events.NewEventBus(lg)
	users := user.NewService(userpg.NewUserRepository(gdb), nil, cfg.Security.BCryptCost, lg)
	notifications := notification.NewService(notificationpg.NewNotificationRepository(gdb), lg)
	notification.NewSubscriber(notifications, users, lg).Register(bus)

	event := events.NewFormEvent(eventType, eventFormID, eventWard, eventDate, eventShift, eventActorID, eventCreatorID, eventReason)
	lg.Info("publishing form event", "event_type", eventType, "event_id", event.EventID(), "form_id", eventFormID)

	if err := bus.PublishSync(context.Background(), event); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	lg.Info("form event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().Int64Var(&eventFormID, "form-id", 0, "Ward form id")
	publishEventCmd.Flags().StringVar(&eventWard, "ward", "", "Ward id")
	publishEventCmd.Flags().StringVar(&eventDate, "date", "", "Form date (YYYY-MM-DD)")
	publishEventCmd.Flags().StringVar(&eventShift, "shift", "", "Shift (morning or night)")
	publishEventCmd.Flags().Int64Var(&eventActorID, "actor", 0, "User id who performed the step")
	publishEventCmd.Flags().Int64Var(&eventCreatorID, "creator", 0, "User id who owns the form")
	publishEventCmd.Flags().StringVar(&eventReason, "reason", "", "Rejection reason")
	_ = publishEventCmd.MarkFlagRequired("form-id")
	_ = publishEventCmd.MarkFlagRequired("ward")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
