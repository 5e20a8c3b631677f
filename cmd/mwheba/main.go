package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MWHEBA/mwheba-tasks-sub000/internal/cli"
	"github.com/MWHEBA/mwheba-tasks-sub000/internal/config"
	internal_http "github.com/MWHEBA/mwheba-tasks-sub000/internal/http"
	"github.com/MWHEBA/mwheba-tasks-sub000/internal/log"
	internal_storage "github.com/MWHEBA/mwheba-tasks-sub000/internal/storage"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/service"
)

var rootCmd = &cobra.Command{Use: "mwheba"}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task tracking server",
	Run: func(cmd *cobra.Command, args []string) {
		logger := log.GetLogger()
		cfg, err := config.Load()
		if err != nil {
			logger.Errorf("Failed to load config: %v", err)
			os.Exit(1)
		}

		connStr, _ := cmd.Flags().GetString("db")
		if connStr == "" {
			connStr = cfg.ConnStr()
		}
		store, err := internal_storage.InitStore(connStr)
		if err != nil {
			logger.Errorf("Failed to initialize store: %v", err)
			os.Exit(1)
		}
		defer store.Close()

		var transport notify.Transport = notify.NewCallMeBotTransport(cfg.GatewayURL)
		if !cfg.NotificationsEnabled {
			logger.Infof("Notifications disabled, deliveries will be dropped")
			transport = notify.NopTransport{}
		}
		router := notify.NewRouter(transport, logger)

		tasks := service.NewTaskService(store, router, nil, logger)
		statuses := service.NewStatusService(store, logger)
		settings := service.NewSettingsService(store, router, logger)

		if err := statuses.SeedDefaults(cmd.Context()); err != nil {
			logger.Errorf("Failed to seed default statuses: %v", err)
			os.Exit(1)
		}

		reminders := service.NewReminderScheduler(tasks, logger)
		if err := reminders.Start(cfg.ReminderSchedule); err != nil {
			logger.Errorf("Failed to start reminder scheduler: %v", err)
			os.Exit(1)
		}
		defer reminders.Stop()

		if err := internal_http.StartServer(cfg.ServerPort, internal_http.Services{
			Tasks:    tasks,
			Statuses: statuses,
			Settings: settings,
		}); err != nil {
			logger.Errorf("Server stopped: %v", err)
			os.Exit(1)
		}
	},
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.PersistentFlags().String("db", "", "Database connection string (optional, falls back to env config)")
	cli.SetupCLI(rootCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
