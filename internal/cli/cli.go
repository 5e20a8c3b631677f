package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/MWHEBA/mwheba-tasks-sub000/internal/config"
	"github.com/MWHEBA/mwheba-tasks-sub000/internal/log"
	internal_storage "github.com/MWHEBA/mwheba-tasks-sub000/internal/storage"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/notify"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/service"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
)

func SetupCLI(rootCmd *cobra.Command) {
	statusesCmd := &cobra.Command{
		Use:   "statuses",
		Short: "List workflow statuses",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := service.NewStatusService(store, log.GetLogger())
			listStatuses(svc)
		},
	}

	tasksCmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := taskService(cmd, store)
			listTasks(svc)
		},
	}

	updateStatusCmd := &cobra.Command{
		Use:   "update-status [taskId] [statusId]",
		Short: "Move a task to a new workflow status",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := taskService(cmd, store)
			task, err := svc.ChangeStatus(context.Background(), args[0], args[1], "")
			if err != nil {
				log.GetLogger().Errorf("Failed to update task status: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to update task status: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Task '%s' is now in status '%s'\n", task.Title, task.StatusID)
		},
	}

	overdueCmd := &cobra.Command{
		Use:   "overdue",
		Short: "List overdue unfinished tasks",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := taskService(cmd, store)
			listOverdue(svc)
		},
	}

	testNotifyCmd := &cobra.Command{
		Use:   "test-notify [recipientId] [templateType]",
		Short: "Send a test notification to a recipient",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := service.NewSettingsService(store, routerFromFlags(cmd), log.GetLogger())
			msg, err := svc.TestSend(context.Background(), args[0], models.EventType(args[1]))
			if err != nil {
				log.GetLogger().Errorf("Test notification failed: %v", err)
				fmt.Fprintf(os.Stderr, "Error: test notification failed: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintf(os.Stdout, "Test notification delivered:\n%s\n", msg)
		},
	}

	resetStatusesCmd := &cobra.Command{
		Use:   "reset-statuses",
		Short: "Replace the status collection with the built-in defaults",
		Run: func(cmd *cobra.Command, args []string) {
			store := storeFromFlags(cmd)
			defer store.Close()
			svc := service.NewStatusService(store, log.GetLogger())
			if err := svc.ResetToDefaults(context.Background()); err != nil {
				log.GetLogger().Errorf("Failed to reset statuses: %v", err)
				fmt.Fprintf(os.Stderr, "Error: failed to reset statuses: %v\n", err)
				os.Exit(1)
			}
			fmt.Fprintln(os.Stdout, "Status collection reset to defaults")
		},
	}

	rootCmd.AddCommand(statusesCmd, tasksCmd, updateStatusCmd, overdueCmd, testNotifyCmd, resetStatusesCmd)
}

func listStatuses(svc *service.StatusService) {
	statuses, err := svc.List(context.Background())
	if err != nil {
		log.GetLogger().Errorf("Failed to list statuses: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list statuses: %v\n", err)
		os.Exit(1)
	}
	if len(statuses) == 0 {
		fmt.Fprintln(os.Stdout, "No statuses found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "ID", "Label", "Finished", "Default", "Allowed Next"})
	for _, s := range statuses {
		next := "any unfinished"
		if len(s.AllowedNext) > 0 {
			next = fmt.Sprintf("%v", s.AllowedNext)
		}
		if s.IsFinished {
			next = "-"
		}
		t.AppendRow(table.Row{s.OrderIndex, s.ID, s.Label, s.IsFinished, s.IsDefault, next})
	}
	t.Render()
}

func listTasks(svc *service.TaskService) {
	tasks, err := svc.ListTasks(context.Background())
	if err != nil {
		log.GetLogger().Errorf("Failed to list tasks: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list tasks: %v\n", err)
		os.Exit(1)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stdout, "No tasks found.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Urgency", "Parent", "Deadline"})
	for _, task := range tasks {
		parent := "-"
		if task.ParentID != nil {
			parent = *task.ParentID
		}
		deadline := "-"
		if task.Deadline != nil {
			deadline = task.Deadline.Format("2006-01-02")
		}
		t.AppendRow(table.Row{task.ID, task.Title, task.StatusID, task.Urgency, parent, deadline})
	}
	t.Render()
}

func listOverdue(svc *service.TaskService) {
	tasks, err := svc.Overdue(context.Background())
	if err != nil {
		log.GetLogger().Errorf("Failed to list overdue tasks: %v", err)
		fmt.Fprintf(os.Stderr, "Error: failed to list overdue tasks: %v\n", err)
		os.Exit(1)
	}
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stdout, "No overdue tasks.")
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"ID", "Title", "Status", "Deadline"})
	for _, task := range tasks {
		t.AppendRow(table.Row{task.ID, task.Title, task.StatusID, task.Deadline.Format("2006-01-02")})
	}
	t.Render()
}

func taskService(cmd *cobra.Command, store storage.Store) *service.TaskService {
	return service.NewTaskService(store, routerFromFlags(cmd), nil, log.GetLogger())
}

func routerFromFlags(cmd *cobra.Command) *notify.Router {
	cfg, err := config.Load()
	if err != nil {
		log.GetLogger().Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	var transport notify.Transport = notify.NewCallMeBotTransport(cfg.GatewayURL)
	if !cfg.NotificationsEnabled {
		transport = notify.NopTransport{}
	}
	return notify.NewRouter(transport, log.GetLogger())
}

func storeFromFlags(cmd *cobra.Command) *internal_storage.PostgresStore {
	dbConnStr, err := cmd.Flags().GetString("db")
	if err != nil {
		log.GetLogger().Errorf("Error retrieving db flag: %v", err)
		os.Exit(1)
	}
	if dbConnStr == "" {
		cfg, cfgErr := config.Load()
		if cfgErr != nil {
			log.GetLogger().Errorf("Failed to load config: %v", cfgErr)
			os.Exit(1)
		}
		dbConnStr = cfg.ConnStr()
	}
	store, err := internal_storage.InitStore(dbConnStr)
	if err != nil {
		log.GetLogger().Errorf("Failed to initialize store: %v", err)
		os.Exit(1)
	}
	return store
}
