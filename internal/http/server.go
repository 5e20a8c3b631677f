package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/MWHEBA/mwheba-tasks-sub000/internal/log"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/service"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/workflow"
)

// Services bundles what the handlers need.
type Services struct {
	Tasks    *service.TaskService
	Statuses *service.StatusService
	Settings *service.SettingsService
}

func StartServer(port string, svcs Services) error {
	mux := NewMux(svcs)
	log.GetLogger().Infof("Starting server on :%s", port)
	return http.ListenAndServe(":"+port, mux)
}

// NewMux wires the handlers, split out so tests can drive them without a
// listening socket.
func NewMux(svcs Services) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", HealthHandler)
	mux.HandleFunc("/statuses", StatusesHandler(svcs.Statuses))
	mux.HandleFunc("/tasks", TasksHandler(svcs.Tasks))
	mux.HandleFunc("/tasks/status", UpdateStatusHandler(svcs.Tasks))
	mux.HandleFunc("/tasks/progress", ProgressHandler(svcs.Tasks))
	mux.HandleFunc("/templates", TemplatesHandler(svcs.Settings))
	return mux
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "MWHEBA tasks server is running")
}

func StatusesHandler(svc *service.StatusService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			statuses, err := svc.List(r.Context())
			if err != nil {
				log.GetLogger().Errorf("Failed to list statuses: %v", err)
				http.Error(w, fmt.Sprintf("Failed to list statuses: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, statuses)
		case http.MethodPost:
			var status models.Status
			if err := json.NewDecoder(r.Body).Decode(&status); err != nil {
				http.Error(w, fmt.Sprintf("Invalid status payload: %v", err), http.StatusBadRequest)
				return
			}
			if err := svc.Create(r.Context(), status); err != nil {
				log.GetLogger().Errorf("Failed to create status: %v", err)
				http.Error(w, fmt.Sprintf("Failed to create status: %v", err), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, status)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func TasksHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			tasks, err := svc.ListTasks(r.Context())
			if err != nil {
				log.GetLogger().Errorf("Failed to list tasks: %v", err)
				http.Error(w, fmt.Sprintf("Failed to list tasks: %v", err), http.StatusInternalServerError)
				return
			}
			writeJSON(w, tasks)
		case http.MethodPost:
			var in service.CreateTaskInput
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				http.Error(w, fmt.Sprintf("Invalid task payload: %v", err), http.StatusBadRequest)
				return
			}
			task, err := svc.CreateTask(r.Context(), in)
			if err != nil {
				log.GetLogger().Errorf("Failed to create task: %v", err)
				http.Error(w, fmt.Sprintf("Failed to create task: %v", err), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusCreated)
			writeJSON(w, task)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

// UpdateStatusHandler moves a task along the workflow. Illegal transitions
// come back as 409 so clients can distinguish them from bad input.
func UpdateStatusHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		taskID := r.FormValue("taskId")
		statusID := r.FormValue("statusId")
		if taskID == "" || statusID == "" {
			http.Error(w, "Missing 'taskId' or 'statusId' parameter", http.StatusBadRequest)
			return
		}
		task, err := svc.ChangeStatus(r.Context(), taskID, statusID, r.FormValue("actorPhone"))
		if err != nil {
			log.GetLogger().Errorf("Failed to update task %s status: %v", taskID, err)
			switch err.(type) {
			case *workflow.IllegalTransitionError:
				http.Error(w, err.Error(), http.StatusConflict)
			case *workflow.InvalidStatusError:
				http.Error(w, err.Error(), http.StatusBadRequest)
			default:
				http.Error(w, fmt.Sprintf("Failed to update status: %v", err), http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, task)
	}
}

func ProgressHandler(svc *service.TaskService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		taskID := r.URL.Query().Get("taskId")
		if taskID == "" {
			http.Error(w, "Missing 'taskId' parameter", http.StatusBadRequest)
			return
		}
		progress, err := svc.Progress(r.Context(), taskID)
		if err != nil {
			log.GetLogger().Errorf("Failed to compute progress for %s: %v", taskID, err)
			http.Error(w, fmt.Sprintf("Failed to compute progress: %v", err), http.StatusNotFound)
			return
		}
		writeJSON(w, progress)
	}
}

func TemplatesHandler(svc *service.SettingsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			data, err := svc.ExportTemplates(r.Context())
			if err != nil {
				log.GetLogger().Errorf("Failed to export templates: %v", err)
				http.Error(w, fmt.Sprintf("Failed to export templates: %v", err), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write(data)
		case http.MethodPut:
			data, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
			if err != nil {
				http.Error(w, fmt.Sprintf("Failed to read request body: %v", err), http.StatusBadRequest)
				return
			}
			if err := svc.ImportTemplates(r.Context(), data); err != nil {
				log.GetLogger().Errorf("Failed to import templates: %v", err)
				http.Error(w, fmt.Sprintf("Failed to import templates: %v", err), http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.GetLogger().Errorf("Failed to encode response: %v", err)
	}
}
