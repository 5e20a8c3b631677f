package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/storage"
)

type DBInterface interface {
	Get(dest interface{}, query string, args ...interface{}) error
	Select(dest interface{}, query string, args ...interface{}) error
	QueryRowx(query string, args ...interface{}) *sqlx.Row
	Exec(query string, args ...interface{}) (sql.Result, error)
}

type PostgresStore struct {
	db DBInterface
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Begin() (storage.Store, error) {
	if db, ok := s.db.(*sqlx.DB); ok {
		tx, err := db.Beginx()
		if err != nil {
			return nil, err
		}
		return &PostgresStore{db: tx}, nil
	}
	return nil, fmt.Errorf("cannot begin transaction on unknown type")
}

func (s *PostgresStore) Commit() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Commit()
	}
	return fmt.Errorf("cannot commit: not a transaction")
}

func (s *PostgresStore) Rollback() error {
	if tx, ok := s.db.(*sqlx.Tx); ok {
		return tx.Rollback()
	}
	return fmt.Errorf("cannot rollback: not a transaction")
}

func (s *PostgresStore) Close() error {
	if db, ok := s.db.(*sqlx.DB); ok {
		return db.Close()
	}
	return nil // No-op for *sqlx.Tx
}

// statusRow carries the jsonb allowed_next column alongside the model.
type statusRow struct {
	models.Status
	AllowedNextRaw []byte `db:"allowed_next"`
}

func (r statusRow) toModel() (models.Status, error) {
	st := r.Status
	if len(r.AllowedNextRaw) > 0 {
		if err := json.Unmarshal(r.AllowedNextRaw, &st.AllowedNext); err != nil {
			return models.Status{}, fmt.Errorf("decode allowed_next for status %s: %w", st.ID, err)
		}
	}
	return st, nil
}

func (s *PostgresStore) ListStatuses() ([]models.Status, error) {
	rows := []statusRow{}
	err := s.db.Select(&rows, "SELECT * FROM task_statuses ORDER BY order_index")
	if err != nil {
		return nil, fmt.Errorf("list statuses: %w", err)
	}
	statuses := make([]models.Status, 0, len(rows))
	for _, r := range rows {
		st, convErr := r.toModel()
		if convErr != nil {
			return nil, convErr
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (s *PostgresStore) GetStatus(id string) (models.Status, error) {
	var row statusRow
	err := s.db.Get(&row, "SELECT * FROM task_statuses WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Status{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Status{}, fmt.Errorf("get status %s: %w", id, err)
	}
	return row.toModel()
}

func (s *PostgresStore) SaveStatus(st models.Status) error {
	allowed, err := json.Marshal(st.AllowedNext)
	if err != nil {
		return fmt.Errorf("encode allowed_next for status %s: %w", st.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO task_statuses (id, label, color, icon, order_index, is_finished, is_default, is_cancelled, allowed_next)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		st.ID, st.Label, st.Color, st.Icon, st.OrderIndex, st.IsFinished, st.IsDefault, st.IsCancelled, allowed)
	if err != nil {
		return fmt.Errorf("save status %s: %w", st.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(st models.Status) error {
	allowed, err := json.Marshal(st.AllowedNext)
	if err != nil {
		return fmt.Errorf("encode allowed_next for status %s: %w", st.ID, err)
	}
	res, err := s.db.Exec(
		`UPDATE task_statuses SET label = $1, color = $2, icon = $3, order_index = $4,
		 is_finished = $5, is_default = $6, is_cancelled = $7, allowed_next = $8 WHERE id = $9`,
		st.Label, st.Color, st.Icon, st.OrderIndex, st.IsFinished, st.IsDefault, st.IsCancelled, allowed, st.ID)
	if err != nil {
		return fmt.Errorf("update status %s: %w", st.ID, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) DeleteStatus(id string) error {
	res, err := s.db.Exec("DELETE FROM task_statuses WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete status %s: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) GetTask(id string) (models.Task, error) {
	var t models.Task
	err := s.db.Get(&t, "SELECT * FROM tasks WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Task{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (s *PostgresStore) ListTasks() ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks ORDER BY order_index, created_at")
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) ListSubtasks(parentID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE parent_id = $1 ORDER BY order_index", parentID)
	if err != nil {
		return nil, fmt.Errorf("list subtasks of %s: %w", parentID, err)
	}
	return tasks, nil
}

func (s *PostgresStore) ListTasksByStatus(statusID string) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks, "SELECT * FROM tasks WHERE status = $1 ORDER BY order_index", statusID)
	if err != nil {
		return nil, fmt.Errorf("list tasks by status %s: %w", statusID, err)
	}
	return tasks, nil
}

func (s *PostgresStore) ListOverdueTasks(now time.Time) ([]models.Task, error) {
	tasks := []models.Task{}
	err := s.db.Select(&tasks,
		`SELECT t.* FROM tasks t
		 JOIN task_statuses st ON st.id = t.status
		 WHERE t.deadline IS NOT NULL AND t.deadline < $1 AND NOT st.is_finished
		 ORDER BY t.deadline`, now)
	if err != nil {
		return nil, fmt.Errorf("list overdue tasks: %w", err)
	}
	return tasks, nil
}

func (s *PostgresStore) SaveTask(t models.Task) error {
	_, err := s.db.Exec(
		`INSERT INTO tasks (id, title, description, urgency, status, client_id, parent_id, order_index, printing_type, size, is_vip, deadline, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		t.ID, t.Title, t.Description, t.Urgency, t.StatusID, t.ClientID, t.ParentID, t.OrderIndex,
		t.PrintingType, t.Size, t.IsVIP, t.Deadline, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateTask(t models.Task) error {
	res, err := s.db.Exec(
		`UPDATE tasks
		 SET title = $1, description = $2, urgency = $3, printing_type = $4, size = $5, is_vip = $6, deadline = $7
		 WHERE id = $8`,
		t.Title, t.Description, t.Urgency, t.PrintingType, t.Size, t.IsVIP, t.Deadline, t.ID)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) UpdateTaskStatus(id, statusID string) error {
	res, err := s.db.Exec("UPDATE tasks SET status = $1 WHERE id = $2", statusID, id)
	if err != nil {
		return fmt.Errorf("update task %s status: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) DeleteTask(id string) error {
	// Comments and attachments go with the task via ON DELETE CASCADE.
	res, err := s.db.Exec("DELETE FROM tasks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) GetComment(id string) (models.Comment, error) {
	var c models.Comment
	err := s.db.Get(&c, "SELECT * FROM comments WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Comment{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Comment{}, fmt.Errorf("get comment %s: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) ListComments(taskID string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := s.db.Select(&comments, "SELECT * FROM comments WHERE task_id = $1 ORDER BY created_at", taskID)
	if err != nil {
		return nil, fmt.Errorf("list comments of %s: %w", taskID, err)
	}
	return comments, nil
}

func (s *PostgresStore) SaveComment(c models.Comment) error {
	_, err := s.db.Exec(
		`INSERT INTO comments (id, task_id, parent_comment_id, text, is_resolved, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.TaskID, c.ParentCommentID, c.Text, c.IsResolved, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("save comment %s: %w", c.ID, err)
	}
	return nil
}

func (s *PostgresStore) ResolveComment(id string) error {
	res, err := s.db.Exec("UPDATE comments SET is_resolved = TRUE WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("resolve comment %s: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) ListAttachments(taskID string) ([]models.Attachment, error) {
	attachments := []models.Attachment{}
	err := s.db.Select(&attachments, "SELECT * FROM attachments WHERE task_id = $1 ORDER BY created_at", taskID)
	if err != nil {
		return nil, fmt.Errorf("list attachments of %s: %w", taskID, err)
	}
	return attachments, nil
}

func (s *PostgresStore) SaveAttachment(a models.Attachment) error {
	_, err := s.db.Exec(
		`INSERT INTO attachments (id, task_id, name, type, size, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.TaskID, a.Name, a.Type, a.Size, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("save attachment %s: %w", a.ID, err)
	}
	return nil
}

func (s *PostgresStore) DeleteAttachment(id string) error {
	res, err := s.db.Exec("DELETE FROM attachments WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete attachment %s: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

type activityRow struct {
	models.ActivityLog
	DetailsRaw []byte `db:"details"`
}

func (s *PostgresStore) AppendActivity(entry models.ActivityLog) error {
	var details []byte
	if len(entry.Details) > 0 {
		var err error
		details, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("encode activity details: %w", err)
		}
	}
	_, err := s.db.Exec(
		`INSERT INTO activity_logs (id, task_id, timestamp, type, description, details)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.TaskID, entry.Timestamp, entry.Type, entry.Description, details)
	if err != nil {
		return fmt.Errorf("append activity for %s: %w", entry.TaskID, err)
	}
	return nil
}

func (s *PostgresStore) ListActivity(taskID string) ([]models.ActivityLog, error) {
	rows := []activityRow{}
	err := s.db.Select(&rows, "SELECT * FROM activity_logs WHERE task_id = $1 ORDER BY timestamp", taskID)
	if err != nil {
		return nil, fmt.Errorf("list activity of %s: %w", taskID, err)
	}
	entries := make([]models.ActivityLog, 0, len(rows))
	for _, r := range rows {
		entry := r.ActivityLog
		if len(r.DetailsRaw) > 0 {
			if err := json.Unmarshal(r.DetailsRaw, &entry.Details); err != nil {
				return nil, fmt.Errorf("decode activity details: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

type recipientRow struct {
	models.Recipient
	PreferencesRaw []byte `db:"preferences"`
}

func (r recipientRow) toModel() (models.Recipient, error) {
	rec := r.Recipient
	if len(r.PreferencesRaw) > 0 {
		if err := json.Unmarshal(r.PreferencesRaw, &rec.Preferences); err != nil {
			return models.Recipient{}, fmt.Errorf("decode preferences for recipient %s: %w", rec.ID, err)
		}
	}
	return rec, nil
}

func (s *PostgresStore) ListRecipients() ([]models.Recipient, error) {
	rows := []recipientRow{}
	err := s.db.Select(&rows, "SELECT * FROM recipients ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("list recipients: %w", err)
	}
	recipients := make([]models.Recipient, 0, len(rows))
	for _, r := range rows {
		rec, convErr := r.toModel()
		if convErr != nil {
			return nil, convErr
		}
		recipients = append(recipients, rec)
	}
	return recipients, nil
}

func (s *PostgresStore) GetRecipient(id string) (models.Recipient, error) {
	var row recipientRow
	err := s.db.Get(&row, "SELECT * FROM recipients WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return models.Recipient{}, storage.ErrNotFound
	}
	if err != nil {
		return models.Recipient{}, fmt.Errorf("get recipient %s: %w", id, err)
	}
	return row.toModel()
}

func (s *PostgresStore) SaveRecipient(rec models.Recipient) error {
	prefs, err := json.Marshal(rec.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences for recipient %s: %w", rec.ID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO recipients (id, name, category, phone, api_key, enabled, role, preferences)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.Name, rec.Category, rec.Phone, rec.APIKey, rec.Enabled, rec.Role, prefs)
	if err != nil {
		return fmt.Errorf("save recipient %s: %w", rec.ID, err)
	}
	return nil
}

func (s *PostgresStore) UpdateRecipient(rec models.Recipient) error {
	prefs, err := json.Marshal(rec.Preferences)
	if err != nil {
		return fmt.Errorf("encode preferences for recipient %s: %w", rec.ID, err)
	}
	res, err := s.db.Exec(
		`UPDATE recipients SET name = $1, category = $2, phone = $3, api_key = $4,
		 enabled = $5, role = $6, preferences = $7 WHERE id = $8`,
		rec.Name, rec.Category, rec.Phone, rec.APIKey, rec.Enabled, rec.Role, prefs, rec.ID)
	if err != nil {
		return fmt.Errorf("update recipient %s: %w", rec.ID, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

func (s *PostgresStore) DeleteRecipient(id string) error {
	res, err := s.db.Exec("DELETE FROM recipients WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete recipient %s: %w", id, err)
	}
	return checkAffected(res, storage.ErrNotFound)
}

type overrideRow struct {
	TemplateType string `db:"template_type"`
	Text         string `db:"text"`
}

func (s *PostgresStore) GetTemplateOverrides() (map[models.EventType]string, error) {
	rows := []overrideRow{}
	err := s.db.Select(&rows, "SELECT template_type, text FROM template_overrides")
	if err != nil {
		return nil, fmt.Errorf("list template overrides: %w", err)
	}
	overrides := make(map[models.EventType]string, len(rows))
	for _, r := range rows {
		overrides[models.EventType(r.TemplateType)] = r.Text
	}
	return overrides, nil
}

func (s *PostgresStore) SaveTemplateOverride(t models.EventType, text string) error {
	_, err := s.db.Exec(
		`INSERT INTO template_overrides (template_type, text) VALUES ($1, $2)
		 ON CONFLICT (template_type) DO UPDATE SET text = EXCLUDED.text`,
		string(t), text)
	if err != nil {
		return fmt.Errorf("save template override %s: %w", t, err)
	}
	return nil
}

func (s *PostgresStore) DeleteTemplateOverride(t models.EventType) error {
	_, err := s.db.Exec("DELETE FROM template_overrides WHERE template_type = $1", string(t))
	if err != nil {
		return fmt.Errorf("delete template override %s: %w", t, err)
	}
	return nil
}

func (s *PostgresStore) SaveNotificationLog(entry models.NotificationLog) error {
	_, err := s.db.Exec(
		`INSERT INTO notification_logs (id, task_id, recipient, message, template_type, sent_at, success, error_message)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.TaskID, entry.Recipient, entry.Message, entry.TemplateType,
		entry.SentAt, entry.Success, entry.ErrorMessage)
	if err != nil {
		return fmt.Errorf("save notification log: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListNotificationLogs(taskID string) ([]models.NotificationLog, error) {
	logs := []models.NotificationLog{}
	var err error
	if taskID == "" {
		err = s.db.Select(&logs, "SELECT * FROM notification_logs ORDER BY sent_at DESC")
	} else {
		err = s.db.Select(&logs, "SELECT * FROM notification_logs WHERE task_id = $1 ORDER BY sent_at DESC", taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("list notification logs: %w", err)
	}
	return logs, nil
}

func checkAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
