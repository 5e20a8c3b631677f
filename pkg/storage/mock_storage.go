package storage

import (
	"sort"
	"sync"
	"time"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

// mockStore implements Store with in-memory storage for tests and
// examples. Begin hands back the same instance: transactional isolation is
// approximated, which is enough for unit testing the services.
type mockStore struct {
	mu            sync.Mutex
	statuses      map[string]models.Status
	tasks         map[string]models.Task
	comments      map[string]models.Comment
	attachments   map[string]models.Attachment
	activity      []models.ActivityLog
	recipients    map[string]models.Recipient
	overrides     map[models.EventType]string
	notifications []models.NotificationLog
}

// NewMockStore returns an empty in-memory store.
func NewMockStore() Store {
	return &mockStore{
		statuses:    make(map[string]models.Status),
		tasks:       make(map[string]models.Task),
		comments:    make(map[string]models.Comment),
		attachments: make(map[string]models.Attachment),
		recipients:  make(map[string]models.Recipient),
		overrides:   make(map[models.EventType]string),
	}
}

func (m *mockStore) Begin() (Store, error) { return m, nil }
func (m *mockStore) Commit() error         { return nil }
func (m *mockStore) Rollback() error       { return nil }
func (m *mockStore) Close() error          { return nil }

func (m *mockStore) ListStatuses() ([]models.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Status, 0, len(m.statuses))
	for _, s := range m.statuses {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *mockStore) GetStatus(id string) (models.Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.statuses[id]
	if !ok {
		return models.Status{}, ErrNotFound
	}
	return s, nil
}

func (m *mockStore) SaveStatus(s models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[s.ID] = s
	return nil
}

func (m *mockStore) UpdateStatus(s models.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[s.ID]; !ok {
		return ErrNotFound
	}
	m.statuses[s.ID] = s
	return nil
}

func (m *mockStore) DeleteStatus(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.statuses[id]; !ok {
		return ErrNotFound
	}
	delete(m.statuses, id)
	return nil
}

func (m *mockStore) GetTask(id string) (models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return models.Task{}, ErrNotFound
	}
	return t, nil
}

func (m *mockStore) ListTasks() ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *mockStore) ListSubtasks(parentID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.ParentID != nil && *t.ParentID == parentID {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (m *mockStore) ListTasksByStatus(statusID string) ([]models.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Task
	for _, t := range m.tasks {
		if t.StatusID == statusID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *mockStore) ListOverdueTasks(now time.Time) ([]models.Task, error) {
	m.mu.Lock()
	finished := make(map[string]bool, len(m.statuses))
	for id, s := range m.statuses {
		finished[id] = s.IsFinished
	}
	var out []models.Task
	for _, t := range m.tasks {
		if t.Deadline != nil && t.Deadline.Before(now) && !finished[t.StatusID] {
			out = append(out, t)
		}
	}
	m.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(*out[j].Deadline) })
	return out, nil
}

func (m *mockStore) SaveTask(t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[t.ID] = t
	return nil
}

func (m *mockStore) UpdateTask(t models.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return ErrNotFound
	}
	m.tasks[t.ID] = t
	return nil
}

func (m *mockStore) UpdateTaskStatus(id, statusID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	t.StatusID = statusID
	m.tasks[id] = t
	return nil
}

func (m *mockStore) DeleteTask(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	for cid, c := range m.comments {
		if c.TaskID == id {
			delete(m.comments, cid)
		}
	}
	for aid, a := range m.attachments {
		if a.TaskID == id {
			delete(m.attachments, aid)
		}
	}
	return nil
}

func (m *mockStore) GetComment(id string) (models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return models.Comment{}, ErrNotFound
	}
	return c, nil
}

func (m *mockStore) ListComments(taskID string) ([]models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Comment
	for _, c := range m.comments {
		if c.TaskID == taskID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockStore) SaveComment(c models.Comment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments[c.ID] = c
	return nil
}

func (m *mockStore) ResolveComment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.comments[id]
	if !ok {
		return ErrNotFound
	}
	c.IsResolved = true
	m.comments[id] = c
	return nil
}

func (m *mockStore) ListAttachments(taskID string) ([]models.Attachment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Attachment
	for _, a := range m.attachments {
		if a.TaskID == taskID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *mockStore) SaveAttachment(a models.Attachment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attachments[a.ID] = a
	return nil
}

func (m *mockStore) DeleteAttachment(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.attachments[id]; !ok {
		return ErrNotFound
	}
	delete(m.attachments, id)
	return nil
}

func (m *mockStore) AppendActivity(entry models.ActivityLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activity = append(m.activity, entry)
	return nil
}

func (m *mockStore) ListActivity(taskID string) ([]models.ActivityLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.ActivityLog
	for _, e := range m.activity {
		if e.TaskID == taskID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockStore) ListRecipients() ([]models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Recipient, 0, len(m.recipients))
	for _, r := range m.recipients {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockStore) GetRecipient(id string) (models.Recipient, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.recipients[id]
	if !ok {
		return models.Recipient{}, ErrNotFound
	}
	return r, nil
}

func (m *mockStore) SaveRecipient(r models.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recipients[r.ID] = r
	return nil
}

func (m *mockStore) UpdateRecipient(r models.Recipient) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipients[r.ID]; !ok {
		return ErrNotFound
	}
	m.recipients[r.ID] = r
	return nil
}

func (m *mockStore) DeleteRecipient(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recipients[id]; !ok {
		return ErrNotFound
	}
	delete(m.recipients, id)
	return nil
}

func (m *mockStore) GetTemplateOverrides() (map[models.EventType]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[models.EventType]string, len(m.overrides))
	for k, v := range m.overrides {
		out[k] = v
	}
	return out, nil
}

func (m *mockStore) SaveTemplateOverride(t models.EventType, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[t] = text
	return nil
}

func (m *mockStore) DeleteTemplateOverride(t models.EventType) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, t)
	return nil
}

func (m *mockStore) SaveNotificationLog(entry models.NotificationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, entry)
	return nil
}

func (m *mockStore) ListNotificationLogs(taskID string) ([]models.NotificationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.NotificationLog
	for _, n := range m.notifications {
		if taskID == "" || n.TaskID == taskID {
			out = append(out, n)
		}
	}
	return out, nil
}
