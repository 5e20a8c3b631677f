package notify

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

type nopLogger struct{}

func (nopLogger) Infof(format string, args ...interface{})  {}
func (nopLogger) Errorf(format string, args ...interface{}) {}

type sendCall struct {
	Phone string
	Text  string
}

// fakeTransport records sends and can fail or panic for chosen phones.
type fakeTransport struct {
	mu       sync.Mutex
	sent     []sendCall
	failFor  map[string]error
	panicFor map[string]bool
}

func (f *fakeTransport) Send(ctx context.Context, phone, apiKey, text string) error {
	if f.panicFor[phone] {
		panic("transport exploded")
	}
	if err, ok := f.failFor[phone]; ok {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sendCall{Phone: phone, Text: text})
	return nil
}

func enabledRecipient(id, name, phone string) models.Recipient {
	return models.Recipient{ID: id, Name: name, Phone: phone, APIKey: "key-" + id, Enabled: true}
}

func TestFilter(t *testing.T) {
	r := NewRouter(&fakeTransport{}, nopLogger{})

	t.Run("DisabledIsAlwaysExcluded", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		rec.Enabled = false
		rec.Preferences.Events = map[models.EventType]bool{models.NewProjectEvent: true}
		out := r.Filter(Event{Type: models.NewProjectEvent}, []models.Recipient{rec})
		assert.Empty(t, out)
	})

	t.Run("AbsentPreferenceMeansOptIn", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		out := r.Filter(Event{Type: models.NewProjectEvent}, []models.Recipient{rec})
		assert.Len(t, out, 1)
	})

	t.Run("ExplicitOptOut", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		rec.Preferences.Events = map[models.EventType]bool{models.NewProjectEvent: false}
		out := r.Filter(Event{Type: models.NewProjectEvent}, []models.Recipient{rec})
		assert.Empty(t, out)
	})

	t.Run("PerStatusKeyBeatsGeneralStatusChange", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		rec.Preferences.Events = map[models.EventType]bool{models.StatusChangeEvent: true}
		rec.Preferences.Statuses = map[string]bool{"done": false}

		out := r.Filter(Event{Type: models.StatusChangeEvent, StatusID: "done"}, []models.Recipient{rec})
		assert.Empty(t, out, "opted out of done specifically")

		out = r.Filter(Event{Type: models.StatusChangeEvent, StatusID: "in_design"}, []models.Recipient{rec})
		assert.Len(t, out, 1, "other statuses still delivered")
	})

	t.Run("RoleRestrictsEventKinds", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		rec.Role = models.PrintManagerRole
		out := r.Filter(Event{Type: models.NewProjectEvent}, []models.Recipient{rec})
		assert.Empty(t, out, "print manager does not get new-project events")

		out = r.Filter(Event{Type: models.StatusChangeEvent}, []models.Recipient{rec})
		assert.Len(t, out, 1)
	})

	t.Run("NoRoleSkipsRoleFilter", func(t *testing.T) {
		rec := enabledRecipient("1", "A", "100")
		out := r.Filter(Event{Type: models.SubtaskSpecsEvent}, []models.Recipient{rec})
		assert.Len(t, out, 1)
	})

	t.Run("ActorIsExcluded", func(t *testing.T) {
		actor := enabledRecipient("1", "A", "+20 100 555")
		other := enabledRecipient("2", "B", "200")
		out := r.Filter(Event{Type: models.CommentAddedEvent, ActorPhone: "20100555"}, []models.Recipient{actor, other})
		assert.Len(t, out, 1)
		assert.Equal(t, "2", out[0].ID)
	})
}

func TestDispatch(t *testing.T) {
	ctx := context.Background()

	t.Run("DeliversToEveryTarget", func(t *testing.T) {
		transport := &fakeTransport{}
		r := NewRouter(transport, nopLogger{})
		recipients := []models.Recipient{
			enabledRecipient("1", "A", "100"),
			enabledRecipient("2", "B", "200"),
			enabledRecipient("3", "C", "300"),
		}
		results, err := r.Dispatch(ctx, Event{
			Type: models.NewProjectEvent,
			Vars: map[string]string{"taskTitle": "Banner", "clientName": "Sara", "clientCode": "C-1", "status": "Pending", "urgency": "Normal"},
		}, recipients, nil)
		assert.NoError(t, err)
		assert.Len(t, results, 3)
		for _, res := range results {
			assert.True(t, res.Sent)
			assert.NoError(t, res.Err)
			assert.Contains(t, res.Message, "Banner")
		}
		assert.Len(t, transport.sent, 3)
	})

	t.Run("FailureIsIsolatedPerRecipient", func(t *testing.T) {
		transport := &fakeTransport{failFor: map[string]error{"200": errors.New("gateway down")}}
		r := NewRouter(transport, nopLogger{})
		recipients := []models.Recipient{
			enabledRecipient("1", "A", "100"),
			enabledRecipient("2", "B", "200"),
		}
		results, err := r.Dispatch(ctx, Event{Type: models.CommentAddedEvent, Vars: map[string]string{}}, recipients, nil)
		assert.NoError(t, err)
		assert.Len(t, results, 2)

		byPhone := map[string]DeliveryResult{}
		for _, res := range results {
			byPhone[res.Phone] = res
		}
		assert.True(t, byPhone["100"].Sent)
		assert.False(t, byPhone["200"].Sent)
		assert.Error(t, byPhone["200"].Err)
	})

	t.Run("PanicBecomesResultError", func(t *testing.T) {
		transport := &fakeTransport{panicFor: map[string]bool{"100": true}}
		r := NewRouter(transport, nopLogger{})
		results, err := r.Dispatch(ctx, Event{Type: models.ReplyAddedEvent, Vars: map[string]string{}},
			[]models.Recipient{enabledRecipient("1", "A", "100")}, nil)
		assert.NoError(t, err)
		assert.Len(t, results, 1)
		assert.False(t, results[0].Sent)
		assert.Error(t, results[0].Err)
	})

	t.Run("OverrideReplacesDefault", func(t *testing.T) {
		transport := &fakeTransport{}
		r := NewRouter(transport, nopLogger{})
		overrides := map[models.EventType]string{
			models.NewProjectEvent: "custom for {recipientName}",
		}
		results, err := r.Dispatch(ctx, Event{Type: models.NewProjectEvent, Vars: map[string]string{}},
			[]models.Recipient{enabledRecipient("1", "Ahmed", "100")}, overrides)
		assert.NoError(t, err)
		assert.Equal(t, "custom for Ahmed", results[0].Message)
	})

	t.Run("UnknownTemplateTypeFailsEarly", func(t *testing.T) {
		r := NewRouter(&fakeTransport{}, nopLogger{})
		_, err := r.Dispatch(ctx, Event{Type: "NOT_A_TYPE"},
			[]models.Recipient{enabledRecipient("1", "A", "100")}, nil)
		assert.Error(t, err)
	})

	t.Run("NoTargetsIsNotAnError", func(t *testing.T) {
		r := NewRouter(&fakeTransport{}, nopLogger{})
		results, err := r.Dispatch(ctx, Event{Type: models.NewProjectEvent}, nil, nil)
		assert.NoError(t, err)
		assert.Empty(t, results)
	})
}
