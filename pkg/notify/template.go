package notify

import (
	"regexp"
	"strings"

	"github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"
)

// Variable is one recognized placeholder of a template type.
type Variable struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Example     string `json:"example"`
}

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// braceGroupPattern captures every brace-delimited group, including ones
// that violate the {\w+} grammar, so Validate can flag them.
var braceGroupPattern = regexp.MustCompile(`\{[^{}]*\}`)

// defaultTemplates holds the deployment's built-in message texts, keyed by
// event kind. Overrides are persisted per template id and revert to these
// when deleted.
var defaultTemplates = map[models.EventType]string{
	models.NewProjectEvent:       "🆕 *مشروع جديد*\n\n📌 المشروع: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📊 الحالة: {status}\n⚡ الأولوية: {urgency}",
	models.NewSubtaskEvent:       "➕ *بند جديد*\n\n📋 البند: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📊 الحالة: {status}",
	models.SubtaskUpdateEvent:    "✏️ *تعديل بند*\n\n📋 البند: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📏 المقاس: {size}\n🖨️ نوع الطباعة: {printingType}",
	models.SubtaskSpecsEvent:     "⚙️ *تعديل مواصفات*\n\n📋 البند: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📏 المقاس: {size}\n🖨️ نوع الطباعة: {printingType}",
	models.StatusChangeEvent:     "🔄 *تحديث الحالة*\n\n📋 البند: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n✅ {statusMessage}\n📊 الحالة السابقة: {oldStatus}\n📊 الحالة الجديدة: {newStatus}",
	models.CommentAddedEvent:     "💬 *ملاحظة جديدة*\n\n📋 {taskLabel}: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📝 الملاحظة: {commentText}\n🔢 عدد الملاحظات: {commentCount}",
	models.ReplyAddedEvent:       "↩️ *رد جديد*\n\n📋 {taskLabel}: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n💬 الرد: {commentText}",
	models.CommentResolvedEvent:  "✅ *تم حل الملاحظة*\n\n📋 {taskLabel}: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n🎉 تم حل الملاحظة بنجاح",
	models.AttachmentAddedEvent:  "📎 *مرفقات جديدة*\n\n📋 {taskLabel}: {taskTitle}\n👤 العميل: {clientName}\n🔢 كود العميل: {clientCode}\n📁 عدد المرفقات: {attachmentCount}\n📄 الملفات: {attachmentNames}",
	models.DeadlineReminderEvent: "⏰ *تذكير بالموعد النهائي*\n\n📋 البند: {taskTitle}\n👤 العميل: {clientName}\n📊 الحالة: {status}\n📅 الموعد: {deadline}",
}

// catalogue lists the recognized variables per template type, in display
// order. The subset in requiredVars must appear in any saved override.
var catalogue = map[models.EventType][]Variable{
	models.NewProjectEvent: {
		{Name: "taskTitle", Description: "Project title", Example: "Ramadan campaign"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "status", Description: "Current status label", Example: "قيد الانتظار"},
		{Name: "urgency", Description: "Urgency level", Example: "Urgent"},
	},
	models.NewSubtaskEvent: {
		{Name: "taskTitle", Description: "Line item title", Example: "Rollup banner"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "status", Description: "Current status label", Example: "قيد الانتظار"},
	},
	models.SubtaskUpdateEvent: {
		{Name: "taskTitle", Description: "Line item title", Example: "Rollup banner"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "size", Description: "Print size", Example: "85x200"},
		{Name: "printingType", Description: "Printing type", Example: "Digital"},
	},
	models.SubtaskSpecsEvent: {
		{Name: "taskTitle", Description: "Line item title", Example: "Rollup banner"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "size", Description: "Print size", Example: "85x200"},
		{Name: "printingType", Description: "Printing type", Example: "Offset"},
	},
	models.StatusChangeEvent: {
		{Name: "taskTitle", Description: "Line item title", Example: "Rollup banner"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "statusMessage", Description: "Transition summary", Example: "تم تغيير الحالة"},
		{Name: "oldStatus", Description: "Previous status label", Example: "جاري التصميم"},
		{Name: "newStatus", Description: "New status label", Example: "جاهز للمونتاج"},
		{Name: "actor", Description: "Who changed the status", Example: "Ahmed"},
	},
	models.CommentAddedEvent: {
		{Name: "taskTitle", Description: "Task title", Example: "Rollup banner"},
		{Name: "taskLabel", Description: "Task kind label", Example: "البند"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "commentText", Description: "Comment text", Example: "يرجى تكبير الشعار"},
		{Name: "commentCount", Description: "Total comments on the task", Example: "3"},
		{Name: "unresolvedCount", Description: "Unresolved comments on the task", Example: "2"},
	},
	models.ReplyAddedEvent: {
		{Name: "taskTitle", Description: "Task title", Example: "Rollup banner"},
		{Name: "taskLabel", Description: "Task kind label", Example: "البند"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "commentText", Description: "Reply text", Example: "تم التعديل"},
	},
	models.CommentResolvedEvent: {
		{Name: "taskTitle", Description: "Task title", Example: "Rollup banner"},
		{Name: "taskLabel", Description: "Task kind label", Example: "البند"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "unresolvedCount", Description: "Unresolved comments left", Example: "0"},
	},
	models.AttachmentAddedEvent: {
		{Name: "taskTitle", Description: "Task title", Example: "Rollup banner"},
		{Name: "taskLabel", Description: "Task kind label", Example: "البند"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "clientCode", Description: "Client reference code", Example: "C-104"},
		{Name: "attachmentCount", Description: "Number of files added", Example: "2"},
		{Name: "attachmentNames", Description: "File names", Example: "front.pdf, back.pdf"},
	},
	models.DeadlineReminderEvent: {
		{Name: "taskTitle", Description: "Task title", Example: "Rollup banner"},
		{Name: "clientName", Description: "Client display name", Example: "Sara"},
		{Name: "status", Description: "Current status label", Example: "جاري الطباعة"},
		{Name: "deadline", Description: "Deadline date", Example: "2025-03-01"},
	},
}

var requiredVars = map[models.EventType][]string{
	models.NewProjectEvent:       {"taskTitle", "clientName", "clientCode", "status", "urgency"},
	models.NewSubtaskEvent:       {"taskTitle", "clientName", "clientCode", "status"},
	models.SubtaskUpdateEvent:    {"taskTitle", "clientName", "clientCode", "size", "printingType"},
	models.SubtaskSpecsEvent:     {"taskTitle", "clientName", "clientCode", "size", "printingType"},
	models.StatusChangeEvent:     {"taskTitle", "clientName", "clientCode", "statusMessage", "oldStatus", "newStatus"},
	models.CommentAddedEvent:     {"taskTitle", "clientName", "clientCode", "taskLabel", "commentText", "commentCount"},
	models.ReplyAddedEvent:       {"taskTitle", "clientName", "clientCode", "taskLabel", "commentText"},
	models.CommentResolvedEvent:  {"taskTitle", "clientName", "clientCode", "taskLabel"},
	models.AttachmentAddedEvent:  {"taskTitle", "clientName", "clientCode", "taskLabel", "attachmentCount", "attachmentNames"},
	models.DeadlineReminderEvent: {"taskTitle", "clientName", "deadline"},
}

// DefaultTemplate returns the built-in text for a template type.
func DefaultTemplate(t models.EventType) (string, bool) {
	text, ok := defaultTemplates[t]
	return text, ok
}

// Catalogue returns the recognized variables for a template type.
func Catalogue(t models.EventType) []Variable {
	return catalogue[t]
}

// RequiredVariables returns the variables an override must contain.
func RequiredVariables(t models.EventType) []string {
	return requiredVars[t]
}

// KnownEventType reports whether the id names a template in the catalogue.
func KnownEventType(id string) bool {
	_, ok := defaultTemplates[models.EventType(id)]
	return ok
}

// Render fills every {variableName} occurrence with its value. Placeholders
// without a matching key stay verbatim in the output so a misconfigured
// template stays visible to a human instead of silently losing text.
func Render(templateText string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(templateText, func(m string) string {
		name := m[1 : len(m)-1]
		if v, ok := vars[name]; ok {
			return v
		}
		return m
	})
}

// ExampleVariables builds a variable set from the catalogue examples,
// used by interactive test sends.
func ExampleVariables(t models.EventType) map[string]string {
	vars := make(map[string]string)
	for _, v := range catalogue[t] {
		vars[v.Name] = v.Example
	}
	return vars
}

// ValidationResult is the outcome of validating template text.
type ValidationResult struct {
	Valid           bool     `json:"valid"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
	MissingRequired []string `json:"missingRequired,omitempty"`
}

// Validate checks template text against the {\w+} placeholder grammar and
// the template type's catalogue. Malformed placeholders are errors and
// block saving; unknown-but-well-formed placeholders are warnings only,
// consistent with Render leaving them visible.
func Validate(templateText string, t models.EventType) ValidationResult {
	res := ValidationResult{}

	if strings.Count(templateText, "{") != strings.Count(templateText, "}") {
		res.Errors = append(res.Errors, "unbalanced braces in template")
	}

	known := make(map[string]struct{})
	for _, v := range catalogue[t] {
		known[v.Name] = struct{}{}
	}

	present := make(map[string]struct{})
	for _, group := range braceGroupPattern.FindAllString(templateText, -1) {
		if !placeholderPattern.MatchString(group) || placeholderPattern.FindString(group) != group {
			res.Errors = append(res.Errors, "malformed placeholder: "+group)
			continue
		}
		name := group[1 : len(group)-1]
		present[name] = struct{}{}
		if _, ok := known[name]; !ok {
			res.Warnings = append(res.Warnings, "unknown placeholder: {"+name+"}")
		}
	}

	for _, name := range requiredVars[t] {
		if _, ok := present[name]; !ok {
			res.MissingRequired = append(res.MissingRequired, name)
		}
	}

	res.Valid = len(res.Errors) == 0
	return res
}

// Bold wraps text for WhatsApp bold display, skipping text that is
// already wrapped so reuse on delivery text never double-applies.
func Bold(text string) string {
	if len(text) >= 2 && strings.HasPrefix(text, "*") && strings.HasSuffix(text, "*") {
		return text
	}
	return "*" + text + "*"
}

// Italic wraps text for WhatsApp italic display, skipping already
// wrapped text.
func Italic(text string) string {
	if len(text) >= 2 && strings.HasPrefix(text, "_") && strings.HasSuffix(text, "_") {
		return text
	}
	return "_" + text + "_"
}
