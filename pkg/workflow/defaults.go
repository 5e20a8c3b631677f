package workflow

import "github.com/MWHEBA/mwheba-tasks-sub000/pkg/models"

// DefaultStatuses is the built-in deployment workflow, used to seed a new
// installation and by the reset-to-defaults administrative action.
func DefaultStatuses() []models.Status {
	return []models.Status{
		{ID: "pending", Label: "قيد الانتظار", Color: "slate", Icon: "fa-regular fa-clock", OrderIndex: 0, IsDefault: true, AllowedNext: []string{"in_design", "on_hold", "cancelled"}},
		{ID: "in_design", Label: "جاري التصميم", Color: "blue", Icon: "fa-solid fa-palette", OrderIndex: 1, AllowedNext: []string{"awaiting_client_response", "has_comments", "on_hold"}},
		{ID: "has_comments", Label: "ملحوظات العميل", Color: "rose", Icon: "fa-regular fa-comments", OrderIndex: 2, AllowedNext: []string{"designer_notes"}},
		{ID: "designer_notes", Label: "ملحوظات المصمم", Color: "amber", Icon: "fa-solid fa-pencil-alt", OrderIndex: 3, AllowedNext: []string{"awaiting_client_response"}},
		{ID: "awaiting_client_response", Label: "في انتظار رد العميل", Color: "orange", Icon: "fa-solid fa-hourglass-half", OrderIndex: 4, AllowedNext: []string{"has_comments", "ready_for_montage", "on_hold"}},
		{ID: "ready_for_montage", Label: "جاهز للمونتاج", Color: "cyan", Icon: "fa-solid fa-layer-group", OrderIndex: 5, AllowedNext: []string{"montage_completed"}},
		{ID: "montage_completed", Label: "تم المونتاج", Color: "purple", Icon: "fa-solid fa-check-circle", OrderIndex: 6, AllowedNext: []string{"ready_for_printing"}},
		{ID: "ready_for_printing", Label: "جاهز للطباعة", Color: "green", Icon: "fa-solid fa-box-open", OrderIndex: 7, AllowedNext: []string{"in_printing"}},
		{ID: "in_printing", Label: "جاري الطباعة", Color: "teal", Icon: "fa-solid fa-print", OrderIndex: 8, AllowedNext: []string{"ready_for_delivery"}},
		{ID: "ready_for_delivery", Label: "جاهز للتسليم", Color: "lime", Icon: "fa-solid fa-truck", OrderIndex: 9, AllowedNext: []string{"delivered"}},
		{ID: "on_hold", Label: "معلق", Color: "slate", Icon: "fa-solid fa-pause-circle", OrderIndex: 10, AllowedNext: nil},
		{ID: "delivered", Label: "تم التسليم", Color: "emerald", Icon: "fa-solid fa-flag-checkered", OrderIndex: 11, IsFinished: true},
		{ID: "cancelled", Label: "ملغي", Color: "red", Icon: "fa-solid fa-ban", OrderIndex: 12, IsFinished: true, IsCancelled: true},
	}
}

// DefaultStatusID seeds tasks whose status got orphaned by a reset.
const DefaultStatusID = "pending"
