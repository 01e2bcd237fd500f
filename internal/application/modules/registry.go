// Package modules is the page catalog. Every workspace page is declared
// here as a set of table configs plus KPI counters; nothing below this
// layer knows entity names.
package modules

import (
	"fitsutra/internal/application/crud"
	"fitsutra/internal/domain/record"
)

// KPI is one dashboard counter: an exact row count over a tenant-filtered
// table. A backend that omits the count header reports 0, never an error.
type KPI struct {
	Label string
	Table string
}

// Page groups the modules and counters one nav destination renders.
type Page struct {
	Slug        string
	Nav         string
	Description string // markdown
	Modules     []crud.Config
	KPIs        []KPI
}

var statusActivePaused = []record.Option{
	{Value: "active", Label: "Active"},
	{Value: "paused", Label: "Paused"},
	{Value: "expired", Label: "Expired"},
}

// Pages returns the workspace catalog in nav order.
func Pages() []Page {
	return []Page{crm(), payments(), scheduling(), staff(), growth()}
}

// PageBySlug looks up one page.
func PageBySlug(slug string) (Page, bool) {
	for _, p := range Pages() {
		if p.Slug == slug {
			return p, true
		}
	}
	return Page{}, false
}

func crm() Page {
	return Page{
		Slug:        "crm",
		Nav:         "CRM",
		Description: "Track **members**, their plans and active memberships.",
		KPIs: []KPI{
			{Label: "Members", Table: "members"},
			{Label: "Plans", Table: "membership_plans"},
			{Label: "Memberships", Table: "memberships"},
		},
		Modules: []crud.Config{
			{
				Title:     "Members",
				Table:     "members",
				UseModal:  true,
				ModalCols: 2,
				Fields: []record.Field{
					{Name: "full_name", Label: "Full name", Type: record.TypeText, Required: true},
					{Name: "phone", Label: "Phone", Type: record.TypeText, Placeholder: "+91"},
					{Name: "email", Label: "Email", Type: record.TypeText},
					{Name: "join_date", Label: "Joined", Type: record.TypeDate},
					{Name: "monthly_fee", Label: "Monthly fee", Type: record.TypeNumber},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: statusActivePaused},
				},
			},
			{
				Title: "Membership plans",
				Table: "membership_plans",
				Fields: []record.Field{
					{Name: "name", Label: "Plan", Type: record.TypeText, Required: true},
					{Name: "price", Label: "Price", Type: record.TypeNumber},
					{Name: "duration_days", Label: "Duration (days)", Type: record.TypeNumber},
					{Name: "description", Label: "Description", Type: record.TypeTextarea},
				},
			},
			{
				Title: "Memberships",
				Table: "memberships",
				Fields: []record.Field{
					{Name: "member_name", Label: "Member", Type: record.TypeText, Required: true},
					{Name: "plan_name", Label: "Plan", Type: record.TypeText},
					{Name: "start_date", Label: "Starts", Type: record.TypeDate},
					{Name: "end_date", Label: "Ends", Type: record.TypeDate},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: statusActivePaused},
				},
			},
		},
	}
}

func payments() Page {
	return Page{
		Slug:        "payments",
		Nav:         "Payments",
		Description: "Record payments and point-of-sale orders. UPI payments show a scannable QR.",
		KPIs: []KPI{
			{Label: "Payments", Table: "payments"},
			{Label: "Products", Table: "products"},
			{Label: "Orders", Table: "orders"},
		},
		Modules: []crud.Config{
			{
				Title:     "Payments",
				Table:     "payments",
				UseModal:  true,
				ModalCols: 2,
				Fields: []record.Field{
					{Name: "member_name", Label: "Member", Type: record.TypeText, Required: true},
					{Name: "amount", Label: "Amount", Type: record.TypeNumber, Required: true},
					{Name: "payment_date", Label: "Date", Type: record.TypeDate},
					{Name: record.FieldPaymentMethod, Label: "Method", Type: record.TypeSelect, Options: []record.Option{
						{Value: "cash", Label: "Cash"},
						{Value: "card", Label: "Card"},
						{Value: record.PaymentMethodUPI, Label: "UPI"},
						{Value: "bank_transfer", Label: "Bank transfer"},
					}},
					{Name: record.FieldUPIID, Label: "UPI ID", Type: record.TypeText, Placeholder: record.DefaultUPIID},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "paid", Label: "Paid"},
						{Value: "pending", Label: "Pending"},
						{Value: "failed", Label: "Failed"},
					}},
					{Name: "notes", Label: "Notes", Type: record.TypeTextarea},
				},
			},
			{
				Title: "Products",
				Table: "products",
				Fields: []record.Field{
					{Name: "name", Label: "Product", Type: record.TypeText, Required: true},
					{Name: "price", Label: "Price", Type: record.TypeNumber},
					{Name: "stock", Label: "Stock", Type: record.TypeNumber},
					{Name: "category", Label: "Category", Type: record.TypeText},
				},
			},
			{
				Title: "Orders",
				Table: "orders",
				Fields: []record.Field{
					{Name: "customer_name", Label: "Customer", Type: record.TypeText, Required: true},
					{Name: "total", Label: "Total", Type: record.TypeNumber},
					{Name: "order_date", Label: "Date", Type: record.TypeDate},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "pending", Label: "Pending"},
						{Value: "completed", Label: "Completed"},
						{Value: "cancelled", Label: "Cancelled"},
					}},
				},
			},
			{
				Title: "Order items",
				Table: "order_items",
				Fields: []record.Field{
					{Name: "order_id", Label: "Order", Type: record.TypeText, Required: true},
					{Name: "product_name", Label: "Product", Type: record.TypeText},
					{Name: "quantity", Label: "Qty", Type: record.TypeNumber},
					{Name: "unit_price", Label: "Unit price", Type: record.TypeNumber},
				},
			},
		},
	}
}

func scheduling() Page {
	return Page{
		Slug:        "scheduling",
		Nav:         "Scheduling",
		Description: "Classes, their schedules and member bookings.",
		KPIs: []KPI{
			{Label: "Classes", Table: "classes"},
			{Label: "Schedules", Table: "class_schedules"},
			{Label: "Bookings", Table: "bookings"},
		},
		Modules: []crud.Config{
			{
				Title: "Classes",
				Table: "classes",
				Fields: []record.Field{
					{Name: "name", Label: "Class", Type: record.TypeText, Required: true},
					{Name: "instructor", Label: "Instructor", Type: record.TypeText},
					{Name: "capacity", Label: "Capacity", Type: record.TypeNumber},
					{Name: "description", Label: "Description", Type: record.TypeTextarea},
				},
			},
			{
				Title: "Class schedules",
				Table: "class_schedules",
				Fields: []record.Field{
					{Name: "class_name", Label: "Class", Type: record.TypeText, Required: true},
					{Name: "start_time", Label: "Starts", Type: record.TypeDateTime},
					{Name: "end_time", Label: "Ends", Type: record.TypeDateTime},
					{Name: "room", Label: "Room", Type: record.TypeText},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "scheduled", Label: "Scheduled"},
						{Value: "completed", Label: "Completed"},
						{Value: "cancelled", Label: "Cancelled"},
					}},
				},
			},
			{
				Title: "Bookings",
				Table: "bookings",
				Fields: []record.Field{
					{Name: "member_name", Label: "Member", Type: record.TypeText, Required: true},
					{Name: "class_name", Label: "Class", Type: record.TypeText},
					{Name: "booked_at", Label: "Booked", Type: record.TypeDateTime},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "booked", Label: "Booked"},
						{Value: "attended", Label: "Attended"},
						{Value: "no_show", Label: "No-show"},
						{Value: "cancelled", Label: "Cancelled"},
					}},
				},
			},
		},
	}
}

func staff() Page {
	return Page{
		Slug:        "staff",
		Nav:         "Staff",
		Description: "Trainers and shift rosters.",
		KPIs: []KPI{
			{Label: "Trainers", Table: "trainers"},
			{Label: "Shifts", Table: "staff_shifts"},
		},
		Modules: []crud.Config{
			{
				Title: "Trainers",
				Table: "trainers",
				Fields: []record.Field{
					{Name: "full_name", Label: "Full name", Type: record.TypeText, Required: true},
					{Name: "specialty", Label: "Specialty", Type: record.TypeText},
					{Name: "phone", Label: "Phone", Type: record.TypeText},
					{Name: "email", Label: "Email", Type: record.TypeText},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "active", Label: "Active"},
						{Value: "inactive", Label: "Inactive"},
					}},
				},
			},
			{
				Title: "Staff shifts",
				Table: "staff_shifts",
				Fields: []record.Field{
					{Name: "staff_name", Label: "Staff", Type: record.TypeText, Required: true},
					{Name: "shift_date", Label: "Date", Type: record.TypeDate},
					{Name: "start_time", Label: "From", Type: record.TypeText, Placeholder: "09:00"},
					{Name: "end_time", Label: "To", Type: record.TypeText, Placeholder: "17:00"},
					{Name: "role", Label: "Role", Type: record.TypeText},
				},
			},
		},
	}
}

func growth() Page {
	return Page{
		Slug:        "growth",
		Nav:         "Growth",
		Description: "Leads and follow-ups. Demo requests from the public site land here.",
		KPIs: []KPI{
			{Label: "Leads", Table: "leads"},
			{Label: "Follow-ups", Table: "follow_ups"},
		},
		Modules: []crud.Config{
			{
				Title:     "Leads",
				Table:     "leads",
				UseModal:  true,
				ModalCols: 2,
				Fields: []record.Field{
					{Name: "name", Label: "Name", Type: record.TypeText, Required: true},
					{Name: "email", Label: "Email", Type: record.TypeText},
					{Name: "phone", Label: "Phone", Type: record.TypeText},
					{Name: "stage", Label: "Stage", Type: record.TypeSelect, Options: []record.Option{
						{Value: "new", Label: "New"},
						{Value: "contacted", Label: "Contacted"},
						{Value: "demo", Label: "Demo"},
						{Value: "converted", Label: "Converted"},
						{Value: "lost", Label: "Lost"},
					}},
					{Name: "source", Label: "Source", Type: record.TypeText},
					{Name: "notes", Label: "Notes", Type: record.TypeTextarea},
				},
			},
			{
				Title: "Follow-ups",
				Table: "follow_ups",
				Fields: []record.Field{
					{Name: "lead_name", Label: "Lead", Type: record.TypeText, Required: true},
					{Name: "due_date", Label: "Due", Type: record.TypeDate},
					{Name: "channel", Label: "Channel", Type: record.TypeSelect, Options: []record.Option{
						{Value: "call", Label: "Call"},
						{Value: "email", Label: "Email"},
						{Value: "whatsapp", Label: "WhatsApp"},
					}},
					{Name: "status", Label: "Status", Type: record.TypeSelect, Options: []record.Option{
						{Value: "pending", Label: "Pending"},
						{Value: "done", Label: "Done"},
					}},
					{Name: "notes", Label: "Notes", Type: record.TypeTextarea},
				},
			},
		},
	}
}
