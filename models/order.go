package models

// Order is a project as held by the project-management system, before any
// time has been booked on it.
type Order struct {
	Number           string   `json:"order_number"`
	AssignedEmployee string   `json:"assigned_employee,omitempty"`
	Systems          []System `json:"systems"`
}
