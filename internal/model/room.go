package model

import "time"

// Room is a bookable room owned by a user.  At most one monthly tenant is
// assigned at a time, enforced by the single nullable column.
type Room struct {
	ID                      string    `json:"id"`
	Name                    string    `json:"name"`
	Location                string    `json:"location"`
	Description             string    `json:"description"`
	OwnerID                 string    `json:"owner_id"`
	AssignedMonthlyTenantID *string   `json:"assigned_monthly_tenant_id"`
	AssignedMonthlyTenant   *Profile  `json:"assigned_monthly_tenant,omitempty"`
	CreatedAt               time.Time `json:"created_at"`
}

// RoomDraft is the input of room create and update.
type RoomDraft struct {
	Name                    string  `json:"name" validate:"required,max=120"`
	Location                string  `json:"location" validate:"max=255"`
	Description             string  `json:"description" validate:"max=2000"`
	OwnerID                 string  `json:"owner_id"`
	AssignedMonthlyTenantID *string `json:"assigned_monthly_tenant_id"`
}
