package models

import "time"

// InventoryItem is one stocked article. Quantity never goes below zero.
type InventoryItem struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Quantity  int       `json:"quantity"`
	ManagedBy string    `json:"managedBy"`
	Supplier  string    `json:"supplier,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
