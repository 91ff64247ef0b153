package models

import "time"

// OrderRequest is a customer request that may not be fillable from stock
// yet. Unfillable requests form the backorder list.
type OrderRequest struct {
	ID           string       `json:"id"`
	CustomerName string       `json:"customerName"`
	OrderDetails OrderDetails `json:"orderDetails"`
	RequestedBy  string       `json:"requestedBy"`
	Notes        string       `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// DailyOrder is an entry in the daily orders log. DateSent is a local date
// (YYYY-MM-DD). Entries are appended and deleted, never edited.
type DailyOrder struct {
	ID           string       `json:"id"`
	CustomerName string       `json:"customerName"`
	OrderDetails OrderDetails `json:"orderDetails"`
	DateSent     string       `json:"dateSent"`
	LoggedBy     string       `json:"loggedBy,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Customer is an address book entry.
type Customer struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	PhoneNumber    string    `json:"phoneNumber,omitempty"`
	GoogleMapsLink string    `json:"googleMapsLink,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}
