package models

// UsageRecord is a usage observation kept in the local store
type UsageRecord struct {
	ID                  int    `json:"id"`
	ServiceConnectionID int    `json:"service_connection_id"`
	Period              Period `json:"period"`
	Published           bool   `json:"published"`
	UsageData
}
