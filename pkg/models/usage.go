package models

import (
	"fmt"
	"strings"
	"time"
)

// Period is the bucket size of a usage query
type Period string

const (
	PeriodDay  Period = "day"
	PeriodHour Period = "hour"
)

// ParsePeriod validates a period name, defaulting to day when empty
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodDay:
		return PeriodDay, nil
	case PeriodHour:
		return PeriodHour, nil
	}
	return "", &ValidationError{Field: "period", Value: s, Reason: "must be day or hour"}
}

// UsageData represents one time-bucketed water usage observation
type UsageData struct {
	During            string    `json:"during"`
	Start             time.Time `json:"start"`
	End               time.Time `json:"end"`
	TotalGallons      float64   `json:"total_gallons"`
	IrrigationGallons float64   `json:"irrigation_gallons"`
	IrrigationEvents  float64   `json:"irrigation_events"`
	IsLeaking         bool      `json:"is_leaking"`
}

// UsageResponse is the parsed result of one usage query
type UsageResponse struct {
	UsageData     []UsageData `json:"usage_data"`
	TotalItems    int         `json:"total_items"`
	APIID         string      `json:"api_id"`
	ConsumedViaID string      `json:"consumed_via_id"`
}

// UsageTotals summarizes a UsageResponse
type UsageTotals struct {
	TotalGallons      float64
	IrrigationGallons float64
	LeakRecords       int
}

// Totals sums the gallons of every record
func (r *UsageResponse) Totals() UsageTotals {
	var t UsageTotals
	for _, u := range r.UsageData {
		t.TotalGallons += u.TotalGallons
		t.IrrigationGallons += u.IrrigationGallons
		if u.IsLeaking {
			t.LeakRecords++
		}
	}
	return t
}

// APIUsageRecord is one member of the usage endpoint's response
type APIUsageRecord struct {
	During            string  `json:"during"`
	TotalGallons      float64 `json:"total_gallons"`
	IrrigationGallons float64 `json:"irrigation_gallons"`
	IrrigationEvents  float64 `json:"irrigation_events"`
	IsLeaking         bool    `json:"is_leaking"`
}

// APIUsagePage is the "data" object of the usage endpoint's response
type APIUsagePage struct {
	ID          string           `json:"@id"`
	Member      []APIUsageRecord `json:"member"`
	TotalItems  *int             `json:"totalItems"`
	ConsumedVia *struct {
		ID string `json:"@id"`
	} `json:"consumed_via"`
}

// UsageDataFromAPI validates a raw record and resolves its interval in loc
func UsageDataFromAPI(raw APIUsageRecord, loc *time.Location) (UsageData, error) {
	if err := nonNegative("total_gallons", raw.TotalGallons); err != nil {
		return UsageData{}, err
	}
	if err := nonNegative("irrigation_gallons", raw.IrrigationGallons); err != nil {
		return UsageData{}, err
	}
	if err := nonNegative("irrigation_events", raw.IrrigationEvents); err != nil {
		return UsageData{}, err
	}

	start, end, err := ParseDuring(raw.During, loc)
	if err != nil {
		return UsageData{}, err
	}

	return UsageData{
		During:            raw.During,
		Start:             start,
		End:               end,
		TotalGallons:      raw.TotalGallons,
		IrrigationGallons: raw.IrrigationGallons,
		IrrigationEvents:  raw.IrrigationEvents,
		IsLeaking:         raw.IsLeaking,
	}, nil
}

// UsageResponseFromAPI validates a whole usage page
func UsageResponseFromAPI(page APIUsagePage, loc *time.Location) (*UsageResponse, error) {
	if page.ID == "" {
		return nil, &ValidationError{Field: "@id", Reason: "missing"}
	}
	if page.ConsumedVia == nil || page.ConsumedVia.ID == "" {
		return nil, &ValidationError{Field: "consumed_via", Reason: "missing"}
	}
	if page.TotalItems == nil {
		return nil, &ValidationError{Field: "totalItems", Reason: "missing"}
	}
	if *page.TotalItems < 0 {
		return nil, &ValidationError{Field: "totalItems", Value: fmt.Sprint(*page.TotalItems), Reason: "must be >= 0"}
	}

	records := make([]UsageData, 0, len(page.Member))
	for i, raw := range page.Member {
		u, err := UsageDataFromAPI(raw, loc)
		if err != nil {
			return nil, fmt.Errorf("usage record %d: %w", i, err)
		}
		records = append(records, u)
	}

	return &UsageResponse{
		UsageData:     records,
		TotalItems:    *page.TotalItems,
		APIID:         page.ID,
		ConsumedViaID: page.ConsumedVia.ID,
	}, nil
}

func nonNegative(field string, v float64) error {
	if v < 0 {
		return &ValidationError{Field: field, Value: fmt.Sprint(v), Reason: "must be >= 0"}
	}
	return nil
}
