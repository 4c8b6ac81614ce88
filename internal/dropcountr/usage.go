package dropcountr

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/sirupsen/logrus"
)

// GetServiceConnection fetches the details of one service connection
func (c *Client) GetServiceConnection(ctx context.Context, id int) (models.ServiceConnection, error) {
	if err := c.requireLogin(); err != nil {
		return models.ServiceConnection{}, err
	}

	res, err := c.apiRequest(ctx).
		SetPathParam("id", strconv.Itoa(id)).
		Get("/api/service_connections/{id}")
	if err != nil {
		return models.ServiceConnection{}, fmt.Errorf("fetching service connection %d: %w", id, err)
	}
	if err := checkResponse(res); err != nil {
		return models.ServiceConnection{}, err
	}

	var body struct {
		Data *models.APIServiceConnection `json:"data"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return models.ServiceConnection{}, fmt.Errorf("parsing service connection %d: %w", id, err)
	}
	if body.Data == nil {
		return models.ServiceConnection{}, fmt.Errorf("parsing service connection %d: response has no data", id)
	}

	sc, err := models.ServiceConnectionFromAPI(*body.Data)
	if err != nil {
		return models.ServiceConnection{}, fmt.Errorf("parsing service connection %d: %w", id, err)
	}
	return sc, nil
}

// GetUsage fetches usage for a service connection between start and end.
// Both bounds are sent as wall-clock time in the client's zone.
func (c *Client) GetUsage(ctx context.Context, serviceConnectionID int, start, end time.Time, period models.Period) (*models.UsageResponse, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}
	period, err := models.ParsePeriod(string(period))
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, &models.ValidationError{Field: "end_date", Value: end.String(), Reason: "before start_date"}
	}

	startISO := models.FormatAPITime(start, c.loc)
	endISO := models.FormatAPITime(end, c.loc)

	c.logger.WithFields(logrus.Fields{
		"service_connection": serviceConnectionID,
		"start":              startISO,
		"end":                endISO,
		"period":             period,
	}).Debug("fetching usage")

	res, err := c.apiRequest(ctx).
		SetPathParam("id", strconv.Itoa(serviceConnectionID)).
		SetQueryParams(map[string]string{
			"start_date": startISO,
			"end_date":   endISO,
			"during":     startISO + "/" + endISO,
			"period":     string(period),
		}).
		Get("/api/service_connections/{id}/usage")
	if err != nil {
		return nil, fmt.Errorf("fetching usage for %d: %w", serviceConnectionID, err)
	}
	if err := checkResponse(res); err != nil {
		return nil, err
	}

	var body struct {
		Data *models.APIUsagePage `json:"data"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return nil, fmt.Errorf("parsing usage for %d: %w", serviceConnectionID, err)
	}
	if body.Data == nil {
		return nil, fmt.Errorf("parsing usage for %d: response has no data", serviceConnectionID)
	}

	usage, err := models.UsageResponseFromAPI(*body.Data, c.loc)
	if err != nil {
		return nil, fmt.Errorf("parsing usage for %d: %w", serviceConnectionID, err)
	}
	return usage, nil
}

// GetUsageBetween is GetUsage with string bounds: YYYY-MM-DD or an ISO-8601
// datetime. A bare end date covers the whole day.
func (c *Client) GetUsageBetween(ctx context.Context, serviceConnectionID int, start, end string, period models.Period) (*models.UsageResponse, error) {
	startTime, err := models.ParseDateBound(start, c.loc, false)
	if err != nil {
		return nil, fmt.Errorf("start date: %w", err)
	}
	endTime, err := models.ParseDateBound(end, c.loc, true)
	if err != nil {
		return nil, fmt.Errorf("end date: %w", err)
	}
	return c.GetUsage(ctx, serviceConnectionID, startTime, endTime, period)
}
