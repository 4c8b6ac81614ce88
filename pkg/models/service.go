package models

import "fmt"

// ServiceConnection is a single metered water connection
type ServiceConnection struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Address       string `json:"address"`
	AccountNumber string `json:"account_number,omitempty"`
	ServiceType   string `json:"service_type,omitempty"`
	Status        string `json:"status,omitempty"`
	MeterSerial   string `json:"meter_serial,omitempty"`
	APIID         string `json:"api_id,omitempty"`
	PremiseID     string `json:"premise_id,omitempty"`
}

// Premise is a property on the account with its service connections
type Premise struct {
	ID                 int                 `json:"id"`
	APIID              string              `json:"api_id,omitempty"`
	Name               string              `json:"name"`
	Address            string              `json:"address"`
	ServiceConnections []ServiceConnection `json:"service_connections"`
}

// APIServiceConnection is a service connection as the API returns it
type APIServiceConnection struct {
	ID            int     `json:"id"`
	APIID         string  `json:"@id"`
	Name          string  `json:"name"`
	Address       string  `json:"address"`
	AccountNumber *string `json:"account_number"`
	ServiceType   *string `json:"service_type"`
	Status        *string `json:"status"`
	MeterSerial   *string `json:"meter_serial"`
}

// APIPremise is a premises entry of the account-info endpoint
type APIPremise struct {
	ID                 int                    `json:"id"`
	APIID              string                 `json:"@id"`
	Name               string                 `json:"name"`
	Address            string                 `json:"address"`
	ServiceConnections []APIServiceConnection `json:"service_connections"`
}

// ServiceConnectionFromAPI validates a raw service connection
func ServiceConnectionFromAPI(raw APIServiceConnection) (ServiceConnection, error) {
	if raw.ID <= 0 {
		return ServiceConnection{}, &ValidationError{Field: "id", Value: fmt.Sprint(raw.ID), Reason: "must be a positive integer"}
	}
	return ServiceConnection{
		ID:            raw.ID,
		Name:          raw.Name,
		Address:       raw.Address,
		AccountNumber: deref(raw.AccountNumber),
		ServiceType:   deref(raw.ServiceType),
		Status:        deref(raw.Status),
		MeterSerial:   deref(raw.MeterSerial),
		APIID:         raw.APIID,
	}, nil
}

// PremiseFromAPI validates a premises entry and every connection under it
func PremiseFromAPI(raw APIPremise) (Premise, error) {
	p := Premise{
		ID:                 raw.ID,
		APIID:              raw.APIID,
		Name:               raw.Name,
		Address:            raw.Address,
		ServiceConnections: make([]ServiceConnection, 0, len(raw.ServiceConnections)),
	}
	for _, rawConn := range raw.ServiceConnections {
		conn, err := ServiceConnectionFromAPI(rawConn)
		if err != nil {
			return Premise{}, fmt.Errorf("premise %s: %w", p.Ref(), err)
		}
		conn.PremiseID = p.Ref()
		if conn.Address == "" {
			conn.Address = p.Address
		}
		p.ServiceConnections = append(p.ServiceConnections, conn)
	}
	return p, nil
}

// Ref identifies the premise by its API id, falling back to the numeric id
func (p Premise) Ref() string {
	if p.APIID != "" {
		return p.APIID
	}
	return fmt.Sprint(p.ID)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
