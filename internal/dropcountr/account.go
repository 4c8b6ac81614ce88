package dropcountr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jgoulah/dropcountr/pkg/models"
	"github.com/sirupsen/logrus"
)

// meShape tags which historical layout /api/me answered with
type meShape int

const (
	meShapeObject meShape = iota // {"data": {...}}
	meShapeTuple                 // [true, {...}]
)

func (s meShape) String() string {
	if s == meShapeTuple {
		return "tuple"
	}
	return "object"
}

type apiAccount struct {
	ID                 string                        `json:"@id"`
	Email              string                        `json:"email"`
	Premises           []models.APIPremise           `json:"premises"`
	ServiceConnections []models.APIServiceConnection `json:"service_connections"`
}

// meEnvelope normalizes both /api/me layouts into one account
type meEnvelope struct {
	Shape   meShape
	OK      bool
	Message string
	Account apiAccount
}

var errEmptyBody = errors.New("empty response body")

func (m *meEnvelope) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return errEmptyBody
	}

	switch b[0] {
	case '[':
		m.Shape = meShapeTuple
		var tuple []json.RawMessage
		if err := json.Unmarshal(b, &tuple); err != nil {
			return fmt.Errorf("decoding tuple: %w", err)
		}
		if len(tuple) != 2 {
			return fmt.Errorf("expected [status, data] tuple, got %d elements", len(tuple))
		}
		if err := json.Unmarshal(tuple[0], &m.OK); err != nil {
			return fmt.Errorf("decoding tuple status: %w", err)
		}
		if !m.OK {
			// Failed calls carry a message in place of the account
			if err := json.Unmarshal(tuple[1], &m.Message); err != nil {
				m.Message = string(tuple[1])
			}
			return nil
		}
		if err := json.Unmarshal(tuple[1], &m.Account); err != nil {
			return fmt.Errorf("decoding tuple data: %w", err)
		}
		return nil

	case '{':
		m.Shape = meShapeObject
		var obj struct {
			Data  *apiAccount `json:"data"`
			Error string      `json:"error"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return fmt.Errorf("decoding object: %w", err)
		}
		if obj.Data == nil {
			m.Message = obj.Error
			if m.Message == "" {
				return errors.New(`object response has no "data" field`)
			}
			return nil
		}
		m.OK = true
		m.Account = *obj.Data
		return nil
	}

	return fmt.Errorf("unrecognized response starting with %q", b[0])
}

// premises converts the account into validated premises. Connections listed
// at the account level are folded into a synthetic premise.
func (a apiAccount) premises() ([]models.Premise, error) {
	raw := append([]models.APIPremise(nil), a.Premises...)
	if len(a.ServiceConnections) > 0 {
		raw = append(raw, models.APIPremise{
			APIID:              a.ID,
			ServiceConnections: a.ServiceConnections,
		})
	}

	result := make([]models.Premise, 0, len(raw))
	for _, rp := range raw {
		p, err := models.PremiseFromAPI(rp)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, nil
}

func (c *Client) fetchAccount(ctx context.Context) (*meEnvelope, error) {
	if err := c.requireLogin(); err != nil {
		return nil, err
	}

	res, err := c.apiRequest(ctx).Get("/api/me")
	if err != nil {
		return nil, fmt.Errorf("fetching account info: %w", err)
	}
	if err := checkResponse(res); err != nil {
		return nil, err
	}

	var env meEnvelope
	if err := json.Unmarshal(res.Body(), &env); err != nil {
		return nil, fmt.Errorf("parsing account info: %w", err)
	}
	if !env.OK {
		return nil, &AuthError{
			StatusCode: res.StatusCode(),
			Message:    fmt.Sprintf("account info request rejected: %s", env.Message),
		}
	}

	c.logger.WithField("shape", env.Shape.String()).Debug("decoded account info")
	return &env, nil
}

// Premises returns every premises on the account with its service connections
func (c *Client) Premises(ctx context.Context) ([]models.Premise, error) {
	env, err := c.fetchAccount(ctx)
	if err != nil {
		return nil, err
	}
	premises, err := env.Account.premises()
	if err != nil {
		return nil, fmt.Errorf("parsing account info: %w", err)
	}
	return premises, nil
}

// ListServiceConnections aggregates the service connections of every premises
func (c *Client) ListServiceConnections(ctx context.Context) ([]models.ServiceConnection, error) {
	premises, err := c.Premises(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[int]bool)
	connections := []models.ServiceConnection{}
	for _, p := range premises {
		for _, sc := range p.ServiceConnections {
			if seen[sc.ID] {
				continue
			}
			seen[sc.ID] = true
			connections = append(connections, sc)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"premises":    len(premises),
		"connections": len(connections),
	}).Debug("listed service connections")
	return connections, nil
}
