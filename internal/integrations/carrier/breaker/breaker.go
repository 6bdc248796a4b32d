package breaker

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

type Settings struct {
	Name             string
	FailureThreshold uint32        // consecutive transport failures that open the circuit
	OpenTimeout      time.Duration // open -> half-open

	// OnStateChange is called after the logged transition, when set.
	OnStateChange func(name, to string)
}

// Client fails fast while the carrier is known to be down. It never retries:
// every call is either forwarded once or rejected with a TransportError.
type Client struct {
	next carrier.Client
	cb   *gobreaker.CircuitBreaker
}

func New(next carrier.Client, s Settings) *Client {
	if s.Name == "" {
		s.Name = "carrier"
	}
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.OpenTimeout <= 0 {
		s.OpenTimeout = 60 * time.Second
	}
	threshold := s.FailureThreshold
	notify := s.OnStateChange
	return &Client{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        s.Name,
			MaxRequests: 1,
			Timeout:     s.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= threshold
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				slog.Warn("carrier circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
				if notify != nil {
					notify(name, to.String())
				}
			},
		}),
	}
}

func (c *Client) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.Result, error) {
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.next.CreateShipment(ctx, req)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &carrier.TransportError{Err: errors.Wrap(err, "carrier circuit breaker")}
	}
	if err != nil {
		return nil, err
	}
	return out.(*carrier.Result), nil
}

func (c *Client) State() string {
	return c.cb.State().String()
}
