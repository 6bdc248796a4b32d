package oms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BearBump/LabelBox/internal/models"
	"github.com/pkg/errors"
)

const DefaultAPIURL = "https://api.thetis-ims.com/2/"

var ErrNotFound = errors.New("oms: not found")

// HTTPError is a non-2xx OMS answer.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("oms %s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *HTTPError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to the order-management API. Authentication is the job of the
// injected *http.Client (see NewAuthClient).
type Client struct {
	baseURL string
	httpc   *http.Client
}

func New(baseURL string, httpc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpc: httpc}
}

func (c *Client) Carriers(ctx context.Context) ([]models.Carrier, error) {
	var out []models.Carrier
	if err := c.do(ctx, http.MethodGet, "carriers", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Shipment(ctx context.Context, shipmentID models.ID) (*models.Shipment, error) {
	var out models.Shipment
	if err := c.do(ctx, http.MethodGet, "shipments/"+url.PathEscape(shipmentID.String()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Seller(ctx context.Context, sellerID models.ID) (*models.Party, error) {
	var out models.Party
	if err := c.do(ctx, http.MethodGet, "sellers/"+url.PathEscape(sellerID.String()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Context fetches the OMS context (the owning company) with its address.
func (c *Client) Context(ctx context.Context, contextID models.ID) (*models.Party, error) {
	var out models.Party
	if err := c.do(ctx, http.MethodGet, "contexts/"+url.PathEscape(contextID.String()), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) AttachLabel(ctx context.Context, shipmentID models.ID, label models.ShippingLabel) error {
	return c.do(ctx, http.MethodPost, "shipments/"+url.PathEscape(shipmentID.String())+"/attachments", label, nil)
}

func (c *Client) SetConsignmentID(ctx context.Context, shipmentID models.ID, consignmentID string) error {
	return c.do(ctx, http.MethodPut, "shipments/"+url.PathEscape(shipmentID.String())+"/consignmentId", consignmentID, nil)
}

func (c *Client) SetTrackingNumber(ctx context.Context, containerID models.ID, trackingNumber string) error {
	return c.do(ctx, http.MethodPut, "shippingContainers/"+url.PathEscape(containerID.String())+"/trackingNumber", trackingNumber, nil)
}

func (c *Client) PostEventMessage(ctx context.Context, eventID models.ID, msg models.EventMessage) error {
	return c.do(ctx, http.MethodPost, "events/"+url.PathEscape(eventID.String())+"/messages", msg, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	u, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return errors.Wrap(err, "join oms url")
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "marshal oms request")
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrapf(err, "oms %s %s", method, path)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "decode oms %s %s", method, path)
	}
	return nil
}
