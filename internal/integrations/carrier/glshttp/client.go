package glshttp

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

	"github.com/BearBump/LabelBox/internal/integrations/carrier"
	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.gls.dk/ws/DK/V1/"

const maxErrorBody = 4 << 10

type Client struct {
	baseURL string
	httpc   *http.Client
}

// New builds a GLS webservice client. A nil httpc gets a 30s timeout client.
func New(baseURL string, httpc *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{baseURL: baseURL, httpc: httpc}
}

type createShipmentResp struct {
	ConsignmentID string                 `json:"consignmentId"`
	PDF           string                 `json:"PDF"`
	Parcels       []carrier.ParcelResult `json:"Parcels"`
}

type badRequestResp struct {
	Message    string                     `json:"Message"`
	ModelState map[string]json.RawMessage `json:"ModelState"`
}

func (c *Client) CreateShipment(ctx context.Context, req *carrier.ShipmentRequest) (*carrier.Result, error) {
	u, err := url.JoinPath(c.baseURL, "CreateShipment")
	if err != nil {
		return nil, &carrier.TransportError{Err: errors.Wrap(err, "join base url")}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.Wrap(err, "marshal shipment request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, &carrier.TransportError{Err: errors.Wrap(err, "new request")}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, &carrier.TransportError{Err: errors.Wrap(err, "do request")}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode/100 == 2:
		var r createShipmentResp
		if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
			return nil, &carrier.TransportError{StatusCode: resp.StatusCode, Err: errors.Wrap(err, "decode")}
		}
		return &carrier.Result{
			Kind:          carrier.Success,
			ConsignmentID: r.ConsignmentID,
			LabelPDF:      r.PDF,
			Parcels:       r.Parcels,
		}, nil

	case resp.StatusCode == http.StatusBadRequest:
		return &carrier.Result{
			Kind:        carrier.ValidationFailure,
			FieldErrors: validationErrors(resp.Body),
		}, nil

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &carrier.TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("gls http %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))),
		}
	}
}

// validationErrors reads a 400 body. Any 400 is a rejection; a body that is
// not the ModelState JSON is kept as a single description.
func validationErrors(body io.Reader) map[string][]string {
	raw, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))

	var r badRequestResp
	if err := json.Unmarshal(raw, &r); err != nil {
		if text := strings.TrimSpace(string(raw)); text != "" {
			return map[string][]string{"": {text}}
		}
		return map[string][]string{}
	}

	fieldErrors := make(map[string][]string, len(r.ModelState))
	for field, msg := range r.ModelState {
		fieldErrors[field] = descriptions(msg)
	}
	if len(fieldErrors) == 0 && r.Message != "" {
		fieldErrors[""] = []string{r.Message}
	}
	return fieldErrors
}

// descriptions accepts both "text" and ["text", ...] ModelState values.
func descriptions(raw json.RawMessage) []string {
	var many []string
	if err := json.Unmarshal(raw, &many); err == nil {
		return many
	}
	var one string
	if err := json.Unmarshal(raw, &one); err == nil {
		return []string{one}
	}
	return []string{string(raw)}
}
