package oms

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const DefaultAuthURL = "https://auth.thetis-ims.com/oauth2/"

type AuthConfig struct {
	AuthURL      string
	ClientID     string
	ClientSecret string
	APIKey       string
	Timeout      time.Duration
}

// NewAuthClient returns an *http.Client that performs the client-credentials
// token exchange, refreshes the token when it expires and adds x-api-key.
func NewAuthClient(ctx context.Context, cfg AuthConfig) (*http.Client, error) {
	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = DefaultAuthURL
	}
	tokenURL, err := url.JoinPath(authURL, "token")
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     tokenURL,
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	base := &http.Client{Timeout: timeout}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)

	return &http.Client{
		Timeout: timeout,
		Transport: &apiKeyTransport{
			apiKey: cfg.APIKey,
			next: &oauth2.Transport{
				Source: cc.TokenSource(ctx),
				Base:   http.DefaultTransport,
			},
		},
	}, nil
}

type apiKeyTransport struct {
	apiKey string
	next   http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.apiKey == "" {
		return t.next.RoundTrip(req)
	}
	r := req.Clone(req.Context())
	r.Header.Set("x-api-key", t.apiKey)
	return t.next.RoundTrip(r)
}
