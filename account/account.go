package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/mbocsi/lightwaverf/proto"
)

const DefaultHost = "https://control-api.lightwaverf.com"

var ErrMissingCredentials = errors.New("no email or pin specified, the room and device configuration cannot be obtained")

type Options struct {
	Host       string
	HTTPClient *http.Client
}

type Account struct {
	email string
	pin   string
	host  string
	http  *http.Client
}

func New(email, pin string, opts Options) (*Account, error) {
	if email == "" || pin == "" {
		return nil, ErrMissingCredentials
	}
	if opts.Host == "" {
		opts.Host = DefaultHost
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Account{email: email, pin: pin, host: opts.Host, http: opts.HTTPClient}, nil
}

// Devices logs in and returns every device of the account's first zone.
func (a *Account) Devices(ctx context.Context) ([]proto.Device, error) {
	slog.Debug("Fetching token from LightWave", "host", a.host)

	var user struct {
		ApplicationKey string `json:"application_key"`
	}
	q := url.Values{"password": {a.pin}, "username": {a.email}}
	if err := a.get(ctx, "/v1/user?"+q.Encode(), "", &user); err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	var auth struct {
		Token string `json:"token"`
	}
	q = url.Values{"application_key": {user.ApplicationKey}}
	if err := a.get(ctx, "/v1/auth?"+q.Encode(), "", &auth); err != nil {
		return nil, fmt.Errorf("auth: %w", err)
	}

	var profile json.RawMessage
	if err := a.get(ctx, "/v1/user_profile?nested=1", auth.Token, &profile); err != nil {
		return nil, fmt.Errorf("user profile: %w", err)
	}
	return ParseRooms(profile)
}

func (a *Account) get(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.host+path, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("X-LWRF-token", token)
		req.Header.Set("X-LWRF-platform", "ios")
		req.Header.Set("X-LWRF-skin", "lightwaverf")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("network response was not ok: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
