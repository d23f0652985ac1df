// Copyright 2025 Arion Yau
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package firetv

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"ember/internal/logger"
)

// Client talks to the Fire TV local REST service
type Client struct {
	httpClient *http.Client
	baseURL    string
	host       string
	token      string
	apiKey     string
	retryDelay time.Duration
	debug      bool
	logger     zerolog.Logger
}

// NewClient creates a new Fire TV client. token may be empty before pairing.
func NewClient(host, token string, debug bool) *Client {
	scheme := "https"
	transport := &http.Transport{
		// Fire TV serves a self-signed certificate
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}

	if isLocalHost(host) {
		// Simulator runs plain HTTP
		scheme = "http"
		transport = &http.Transport{}
	}

	addr := host
	if _, _, err := net.SplitHostPort(host); err != nil {
		addr = net.JoinHostPort(host, strconv.Itoa(DefaultPort))
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   defaultRequestTimeout,
		},
		baseURL:    fmt.Sprintf("%s://%s", scheme, addr),
		host:       host,
		token:      token,
		apiKey:     DefaultAPIKey,
		retryDelay: DefaultRetryDelay,
		debug:      debug,
		logger:     logger.New(),
	}

	if debug {
		logger.SetLevel("debug")
	}

	return client
}

// isLocalHost reports whether the host points at a local simulator
func isLocalHost(host string) bool {
	h := host
	if sp, _, err := net.SplitHostPort(host); err == nil {
		h = sp
	}
	switch strings.ToLower(h) {
	case "localhost", "127.0.0.1", "0.0.0.0":
		return true
	}
	return false
}

// SetToken updates the client token used for authenticated requests
func (c *Client) SetToken(token string) {
	c.token = token
}

// Token returns the current client token
func (c *Client) Token() string {
	return c.token
}

// Host returns the host this client was created for
func (c *Client) Host() string {
	return c.host
}

// SetRetryDelay overrides the delay between pairing/connection retries
func (c *Client) SetRetryDelay(delay time.Duration) {
	c.retryDelay = delay
}

func (c *Client) headers(includeToken bool) http.Header {
	h := http.Header{}
	h.Set("X-Api-Key", c.apiKey)
	h.Set("Content-Type", "application/json")
	h.Set("User-Agent", userAgent)
	if includeToken && c.token != "" {
		h.Set("X-Client-Token", c.token)
	}
	return h
}

// post sends a POST request with an optional JSON body and returns the response
func (c *Client) post(ctx context.Context, rawURL string, body interface{}, includeToken bool, timeout time.Duration) (*http.Response, error) {
	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal payload: %w", err)
		}
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = c.headers(includeToken)

	if c.debug {
		c.logger.Debug().
			Str("url", rawURL).
			Msg("Sending Fire TV request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	return resp, nil
}

// RequestPIN asks the Fire TV to display a pairing PIN and returns it.
// The Fire TV Cube may answer 200 with an empty PIN before the PIN is
// actually shown, so the request is retried with a delay until a usable
// PIN comes back or the attempts run out.
func (c *Client) RequestPIN(ctx context.Context, friendlyName string) (string, error) {
	rawURL := c.baseURL + string(PinDisplayEndpoint)
	payload := PinDisplayRequest{FriendlyName: friendlyName}

	c.logger.Info().
		Str("host", c.host).
		Str("friendly_name", friendlyName).
		Int("max_retries", DefaultPinRetries).
		Msg("Requesting PIN display from Fire TV")

	var lastErr error
	for attempt := 1; attempt <= DefaultPinRetries; attempt++ {
		pin, err := c.requestPINOnce(ctx, rawURL, payload)
		if err == nil && pin != "" {
			c.logger.Info().
				Int("attempt", attempt).
				Msg("PIN received from Fire TV")
			return pin, nil
		}

		if err != nil {
			lastErr = err
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", DefaultPinRetries).
				Msg("PIN request failed")
		} else {
			// 200 with no PIN yet, normal for a Cube waking up
			c.logger.Warn().
				Int("attempt", attempt).
				Int("max_retries", DefaultPinRetries).
				Msg("Fire TV accepted the request but PIN is not ready yet")
		}

		if attempt < DefaultPinRetries {
			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return "", err
			}
		}
	}

	if lastErr != nil {
		return "", fmt.Errorf("failed to get PIN after %d attempts: %w", DefaultPinRetries, lastErr)
	}
	return "", fmt.Errorf("failed to get PIN after %d attempts: device never returned one", DefaultPinRetries)
}

func (c *Client) requestPINOnce(ctx context.Context, rawURL string, payload PinDisplayRequest) (string, error) {
	resp, err := c.post(ctx, rawURL, payload, false, pinRequestTimeout)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PIN request failed with status %d", resp.StatusCode)
	}

	var result PinDisplayResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode PIN response: %w", err)
	}

	pin := strings.TrimSpace(result.Pin)
	if pin == "" || pin == "None" {
		return "", nil
	}

	return pin, nil
}

// VerifyPIN submits the PIN shown on screen and returns the client token.
// The token is also stored on the client for subsequent requests.
func (c *Client) VerifyPIN(ctx context.Context, pin string) (string, error) {
	rawURL := c.baseURL + string(PinVerifyEndpoint)

	c.logger.Info().
		Str("host", c.host).
		Msg("Verifying pairing PIN")

	resp, err := c.post(ctx, rawURL, PinVerifyRequest{Pin: pin}, false, pinRequestTimeout)
	if err != nil {
		return "", fmt.Errorf("PIN verification failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("PIN verification failed with status %d", resp.StatusCode)
	}

	var result PinVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode verification response: %w", err)
	}

	if result.Description == "" {
		return "", fmt.Errorf("PIN verification returned no token")
	}

	c.token = result.Description
	c.logger.Info().Msg("PIN verified, client token obtained")

	return result.Description, nil
}

// TestConnection checks whether the Fire TV REST service is reachable.
// Any HTTP answer, including 4xx, means the device is present. The REST
// service can take a few seconds to wake after standby, so the probe is
// retried with a delay.
func (c *Client) TestConnection(ctx context.Context) error {
	c.logger.Info().
		Str("host", c.host).
		Int("max_retries", DefaultConnectRetries).
		Msg("Testing connection to Fire TV")

	var lastErr error
	for attempt := 1; attempt <= DefaultConnectRetries; attempt++ {
		if err := c.probe(ctx); err == nil {
			c.logger.Info().
				Int("attempt", attempt).
				Msg("Fire TV is reachable")
			return nil
		} else {
			lastErr = err
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_retries", DefaultConnectRetries).
				Msg("Connection attempt failed")
		}

		if attempt < DefaultConnectRetries {
			if err := sleepCtx(ctx, c.retryDelay); err != nil {
				return err
			}
		}
	}

	return fmt.Errorf("failed to connect to %s after %d attempts: %w", c.host, DefaultConnectRetries, lastErr)
}

func (c *Client) probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, connectivityCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("probe failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest, http.StatusUnauthorized,
		http.StatusNotFound, http.StatusMethodNotAllowed:
		return nil
	}

	return fmt.Errorf("unexpected probe status %d", resp.StatusCode)
}

// Navigate sends a navigation action
func (c *Client) Navigate(ctx context.Context, action NavigationAction) error {
	rawURL := fmt.Sprintf("%s%s?action=%s", c.baseURL, NavigationEndpoint, url.QueryEscape(string(action)))

	resp, err := c.post(ctx, rawURL, nil, true, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("navigation command %s failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("navigation command %s failed with status %d", action, resp.StatusCode)
	}

	if c.debug {
		c.logger.Debug().
			Str("action", string(action)).
			Msg("Navigation command successful")
	}

	return nil
}

// Media sends a media transport action. direction is only used for scan.
func (c *Client) Media(ctx context.Context, action MediaAction, direction ScanDirection) error {
	rawURL := fmt.Sprintf("%s%s?action=%s", c.baseURL, MediaEndpoint, url.QueryEscape(string(action)))

	var payload interface{}
	if action == Scan && direction != "" {
		payload = MediaPayload{
			Direction: string(direction),
			KeyAction: KeyAction{KeyActionType: "keyDown"},
		}
	}

	resp, err := c.post(ctx, rawURL, payload, true, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("media command %s failed: %w", action, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("media command %s failed with status %d", action, resp.StatusCode)
	}

	if c.debug {
		c.logger.Debug().
			Str("action", string(action)).
			Str("direction", string(direction)).
			Msg("Media command successful")
	}

	return nil
}

// LaunchApp launches an app by its Android package name
func (c *Client) LaunchApp(ctx context.Context, packageName string) error {
	if !ValidPackageName(packageName) {
		return fmt.Errorf("invalid package name: %s", packageName)
	}

	rawURL := fmt.Sprintf("%s%s/%s", c.baseURL, AppLaunchEndpoint, url.PathEscape(packageName))

	c.logger.Info().
		Str("package", packageName).
		Msg("Launching app")

	resp, err := c.post(ctx, rawURL, nil, true, defaultRequestTimeout)
	if err != nil {
		return fmt.Errorf("app launch %s failed: %w", packageName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("app launch %s failed with status %d", packageName, resp.StatusCode)
	}

	return nil
}

// Convenience wrappers for common actions

// DPadUp sends a D-Pad UP command
func (c *Client) DPadUp(ctx context.Context) error { return c.Navigate(ctx, DPadUp) }

// DPadDown sends a D-Pad DOWN command
func (c *Client) DPadDown(ctx context.Context) error { return c.Navigate(ctx, DPadDown) }

// DPadLeft sends a D-Pad LEFT command
func (c *Client) DPadLeft(ctx context.Context) error { return c.Navigate(ctx, DPadLeft) }

// DPadRight sends a D-Pad RIGHT command
func (c *Client) DPadRight(ctx context.Context) error { return c.Navigate(ctx, DPadRight) }

// Select sends a SELECT command
func (c *Client) Select(ctx context.Context) error { return c.Navigate(ctx, Select) }

// Home sends a HOME command
func (c *Client) Home(ctx context.Context) error { return c.Navigate(ctx, Home) }

// Back sends a BACK command
func (c *Client) Back(ctx context.Context) error { return c.Navigate(ctx, Back) }

// Menu sends a MENU command
func (c *Client) Menu(ctx context.Context) error { return c.Navigate(ctx, Menu) }

// PlayPause sends a PLAY/PAUSE toggle command
func (c *Client) PlayPause(ctx context.Context) error { return c.Media(ctx, Play, "") }

// FastForward sends a FAST FORWARD command
func (c *Client) FastForward(ctx context.Context) error { return c.Media(ctx, Scan, ScanForward) }

// Rewind sends a REWIND command
func (c *Client) Rewind(ctx context.Context) error { return c.Media(ctx, Scan, ScanBack) }

// sleepCtx sleeps for d unless the context is cancelled first
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
