// Package submit delivers finished sessions to the collector. Delivery is
// fire-and-forget: every failure is logged and dropped, never retried.
package submit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/playwatch/playwatch/internal/config"
	"github.com/playwatch/playwatch/internal/logging"
	"github.com/playwatch/playwatch/internal/wire"
)

// requestTimeout bounds a submission so a hung collector cannot stall event
// processing indefinitely.
const requestTimeout = 10 * time.Second

type Client struct {
	http   *http.Client
	logger *logrus.Entry
}

func NewClient() *Client {
	return &Client{
		http:   &http.Client{Timeout: requestTimeout},
		logger: logging.NewLogger("submit"),
	}
}

// Submit posts one session to the collector configured in cfg. The outcome
// is only ever reported through logs.
func (c *Client) Submit(cfg *config.Config, sub wire.Submission) {
	endpoint, err := submitURL(cfg.URL)
	if err != nil {
		c.logger.Errorf("Could not parse URL %s: %v", cfg.URL, err)
		return
	}

	body, err := json.Marshal(sub)
	if err != nil {
		c.logger.Errorf("Could not encode submission %s: %v", sub.Display(), err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.logger.Errorf("Could not build submission request: %v", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if cfg.Secret != "" {
		req.Header.Set(wire.SecretHeader, cfg.Secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Errorf("Could not submit event to server: %v", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusCreated:
		c.logger.Info("Event submitted to the server")
	case http.StatusInternalServerError:
		c.logger.Info("Error submitting event: unknown server error")
	case http.StatusUnauthorized:
		c.logger.Error("Error submitting event: unauthorized. Double check secret key settings.")
	default:
		c.logger.Warnf("Unknown response from the server: %d", resp.StatusCode)
	}
}

// submitURL resolves the collector's /submit path against the base URL.
func submitURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("missing scheme or host in %q", base)
	}
	return u.ResolveReference(&url.URL{Path: "/submit"}).String(), nil
}
