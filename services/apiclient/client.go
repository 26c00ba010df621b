// Package apiclient implements the HTTP gateways to the discovery, studio and
// LMS services. All clients share an OAuth2 client-credentials transport and a
// bounded retry policy: transport errors and 5xx responses are retried with
// capped exponential backoff, 4xx responses never are.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/pkg/errors"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/dtlearning/learninghub/core"
)

// datetimeFormat is the wire format the remote services expect for schedules.
const datetimeFormat = "2006-01-02T15:04:05"

type baseClient struct {
	http       *http.Client
	logger     core.Logger
	timeout    time.Duration
	maxRetries uint
}

func newBaseClient(conf *core.Config, logger core.Logger) *baseClient {
	client := &http.Client{}
	if conf.Gateways.OAuthClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     conf.Gateways.OAuthClientID,
			ClientSecret: conf.Gateways.OAuthClientSecret,
			TokenURL:     conf.Gateways.OAuthTokenURL,
		}
		client = cc.Client(context.Background())
	} else {
		logger.Warn("gateway OAuth credentials not configured; calls are unauthenticated")
	}

	timeout := conf.Gateways.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	maxRetries := conf.Gateways.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}
	return &baseClient{http: client, logger: logger, timeout: timeout, maxRetries: maxRetries}
}

// do issues one request with a per-attempt timeout, retrying transient
// failures, and decodes the JSON response into out when non-nil.
func (c *baseClient) do(ctx context.Context, method, endpoint string, query url.Values, payload, out interface{}) error {
	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return errors.Wrap(err, "encoding request payload")
		}
	}
	if len(query) > 0 {
		sep := "?"
		if strings.Contains(endpoint, "?") {
			sep = "&"
		}
		endpoint += sep + query.Encode()
	}

	attempt := func() ([]byte, error) {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(reqCtx, method, endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, backoff.Permanent(errors.Wrap(err, "building request"))
		}
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, endpoint)
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, errors.Wrap(err, "reading response body")
		}

		switch {
		case resp.StatusCode >= http.StatusInternalServerError:
			return nil, errors.Errorf("%s %s: HTTP %d: %s", method, endpoint, resp.StatusCode, truncate(data))
		case resp.StatusCode >= http.StatusBadRequest:
			return nil, backoff.Permanent(errors.Errorf("%s %s: HTTP %d: %s", method, endpoint, resp.StatusCode, truncate(data)))
		}
		return data, nil
	}

	data, err := backoff.Retry(ctx, attempt,
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxTries(c.maxRetries),
	)
	if err != nil {
		return err
	}
	if out != nil && len(data) > 0 {
		if err = json.Unmarshal(data, out); err != nil {
			return errors.Wrapf(err, "decoding %s response", endpoint)
		}
	}
	return nil
}

func truncate(data []byte) string {
	const max = 512
	if len(data) > max {
		return string(data[:max]) + "..."
	}
	return string(data)
}

func joinURL(base string, parts ...string) string {
	u := strings.TrimRight(base, "/")
	for _, part := range parts {
		u += "/" + strings.Trim(part, "/")
	}
	return u
}

func fmtDatetime(t time.Time) string {
	return t.UTC().Format(datetimeFormat)
}

func parseDatetime(s string, fallback time.Time) time.Time {
	t, err := time.Parse(datetimeFormat, s)
	if err != nil {
		return fallback
	}
	return t
}
