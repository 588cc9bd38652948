package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"
)

// TokenProvider yields a live access token for the remote suite. The auth
// collaborator owns refresh; the client only asks.
type TokenProvider func(ctx context.Context) (string, error)

// Observer, when set, is called once per completed HTTP exchange.
type Observer func(service string, status int, elapsed time.Duration)

type ClientOptions struct {
	SheetsBaseURL   string
	CalendarBaseURL string
	DriveBaseURL    string
	UploadBaseURL   string
	CalendarID      string
	TokenProvider   TokenProvider
	HTTPClient      *http.Client
	UserAgent       string
	Observer        Observer
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
}

// Client is the single authenticated gateway to the suite's tabular,
// calendar and file endpoints.
type Client struct {
	sheetsBase    string
	calendarBase  string
	driveBase     string
	uploadBase    string
	calendarID    string
	tokenProvider TokenProvider
	httpClient    *http.Client
	userAgent     string
	observer      Observer
	maxRetries    int
	baseDelay     time.Duration
	maxDelay      time.Duration
}

func NewClient(opts ClientOptions) *Client {
	sheetsBase := trimBase(opts.SheetsBaseURL)
	if sheetsBase == "" {
		sheetsBase = "https://sheets.googleapis.com/v4"
	}
	calendarBase := trimBase(opts.CalendarBaseURL)
	if calendarBase == "" {
		calendarBase = "https://www.googleapis.com/calendar/v3"
	}
	driveBase := trimBase(opts.DriveBaseURL)
	if driveBase == "" {
		driveBase = "https://www.googleapis.com/drive/v3"
	}
	uploadBase := trimBase(opts.UploadBaseURL)
	if uploadBase == "" {
		uploadBase = "https://www.googleapis.com/upload/drive/v3"
	}
	calendarID := strings.TrimSpace(opts.CalendarID)
	if calendarID == "" {
		calendarID = "primary"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}
	return &Client{
		sheetsBase:    sheetsBase,
		calendarBase:  calendarBase,
		driveBase:     driveBase,
		uploadBase:    uploadBase,
		calendarID:    calendarID,
		tokenProvider: opts.TokenProvider,
		httpClient:    httpClient,
		userAgent:     strings.TrimSpace(opts.UserAgent),
		observer:      opts.Observer,
		maxRetries:    maxRetries,
		baseDelay:     baseDelay,
		maxDelay:      maxDelay,
	}
}

func (c *Client) doJSON(ctx context.Context, service, method, url string, body any, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	contentType := ""
	if body != nil {
		contentType = "application/json"
	}
	return c.do(ctx, service, method, url, contentType, bodyBytes, out)
}

// doMultipart sends a metadata+media upload the way the suite's file
// endpoint expects it: two related JSON/octet parts in one request.
func (c *Client) doMultipart(ctx context.Context, service, method, url string, metadata any, media []byte, mediaType string, out any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	metaHeader := textproto.MIMEHeader{}
	metaHeader.Set("Content-Type", "application/json; charset=UTF-8")
	metaPart, err := writer.CreatePart(metaHeader)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(metaPart).Encode(metadata); err != nil {
		return err
	}

	if mediaType == "" {
		mediaType = "application/octet-stream"
	}
	mediaHeader := textproto.MIMEHeader{}
	mediaHeader.Set("Content-Type", mediaType)
	mediaPart, err := writer.CreatePart(mediaHeader)
	if err != nil {
		return err
	}
	if _, err := mediaPart.Write(media); err != nil {
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	contentType := "multipart/related; boundary=" + writer.Boundary()
	return c.do(ctx, service, method, url, contentType, buf.Bytes(), out)
}

func (c *Client) do(ctx context.Context, service, method, url, contentType string, bodyBytes []byte, out any) error {
	if c == nil {
		return fmt.Errorf("remote client is nil")
	}
	tokenProvider := c.tokenProvider
	if tokenProvider == nil {
		return fmt.Errorf("remote token provider is required")
	}
	token, err := tokenProvider(ctx)
	if err != nil {
		return err
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("remote token is empty")
	}

	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		if c.userAgent != "" {
			req.Header.Set("User-Agent", c.userAgent)
		}

		started := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			c.observe(service, 0, time.Since(started))
			if attempt < c.maxRetries {
				if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		c.observe(service, resp.StatusCode, time.Since(started))
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599)) && attempt < c.maxRetries {
			if waitErr := sleepContext(ctx, c.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		return statusError(resp.StatusCode, payload)
	}
}

func statusError(status int, payload []byte) error {
	serr := &StatusError{StatusCode: status, Message: strings.TrimSpace(string(payload))}
	var envelope struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if json.Unmarshal(payload, &envelope) == nil {
		if envelope.Error.Status != "" {
			serr.Code = envelope.Error.Status
		}
		if strings.TrimSpace(envelope.Error.Message) != "" {
			serr.Message = envelope.Error.Message
		}
	}
	return serr
}

func (c *Client) observe(service string, status int, elapsed time.Duration) {
	if c.observer == nil {
		return
	}
	c.observer(service, status, elapsed)
}

func (c *Client) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > c.maxDelay {
			return c.maxDelay
		}
		return retryAfter
	}
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func trimBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}
