package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/config"
	"github.com/gmsas95/mediremind/internal/errors"
)

const fast2smsEndpoint = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMS sends SMS through the Fast2SMS quick-route API. Each send walks a
// list of relay proxies before attempting the API directly; the first 2xx
// wins. A circuit breaker shields the provider when it is persistently down.
type Fast2SMS struct {
	apiKey   string
	endpoint string
	proxies  []string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker[struct{}]
	logger   *zap.Logger
}

// NewFast2SMS builds the SMS transport from notification config.
func NewFast2SMS(cfg config.NotifyConfig, logger *zap.Logger) *Fast2SMS {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:    "fast2sms",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("sms circuit state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &Fast2SMS{
		apiKey:   cfg.Fast2SMSKey,
		endpoint: fast2smsEndpoint,
		proxies:  cfg.Proxies,
		client:   &http.Client{Timeout: timeout},
		breaker:  breaker,
		logger:   logger,
	}
}

func (f *Fast2SMS) Name() string { return "fast2sms" }

// Send delivers one SMS. The recipient is normalized to its last ten digits
// before being handed to the API.
func (f *Fast2SMS) Send(ctx context.Context, phone, message string) error {
	if f.apiKey == "" {
		return errors.Wrap(nil, errors.ErrSendFailed.Code, "fast2sms api key not configured")
	}

	number := NormalizePhone(phone)
	if number == "" {
		return errors.ErrNoRecipient
	}

	target := f.buildURL(number, message)

	_, err := f.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, f.attempt(ctx, target)
	})
	return err
}

// attempt walks each relay proxy, then the API directly, returning on the
// first 2xx response.
func (f *Fast2SMS) attempt(ctx context.Context, target string) error {
	attempts := make([]string, 0, len(f.proxies)+1)
	for _, p := range f.proxies {
		attempts = append(attempts, p+url.QueryEscape(target))
	}
	attempts = append(attempts, target)

	var lastErr error
	for i, u := range attempts {
		err := f.get(ctx, u)
		if err == nil {
			if i < len(f.proxies) {
				f.logger.Debug("sms sent via relay", zap.Int("relay", i))
			}
			return nil
		}
		lastErr = err
		// A rejection from the provider itself (bad key, DLT block) will
		// not change on another route.
		if rejection, ok := err.(*providerRejection); ok {
			return errors.Wrap(nil, errors.ErrSendFailed.Code, "fast2sms rejected send: "+rejection.reason)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	return errors.Wrap(lastErr, errors.ErrSendFailed.Code, "fast2sms unreachable through all routes")
}

type providerRejection struct {
	reason string
}

func (p *providerRejection) Error() string { return "fast2sms rejected: " + p.reason }

func (f *Fast2SMS) get(ctx context.Context, u string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("fast2sms returned status %d", resp.StatusCode)
	}

	// The quick route answers {"return": bool, "message": ...}. A relay may
	// mangle the body, so an unparseable 2xx still counts as delivered.
	var result struct {
		Return  bool            `json:"return"`
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &result); err == nil && len(result.Message) > 0 && !result.Return {
		return &providerRejection{reason: string(result.Message)}
	}
	return nil
}

func (f *Fast2SMS) buildURL(number, message string) string {
	q := url.Values{}
	q.Set("authorization", f.apiKey)
	q.Set("route", "q")
	q.Set("message", message)
	q.Set("flash", "0")
	q.Set("numbers", number)
	return f.endpoint + "?" + q.Encode()
}

// NormalizePhone strips non-digits and keeps the last ten digits, the form
// the SMS provider expects for local numbers.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 10 {
		digits = digits[len(digits)-10:]
	}
	if len(digits) < 10 {
		return ""
	}
	return digits
}
