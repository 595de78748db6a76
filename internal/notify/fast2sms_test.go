package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gmsas95/mediremind/internal/config"
)

func newTestFast2SMS(proxies []string, endpoint string) *Fast2SMS {
	f := NewFast2SMS(config.NotifyConfig{
		Fast2SMSKey:    "test-key",
		Proxies:        proxies,
		TimeoutSeconds: 2,
	}, zap.NewNop())
	if endpoint != "" {
		f.endpoint = endpoint
	}
	return f
}

func TestFast2SMS_SendViaFirstRelay(t *testing.T) {
	var gotQuery atomic.Value
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.Query().Get("quest"))
		w.WriteHeader(200)
	}))
	defer relay.Close()

	f := newTestFast2SMS([]string{relay.URL + "/?quest="}, "http://sms.invalid/dev/bulkV2")

	err := f.Send(context.Background(), "+91 98765 43210", "hello")
	require.NoError(t, err)

	target, _ := gotQuery.Load().(string)
	assert.Contains(t, target, "authorization=test-key")
	assert.Contains(t, target, "route=q")
	assert.Contains(t, target, "numbers=9876543210")
	assert.Contains(t, target, "flash=0")
}

func TestFast2SMS_FallsThroughFailingRelays(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(502)
	}))
	defer bad.Close()

	var direct atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		direct.Add(1)
		w.WriteHeader(200)
	}))
	defer api.Close()

	f := newTestFast2SMS([]string{bad.URL + "/?q="}, api.URL)

	require.NoError(t, f.Send(context.Background(), "9876543210", "hello"))
	assert.Equal(t, int32(1), direct.Load(), "the direct attempt is the last resort")
}

func TestFast2SMS_AllRoutesFail(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))
	defer bad.Close()

	f := newTestFast2SMS([]string{bad.URL + "/?q="}, bad.URL)

	err := f.Send(context.Background(), "9876543210", "hello")
	assert.Error(t, err)
}

func TestFast2SMS_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(500)
	}))

	f := newTestFast2SMS(nil, bad.URL)

	for i := 0; i < 5; i++ {
		assert.Error(t, f.Send(context.Background(), "9876543210", "hello"))
	}

	// With the circuit open the provider is no longer hit at all.
	bad.Close()
	assert.Error(t, f.Send(context.Background(), "9876543210", "hello"))
}

func TestFast2SMS_ProviderRejectionShortCircuits(t *testing.T) {
	reject := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`{"return":false,"message":"Invalid Authorization Key"}`))
	}))
	defer reject.Close()

	var direct atomic.Int32
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		direct.Add(1)
		w.WriteHeader(200)
	}))
	defer api.Close()

	f := newTestFast2SMS([]string{reject.URL + "/?q="}, api.URL)

	err := f.Send(context.Background(), "9876543210", "hello")
	assert.Error(t, err)
	assert.Zero(t, direct.Load(), "an explicit provider rejection must not be retried on other routes")
}

func TestFast2SMS_AcceptedResponseBody(t *testing.T) {
	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte(`{"return":true,"request_id":"abc","message":["SMS sent successfully."]}`))
	}))
	defer ok.Close()

	f := newTestFast2SMS(nil, ok.URL)
	assert.NoError(t, f.Send(context.Background(), "9876543210", "hello"))
}

func TestFast2SMS_MissingKey(t *testing.T) {
	f := NewFast2SMS(config.NotifyConfig{}, zap.NewNop())
	assert.Error(t, f.Send(context.Background(), "9876543210", "hello"))
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"9876543210", "9876543210"},
		{"+91 98765 43210", "9876543210"},
		{"091-9876543210", "9876543210"},
		{"12345", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizePhone(tt.in), tt.in)
	}
}
