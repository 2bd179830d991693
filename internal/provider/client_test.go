package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/ledgersync/internal/syncerr"
)

// fakeFio mimics the provider endpoints. fetchStatus is consumed one entry
// per fetch; when exhausted the statement is served.
type fakeFio struct {
	mu          sync.Mutex
	calls       []string
	fetchStatus []int
	cursorCode  int
	body        []byte
}

func (f *fakeFio) record(r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r.URL.Path)
}

func (f *fakeFio) router() http.Handler {
	r := chi.NewRouter()
	r.Get("/set-last-id/{token}/{id}/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(f.cursorStatus())
	})
	r.Get("/set-last-date/{token}/{date}/", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		w.WriteHeader(f.cursorStatus())
	})
	r.Get("/last/{token}/transactions.json", func(w http.ResponseWriter, r *http.Request) {
		f.record(r)
		f.mu.Lock()
		var status int
		if len(f.fetchStatus) > 0 {
			status, f.fetchStatus = f.fetchStatus[0], f.fetchStatus[1:]
		}
		f.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(f.body)
	})
	return r
}

func (f *fakeFio) cursorStatus() int {
	if f.cursorCode == 0 {
		return http.StatusOK
	}
	return f.cursorCode
}

func newTestClient(t *testing.T, fake *fakeFio) (*Client, *[]time.Duration) {
	t.Helper()
	if fake.body == nil {
		body, err := os.ReadFile("../../testdata/fio_statement.json")
		require.NoError(t, err)
		fake.body = body
	}
	srv := httptest.NewServer(fake.router())
	t.Cleanup(srv.Close)

	c := NewClient(Config{BaseURL: srv.URL + "/", Backoff: 5 * time.Second}, zerolog.Nop())
	var slept []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return c, &slept
}

func TestStatement_FromCheckpoint(t *testing.T) {
	fake := &fakeFio{}
	c, _ := newTestClient(t, fake)

	stmt, err := c.Statement(context.Background(), "tok", "1158218819", true)
	require.NoError(t, err)
	assert.Equal(t, "CZ9620100000002400222233", stmt.Info.IBAN)
	assert.Len(t, stmt.Rows, 7)
	assert.Equal(t, []string{
		"/set-last-id/tok/1158218819/",
		"/last/tok/transactions.json",
	}, fake.calls)
}

func TestStatement_NoCheckpointUsesEpoch(t *testing.T) {
	fake := &fakeFio{}
	c, _ := newTestClient(t, fake)

	_, err := c.Statement(context.Background(), "tok", "", false)
	require.NoError(t, err)
	assert.Equal(t, "/set-last-date/tok/2012-07-27/", fake.calls[0])
}

func TestSetCursor_Date(t *testing.T) {
	fake := &fakeFio{}
	c, _ := newTestClient(t, fake)

	err := c.SetCursor(context.Background(), "tok", Cursor{FromDate: time.Date(2016, 3, 1, 0, 0, 0, 0, time.UTC)})
	require.NoError(t, err)
	assert.Equal(t, []string{"/set-last-date/tok/2016-03-01/"}, fake.calls)
}

func TestSetCursor_Failure(t *testing.T) {
	fake := &fakeFio{cursorCode: http.StatusInternalServerError}
	c, _ := newTestClient(t, fake)

	_, err := c.Statement(context.Background(), "tok", "1", true)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.Transport))
	assert.Len(t, fake.calls, 1)
}

func TestFetchStatement_ConflictWaitRetriesOnce(t *testing.T) {
	fake := &fakeFio{fetchStatus: []int{http.StatusConflict}}
	c, slept := newTestClient(t, fake)

	stmt, err := c.FetchStatement(context.Background(), "tok", true)
	require.NoError(t, err)
	assert.NotNil(t, stmt)
	assert.Equal(t, []time.Duration{5 * time.Second}, *slept)
	assert.Len(t, fake.calls, 2)
}

func TestFetchStatement_ConflictTwiceIsFatal(t *testing.T) {
	fake := &fakeFio{fetchStatus: []int{http.StatusConflict, http.StatusConflict}}
	c, slept := newTestClient(t, fake)

	_, err := c.FetchStatement(context.Background(), "tok", true)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.ProviderConflict))
	assert.Len(t, *slept, 1)
	assert.Len(t, fake.calls, 2)
}

func TestFetchStatement_ConflictNoWait(t *testing.T) {
	fake := &fakeFio{fetchStatus: []int{http.StatusConflict}}
	c, slept := newTestClient(t, fake)

	_, err := c.FetchStatement(context.Background(), "tok", false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.ProviderConflict))
	assert.Empty(t, *slept)
	assert.Len(t, fake.calls, 1)
}

func TestFetchStatement_OtherStatusNotRetried(t *testing.T) {
	fake := &fakeFio{fetchStatus: []int{http.StatusInternalServerError}}
	c, slept := newTestClient(t, fake)

	_, err := c.FetchStatement(context.Background(), "tok", true)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.Transport))
	assert.Contains(t, err.Error(), "500")
	assert.Empty(t, *slept)
	assert.Len(t, fake.calls, 1)
}

func TestFetchStatement_BadBody(t *testing.T) {
	fake := &fakeFio{body: []byte("<html>maintenance</html>")}
	c, _ := newTestClient(t, fake)

	_, err := c.FetchStatement(context.Background(), "tok", false)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.DataFormat))
}

func TestFetchStatement_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url}, zerolog.Nop())
	_, err := c.FetchStatement(context.Background(), "tok", true)
	require.Error(t, err)
	assert.True(t, syncerr.Is(err, syncerr.Transport))
}

func TestFetchStatement_BackoffHonoursContext(t *testing.T) {
	fake := &fakeFio{fetchStatus: []int{http.StatusConflict}}
	c, _ := newTestClient(t, fake)
	c.sleep = sleepContext

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.FetchStatement(ctx, "tok", true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{BaseURL: "http://fio/"}, zerolog.Nop())
	assert.Equal(t, "http://fio", c.baseURL)
	assert.Equal(t, DefaultBackoff, c.backoff)
	assert.Equal(t, DefaultEpoch, c.epoch)
	assert.Equal(t, DefaultTimeout, c.client.Timeout)
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "abcd****", maskToken("abcdefgh"))
	assert.Equal(t, "****", maskToken("abc"))
}
