package helpers

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/paint-rewards/internal/model"
	"github.com/nimasrn/paint-rewards/internal/repository"
	"github.com/nimasrn/paint-rewards/pkg/pg"
	"github.com/nimasrn/paint-rewards/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"

	xhttp "github.com/nimasrn/paint-rewards/pkg/http"
)

func SetupTestDB(t *testing.T) *pg.DB {
	return repository.SetupTestDB(t)
}

// SetupTestRedis starts miniredis behind an adapter with a connection name
// unique to the test, since adapters are cached by name.
func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr := miniredis.RunT(t)

	connName := fmt.Sprintf("test-%d", time.Now().UnixNano())
	adapter, err := redis.NewRedisAdapter(connName, "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestAccount(t *testing.T, db *pg.DB, acc model.Account) *model.Account {
	t.Helper()
	created, err := repository.NewAccountRepository(db).Create(context.Background(), &acc)
	require.NoError(t, err)
	return created
}

// Client drives an xhttp engine over an in-memory listener.
type Client struct {
	t        *testing.T
	client   *fasthttp.Client
	verifier *xhttp.JWTVerifier
}

func StartServer(t *testing.T, engine *xhttp.Engine, verifier *xhttp.JWTVerifier) *Client {
	ln := fasthttputil.NewInmemoryListener()
	go func() { _ = engine.Serve(ln) }()
	t.Cleanup(func() { _ = ln.Close() })

	return &Client{
		t: t,
		client: &fasthttp.Client{
			Dial: func(addr string) (net.Conn, error) { return ln.Dial() },
		},
		verifier: verifier,
	}
}

// Do sends body as JSON on behalf of actor and decodes the response into out
// when out is non-nil. A zero actor sends no token.
func (c *Client) Do(method, path string, actor xhttp.Actor, body, out any) int {
	c.t.Helper()

	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(c.t, err)
		raw = b
	}
	return c.DoRaw(method, path, actor, raw, nil, out)
}

// DoRaw sends raw bytes with extra headers, for callers that sign the body.
func (c *Client) DoRaw(method, path string, actor xhttp.Actor, body []byte, headers map[string]string, out any) int {
	c.t.Helper()

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI("http://rewards.test" + path)
	req.Header.SetMethod(method)
	if body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(body)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if actor.AccountID != 0 {
		token, err := c.verifier.Sign(actor, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	require.NoError(c.t, c.client.DoTimeout(req, resp, 5*time.Second))
	if out != nil {
		require.NoError(c.t, json.Unmarshal(resp.Body(), out), string(resp.Body()))
	}
	return resp.StatusCode()
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
