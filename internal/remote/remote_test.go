package remote

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orizon-lang/exprrepr/internal/astbridge"
	"github.com/orizon-lang/exprrepr/internal/codec"
	"github.com/orizon-lang/exprrepr/internal/descriptor"
	"github.com/orizon-lang/exprrepr/internal/expr"
	"github.com/orizon-lang/exprrepr/internal/repr"
	"github.com/orizon-lang/exprrepr/internal/sample"
)

func sampleValues(t *testing.T) *codec.Registry {
	t.Helper()
	values := codec.NewRegistry()
	for _, typ := range sample.ValueTypes() {
		require.NoError(t, values.RegisterType(typ, codec.ReflectValue(typ)))
	}
	return values.Freeze()
}

func newTestServer(t *testing.T, catalog descriptor.Catalog, opts ...Option) (*httptest.Server, *Client) {
	t.Helper()
	c := codec.New(sampleValues(t))
	opts = append([]Option{WithLogger(testr.New(t))}, opts...)
	srv := httptest.NewServer(NewHandler(catalog, c, opts...))
	t.Cleanup(srv.Close)
	return srv, NewClient(srv.URL, srv.Client(), c)
}

func sampleCatalog(t *testing.T) descriptor.Catalog {
	t.Helper()
	cat, err := sample.Catalog()
	require.NoError(t, err)
	return cat
}

func exampleNode(t *testing.T, name string) repr.Node {
	t.Helper()
	ex, err := sample.ExampleNamed(name)
	require.NoError(t, err)
	n, err := astbridge.ToRepresentation(ex.Lambda)
	require.NoError(t, err)
	return n
}

func statusOf(t *testing.T, err error) *StatusError {
	t.Helper()
	var se *StatusError
	require.True(t, errors.As(err, &se), "got %v", err)
	return se
}

func TestEvalSamples(t *testing.T) {
	_, client := newTestServer(t, sampleCatalog(t))
	ctx := context.Background()

	var out sample.Output
	require.NoError(t, client.Eval(ctx, exampleNode(t, "output"), &out, sample.Input("hello")))
	assert.Equal(t, sample.Output{Input: "hello", Extra: "open"}, out)

	var joined string
	require.NoError(t, client.Eval(ctx, exampleNode(t, "join"), &joined, "ab"))
	assert.Equal(t, "ab-ab", joined)

	var n int
	require.NoError(t, client.Eval(ctx, exampleNode(t, "arithmetic"), &n, 7, 3))
	assert.Equal(t, 8, n)
}

func TestEvalErrors(t *testing.T) {
	srv, client := newTestServer(t, sampleCatalog(t))
	ctx := context.Background()

	t.Run("arity", func(t *testing.T) {
		se := statusOf(t, client.Eval(ctx, exampleNode(t, "join"), nil, "a", "b"))
		assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
		assert.Equal(t, "ARITY_MISMATCH", se.Code)
	})

	t.Run("bad argument", func(t *testing.T) {
		se := statusOf(t, client.Eval(ctx, exampleNode(t, "join"), nil, 12))
		assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	})

	t.Run("evaluation", func(t *testing.T) {
		n := expr.MakeParameter(reflect.TypeOf(0), "n")
		repeat, err := expr.FuncOf(reflect.TypeOf(sample.Input("")), "Repeat", sample.Repeat)
		require.NoError(t, err)
		lit, err := expr.MakeConstant("x")
		require.NoError(t, err)
		call, err := expr.MakeCall(nil, repeat, lit, n)
		require.NoError(t, err)
		l, err := expr.MakeLambda(call, n)
		require.NoError(t, err)
		node, err := astbridge.ToRepresentation(l)
		require.NoError(t, err)

		var s string
		require.NoError(t, client.Eval(ctx, node, &s, 2))
		assert.Equal(t, "xx", s)

		se := statusOf(t, client.Eval(ctx, node, nil, -1))
		assert.Equal(t, http.StatusInternalServerError, se.StatusCode)
	})

	t.Run("format", func(t *testing.T) {
		body := `{"lambda": {"format": "2.0.0", "root": {"kind": "Constant"}}, "args": []}`
		resp, err := srv.Client().Post(srv.URL+EvalPath, "application/json", strings.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("not json", func(t *testing.T) {
		resp, err := srv.Client().Post(srv.URL+EvalPath, "application/json", strings.NewReader("{"))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("method", func(t *testing.T) {
		resp, err := srv.Client().Get(srv.URL + EvalPath)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestEvalLookupFailure(t *testing.T) {
	empty, err := descriptor.NewSnapshot()
	require.NoError(t, err)
	_, client := newTestServer(t, empty)

	se := statusOf(t, client.Eval(context.Background(), exampleNode(t, "output"), nil, sample.Input("x")))
	assert.Equal(t, http.StatusUnprocessableEntity, se.StatusCode)
	assert.Equal(t, "RECONSTRUCTION_FAILED", se.Code)
	assert.Contains(t, se.Message, "NOT_FOUND")
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv, client := newTestServer(t, sampleCatalog(t), WithRegistry(reg))

	var joined string
	require.NoError(t, client.Eval(context.Background(), exampleNode(t, "join"), &joined, "q"))

	resp, err := srv.Client().Get(srv.URL + MetricsPath)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "exprrepr_bridge_conversions_total")
	assert.Contains(t, string(body), "exprrepr_bridge_evaluation_duration_seconds")
}

func TestHTTP3Loopback(t *testing.T) {
	tlsCfg, err := SelfSignedTLS([]string{"127.0.0.1", "localhost"}, time.Hour)
	require.NoError(t, err)
	c := codec.New(sampleValues(t))
	s := NewServer("127.0.0.1:0", tlsCfg, NewHandler(sampleCatalog(t), c))
	addr, err := s.Start()
	if err != nil {
		t.Skip("http3 not supported here:", err)
	}
	defer s.Shutdown(context.Background())

	hc := HTTP3Client(&tls.Config{InsecureSkipVerify: true, MinVersion: tls.VersionTLS13}, 3*time.Second)
	client := NewClient("https://"+addr, hc, c)
	defer client.Close()

	var joined string
	if err := client.Eval(context.Background(), exampleNode(t, "join"), &joined, "h3"); err != nil {
		var se *StatusError
		if errors.As(err, &se) {
			t.Fatal(err)
		}
		t.Skip("http3 dial failed:", err)
	}
	assert.Equal(t, "h3-h3", joined)
}
