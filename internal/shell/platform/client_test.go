package platform

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Test Helpers
// =============================================================================

type handlerFunc func(t *testing.T, body map[string]any) (status int, result any, apiErr *[2]string)

// newTestServer routes actions to handlers and writes the response envelope.
func newTestServer(t *testing.T, handlers map[string]handlerFunc) (*httptest.Server, *[]string) {
	t.Helper()
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		action := r.URL.Query().Get("Action")
		assert.NotEmpty(t, r.URL.Query().Get("Version"))
		calls = append(calls, action)

		var body map[string]any
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)

		h, ok := handlers[action]
		if !ok {
			t.Errorf("unexpected action %s", action)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		status, result, apiErr := h(t, body)
		meta := map[string]any{"RequestId": "req-1", "Action": action}
		if apiErr != nil {
			meta["Error"] = map[string]string{"Code": apiErr[0], "Message": apiErr[1]}
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{"ResponseMetadata": meta, "Result": result})
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func ok(result any) (int, any, *[2]string) { return http.StatusOK, result, nil }

func apiError(status int, code, msg string) (int, any, *[2]string) {
	return status, nil, &[2]string{code, msg}
}

func newTestClient(url string) *Client {
	return NewClient(Config{Endpoint: url, Region: "cn-beijing"}, nil)
}

// =============================================================================
// Client Tests
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.Equal(t, DefaultEndpoint, c.endpoint)
	assert.NotNil(t, c.logger)
	assert.Equal(t, 0, c.httpClient.RetryMax)
}

func TestCall_DecodesResult(t *testing.T) {
	server, _ := newTestServer(t, map[string]handlerFunc{
		"GetRuntime": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			assert.Equal(t, "r-1", body["RuntimeId"])
			return ok(Runtime{RuntimeID: "r-1", Name: "agentkit-weather", Status: "Ready", Endpoint: "https://r-1.example.com"})
		},
	})

	rt, err := newTestClient(server.URL).GetRuntime(context.Background(), "r-1")
	require.NoError(t, err)
	assert.Equal(t, "Ready", rt.Status)
	assert.Equal(t, "https://r-1.example.com", rt.Endpoint)
}

func TestCall_APIError(t *testing.T) {
	server, _ := newTestServer(t, map[string]handlerFunc{
		"GetRuntime": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return apiError(http.StatusNotFound, "RuntimeNotFound", "runtime r-9 does not exist")
		},
		"DeleteRuntime": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return apiError(http.StatusBadRequest, "InvalidParameter", "bad id")
		},
	})
	c := newTestClient(server.URL)

	_, err := c.GetRuntime(context.Background(), "r-9")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.False(t, IsConflict(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.Contains(t, err.Error(), "RuntimeNotFound")

	err = c.DeleteRuntime(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
}

func TestCall_NonEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html>gone</html>"))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetRuntime(context.Background(), "r-1")
	assert.True(t, IsNotFound(err))
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var n atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ResponseMetadata": map[string]any{"RequestId": "r"}, "Result": nil})
	}))
	defer server.Close()

	c := NewClient(Config{Endpoint: server.URL, RetryMax: 2}, nil)
	c.httpClient.RetryWaitMin = 0
	c.httpClient.RetryWaitMax = 0
	require.NoError(t, c.ReleaseRuntime(context.Background(), "r-1"))
	assert.Equal(t, int32(2), n.Load())
}

func TestCall_RequestEditor(t *testing.T) {
	var gotHeader, gotService string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{"ResponseMetadata": map[string]any{}, "Result": map[string]any{}})
	}))
	defer server.Close()

	editor := func(_ context.Context, req *http.Request, service string, body []byte) error {
		gotService = service
		req.Header.Set("Authorization", fmt.Sprintf("signed %d", len(body)))
		return nil
	}
	c := NewClient(Config{Endpoint: server.URL}, nil, editor, HeaderEditor(map[string]string{"X-Extra": "1"}))
	require.NoError(t, c.ReleaseRuntime(context.Background(), "r-1"))
	assert.True(t, strings.HasPrefix(gotHeader, "signed "))
	assert.Equal(t, ServiceRuntime, gotService)
}

// =============================================================================
// Pagination Tests
// =============================================================================

func TestListRuntimes_Paginates(t *testing.T) {
	server, calls := newTestServer(t, map[string]handlerFunc{
		"ListRuntimes": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			assert.Equal(t, float64(50), body["MaxResults"])
			switch body["NextToken"] {
			case nil:
				return ok(map[string]any{"Runtimes": []Runtime{{RuntimeID: "r-1"}, {RuntimeID: "r-2"}}, "NextToken": "t2"})
			case "t2":
				return ok(map[string]any{"Runtimes": []Runtime{{RuntimeID: "r-3"}}})
			}
			return ok(nil)
		},
	})

	var ids []string
	for r, err := range newTestClient(server.URL).ListRuntimes(context.Background(), ListRuntimesInput{}) {
		require.NoError(t, err)
		ids = append(ids, r.RuntimeID)
	}
	assert.Equal(t, []string{"r-1", "r-2", "r-3"}, ids)
	assert.Len(t, *calls, 2)
}

func TestListRuntimes_EarlyBreakStopsPaging(t *testing.T) {
	server, calls := newTestServer(t, map[string]handlerFunc{
		"ListRuntimes": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return ok(map[string]any{"Runtimes": []Runtime{{RuntimeID: "r-1"}, {RuntimeID: "r-2"}}, "NextToken": "more"})
		},
	})

	for range newTestClient(server.URL).ListRuntimes(context.Background(), ListRuntimesInput{}) {
		break
	}
	assert.Len(t, *calls, 1)
}

func TestFindRuntimeByName(t *testing.T) {
	server, _ := newTestServer(t, map[string]handlerFunc{
		"ListRuntimes": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return ok(map[string]any{"Runtimes": []Runtime{{RuntimeID: "r-1", Name: "other"}, {RuntimeID: "r-2", Name: "weather"}}})
		},
	})
	c := newTestClient(server.URL)

	rt, err := c.FindRuntimeByName(context.Background(), "weather")
	require.NoError(t, err)
	assert.Equal(t, "r-2", rt.RuntimeID)

	_, err = c.FindRuntimeByName(context.Background(), "missing")
	assert.True(t, IsNotFound(err))
}

// =============================================================================
// Ensure Tests
// =============================================================================

func TestEnsureRole_CreatesAndAttaches(t *testing.T) {
	server, calls := newTestServer(t, map[string]handlerFunc{
		"GetRole": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return apiError(http.StatusNotFound, "RoleNotExist", "")
		},
		"CreateRole": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			assert.Equal(t, "agentkit-runtime-role-1", body["RoleName"])
			return ok(map[string]any{"Role": Role{RoleName: "agentkit-runtime-role-1"}})
		},
		"AttachRolePolicy": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return ok(nil)
		},
	})

	created, err := newTestClient(server.URL).EnsureRole(context.Background(), "agentkit-runtime-role-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, []string{"GetRole", "CreateRole", "AttachRolePolicy", "AttachRolePolicy"}, *calls)
}

func TestEnsureRole_Exists(t *testing.T) {
	server, calls := newTestServer(t, map[string]handlerFunc{
		"GetRole": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return ok(map[string]any{"Role": Role{RoleName: "r"}})
		},
	})

	created, err := newTestClient(server.URL).EnsureRole(context.Background(), "r")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, []string{"GetRole"}, *calls)
}

func TestEnsureNamespace_Conflict(t *testing.T) {
	server, _ := newTestServer(t, map[string]handlerFunc{
		"CreateNamespace": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return apiError(http.StatusConflict, "AlreadyExists.Namespace", "")
		},
		"CreateRepository": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			assert.Equal(t, "agentkit", body["Namespace"])
			return ok(nil)
		},
	})
	c := newTestClient(server.URL)

	created, err := c.EnsureNamespace(context.Background(), "inst", "agentkit")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = c.EnsureRepository(context.Background(), "inst", "agentkit", "weather")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestRegistryHost(t *testing.T) {
	assert.Equal(t, "agentkit-1a2b-cn-beijing.cr.volces.com", RegistryHost("agentkit-1a2b", "cn-beijing"))
}

// =============================================================================
// Service Status And Log Tests
// =============================================================================

func TestServiceStatuses(t *testing.T) {
	server, _ := newTestServer(t, map[string]handlerFunc{
		"GetServiceStatus": func(t *testing.T, body map[string]any) (int, any, *[2]string) {
			return ok(map[string]any{"Services": []map[string]string{
				{"Service": "cr", "Status": "Enabled"},
				{"Service": "iam", "Status": "Disabled"},
			}})
		},
	})

	got, err := newTestClient(server.URL).ServiceStatuses(context.Background(), []string{"cr", "iam"})
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"cr": true, "iam": false}, got)
}

func TestDownloadLog_KeepsTail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 1; i <= 100; i++ {
			fmt.Fprintf(w, "line %d\n", i)
		}
	}))
	defer server.Close()

	lines, err := newTestClient(server.URL).DownloadLog(context.Background(), server.URL+"/log", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"line 98", "line 99", "line 100"}, lines)
}

func TestEnvVars_Sorted(t *testing.T) {
	assert.Equal(t, []EnvVar{{"A", "1"}, {"B", "2"}}, EnvVars(map[string]string{"B": "2", "A": "1"}))
}
