package keystore_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/stegseal/stegseal-go/keystore"
	"github.com/stegseal/stegseal-go/keystore/storetest"
)

// fakeKV serves the subset of the Vault KV v2 HTTP API the store uses.
type fakeKV struct {
	mu      sync.Mutex
	secrets map[string]map[string]interface{}
}

func (f *fakeKV) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.Header.Get("X-Vault-Token") != "test-token" {
		http.Error(w, `{"errors":["permission denied"]}`, http.StatusForbidden)
		return
	}

	p := strings.TrimPrefix(r.URL.Path, "/v1/")
	mount, rest, _ := strings.Cut(p, "/")
	kind, name, _ := strings.Cut(rest, "/")
	if mount != "secret" {
		http.NotFound(w, r)
		return
	}

	isList := r.Method == "LIST" || r.URL.Query().Get("list") == "true"

	switch {
	case kind == "data" && r.Method == http.MethodGet && !isList:
		data, ok := f.secrets[name]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
			return
		}
		writeJSON(w, map[string]interface{}{
			"data": map[string]interface{}{"data": data, "metadata": map[string]interface{}{"version": 1}},
		})

	case kind == "data" && (r.Method == http.MethodPut || r.Method == http.MethodPost):
		var body struct {
			Data map[string]interface{} `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.secrets[name] = body.Data
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"version": 1}})

	case kind == "metadata" && r.Method == http.MethodDelete:
		delete(f.secrets, name)
		w.WriteHeader(http.StatusNoContent)

	case kind == "metadata" && isList:
		prefix := strings.TrimSuffix(name, "/") + "/"
		var keys []string
		for k := range f.secrets {
			if strings.HasPrefix(k, prefix) {
				keys = append(keys, strings.TrimPrefix(k, prefix))
			}
		}
		if len(keys) == 0 {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"errors":[]}`))
			return
		}
		sort.Strings(keys)
		writeJSON(w, map[string]interface{}{"data": map[string]interface{}{"keys": keys}})

	default:
		http.Error(w, `{"errors":["unsupported"]}`, http.StatusMethodNotAllowed)
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func newFakeVault(t *testing.T, wrapper *keystore.Wrapper) keystore.Store {
	t.Helper()

	srv := httptest.NewServer(&fakeKV{secrets: map[string]map[string]interface{}{}})
	t.Cleanup(srv.Close)

	client, err := keystore.NewVaultClient(srv.URL, "test-token")
	require.NoError(t, err)
	return keystore.NewVault(client, "secret", "stegseal/keys", wrapper, nil)
}

func TestVault(t *testing.T) {
	storetest.Run(t, func(t *testing.T) keystore.Store {
		return newFakeVault(t, nil)
	})
}

func TestVault_Wrapped(t *testing.T) {
	storetest.Run(t, func(t *testing.T) keystore.Store {
		return newFakeVault(t, newWrapper(t))
	})
}
