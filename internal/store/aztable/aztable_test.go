package aztable

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idilsaglam/todosync/internal/model"
	"github.com/idilsaglam/todosync/internal/store"
	"github.com/idilsaglam/todosync/internal/store/storetest"
)

func TestDecodeEntity(t *testing.T) {
	data := []byte(`{"PartitionKey":"default","RowKey":"0190b3c2-7a1e-7c3a-9f00-aa","Timestamp":"2024-05-01T10:00:00Z","name":"Buy milk","isCompleted":true}`)
	it, err := decodeEntity(data)
	require.NoError(t, err)
	assert.Equal(t, model.Item{ID: "0190b3c2-7a1e-7c3a-9f00-aa", Name: "Buy milk", IsCompleted: true}, it)
}

func TestPartitionFilterEscapesQuotes(t *testing.T) {
	s := &Store{partition: "bob's list"}
	assert.Equal(t, "PartitionKey eq 'bob''s list'", s.partitionFilter())
}

func TestRowKeysSortInCreationOrder(t *testing.T) {
	a := newRowKey()
	b := newRowKey()
	assert.Less(t, a, b)
}

func TestNotFoundMapping(t *testing.T) {
	missing := fmt.Errorf("delete entity: %w", &azcore.ResponseError{StatusCode: http.StatusNotFound, ErrorCode: "ResourceNotFound"})
	assert.True(t, errors.Is(notFound(missing), store.ErrNotFound))

	other := fmt.Errorf("delete entity: %w", &azcore.ResponseError{StatusCode: http.StatusForbidden})
	assert.False(t, errors.Is(notFound(other), store.ErrNotFound))
}

func TestNewRejectsBadConnectionString(t *testing.T) {
	_, err := New("not a connection string", "TodoList", "")
	assert.Error(t, err)
}

// Azurite's published development account key.
const devAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

var entityPath = regexp.MustCompile(`^(\w+)\(PartitionKey='(.*)',RowKey='(.*)'\)$`)

// fakeTables is a minimal Azure Table service holding one account. It pages
// listings pageSize rows at a time.
type fakeTables struct {
	mu       sync.Mutex
	t        *testing.T
	pageSize int
	tables   map[string]bool
	rows     map[string]map[string]any // PartitionKey/RowKey -> entity
	merges   []map[string]any
	lists    int
}

func newFakeTables(t *testing.T) (*fakeTables, string) {
	t.Helper()
	f := &fakeTables{t: t, pageSize: 2, tables: map[string]bool{}, rows: map[string]map[string]any{}}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	conn := fmt.Sprintf("DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;AccountKey=%s;TableEndpoint=%s/devstoreaccount1;",
		devAccountKey, srv.URL)
	return f, conn
}

func (f *fakeTables) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !strings.HasPrefix(r.Header.Get("Authorization"), "SharedKey") {
		writeTableErr(w, http.StatusForbidden, "AuthenticationFailed")
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/devstoreaccount1/")

	switch {
	case path == "Tables" && r.Method == http.MethodPost:
		var in struct{ TableName string }
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&in))
		if f.tables[in.TableName] {
			writeTableErr(w, http.StatusConflict, "TableAlreadyExists")
			return
		}
		f.tables[in.TableName] = true
		writeTableJSON(w, http.StatusCreated, map[string]any{"TableName": in.TableName})

	case r.Method == http.MethodGet && strings.HasSuffix(path, "()"):
		f.list(w, r, strings.TrimSuffix(path, "()"))

	case r.Method == http.MethodPost:
		if !f.tables[path] {
			writeTableErr(w, http.StatusNotFound, "TableNotFound")
			return
		}
		var ent map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&ent))
		k := rowID(ent["PartitionKey"].(string), ent["RowKey"].(string))
		if _, ok := f.rows[k]; ok {
			writeTableErr(w, http.StatusConflict, "EntityAlreadyExists")
			return
		}
		f.rows[k] = ent
		writeTableJSON(w, http.StatusCreated, ent)

	case r.Method == http.MethodPatch || r.Method == http.MethodDelete:
		m := entityPath.FindStringSubmatch(path)
		if m == nil {
			http.NotFound(w, r)
			return
		}
		assert.Equal(f.t, "*", r.Header.Get("If-Match"))
		k := rowID(m[2], m[3])
		ent, ok := f.rows[k]
		if !ok {
			writeTableErr(w, http.StatusNotFound, "ResourceNotFound")
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.rows, k)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var patch map[string]any
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&patch))
		f.merges = append(f.merges, patch)
		for key, v := range patch {
			ent[key] = v
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.NotFound(w, r)
	}
}

func (f *fakeTables) list(w http.ResponseWriter, r *http.Request, table string) {
	f.lists++
	if f.lists > 50 {
		// continuation is not being followed correctly
		writeTableErr(w, http.StatusBadRequest, "TooManyPages")
		return
	}
	if !f.tables[table] {
		writeTableErr(w, http.StatusNotFound, "TableNotFound")
		return
	}
	q := r.URL.Query()
	filter := q.Get("$filter")
	if !strings.HasPrefix(filter, "PartitionKey eq '") || !strings.HasSuffix(filter, "'") {
		writeTableErr(w, http.StatusBadRequest, "InvalidInput")
		return
	}
	partition := strings.ReplaceAll(filter[len("PartitionKey eq '"):len(filter)-1], "''", "'")

	var keys []string
	for k, ent := range f.rows {
		if ent["PartitionKey"] == partition {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	start := 0
	if next := q.Get("NextRowKey"); next != "" {
		start = sort.SearchStrings(keys, rowID(q.Get("NextPartitionKey"), next))
	}
	end := start + f.pageSize
	if end < len(keys) {
		nxt := f.rows[keys[end]]
		w.Header().Set("x-ms-continuation-NextPartitionKey", nxt["PartitionKey"].(string))
		w.Header().Set("x-ms-continuation-NextRowKey", nxt["RowKey"].(string))
	} else {
		end = len(keys)
	}
	value := []map[string]any{}
	for _, k := range keys[start:end] {
		value = append(value, f.rows[k])
	}
	writeTableJSON(w, http.StatusOK, map[string]any{"value": value})
}

func rowID(pk, rk string) string { return pk + "/" + rk }

func writeTableJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json;odata=minimalmetadata")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeTableErr(w http.ResponseWriter, status int, code string) {
	w.Header().Set("x-ms-error-code", code)
	writeTableJSON(w, status, map[string]any{
		"odata.error": map[string]any{"code": code, "message": map[string]any{"lang": "en-US", "value": code}},
	})
}

func newFakeStore(t *testing.T, partition string) (*Store, *fakeTables) {
	t.Helper()
	f, conn := newFakeTables(t)
	s, err := New(conn, "TodoList", partition)
	require.NoError(t, err)
	require.NoError(t, s.EnsureTable(context.Background()))
	return s, f
}

func TestConformance(t *testing.T) {
	s, _ := newFakeStore(t, "")
	storetest.Run(t, s, storetest.Options{})
}

func TestEnsureTableIsIdempotent(t *testing.T) {
	s, f := newFakeStore(t, "")
	require.NoError(t, s.EnsureTable(context.Background()))
	assert.True(t, f.tables["TodoList"])
}

func TestSelectAllFollowsContinuation(t *testing.T) {
	ctx := context.Background()
	s, f := newFakeStore(t, "")

	var want []model.Item
	for _, name := range []string{"one", "two", "three", "four", "five"} {
		it, err := s.Insert(ctx, model.NewItem{Name: name})
		require.NoError(t, err)
		want = append(want, it)
	}
	f.lists = 0

	items, err := s.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, items)
	assert.Equal(t, 3, f.lists, "five rows in pages of two")
}

func TestUpdateMergesOnlyTheFlag(t *testing.T) {
	ctx := context.Background()
	s, f := newFakeStore(t, "")
	it, err := s.Insert(ctx, model.NewItem{Name: "Buy milk"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateByID(ctx, it.ID, model.Completed(true)))
	require.Len(t, f.merges, 1)
	assert.NotContains(t, f.merges[0], "name")
	assert.Equal(t, true, f.merges[0]["isCompleted"])

	items, err := s.SelectAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.Item{{ID: it.ID, Name: "Buy milk", IsCompleted: true}}, items)
}

func TestPartitionsAreSeparate(t *testing.T) {
	ctx := context.Background()
	f, conn := newFakeTables(t)
	alice, err := New(conn, "TodoList", "alice")
	require.NoError(t, err)
	require.NoError(t, alice.EnsureTable(ctx))
	bob, err := New(conn, "TodoList", "bob's")
	require.NoError(t, err)

	_, err = alice.Insert(ctx, model.NewItem{Name: "Buy milk"})
	require.NoError(t, err)
	_, err = bob.Insert(ctx, model.NewItem{Name: "Walk dog"})
	require.NoError(t, err)
	assert.Len(t, f.rows, 2)

	items, err := alice.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Buy milk", items[0].Name)

	items, err = bob.SelectAll(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Walk dog", items[0].Name)
}
