package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"todoapi/internal/adapters/todos"
	"todoapi/internal/blob"
	"todoapi/internal/core"
	"todoapi/pkg/domain"
)

type envelope struct {
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
	NewTodo domain.Todo     `json:"newTodo"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

// TestIntegrationSmoke runs one write, export and read-back cycle over every
// in-process storage backend combined with every blob backend.
func TestIntegrationSmoke(t *testing.T) {
	ctx := context.Background()

	storeVariants := []struct {
		name string
		opts func(t *testing.T) core.StorageOptions
	}{
		{"memory-store", func(*testing.T) core.StorageOptions { return core.StorageOptions{Driver: core.StorageMemory} }},
		{"sqlite-store", func(t *testing.T) core.StorageOptions {
			return core.StorageOptions{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "todos.db")}
		}},
	}
	blobVariants := []struct {
		name string
		open func(t *testing.T) blob.Store
	}{
		{"memory-blob", func(*testing.T) blob.Store { return blob.NewMemory() }},
		{"filesystem-blob", func(t *testing.T) blob.Store {
			fs, err := blob.NewFilesystem(t.TempDir())
			if err != nil {
				t.Fatalf("new filesystem blob: %v", err)
			}
			return fs
		}},
		{"mock-s3-blob", func(*testing.T) blob.Store { return blob.NewMockS3ForTests() }},
	}

	for _, sv := range storeVariants {
		for _, bv := range blobVariants {
			t.Run(sv.name+"/"+bv.name, func(t *testing.T) {
				store, err := core.OpenPersistentStore(ctx, sv.opts(t))
				if err != nil {
					t.Fatalf("open store: %v", err)
				}
				t.Cleanup(func() { _ = core.CloseStore(store) })

				metrics := core.NewExpvarMetricsRecorder("")
				var traces bytes.Buffer
				tracer := core.NewJSONTracer(&traces)
				svc := core.NewService(store, core.WithMetricsRecorder(metrics), core.WithTracer(tracer))
				bs := bv.open(t)
				h := todos.NewHandler(svc)
				h.Exports = todos.NewExporter(svc, bs)

				code, env := call(t, h, http.MethodPost, "/api/addTodo", `{"text":"water plants","room":"kitchen"}`)
				if code != http.StatusCreated {
					t.Fatalf("add: %d %+v", code, env)
				}
				first := env.NewTodo
				if _, env = call(t, h, http.MethodPost, "/api/addTodo", `{"text":"feed cat"}`); env.NewTodo.ID == "" {
					t.Fatalf("second add returned no id")
				}
				if code, env = call(t, h, http.MethodPut, "/api/updateTodo", `{"id":"`+first.ID+`","text":"water all plants"}`); code != http.StatusOK {
					t.Fatalf("update: %d %+v", code, env)
				}

				code, env = call(t, h, http.MethodPost, "/api/exportTodos", "")
				if code != http.StatusCreated {
					t.Fatalf("export: %d %+v", code, env)
				}
				var info blob.Info
				if err := json.Unmarshal(env.Data, &info); err != nil {
					t.Fatalf("decode export info: %v", err)
				}
				if !strings.HasPrefix(info.Key, todos.ExportPrefix) || info.Size <= 0 {
					t.Fatalf("unexpected export info %+v", info)
				}

				_, rc, err := bs.Get(ctx, info.Key)
				if err != nil {
					t.Fatalf("blob get: %v", err)
				}
				var exported []domain.Todo
				err = json.NewDecoder(rc).Decode(&exported)
				_ = rc.Close()
				if err != nil {
					t.Fatalf("decode export body: %v", err)
				}
				if len(exported) != 2 || exported[0].ID != first.ID || exported[0].Text != "water all plants" {
					t.Fatalf("unexpected export contents %+v", exported)
				}
				if exported[0].Attributes["room"] != "kitchen" {
					t.Fatalf("expected extra field exported, got %+v", exported[0].Attributes)
				}

				code, env = call(t, h, http.MethodGet, "/api/getExports", "")
				var listed []blob.Info
				if err := json.Unmarshal(env.Data, &listed); err != nil || code != http.StatusOK {
					t.Fatalf("list exports: %d %v", code, err)
				}
				if len(listed) != 1 || listed[0].Key != info.Key {
					t.Fatalf("unexpected export listing %+v", listed)
				}

				if code, _ = call(t, h, http.MethodDelete, "/api/deleteTodo?id="+first.ID, ""); code != http.StatusOK {
					t.Fatalf("delete: %d", code)
				}
				if code, _ = call(t, h, http.MethodGet, "/api/getTodo?id="+first.ID, ""); code != http.StatusNotFound {
					t.Fatalf("expected deleted todo gone, got %d", code)
				}

				snapshot := metrics.Snapshot()
				if snapshot.Results[core.OpCreateTodo]["success"] != 2 {
					t.Fatalf("expected two create successes: %+v", snapshot.Results)
				}
				if traces.Len() == 0 || len(tracer.Entries()) == 0 {
					t.Fatalf("expected trace spans")
				}
			})
		}
	}
}

// TestSQLiteStateSurvivesReopen checks that a reopened sqlite store serves the
// collection the previous process left behind.
func TestSQLiteStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	opts := core.StorageOptions{Driver: core.StorageSQLite, SQLitePath: filepath.Join(t.TempDir(), "todos.db")}

	store, err := core.OpenPersistentStore(ctx, opts)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	created, _, err := core.NewService(store).CreateTodo(ctx, map[string]any{"text": "persist me"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := core.CloseStore(store); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := core.OpenPersistentStore(ctx, opts)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	defer core.CloseStore(reopened)
	got, err := core.NewService(reopened).GetTodo(ctx, created.ID)
	if err != nil || got.Text != "persist me" {
		t.Fatalf("expected persisted todo, got %+v %v", got, err)
	}
}
