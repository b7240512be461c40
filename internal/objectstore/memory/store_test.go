package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/datasieve/datasieve/internal/objectstore"
)

func TestBucketLifecycle(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	exists, err := store.BucketExists(ctx, "gold")
	if err != nil || exists {
		t.Fatalf("expected no bucket, got exists=%v err=%v", exists, err)
	}

	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	// Idempotent create.
	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("repeated create failed: %v", err)
	}

	if err := store.PutObject(ctx, "gold", "a/b.json", []byte("{}"), "application/json"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	removed, err := store.RemoveBucketIfExists(ctx, "gold")
	if err != nil || !removed {
		t.Fatalf("expected removal, got removed=%v err=%v", removed, err)
	}
	removed, err = store.RemoveBucketIfExists(ctx, "gold")
	if err != nil || removed {
		t.Fatalf("expected no-op removal, got removed=%v err=%v", removed, err)
	}
}

func TestPutReadDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.PutObject(ctx, "gold", "rfb/json/x.json", []byte(`{"a":1}`), "application/json"); err != nil {
		t.Fatalf("put failed: %v", err)
	}

	data, err := store.ReadObject(ctx, "gold", "rfb/json/x.json")
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Errorf("unexpected contents: %s", data)
	}

	if _, err := store.ReadObject(ctx, "gold", "missing"); !errors.Is(err, objectstore.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}

	deleted, err := store.DeleteObject(ctx, "gold", "rfb/json/x.json")
	if err != nil || !deleted {
		t.Fatalf("expected deletion, got deleted=%v err=%v", deleted, err)
	}
	deleted, err = store.DeleteObject(ctx, "gold", "rfb/json/x.json")
	if err != nil || deleted {
		t.Fatalf("expected no-op deletion, got deleted=%v err=%v", deleted, err)
	}

	if err := store.PutObject(ctx, "nope", "k", nil, ""); !errors.Is(err, objectstore.ErrBucketOperation) {
		t.Errorf("expected ErrBucketOperation for missing bucket, got %v", err)
	}
}

func TestIterByPrefix(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	objects := map[string]string{
		"rfb/json/c.json":  "3",
		"rfb/json/a.json":  "1",
		"rfb/json/b.json":  "2",
		"other/prefix.txt": "x",
	}
	for key, body := range objects {
		if err := store.PutObject(ctx, "gold", key, []byte(body), ""); err != nil {
			t.Fatalf("put %s failed: %v", key, err)
		}
	}

	var names []string
	var bodies []string
	err := store.IterByPrefix(ctx, "gold", "rfb/json/", func(filename string, data []byte) error {
		names = append(names, filename)
		bodies = append(bodies, string(data))
		return nil
	})
	if err != nil {
		t.Fatalf("iter failed: %v", err)
	}

	wantNames := []string{"a.json", "b.json", "c.json"}
	wantBodies := []string{"1", "2", "3"}
	if len(names) != 3 {
		t.Fatalf("expected 3 blobs, got %d", len(names))
	}
	for i := range wantNames {
		if names[i] != wantNames[i] || bodies[i] != wantBodies[i] {
			t.Errorf("blob %d: got (%s,%s), want (%s,%s)", i, names[i], bodies[i], wantNames[i], wantBodies[i])
		}
	}
}

// The pipeline deletes each blob while iterating; the iteration must not
// break.
func TestIterByPrefixAllowsDeletion(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, key := range []string{"p/a.json", "p/b.json", "p/c.json"} {
		if err := store.PutObject(ctx, "gold", key, []byte("{}"), ""); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	count := 0
	err := store.IterByPrefix(ctx, "gold", "p/", func(filename string, data []byte) error {
		count++
		_, err := store.DeleteObject(ctx, "gold", "p/"+filename)
		return err
	})
	if err != nil {
		t.Fatalf("iter failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 visits, got %d", count)
	}
}

func TestIterByPrefixStopsOnError(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	if err := store.CreateBucket(ctx, "gold"); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	for _, key := range []string{"p/a.json", "p/b.json"} {
		if err := store.PutObject(ctx, "gold", key, []byte("{}"), ""); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}

	boom := errors.New("boom")
	count := 0
	err := store.IterByPrefix(ctx, "gold", "p/", func(string, []byte) error {
		count++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected callback error to propagate, got %v", err)
	}
	if count != 1 {
		t.Errorf("expected iteration to stop after first error, got %d visits", count)
	}
}
