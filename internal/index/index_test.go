package index

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/starford/depot/internal/apperr"
	"github.com/starford/depot/internal/models"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	f, err := os.CreateTemp("", "depot-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })

	db, err := Open(f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func record(category, name string, created time.Time) models.StoredFile {
	return models.StoredFile{
		Category:     category,
		Name:         name,
		OriginalName: "orig-" + name,
		Size:         3,
		ContentType:  "image/png",
		Checksum:     "abc",
		CreatedAt:    created,
	}
}

func TestSchemaCreation(t *testing.T) {
	db := testDB(t)
	var count int
	if err := db.conn.QueryRow(`SELECT count(*) FROM files`).Scan(&count); err != nil {
		t.Fatalf("files table missing: %v", err)
	}
}

func TestUpsertAndGet(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)
	if err := db.Upsert(ctx, record("sekiller", "1-aaaaaaaa.png", now)); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := db.Get(ctx, "sekiller", "1-aaaaaaaa.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.OriginalName != "orig-1-aaaaaaaa.png" || got.Size != 3 || got.ContentType != "image/png" {
		t.Errorf("got = %+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, now)
	}

	// Upsert replaces metadata.
	r := record("sekiller", "1-aaaaaaaa.png", now)
	r.OriginalName = "renamed.png"
	_ = db.Upsert(ctx, r)
	got, _ = db.Get(ctx, "sekiller", "1-aaaaaaaa.png")
	if got.OriginalName != "renamed.png" {
		t.Errorf("original_name = %q, want renamed.png", got.OriginalName)
	}
}

func TestGetNotFound(t *testing.T) {
	db := testDB(t)
	_, err := db.Get(context.Background(), "sekiller", "missing.png")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestInsertIfAbsent(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := record("belgeler", "a.pdf", time.Now())
	added, err := db.InsertIfAbsent(ctx, r)
	if err != nil || !added {
		t.Fatalf("first insert = %v, %v", added, err)
	}
	r.OriginalName = "other.pdf"
	added, err = db.InsertIfAbsent(ctx, r)
	if err != nil || added {
		t.Fatalf("second insert = %v, %v; want false, nil", added, err)
	}
	got, _ := db.Get(ctx, "belgeler", "a.pdf")
	if got.OriginalName != "orig-a.pdf" {
		t.Errorf("original_name = %q, existing row must be kept", got.OriginalName)
	}
}

func TestListNewestFirstAndPaging(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)
	for i, n := range []string{"a.png", "b.png", "c.png"} {
		_ = db.Upsert(ctx, record("haberler", n, base.Add(time.Duration(i)*time.Minute)))
	}
	_ = db.Upsert(ctx, record("ekip", "z.png", base))

	items, total, err := db.List(ctx, "haberler", 2, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
	if len(items) != 2 || items[0].Name != "c.png" || items[1].Name != "b.png" {
		t.Errorf("page 1 = %+v", items)
	}

	items, _, _ = db.List(ctx, "haberler", 2, 2)
	if len(items) != 1 || items[0].Name != "a.png" {
		t.Errorf("page 2 = %+v", items)
	}

	_, total, _ = db.List(ctx, "", 10, 0)
	if total != 4 {
		t.Errorf("all total = %d, want 4", total)
	}
}

func TestSearch(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	r := record("dergiler", "1-bbbbbbbb.pdf", time.Now())
	r.OriginalName = "bahar_2024_sayi.pdf"
	_ = db.Upsert(ctx, r)
	_ = db.Upsert(ctx, record("dergiler", "2-cccccccc.pdf", time.Now()))

	res, err := db.Search(ctx, "BAHAR", 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res) != 1 || res[0].Name != "1-bbbbbbbb.pdf" {
		t.Errorf("results = %+v", res)
	}

	// Wildcards in the query are literal.
	res, _ = db.Search(ctx, "%", 10)
	if len(res) != 0 {
		t.Errorf("literal %% matched %d rows", len(res))
	}
	res, _ = db.Search(ctx, "_2024_", 10)
	if len(res) != 1 {
		t.Errorf("literal _ search = %d rows, want 1", len(res))
	}
}

func TestDeleteHasAndKeys(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	_ = db.Upsert(ctx, record("ekip", "a.jpg", time.Now()))
	_ = db.Upsert(ctx, record("ekip", "b.jpg", time.Now()))
	_ = db.Upsert(ctx, record("projeler", "c.jpg", time.Now()))

	if ok, _ := db.Has(ctx, "ekip", "a.jpg"); !ok {
		t.Error("Has = false before delete")
	}
	if err := db.Delete(ctx, "ekip", "a.jpg"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if ok, _ := db.Has(ctx, "ekip", "a.jpg"); ok {
		t.Error("Has = true after delete")
	}

	keys, err := db.AllKeys(ctx)
	if err != nil {
		t.Fatalf("AllKeys: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("len(keys) = %d, want 2", len(keys))
	}
	if _, ok := keys[Key{Category: "projeler", Name: "c.jpg"}]; !ok {
		t.Error("missing projeler/c.jpg")
	}

	counts, err := db.CategoryCounts(ctx)
	if err != nil {
		t.Fatalf("CategoryCounts: %v", err)
	}
	if counts["ekip"] != 1 || counts["projeler"] != 1 {
		t.Errorf("counts = %v", counts)
	}
}

func TestPing(t *testing.T) {
	db := testDB(t)
	if err := db.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	db.Close()
	if err := db.Ping(context.Background()); err == nil {
		t.Error("Ping after Close should fail")
	}
}
