package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aksharjobs/matchscore/internal/store"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()

	db, err := Open(filepath.Join(t.TempDir(), "matchscore.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close(context.Background()) })
	return db
}

func TestInsertAndFind(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := db.Collection("jobs")

	id, err := coll.InsertOne(ctx, store.Document{"_id": "job-1", "title": "Go Developer", "remote": true})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != "job-1" {
		t.Fatalf("expected provided id to be kept, got %q", id)
	}

	generated, err := coll.InsertOne(ctx, store.Document{"title": "Data Engineer", "remote": false})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if generated == "" {
		t.Fatalf("expected generated id")
	}

	doc, err := coll.FindOne(ctx, store.Filter{"_id": "job-1"})
	if err != nil {
		t.Fatalf("find one: %v", err)
	}
	if doc["title"] != "Go Developer" {
		t.Fatalf("unexpected document: %v", doc)
	}

	remote, err := coll.Find(ctx, store.Filter{"remote": false})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if len(remote) != 1 || remote[0]["_id"] != generated {
		t.Fatalf("unexpected documents: %v", remote)
	}

	if _, err := db.Collection("users").FindOne(ctx, store.Filter{"_id": "job-1"}); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("collections must be isolated, got %v", err)
	}
}

func TestUniqueIndexRejectsDuplicatePair(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := db.Collection("applications")

	if err := coll.EnsureUniqueIndex(ctx, "userId", "jobId"); err != nil {
		t.Fatalf("ensure index: %v", err)
	}
	// idempotent
	if err := coll.EnsureUniqueIndex(ctx, "userId", "jobId"); err != nil {
		t.Fatalf("ensure index twice: %v", err)
	}

	if _, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1"})
	if !errors.Is(err, store.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key, got %v", err)
	}

	if _, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j2"}); err != nil {
		t.Fatalf("insert other pair: %v", err)
	}

	// the index is scoped to its collection
	if _, err := db.Collection("archive").InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1"}); err != nil {
		t.Fatalf("insert into other collection: %v", err)
	}
}

func TestConcurrentInsertsKeepOneDocument(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := db.Collection("applications")

	if err := coll.EnsureUniqueIndex(ctx, "userId", "jobId"); err != nil {
		t.Fatalf("ensure index: %v", err)
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		inserted  int
		conflicts int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1"})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				inserted++
			case errors.Is(err, store.ErrDuplicateKey):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if inserted != 1 || conflicts != 7 {
		t.Fatalf("expected 1 insert and 7 conflicts, got %d and %d", inserted, conflicts)
	}
}

func TestUpdateOne(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := db.Collection("applications")

	if _, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1", "status": "viewed", "finalScore": 64.5}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	res, err := coll.UpdateOne(ctx, store.Filter{"userId": "u1", "jobId": "j1"}, store.Document{"status": "Applied"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 1 || res.ModifiedCount != 1 {
		t.Fatalf("unexpected result: %+v", res)
	}

	res, err = coll.UpdateOne(ctx, store.Filter{"userId": "u1", "jobId": "j1"}, store.Document{"status": "Applied"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 1 || res.ModifiedCount != 0 {
		t.Fatalf("expected unchanged document, got %+v", res)
	}

	res, err = coll.UpdateOne(ctx, store.Filter{"userId": "nobody"}, store.Document{"status": "Applied"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if res.MatchedCount != 0 {
		t.Fatalf("expected no match, got %+v", res)
	}

	doc, err := coll.FindOne(ctx, store.Filter{"userId": "u1"})
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if doc["status"] != "Applied" || doc["finalScore"] != 64.5 {
		t.Fatalf("unexpected document after update: %v", doc)
	}
}

func TestNullFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	coll := db.Collection("applications")

	if _, err := coll.InsertOne(ctx, store.Document{"userId": "u1", "jobId": "j1", "status": "pending"}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := coll.FindOne(ctx, store.Filter{"userId": "u1", "finalScore": nil}); err != nil {
		t.Fatalf("expected document without score to match nil filter: %v", err)
	}

	if _, err := coll.UpdateOne(ctx, store.Filter{"userId": "u1"}, store.Document{"finalScore": 70.0}); err != nil {
		t.Fatalf("update: %v", err)
	}

	if _, err := coll.FindOne(ctx, store.Filter{"userId": "u1", "finalScore": nil}); !errors.Is(err, store.ErrNoDocument) {
		t.Fatalf("expected no match once score is set, got %v", err)
	}
}

func TestInvalidFieldNames(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Collection("applications").EnsureUniqueIndex(ctx, "user'Id"); err == nil {
		t.Fatalf("expected invalid field error")
	}

	if _, err := db.Collection("applications").Find(ctx, store.Filter{"a.b": "x"}); err == nil {
		t.Fatalf("expected invalid filter field error")
	}
}
