package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"lightview/internal/mediatypes"
)

// Integration tests for catalog operations with a real SQLite database

// setupTestStore creates a catalog store backed by a temp database file.
func setupTestStore(t testing.TB) (store *Store, dbPath string) {
	t.Helper()

	tmpDir := t.TempDir()
	dbPath = filepath.Join(tmpDir, "test.db")

	store, err := New(context.Background(), dbPath)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	return store, dbPath
}

// addFile upserts a simple image file record and returns its id.
func addFile(t testing.TB, store *Store, dirID int64, path string) int64 {
	t.Helper()

	id, _, err := store.UpsertFile(context.Background(), &FileRecord{
		Path:       path,
		DirID:      dirID,
		ParentPath: filepath.Dir(path),
		Name:       filepath.Base(path),
		Kind:       mediatypes.KindImage,
		Size:       1024,
		ModTime:    time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertFile(%s) failed: %v", path, err)
	}
	return id
}

// addDir tracks a directory and returns its record.
func addDir(t testing.TB, store *Store, path string) *TrackedDirectory {
	t.Helper()

	d, err := store.TrackDir(context.Background(), path, true)
	if err != nil {
		t.Fatalf("TrackDir(%s) failed: %v", path, err)
	}
	return d
}

// backdate shifts a file's updated_at into the past so retire sweeps with a
// present-time cutoff can see it. strftime has one-second granularity, so
// tests cannot rely on real elapsed time.
func backdate(t testing.TB, store *Store, fileID int64, by time.Duration) {
	t.Helper()

	_, err := store.db.Exec(
		`UPDATE files SET updated_at = ? WHERE id = ?`,
		time.Now().Add(-by).Unix(), fileID)
	if err != nil {
		t.Fatalf("Failed to backdate file %d: %v", fileID, err)
	}
}

func TestNewStore(t *testing.T) {
	store, dbPath := setupTestStore(t)

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}

	if err := store.db.PingContext(context.Background()); err != nil {
		t.Errorf("Database ping failed: %v", err)
	}
}

func TestStoreReopen(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "reopen.db")
	ctx := context.Background()

	store, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	dir := addDir(t, store, "/library")
	addFile(t, store, dir.ID, "/library/a.jpg")

	if err := store.Close(); err != nil {
		t.Fatalf("Close() failed: %v", err)
	}

	// Reopen and verify the data survived, including schema migrations
	// running cleanly against an already-migrated database.
	store2, err := New(ctx, dbPath)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer store2.Close()

	f, err := store2.GetFileByPath(ctx, "/library/a.jpg")
	if err != nil {
		t.Fatalf("GetFileByPath after reopen failed: %v", err)
	}
	if f.Name != "a.jpg" {
		t.Errorf("Name = %q, want a.jpg", f.Name)
	}
}

func TestUpsertFileEnqueuesHash(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	id, enqueued, err := store.UpsertFile(ctx, &FileRecord{
		Path:       "/library/photo.jpg",
		DirID:      dir.ID,
		ParentPath: "/library",
		Name:       "photo.jpg",
		Kind:       mediatypes.KindImage,
		Size:       2048,
		ModTime:    time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	if id == 0 {
		t.Fatal("UpsertFile returned id 0")
	}
	if !enqueued {
		t.Error("New file should enqueue a hash job")
	}

	counts, err := store.CountJobs(ctx)
	if err != nil {
		t.Fatalf("CountJobs failed: %v", err)
	}
	if counts[JobPending] != 1 {
		t.Errorf("Pending jobs = %d, want 1", counts[JobPending])
	}
}

func TestUpsertFileUnchangedIsIdempotent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	modTime := time.Now()
	rec := FileRecord{
		Path:       "/library/photo.jpg",
		DirID:      dir.ID,
		ParentPath: "/library",
		Name:       "photo.jpg",
		Kind:       mediatypes.KindImage,
		Size:       2048,
		ModTime:    modTime,
	}

	id1, enqueued, err := store.UpsertFile(ctx, &rec)
	if err != nil {
		t.Fatalf("First UpsertFile failed: %v", err)
	}
	if !enqueued {
		t.Error("First upsert should enqueue")
	}

	// Same size and mtime: no content change, no new work.
	rec2 := rec
	id2, enqueued, err := store.UpsertFile(ctx, &rec2)
	if err != nil {
		t.Fatalf("Second UpsertFile failed: %v", err)
	}
	if id2 != id1 {
		t.Errorf("Second upsert returned id %d, want %d", id2, id1)
	}
	if enqueued {
		t.Error("Unchanged upsert should not enqueue a second hash job")
	}

	counts, _ := store.CountJobs(ctx)
	if counts[JobPending] != 1 {
		t.Errorf("Pending jobs = %d, want 1", counts[JobPending])
	}
}

func TestUpsertFileChangedClearsContentLink(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	fileID := addFile(t, store, dir.ID, "/library/photo.jpg")

	content, _, err := store.UpsertContent(ctx, "fingerprint-a")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}
	if err := store.LinkContent(ctx, fileID, content.ID); err != nil {
		t.Fatalf("LinkContent failed: %v", err)
	}

	// Re-upsert with a different size: the link must drop so listings stop
	// pointing at the stale thumbnail.
	_, enqueued, err := store.UpsertFile(ctx, &FileRecord{
		Path:       "/library/photo.jpg",
		DirID:      dir.ID,
		ParentPath: "/library",
		Name:       "photo.jpg",
		Kind:       mediatypes.KindImage,
		Size:       4096,
		ModTime:    time.Now(),
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	if !enqueued {
		t.Error("Changed file should enqueue a fresh hash job")
	}

	f, err := store.GetFileByID(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFileByID failed: %v", err)
	}
	if f.ContentID != 0 {
		t.Errorf("ContentID = %d after change, want 0", f.ContentID)
	}
}

func TestUpsertFileRevivesRetired(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	fileID := addFile(t, store, dir.ID, "/library/photo.jpg")
	backdate(t, store, fileID, time.Hour)

	n, err := store.RetireMissing(ctx, dir.ID, time.Now())
	if err != nil {
		t.Fatalf("RetireMissing failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("RetireMissing retired %d, want 1", n)
	}

	// The file comes back; the upsert clears retired.
	addFile(t, store, dir.ID, "/library/photo.jpg")

	f, err := store.GetFileByID(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFileByID failed: %v", err)
	}
	if f.Retired {
		t.Error("Re-upserted file should no longer be retired")
	}
}

func TestGetFileNotFound(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.GetFileByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFileByID(999) error = %v, want ErrNotFound", err)
	}
	if _, err := store.GetFileByPath(ctx, "/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetFileByPath error = %v, want ErrNotFound", err)
	}
}

func TestListDirOrdering(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	// Insert out of order, with mixed case.
	addFile(t, store, dir.ID, "/library/zebra.jpg")
	addFile(t, store, dir.ID, "/library/Apple.jpg")
	addFile(t, store, dir.ID, "/library/mango.jpg")
	addFile(t, store, dir.ID, "/library/sub/nested.jpg")

	files, err := store.ListDir(ctx, "/library")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}

	want := []string{"Apple.jpg", "mango.jpg", "zebra.jpg"}
	if len(files) != len(want) {
		t.Fatalf("ListDir returned %d files, want %d", len(files), len(want))
	}
	for i, name := range want {
		if files[i].Name != name {
			t.Errorf("files[%d].Name = %q, want %q", i, files[i].Name, name)
		}
	}
}

func TestBeginBatchConcurrent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// Overlapping batches from the scanner and the workers must not share
	// state; the race detector covers the bookkeeping here.
	const batches = 16
	var wg sync.WaitGroup
	errs := make(chan error, batches)

	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			tx, err := store.BeginBatch()
			if err != nil {
				errs <- err
				return
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO directories (path) VALUES (?)`,
				fmt.Sprintf("/batch/%d", n))
			errs <- store.EndBatch(tx, err)
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("Batch failed: %v", err)
		}
	}

	dirs, err := store.ListDirs(ctx)
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}
	if len(dirs) != batches {
		t.Errorf("Got %d directories, want %d", len(dirs), batches)
	}
}

func TestListDirExcludesRetired(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	keep := addFile(t, store, dir.ID, "/library/keep.jpg")
	gone := addFile(t, store, dir.ID, "/library/gone.jpg")
	_ = keep

	backdate(t, store, gone, time.Hour)
	if _, err := store.RetireMissingUnder(ctx, "/library/gone.jpg", time.Now()); err != nil {
		t.Fatalf("RetireMissingUnder failed: %v", err)
	}

	files, err := store.ListDir(ctx, "/library")
	if err != nil {
		t.Fatalf("ListDir failed: %v", err)
	}
	if len(files) != 1 || files[0].Name != "keep.jpg" {
		t.Errorf("ListDir = %v, want only keep.jpg", files)
	}
}

func TestListAll(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	// Files across directories come back in one name-ordered list.
	addFile(t, store, dir.ID, "/library/photos/zebra.jpg")
	addFile(t, store, dir.ID, "/library/clips/Apple.jpg")
	gone := addFile(t, store, dir.ID, "/library/photos/gone.jpg")

	backdate(t, store, gone, time.Hour)
	if _, err := store.RetireMissingUnder(ctx, "/library/photos/gone.jpg", time.Now()); err != nil {
		t.Fatalf("RetireMissingUnder failed: %v", err)
	}

	files, err := store.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(files) != 2 {
		t.Fatalf("ListAll = %d files, want 2", len(files))
	}
	if files[0].Name != "Apple.jpg" || files[1].Name != "zebra.jpg" {
		t.Errorf("Order = %s, %s; want Apple.jpg, zebra.jpg", files[0].Name, files[1].Name)
	}
}

func TestNavigate(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	addFile(t, store, dir.ID, "/library/a/1.jpg")
	addFile(t, store, dir.ID, "/library/b/1.jpg")
	addFile(t, store, dir.ID, "/library/c/1.jpg")

	tests := []struct {
		name  string
		dir   string
		delta int
		want  string
	}{
		{"next", "/library/a", 1, "/library/b"},
		{"prev wraps to end", "/library/a", -1, "/library/c"},
		{"forward wraps", "/library/c", 1, "/library/a"},
		{"zero delta", "/library/b", 0, "/library/b"},
		{"multi-step", "/library/a", 2, "/library/c"},
		{"unknown dir snaps forward", "/library/ab", 0, "/library/b"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Navigate(ctx, tt.dir, tt.delta)
			if err != nil {
				t.Fatalf("Navigate(%q, %d) failed: %v", tt.dir, tt.delta, err)
			}
			if got != tt.want {
				t.Errorf("Navigate(%q, %d) = %q, want %q", tt.dir, tt.delta, got, tt.want)
			}
		})
	}
}

func TestNavigateEmpty(t *testing.T) {
	store, _ := setupTestStore(t)

	if _, err := store.Navigate(context.Background(), "/anything", 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("Navigate on empty catalog error = %v, want ErrNotFound", err)
	}
}

func TestPickers(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	// One file modified clearly later than the other.
	_, _, err := store.UpsertFile(ctx, &FileRecord{
		Path: "/library/old.jpg", DirID: dir.ID, ParentPath: "/library",
		Name: "old.jpg", Kind: mediatypes.KindImage, Size: 10,
		ModTime: time.Now().Add(-24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("UpsertFile failed: %v", err)
	}
	newest := addFile(t, store, dir.ID, "/library/new.jpg")

	f, err := store.NewestFile(ctx)
	if err != nil {
		t.Fatalf("NewestFile failed: %v", err)
	}
	if f.ID != newest {
		t.Errorf("NewestFile = %s, want new.jpg", f.Name)
	}

	f, err = store.RandomFile(ctx)
	if err != nil {
		t.Fatalf("RandomFile failed: %v", err)
	}
	if f == nil {
		t.Fatal("RandomFile returned nil")
	}

	// No favorites yet.
	if _, err := store.RandomFavorite(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("RandomFavorite with no likes error = %v, want ErrNotFound", err)
	}
}

func TestToggleLikeAndFavorites(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	id := addFile(t, store, dir.ID, "/library/photo.jpg")

	liked, err := store.ToggleLike(ctx, id)
	if err != nil {
		t.Fatalf("ToggleLike failed: %v", err)
	}
	if !liked {
		t.Error("First toggle should like the file")
	}

	f, err := store.RandomFavorite(ctx)
	if err != nil {
		t.Fatalf("RandomFavorite failed: %v", err)
	}
	if f.ID != id {
		t.Errorf("RandomFavorite = %d, want %d", f.ID, id)
	}

	f, err = store.LatestFavorite(ctx)
	if err != nil {
		t.Fatalf("LatestFavorite failed: %v", err)
	}
	if f.ID != id {
		t.Errorf("LatestFavorite = %d, want %d", f.ID, id)
	}

	liked, err = store.ToggleLike(ctx, id)
	if err != nil {
		t.Fatalf("Second ToggleLike failed: %v", err)
	}
	if liked {
		t.Error("Second toggle should unlike the file")
	}

	if _, err := store.ToggleLike(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Errorf("ToggleLike(999) error = %v, want ErrNotFound", err)
	}
}

func TestRetireMissingUnderPrefixBoundary(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	inside := addFile(t, store, dir.ID, "/library/photos/a.jpg")
	// Sibling directory sharing a name prefix must not be swept.
	sibling := addFile(t, store, dir.ID, "/library/photos-backup/b.jpg")

	backdate(t, store, inside, time.Hour)
	backdate(t, store, sibling, time.Hour)

	n, err := store.RetireMissingUnder(ctx, "/library/photos/", time.Now())
	if err != nil {
		t.Fatalf("RetireMissingUnder failed: %v", err)
	}
	if n != 1 {
		t.Errorf("RetireMissingUnder retired %d files, want 1", n)
	}

	f, _ := store.GetFileByID(ctx, sibling)
	if f.Retired {
		t.Error("Sibling directory file was retired by prefix sweep")
	}
	f, _ = store.GetFileByID(ctx, inside)
	if !f.Retired {
		t.Error("File under swept prefix was not retired")
	}
}

func TestRetireMissingSparesRecentlySeen(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	seen := addFile(t, store, dir.ID, "/library/seen.jpg")
	missing := addFile(t, store, dir.ID, "/library/missing.jpg")
	backdate(t, store, missing, time.Hour)

	// Cutoff in the past: only files last seen before it go.
	n, err := store.RetireMissing(ctx, dir.ID, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("RetireMissing failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Retired %d files, want 1", n)
	}

	f, _ := store.GetFileByID(ctx, seen)
	if f.Retired {
		t.Error("Recently seen file was retired")
	}
}

func TestUpsertContentDedup(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	c1, existed, err := store.UpsertContent(ctx, "abc123")
	if err != nil {
		t.Fatalf("First UpsertContent failed: %v", err)
	}
	if existed {
		t.Error("First upsert should report existed=false")
	}

	c2, existed, err := store.UpsertContent(ctx, "abc123")
	if err != nil {
		t.Fatalf("Second UpsertContent failed: %v", err)
	}
	if !existed {
		t.Error("Second upsert should report existed=true")
	}
	if c2.ID != c1.ID {
		t.Errorf("Second upsert returned id %d, want %d", c2.ID, c1.ID)
	}
}

func TestUpsertContentConcurrent(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	// Many goroutines race on the same fingerprint; exactly one must win
	// the insert and all must agree on the row id.
	const n = 16
	var wg sync.WaitGroup
	ids := make([]int64, n)
	existedCount := make([]bool, n)
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c, existed, err := store.UpsertContent(ctx, "shared-fingerprint")
			if err != nil {
				errs[i] = err
				return
			}
			ids[i] = c.ID
			existedCount[i] = existed
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("goroutine %d: UpsertContent failed: %v", i, errs[i])
		}
		if ids[i] != ids[0] {
			t.Errorf("goroutine %d got content id %d, others got %d", i, ids[i], ids[0])
		}
		if !existedCount[i] {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("%d goroutines claimed the insert, want exactly 1", winners)
	}
}

func TestThumbRoundTrip(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	c, _, err := store.UpsertContent(ctx, "thumb-test")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	// Not ready yet.
	if _, err := store.GetThumb(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetThumb before save error = %v, want ErrNotFound", err)
	}

	blob := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	if err := store.SaveThumb(ctx, c.ID, blob); err != nil {
		t.Fatalf("SaveThumb failed: %v", err)
	}

	got, err := store.GetThumb(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetThumb failed: %v", err)
	}
	if len(got) != len(blob) {
		t.Errorf("GetThumb returned %d bytes, want %d", len(got), len(blob))
	}

	rec, err := store.GetContentByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContentByID failed: %v", err)
	}
	if !rec.ThumbReady {
		t.Error("ThumbReady should be true after SaveThumb")
	}

	if err := store.SaveThumb(ctx, 999, blob); !errors.Is(err, ErrNotFound) {
		t.Errorf("SaveThumb(999) error = %v, want ErrNotFound", err)
	}
}

func TestSaveMetadata(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	c, _, err := store.UpsertContent(ctx, "meta-test")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	c.Width = 1920
	c.Height = 1080
	c.Format = "png"
	c.PNGInfo = "prompt: a lighthouse at dusk"
	if err := store.SaveMetadata(ctx, c); err != nil {
		t.Fatalf("SaveMetadata failed: %v", err)
	}

	rec, err := store.GetContentByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetContentByID failed: %v", err)
	}
	if rec.Width != 1920 || rec.Height != 1080 {
		t.Errorf("Dimensions = %dx%d, want 1920x1080", rec.Width, rec.Height)
	}
	if !rec.MetaReady {
		t.Error("MetaReady should be true after SaveMetadata")
	}
	if rec.PNGInfo != c.PNGInfo {
		t.Errorf("PNGInfo = %q, want %q", rec.PNGInfo, c.PNGInfo)
	}
}

func TestResetThumbReEnqueues(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	c, _, err := store.UpsertContent(ctx, "reset-test")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}
	if err := store.SaveThumb(ctx, c.ID, []byte{1, 2, 3}); err != nil {
		t.Fatalf("SaveThumb failed: %v", err)
	}

	if err := store.ResetThumb(ctx, c.ID); err != nil {
		t.Fatalf("ResetThumb failed: %v", err)
	}

	if _, err := store.GetThumb(ctx, c.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetThumb after reset error = %v, want ErrNotFound", err)
	}

	// A fresh thumbnail job must be waiting.
	job, err := store.ClaimNext(ctx, "test-worker")
	if err != nil {
		t.Fatalf("ClaimNext failed: %v", err)
	}
	if job.Kind != JobThumbnail || job.ContentID != c.ID {
		t.Errorf("Claimed job = %s/content %d, want thumbnail/content %d", job.Kind, job.ContentID, c.ID)
	}
}

func TestPruneOrphans(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	fileID := addFile(t, store, dir.ID, "/library/a.jpg")
	linked, _, err := store.UpsertContent(ctx, "linked")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}
	if err := store.LinkContent(ctx, fileID, linked.ID); err != nil {
		t.Fatalf("LinkContent failed: %v", err)
	}

	orphan, _, err := store.UpsertContent(ctx, "orphan")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}

	n, err := store.PruneOrphans(ctx)
	if err != nil {
		t.Fatalf("PruneOrphans failed: %v", err)
	}
	if n != 1 {
		t.Errorf("PruneOrphans deleted %d rows, want 1", n)
	}

	if _, err := store.GetContentByID(ctx, orphan.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Orphan content still present, error = %v", err)
	}
	if _, err := store.GetContentByID(ctx, linked.ID); err != nil {
		t.Errorf("Linked content was pruned: %v", err)
	}
}

func TestTrackAndUntrackDir(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	d, err := store.TrackDir(ctx, "/library", true)
	if err != nil {
		t.Fatalf("TrackDir failed: %v", err)
	}
	if !d.Watched {
		t.Error("Directory should be watched")
	}

	// Re-tracking flips the watched flag, nothing else.
	d2, err := store.TrackDir(ctx, "/library", false)
	if err != nil {
		t.Fatalf("Re-track failed: %v", err)
	}
	if d2.ID != d.ID {
		t.Errorf("Re-track created new row: id %d vs %d", d2.ID, d.ID)
	}
	if d2.Watched {
		t.Error("Watched flag should have been cleared")
	}

	fileID := addFile(t, store, d.ID, "/library/a.jpg")

	if err := store.UntrackDir(ctx, "/library"); err != nil {
		t.Fatalf("UntrackDir failed: %v", err)
	}

	if _, err := store.GetDir(ctx, "/library"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetDir after untrack error = %v, want ErrNotFound", err)
	}

	// Files are retired, not deleted.
	f, err := store.GetFileByID(ctx, fileID)
	if err != nil {
		t.Fatalf("GetFileByID after untrack failed: %v", err)
	}
	if !f.Retired {
		t.Error("Untracked directory's files should be retired")
	}

	if err := store.UntrackDir(ctx, "/nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("UntrackDir(/nope) error = %v, want ErrNotFound", err)
	}
}

func TestListDirs(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()

	addDir(t, store, "/b")
	addDir(t, store, "/a")

	dirs, err := store.ListDirs(ctx)
	if err != nil {
		t.Fatalf("ListDirs failed: %v", err)
	}
	if len(dirs) != 2 {
		t.Fatalf("ListDirs returned %d, want 2", len(dirs))
	}
	if dirs[0].Path != "/a" || dirs[1].Path != "/b" {
		t.Errorf("ListDirs order = %s, %s; want /a, /b", dirs[0].Path, dirs[1].Path)
	}
}

func TestAggregateCounts(t *testing.T) {
	store, _ := setupTestStore(t)
	ctx := context.Background()
	dir := addDir(t, store, "/library")

	for i := 0; i < 3; i++ {
		addFile(t, store, dir.ID, fmt.Sprintf("/library/%d.jpg", i))
	}

	c, _, err := store.UpsertContent(ctx, "fp-0")
	if err != nil {
		t.Fatalf("UpsertContent failed: %v", err)
	}
	f, _ := store.GetFileByPath(ctx, "/library/0.jpg")
	if err := store.LinkContent(ctx, f.ID, c.ID); err != nil {
		t.Fatalf("LinkContent failed: %v", err)
	}
	if err := store.SaveThumb(ctx, c.ID, []byte{1}); err != nil {
		t.Fatalf("SaveThumb failed: %v", err)
	}

	counts, err := store.AggregateCounts(ctx)
	if err != nil {
		t.Fatalf("AggregateCounts failed: %v", err)
	}

	if counts.Files != 3 {
		t.Errorf("Files = %d, want 3", counts.Files)
	}
	if counts.Directories != 1 {
		t.Errorf("Directories = %d, want 1", counts.Directories)
	}
	if counts.Watched != 1 {
		t.Errorf("Watched = %d, want 1", counts.Watched)
	}
	if counts.Hashed != 1 {
		t.Errorf("Hashed = %d, want 1", counts.Hashed)
	}
	if counts.Thumbed != 1 {
		t.Errorf("Thumbed = %d, want 1", counts.Thumbed)
	}
	if counts.JobsPending != 3 {
		t.Errorf("JobsPending = %d, want 3", counts.JobsPending)
	}
}
