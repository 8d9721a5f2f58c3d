package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var errPermanent = errors.New("permanent")

func TestNullCacheAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "solution:abc", []byte(`{"status":1}`), TTLSolution); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "solution:abc")
	if err != nil || hit || data != nil {
		t.Errorf("Get after Set = %q, %v, %v; want a clean miss", data, hit, err)
	}
	if err := c.Delete(ctx, "solution:abc"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestHash(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		same bool
	}{
		{"identical maps", "o..\n...\n", "o..\n...\n", true},
		{"one cell differs", "o..\n...\n", "o..\n..o\n", false},
		{"same cells, different shape", "o.....", "o..\n...", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ha, hb := Hash([]byte(tt.a)), Hash([]byte(tt.b))
			if (ha == hb) != tt.same {
				t.Errorf("Hash equality = %v, want %v", ha == hb, tt.same)
			}
			if len(ha) != 64 {
				t.Errorf("Hash length = %d, want 64 hex chars", len(ha))
			}
		})
	}
}

func TestHashKeyFraming(t *testing.T) {
	// Parts are encoded separately, so moving text between them changes the key.
	if hashKey("solution", "ab", "c") == hashKey("solution", "a", "bc") {
		t.Error("part boundaries should be part of the key")
	}
	if hashKey("solution", "m") == hashKey("artifact", "m") {
		t.Error("kind should be part of the key")
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	// SolutionKey should include options in hash
	sk1 := k.SolutionKey("map123", SolutionKeyOpts{MaxMachineOutput: 5, MaxBeltOutput: 5, OreCounting: "footprint"})
	sk2 := k.SolutionKey("map123", SolutionKeyOpts{MaxMachineOutput: 5, MaxBeltOutput: 5, OreCounting: "anchor"})
	if sk1 == sk2 {
		t.Error("Different SolutionKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(sk1, "solution:") {
		t.Errorf("SolutionKey unexpected: %s", sk1)
	}
	if sk1 != k.SolutionKey("map123", SolutionKeyOpts{MaxMachineOutput: 5, MaxBeltOutput: 5, OreCounting: "footprint"}) {
		t.Error("SolutionKey should be deterministic")
	}
	if sk1 == k.SolutionKey("map456", SolutionKeyOpts{MaxMachineOutput: 5, MaxBeltOutput: 5, OreCounting: "footprint"}) {
		t.Error("Different maps should produce different keys")
	}

	// ArtifactKey
	ak1 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg"})
	ak2 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "dot"})
	if ak1 == ak2 {
		t.Error("Different ArtifactKeyOpts should produce different keys")
	}
	if !strings.HasPrefix(ak1, "artifact:svg:") {
		t.Errorf("ArtifactKey unexpected: %s", ak1)
	}
	ak3 := k.ArtifactKey("hash123", ArtifactKeyOpts{Format: "svg", Terrain: true})
	if ak1 == ak3 {
		t.Error("Terrain should change the artifact key")
	}
}

func TestScopedKeyer(t *testing.T) {
	inner := NewDefaultKeyer()
	scoped := NewScopedKeyer(inner, "serve:")

	// All keys should be prefixed
	opts := SolutionKeyOpts{MaxMachineOutput: 1, MaxBeltOutput: 2}
	key := scoped.SolutionKey("map", opts)
	if key != "serve:"+inner.SolutionKey("map", opts) {
		t.Errorf("ScopedKeyer SolutionKey unexpected: %s", key)
	}

	artifactKey := scoped.ArtifactKey("hash", ArtifactKeyOpts{Format: "json"})
	if !strings.HasPrefix(artifactKey, "serve:artifact:json:") {
		t.Errorf("ScopedKeyer ArtifactKey should be prefixed: %s", artifactKey)
	}
}

func TestScopedKeyerNilInner(t *testing.T) {
	// Should use DefaultKeyer when inner is nil
	scoped := NewScopedKeyer(nil, "prefix:")
	key := scoped.SolutionKey("map", SolutionKeyOpts{})
	if key != "prefix:"+NewDefaultKeyer().SolutionKey("map", SolutionKeyOpts{}) {
		t.Errorf("Unexpected key with nil inner: %s", key)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	// Miss before Set
	if _, hit, err := c.Get(ctx, "key"); err != nil || hit {
		t.Fatalf("Get before Set = hit %v, err %v", hit, err)
	}

	payload := []byte(strings.Repeat(`{"rows":["MM>>"]}`, 50))
	if err := c.Set(ctx, "key", payload, time.Hour); err != nil {
		t.Fatalf("Set error: %v", err)
	}

	data, hit, err := c.Get(ctx, "key")
	if err != nil || !hit {
		t.Fatalf("Get after Set = hit %v, err %v", hit, err)
	}
	if string(data) != string(payload) {
		t.Error("Get should return the stored bytes")
	}

	// Entries are compressed on disk
	info, err := os.Stat(c.path("key"))
	if err != nil {
		t.Fatalf("entry file missing: %v", err)
	}
	if info.Size() >= int64(len(payload)) {
		t.Errorf("entry should be compressed: %d bytes on disk for %d payload bytes", info.Size(), len(payload))
	}

	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "key"); hit {
		t.Error("Get after Delete should miss")
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete of missing key should succeed: %v", err)
	}
}

func TestFileCacheExpiry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "stale", []byte("x"), time.Nanosecond); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, hit, _ := c.Get(ctx, "stale"); hit {
		t.Error("expired entry should miss")
	}
	if _, err := os.Stat(c.path("stale")); !os.IsNotExist(err) {
		t.Error("expired entry should be removed")
	}

	// Zero TTL never expires
	if err := c.Set(ctx, "forever", []byte("x"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "forever"); !hit {
		t.Error("zero TTL entry should hit")
	}
}

func TestFileCacheCorruptEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	path := c.path("bad")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("not zstd"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "bad"); hit || err != nil {
		t.Errorf("corrupt entry should be a silent miss, got hit %v err %v", hit, err)
	}
}

func TestFileCacheClear(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	c, err := NewFileCache(dir)
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), time.Hour); err != nil {
			t.Fatalf("Set error: %v", err)
		}
	}
	keep := filepath.Join(dir, "README")
	if err := os.WriteFile(keep, []byte("keep"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, hit, _ := c.Get(ctx, k); hit {
			t.Errorf("key %s should be gone after Clear", k)
		}
	}
	if _, err := os.Stat(keep); err != nil {
		t.Error("Clear should only remove cache entries")
	}
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("OREFLOW_TEST_REDIS_URL")
	if url == "" {
		t.Skip("OREFLOW_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	c, err := NewRedisCache(ctx, url, "oreflow-test:")
	if err != nil {
		t.Fatalf("NewRedisCache: %v", err)
	}
	defer c.Close()
	exerciseRemote(t, c)
}

func TestMongoCache(t *testing.T) {
	uri := os.Getenv("OREFLOW_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("OREFLOW_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	c, err := NewMongoCache(ctx, uri, "oreflow_test", "cache")
	if err != nil {
		t.Fatalf("NewMongoCache: %v", err)
	}
	defer c.Close()
	exerciseRemote(t, c)
}

func exerciseRemote(t *testing.T, c interface {
	Cache
	Clearer
}) {
	t.Helper()
	ctx := context.Background()
	if err := c.Clear(ctx); err != nil {
		t.Fatalf("Clear error: %v", err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "v" {
		t.Fatalf("Get = %q, %v, %v", data, hit, err)
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("Get after Delete should miss")
	}
}

func TestNewRedisCacheBadURL(t *testing.T) {
	if _, err := NewRedisCache(context.Background(), "http://nope", ""); err == nil {
		t.Error("non-redis URL should fail")
	}
}

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should be nil")
	}

	err := Retryable(fmt.Errorf("%w: redis get: i/o timeout", ErrBackend))
	if !IsRetryable(err) {
		t.Error("marked error should be retryable")
	}
	if !errors.Is(err, ErrBackend) {
		t.Error("marked error should still match ErrBackend")
	}
	if !IsRetryable(fmt.Errorf("get solution: %w", err)) {
		t.Error("retryable marker should survive wrapping")
	}
	if IsRetryable(errPermanent) {
		t.Error("plain errors are not retryable")
	}
}

func TestBackoffRetry(t *testing.T) {
	fast := Backoff{Attempts: 3, Initial: time.Millisecond, Max: 2 * time.Millisecond}
	transient := Retryable(ErrBackend)

	tests := []struct {
		name      string
		failures  int   // calls that fail before success
		failWith  error // error returned by failing calls
		wantCalls int
		wantErr   error
	}{
		{"succeeds first time", 0, transient, 1, nil},
		{"recovers after one transient failure", 1, transient, 2, nil},
		{"gives up after all attempts", 10, transient, 3, ErrBackend},
		{"permanent error stops at once", 10, errPermanent, 1, errPermanent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := fast.Retry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackoffZeroAttempts(t *testing.T) {
	calls := 0
	_ = Backoff{}.Retry(context.Background(), func() error {
		calls++
		return Retryable(ErrBackend)
	})
	if calls != 1 {
		t.Errorf("zero Attempts should still try once, got %d calls", calls)
	}
}

func TestRetryWithBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := RetryWithBackoff(ctx, func() error {
		calls++
		return Retryable(ErrBackend)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 before noticing cancellation", calls)
	}
}

func TestFileCacheForeignEntry(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileCache: %v", err)
	}
	defer c.Close()

	if err := c.Set(ctx, "a", []byte("payload"), 0); err != nil {
		t.Fatalf("Set error: %v", err)
	}
	raw, err := os.ReadFile(c.path("a"))
	if err != nil {
		t.Fatal(err)
	}
	// An entry file sitting under another key's path is not served.
	other := c.path("b")
	if err := os.MkdirAll(filepath.Dir(other), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(other, raw, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "b"); hit || err != nil {
		t.Errorf("Get(b) = hit %v, err %v; want miss", hit, err)
	}
	if _, hit, _ := c.Get(ctx, "a"); !hit {
		t.Error("Get(a) should still hit")
	}
}
