package settings

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// memStore keeps records as JSON so reads see the same shapes a real store returns.
type memStore struct {
	mu      sync.Mutex
	records map[string][]byte
	fetches int
	saves   int
	saveErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string][]byte)}
}

func storeKey(entity, principal string) string { return entity + "|" + principal }

func (s *memStore) Fetch(_ context.Context, entity, principal string) (map[string]any, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	raw, ok := s.records[storeKey(entity, principal)]
	if !ok {
		return nil, false, nil
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (s *memStore) Save(_ context.Context, entity, principal string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.saves++
	s.records[storeKey(entity, principal)] = raw
	return nil
}

func (s *memStore) Delete(_ context.Context, entity, principal string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, storeKey(entity, principal))
	return nil
}

func (s *memStore) put(t *testing.T, entity, principal string, data map[string]any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	s.mu.Lock()
	s.records[storeKey(entity, principal)] = raw
	s.mu.Unlock()
}

func (s *memStore) record(entity, principal string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.records[storeKey(entity, principal)]
	if !ok {
		return nil, false
	}
	var data map[string]any
	_ = json.Unmarshal(raw, &data)
	return data, true
}

// gatedStore reads from memStore, then holds the result until release is closed.
type gatedStore struct {
	*memStore
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedStore(s *memStore) *gatedStore {
	return &gatedStore{memStore: s, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedStore) Fetch(ctx context.Context, entity, principal string) (map[string]any, bool, error) {
	data, found, err := g.memStore.Fetch(ctx, entity, principal)
	g.once.Do(func() { close(g.started) })
	<-g.release
	if ctx.Err() != nil {
		return nil, false, ctx.Err()
	}
	return data, found, err
}

type memCache struct {
	mu      sync.Mutex
	entries map[string]string
	err     error
}

var errCacheDown = errors.New("cache down")

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]string)}
}

func (c *memCache) Get(_ context.Context, key string) (string, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return "", false, c.err
	}
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.entries[key] = value
	return nil
}

func (c *memCache) Add(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return false, c.err
	}
	if _, ok := c.entries[key]; ok {
		return false, nil
	}
	c.entries[key] = value
	return true, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	delete(c.entries, key)
	return nil
}

func (c *memCache) snapshot() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

type removed struct {
	entity string
	id     string
}

type fileRecorder struct {
	mu    sync.Mutex
	calls []removed
}

func (f *fileRecorder) Remove(_ context.Context, storageEntity, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, removed{storageEntity, fileID})
	return nil
}

func prefsProperties() Properties {
	return Properties{
		{Name: "theme", Property: ChoiceProperty{
			Meta:    Meta{Caption: "Theme"},
			Options: []Option{{Key: "light", Caption: "Light"}, {Key: "dark", Caption: "Dark"}},
		}},
		{Name: "size", Property: BoundedNumberProperty{Meta: Meta{Caption: "Font size"}, Min: 8, Max: 24, Step: 2}},
		{Name: "pinned", Property: StringListProperty{Meta: Meta{Caption: "Pinned"}}},
	}
}

func prefsDefaults() map[string]any {
	return map[string]any{"theme": "light", "size": 12}
}

type fixture struct {
	registry *Registry
	store    *memStore
	cache    *memCache
	files    *fileRecorder
	resolver *Resolver
}

// newFixture registers app1.prefs (personal when personal is set),
// app1.branding (requires admin.settings) and app2.misc.
func newFixture(t *testing.T, personal bool) *fixture {
	t.Helper()
	reg := NewRegistry()

	prefsOpts := []EntityOption{Named("prefs"), Captioned("Preferences"), Defaults(prefsDefaults())}
	if personal {
		prefsOpts = append(prefsOpts, AllowPersonal())
	}
	_, err := reg.Register("app1", prefsProperties(), prefsOpts...)
	require.NoError(t, err)

	_, err = reg.Register("app1", Properties{
		{Name: "logo", Property: ImageProperty{Meta: Meta{Caption: "Logo"}, Entity: "branding", Clearable: true}},
		{Name: "tagline", Property: StringProperty{Meta: Meta{Caption: "Tagline"}}},
	}, Named("branding"), Captioned("Branding"), Requires("admin.settings"))
	require.NoError(t, err)

	_, err = reg.Register("app2", Properties{
		{Name: "enabled", Property: BooleanProperty{Meta: Meta{Caption: "Enabled"}}},
	}, Named("misc"), Captioned("Misc"), Defaults(map[string]any{"enabled": true}))
	require.NoError(t, err)
	reg.Freeze()

	f := &fixture{registry: reg, store: newMemStore(), cache: newMemCache(), files: &fileRecorder{}}
	f.resolver = f.worker()
	return f
}

// worker builds another resolver over the same store and cache, as a second process would.
func (f *fixture) worker() *Resolver {
	return NewResolver(f.registry, f.store, f.cache, WithFileRemover(f.files))
}

func requestCtx(principal string, grants ...string) context.Context {
	return NewContext(context.Background(), NewRequest(principal, grants...))
}
