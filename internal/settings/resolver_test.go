package settings

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetGlobalWithDefaults(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.resolver.Get(requestCtx(""), "app1.prefs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "light", "size": 12.0}, c.Values())
	assert.Equal(t, "null", f.cache.snapshot()["settings:catalog::app1.prefs"])
}

func TestGetQualifiesWithApp(t *testing.T) {
	f := newFixture(t, false)

	c, err := f.resolver.Get(requestCtx(""), "prefs", FromApp("app1"))
	require.NoError(t, err)
	assert.Equal(t, "app1.prefs", c.Entity().Name)

	_, err = f.resolver.Get(requestCtx(""), "prefs")
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestUpdateVisibleToOtherWorker(t *testing.T) {
	f := newFixture(t, false)
	workerA, workerB := f.resolver, f.worker()

	require.NoError(t, workerA.Update(requestCtx(""), "app1.prefs", map[string]any{"theme": "dark"}))

	c, err := workerB.Get(requestCtx(""), "app1.prefs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "size": 12.0}, c.Values())
}

func TestPersonalOverlay(t *testing.T) {
	f := newFixture(t, true)
	f.store.put(t, "app1.prefs", Global, map[string]any{"theme": "dark"})

	c, err := f.resolver.Get(requestCtx(""), "app1.prefs", AsPrincipal("u42"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "size": 12.0}, c.Values())

	require.NoError(t, f.resolver.Update(requestCtx(""), "app1.prefs",
		map[string]any{"size": 18}, AsPrincipal("u42")))

	mine, err := f.worker().Get(requestCtx("u42"), "app1.prefs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "size": 18.0}, mine.Values())

	theirs, err := f.worker().Get(requestCtx("u7"), "app1.prefs")
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"theme": "dark", "size": 12.0}, theirs.Values())

	global, err := f.worker().Get(requestCtx("u42"), "app1.prefs", AsGlobal())
	require.NoError(t, err)
	assert.Equal(t, 12, global.Int("size"))
}

func TestNonPersonalIgnoresPrincipal(t *testing.T) {
	f := newFixture(t, false)
	require.NoError(t, f.resolver.Update(requestCtx("u42"), "app1.prefs", map[string]any{"theme": "dark"}))

	forced, err := f.worker().Get(requestCtx(""), "app1.prefs", AsPrincipal("u42"))
	require.NoError(t, err)
	global, err := f.worker().Get(requestCtx(""), "app1.prefs", AsGlobal())
	require.NoError(t, err)
	assert.Equal(t, global.Values(), forced.Values())

	_, personal := f.store.record("app1.prefs", "u42")
	assert.False(t, personal)
}

func TestRequestMemo(t *testing.T) {
	f := newFixture(t, true)
	ctx := requestCtx("u42")

	first, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	second, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	assert.Same(t, first, second)

	require.NoError(t, f.resolver.Update(ctx, "app1.prefs", map[string]any{"theme": "dark"}))
	assert.Equal(t, "dark", first.String("theme"), "update mutates the memoized catalog")

	other, err := f.resolver.Get(requestCtx("u42"), "app1.prefs")
	require.NoError(t, err)
	assert.NotSame(t, first, other, "memoization is per request")
	assert.Equal(t, "dark", other.String("theme"))
}

func TestUpdateAccessDenied(t *testing.T) {
	f := newFixture(t, false)

	err := f.resolver.Update(requestCtx("u1", "app1.other"), "app1.branding",
		map[string]any{"tagline": "hi"}, VerifyPermitted())
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Equal(t, 0, f.store.saves)
	assert.Empty(t, f.cache.snapshot())

	err = f.resolver.Update(requestCtx("u1", "admin.settings"), "app1.branding",
		map[string]any{"tagline": "hi"}, VerifyPermitted())
	require.NoError(t, err)
	assert.Equal(t, 1, f.store.saves)

	_, err = f.resolver.Get(requestCtx("u1"), "app1.branding", VerifyPermitted())
	assert.ErrorIs(t, err, ErrAccessDenied)
}

type errChecker struct{}

func (errChecker) Permitted(context.Context, *Request, []string) (bool, error) {
	return false, errors.New("scope lookup failed")
}

func TestUpdatePermissionCheckError(t *testing.T) {
	f := newFixture(t, false)
	r := NewResolver(f.registry, f.store, f.cache, WithPermissionChecker(errChecker{}))

	err := r.Update(requestCtx("u1"), "app1.branding", map[string]any{"tagline": "x"}, VerifyPermitted())
	assert.ErrorContains(t, err, "scope lookup failed")
	assert.NotErrorIs(t, err, ErrAccessDenied)
}

func TestUpdateReplacesFile(t *testing.T) {
	f := newFixture(t, false)
	f.store.put(t, "app1.branding", Global, map[string]any{"logo": "f-001"})
	ctx := requestCtx("")

	require.NoError(t, f.resolver.Update(ctx, "app1.branding", map[string]any{"logo": "f-002"}))

	c, err := f.resolver.Get(ctx, "app1.branding")
	require.NoError(t, err)
	ref, ok := c.File("logo")
	require.True(t, ok)
	assert.Equal(t, FileRef{Entity: "branding", ID: "f-002"}, ref)

	data, _ := f.store.record("app1.branding", Global)
	assert.Equal(t, "f-002", data["logo"])
	assert.Contains(t, f.cache.snapshot()[CacheKey(Global, "app1.branding")], "f-002")
	assert.Equal(t, []removed{{"branding", "f-001"}}, f.files.calls)

	require.NoError(t, f.resolver.Update(ctx, "app1.branding", map[string]any{"logo": "f-002"}))
	assert.Len(t, f.files.calls, 1, "setting the same id leaves storage alone")

	require.NoError(t, f.resolver.Update(ctx, "app1.branding", map[string]any{"logo": nil}))
	assert.Equal(t, []removed{{"branding", "f-001"}, {"branding", "f-002"}}, f.files.calls)
}

func TestUpdateRejectsInvalidValue(t *testing.T) {
	f := newFixture(t, false)
	ctx := requestCtx("")
	c, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	cacheBefore := f.cache.snapshot()

	err = f.resolver.Update(ctx, "app1.prefs", map[string]any{"size": 25, "theme": "dark"})
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, 12, c.Int("size"))
	assert.Equal(t, "light", c.String("theme"), "no value is applied when one is invalid")
	assert.Equal(t, cacheBefore, f.cache.snapshot())
	assert.Equal(t, 0, f.store.saves)
}

func TestUpdateCollectsAllInvalidValues(t *testing.T) {
	f := newFixture(t, false)
	err := f.resolver.Update(requestCtx(""), "app1.prefs", map[string]any{"size": 25, "theme": "blue"})
	require.ErrorIs(t, err, ErrInvalidValue)
	assert.ErrorContains(t, err, "size")
	assert.ErrorContains(t, err, "theme")
}

func TestUpdateIsIdempotent(t *testing.T) {
	f := newFixture(t, false)
	values := map[string]any{"theme": "dark", "size": 20}

	require.NoError(t, f.resolver.Update(requestCtx(""), "app1.prefs", values))
	once, _ := f.store.record("app1.prefs", Global)
	require.NoError(t, f.resolver.Update(requestCtx(""), "app1.prefs", values))
	twice, _ := f.store.record("app1.prefs", Global)
	assert.Equal(t, once, twice)
}

func TestUpdateSkipsUnknownAndRevertsNil(t *testing.T) {
	f := newFixture(t, false)
	ctx := requestCtx("")
	require.NoError(t, f.resolver.Update(ctx, "app1.prefs", map[string]any{"size": 20, "legacy": "x"}))

	c, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	assert.False(t, c.Has("legacy"))
	assert.Equal(t, 20, c.Int("size"))

	require.NoError(t, f.resolver.Update(ctx, "app1.prefs", map[string]any{"size": nil}))
	assert.Equal(t, 12, c.Int("size"))
}

func TestUpdateRollsBackOnStoreFailure(t *testing.T) {
	f := newFixture(t, false)
	ctx := requestCtx("")
	c, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	cacheBefore := f.cache.snapshot()

	f.store.saveErr = errors.New("deadlock detected")
	err = f.resolver.Update(ctx, "app1.prefs", map[string]any{"theme": "dark"})
	assert.ErrorIs(t, err, ErrStorageIntegrity)
	assert.Equal(t, "light", c.String("theme"))
	assert.Equal(t, cacheBefore, f.cache.snapshot())
}

func TestUpdateProjection(t *testing.T) {
	f := newFixture(t, true)
	values := map[string]any{"theme": "dark", "size": 10.0, "pinned": []string{"a"}}
	require.NoError(t, f.resolver.Update(requestCtx("u9"), "app1.prefs", values))

	c, err := f.worker().Get(requestCtx("u9"), "app1.prefs")
	require.NoError(t, err)
	got := c.Values()
	assert.Equal(t, "dark", got["theme"])
	assert.Equal(t, 10.0, got["size"])
	assert.Equal(t, []string{"a"}, c.Strings("pinned"))
}

func TestGetAll(t *testing.T) {
	f := newFixture(t, false)

	all, err := f.resolver.GetAll(requestCtx(""))
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.True(t, all["app2.misc"].Bool("enabled"))

	visible, err := f.resolver.GetAll(requestCtx("u1"), VerifyPermitted())
	require.NoError(t, err)
	assert.NotContains(t, visible, "app1.branding")
	assert.Contains(t, visible, "app1.prefs")
}

func TestReset(t *testing.T) {
	f := newFixture(t, false)
	err := f.resolver.Reset(requestCtx(""), map[string]map[string]any{
		"app1.prefs": {"theme": "dark"},
		"app2.misc":  {"enabled": false},
	})
	require.NoError(t, err)

	misc, _ := f.store.record("app2.misc", Global)
	assert.Equal(t, false, misc["enabled"])
	prefs, _ := f.store.record("app1.prefs", Global)
	assert.Equal(t, "dark", prefs["theme"])

	err = f.resolver.Reset(requestCtx(""), map[string]map[string]any{"app9.none": {}})
	assert.ErrorIs(t, err, ErrUnknownEntity)
}

func TestPurgePersonalFallsBackToGlobal(t *testing.T) {
	f := newFixture(t, true)
	ctx := requestCtx("u42")
	require.NoError(t, f.resolver.Update(ctx, "app1.prefs", map[string]any{"size": 22}))
	require.NoError(t, f.resolver.Purge(ctx, "app1.prefs"))

	_, ok := f.store.record("app1.prefs", "u42")
	assert.False(t, ok)
	assert.Equal(t, "null", f.cache.snapshot()[CacheKey("u42", "app1.prefs")])

	c, err := f.resolver.Get(ctx, "app1.prefs")
	require.NoError(t, err)
	assert.Equal(t, 12, c.Int("size"))
}

func TestRequestlessCallsResolveGlobally(t *testing.T) {
	f := newFixture(t, true)
	require.NoError(t, f.resolver.Update(context.Background(), "app1.prefs", map[string]any{"theme": "dark"}))

	_, ok := f.store.record("app1.prefs", Global)
	assert.True(t, ok)
}

func TestSchema(t *testing.T) {
	f := newFixture(t, false)
	f.registry = NewRegistry()
	require.NoError(t, f.registry.DeclareApplication("app1", 1))
	f.registry.MustRegister("app1", prefsProperties(), Named("prefs"), Captioned("Preferences"),
		Defaults(prefsDefaults()), Tab("look"), Ordered(1))
	f.registry.MustRegister("app1", Properties{
		{Name: "logo", Property: ImageProperty{Meta: Meta{Caption: "Logo"}, Entity: "branding"}},
	}, Named("branding"), Captioned("Branding"), Requires("admin.settings"), Ordered(2))
	f.registry.MustRegister("app1", Properties{
		{Name: "density", Property: NumberProperty{Meta: Meta{Caption: "Density", Order: 1}}},
	}, Named("layout"), Captioned("Layout"), Tab("look"), Ordered(3))
	f.registry.MustRegister("app2", Properties{
		{Name: "enabled", Property: BooleanProperty{Meta: Meta{Caption: "Enabled"}}},
	}, Named("misc"), Captioned("Misc"))
	f.registry.Freeze()
	r := f.worker()

	sections, err := r.Schema(requestCtx(""))
	require.NoError(t, err)
	require.Len(t, sections, 2)
	assert.Equal(t, "app1__look", sections[0].Group)
	require.Len(t, sections[0].Entities, 2)
	assert.Equal(t, "app1.prefs", sections[0].Entities[0].Name)
	assert.Equal(t, "app1.layout", sections[0].Entities[1].Name)
	assert.Equal(t, "app2.misc", sections[1].Entities[0].Name)

	prefs := sections[0].Entities[0]
	assert.Equal(t, "app1", prefs.AppName)
	require.Len(t, prefs.Properties, 3)
	assert.Equal(t, "theme", prefs.Properties[0]["name"])
	assert.Equal(t, "light", prefs.Properties[0]["value"])
	assert.Equal(t, 12.0, prefs.Properties[1]["value"])
	assert.NotContains(t, prefs.Properties[2], "value")

	admin, err := r.Schema(requestCtx("u1", "admin.settings"))
	require.NoError(t, err)
	require.Len(t, admin, 3)
	assert.Equal(t, "app1.branding", admin[1].Entities[0].Name)

	again, err := r.Schema(requestCtx("u1", "admin.settings"))
	require.NoError(t, err)
	first, err := json.Marshal(admin)
	require.NoError(t, err)
	second, err := json.Marshal(again)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
}

func TestSlowFillDoesNotOverwriteUpdate(t *testing.T) {
	for name, initial := range map[string]map[string]any{
		"absent record":   nil,
		"existing record": {"size": 14},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, false)
			if initial != nil {
				f.store.put(t, "app1.prefs", Global, initial)
			}
			gated := newGatedStore(f.store)
			reader := NewResolver(f.registry, gated, f.cache)

			done := make(chan error, 1)
			go func() {
				_, err := reader.Get(requestCtx(""), "app1.prefs")
				done <- err
			}()
			<-gated.started

			// The reader holds a pre-update snapshot while the writer saves.
			require.NoError(t, f.resolver.Update(requestCtx(""), "app1.prefs", map[string]any{"theme": "dark"}))
			close(gated.release)
			require.NoError(t, <-done)

			assert.Contains(t, f.cache.snapshot()[CacheKey(Global, "app1.prefs")], `"dark"`)
			c, err := f.worker().Get(requestCtx(""), "app1.prefs")
			require.NoError(t, err)
			assert.Equal(t, "dark", c.String("theme"))
		})
	}
}
