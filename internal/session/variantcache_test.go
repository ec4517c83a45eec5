package session

import "testing"

func TestBuildVariantKeyNormalization(t *testing.T) {
	a := BuildVariantKey("icon", "A   Red  Rocket ", 512, 512)
	b := BuildVariantKey("icon", "a red rocket", 512, 512)
	if a != b {
		t.Errorf("normalized keys differ: %q vs %q", a, b)
	}

	c := BuildVariantKey("icon", "a red rocket", 256, 512)
	if a == c {
		t.Error("different dimensions produced the same key")
	}
	d := BuildVariantKey("banner", "a red rocket", 512, 512)
	if a == d {
		t.Error("different asset types produced the same key")
	}
}

func TestVariantCacheRoundTrip(t *testing.T) {
	c := NewVariantCache()
	key := BuildVariantKey("icon", "rocket", 512, 512)
	variants := []*Variant{{ID: "v1", Prompt: "rocket"}}

	c.Set("s1", key, variants)
	got := c.Get("s1", key)
	if got == nil || len(got.Variants) != 1 || got.Variants[0] != variants[0] {
		t.Fatalf("Get() = %v, want the stored set", got)
	}
	if got.CachedAt.IsZero() {
		t.Error("CachedAt not set")
	}
}

func TestVariantCacheNoCrossSessionLeakage(t *testing.T) {
	c := NewVariantCache()
	key := BuildVariantKey("icon", "rocket", 512, 512)
	c.Set("s1", key, []*Variant{{ID: "v1"}})

	if got := c.Get("s2", key); got != nil {
		t.Errorf("session s2 sees s1's entry: %v", got)
	}
}

func TestVariantCacheOverwrite(t *testing.T) {
	c := NewVariantCache()
	c.Set("s1", "k", []*Variant{{ID: "old"}})
	c.Set("s1", "k", []*Variant{{ID: "new"}})
	got := c.Get("s1", "k")
	if got == nil || got.Variants[0].ID != "new" {
		t.Errorf("overwrite failed: %v", got)
	}
}

func TestVariantCacheClearSession(t *testing.T) {
	c := NewVariantCache()
	c.Set("s1", "k", []*Variant{{ID: "v"}})
	c.ClearSession("s1")
	if c.Get("s1", "k") != nil {
		t.Error("entry survived ClearSession")
	}
	// Clearing an unknown session must not panic.
	c.ClearSession("unknown")
}
