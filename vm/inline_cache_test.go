package vm

import (
	"testing"
)

func TestInlineCacheEmpty(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	if m := ic.Lookup(&Module{name: "Test"}); m != nil {
		t.Error("Expected nil from empty cache")
	}
	if ic.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", ic.Misses)
	}
}

func TestInlineCacheMonomorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	class := &Module{name: "Test"}
	testMethod := &Method{Name: "test"}

	// First update - becomes monomorphic
	ic.Update(class, testMethod)

	if ic.State != CacheMonomorphic {
		t.Errorf("Expected monomorphic state, got %v", ic.State)
	}
	if ic.Count != 1 {
		t.Errorf("Expected count 1, got %d", ic.Count)
	}

	// Lookup should hit
	if m := ic.Lookup(class); m != testMethod {
		t.Error("Expected cache hit")
	}
	if ic.Hits != 1 {
		t.Errorf("Expected 1 hit, got %d", ic.Hits)
	}

	// Different class should miss
	if m := ic.Lookup(&Module{name: "Other"}); m != nil {
		t.Error("Expected cache miss for different class")
	}
	if ic.Misses != 1 {
		t.Errorf("Expected 1 miss, got %d", ic.Misses)
	}
}

func TestInlineCacheUpgradeToPolymorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	class1 := &Module{name: "Class1"}
	class2 := &Module{name: "Class2"}
	method1 := &Method{Name: "method1"}
	method2 := &Method{Name: "method2"}

	ic.Update(class1, method1)
	if ic.State != CacheMonomorphic {
		t.Errorf("Expected monomorphic, got %v", ic.State)
	}

	ic.Update(class2, method2)
	if ic.State != CachePolymorphic {
		t.Errorf("Expected polymorphic, got %v", ic.State)
	}
	if ic.Count != 2 {
		t.Errorf("Expected count 2, got %d", ic.Count)
	}

	if m := ic.Lookup(class1); m != method1 {
		t.Error("Expected hit for class1")
	}
	if m := ic.Lookup(class2); m != method2 {
		t.Error("Expected hit for class2")
	}

	// Updating a known class replaces its method in place.
	replacement := &Method{Name: "method1"}
	ic.Update(class1, replacement)
	if ic.Count != 2 || ic.Lookup(class1) != replacement {
		t.Error("Expected in-place update for class1")
	}
}

func TestInlineCacheUpgradeToMegamorphic(t *testing.T) {
	ic := &InlineCache{State: CacheEmpty}

	classes := make([]*Module, MaxPICEntries)
	for i := range classes {
		classes[i] = &Module{name: "Class"}
		ic.Update(classes[i], &Method{Name: "method"})
	}
	if ic.State != CachePolymorphic || ic.Count != MaxPICEntries {
		t.Fatalf("Expected full polymorphic cache, got %v with %d entries", ic.State, ic.Count)
	}

	// One more class goes megamorphic
	ic.Update(&Module{name: "Extra"}, &Method{Name: "method"})
	if ic.State != CacheMegamorphic {
		t.Errorf("Expected megamorphic, got %v", ic.State)
	}
	if ic.Count != 0 {
		t.Errorf("Expected entries cleared, got count %d", ic.Count)
	}

	// Megamorphic caches always miss and ignore updates
	ic.Update(classes[0], &Method{Name: "method"})
	if m := ic.Lookup(classes[0]); m != nil {
		t.Error("Expected megamorphic cache to miss")
	}
}

func TestInlineCacheHitRateAndReset(t *testing.T) {
	ic := &InlineCache{}
	if ic.HitRate() != 0 {
		t.Errorf("Expected 0%% hit rate for unused cache, got %f", ic.HitRate())
	}

	class := &Module{name: "Test"}
	ic.Lookup(class)
	ic.Update(class, &Method{Name: "m"})
	ic.Lookup(class)
	ic.Lookup(class)
	ic.Lookup(class)

	if rate := ic.HitRate(); rate != 75 {
		t.Errorf("Expected 75%% hit rate, got %f", rate)
	}

	ic.Reset()
	if ic.State != CacheEmpty || ic.Count != 0 {
		t.Errorf("Expected empty cache after reset, got %v/%d", ic.State, ic.Count)
	}
	if ic.Hits != 3 || ic.Misses != 1 {
		t.Error("Expected reset to keep statistics")
	}
}

func TestCacheStateString(t *testing.T) {
	tests := []struct {
		state CacheState
		want  string
	}{
		{CacheEmpty, "empty"},
		{CacheMonomorphic, "monomorphic"},
		{CachePolymorphic, "polymorphic"},
		{CacheMegamorphic, "megamorphic"},
		{CacheState(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("CacheState(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// Call sites
// ---------------------------------------------------------------------------

func TestCallSiteCachesLookups(t *testing.T) {
	vm, _ := newTestVM(t)
	a := defClass(t, vm, "A", nil)
	b := defClass(t, vm, "B", nil)
	returns(t, vm, a, "who", "a")
	returns(t, vm, b, "who", "b")

	cs := NewCallSite("who")
	objA, objB := newInstance(t, vm, a), newInstance(t, vm, b)
	for i := 0; i < 3; i++ {
		for _, tc := range []struct {
			recv Value
			want string
		}{{objA, "a"}, {objB, "b"}} {
			v, err := cs.Send(vm, tc.recv, nil)
			if err != nil || goString(v) != tc.want {
				t.Fatalf("who = %v, %v; want %s", v, err, tc.want)
			}
		}
	}
	if cs.Cache.State != CachePolymorphic {
		t.Errorf("state = %v, want polymorphic", cs.Cache.State)
	}
	if cs.Cache.Hits != 4 || cs.Cache.Misses != 2 {
		t.Errorf("hits/misses = %d/%d, want 4/2", cs.Cache.Hits, cs.Cache.Misses)
	}
}

func TestCallSiteInvalidation(t *testing.T) {
	vm, _ := newTestVM(t)
	c := defClass(t, vm, "Widget", nil)
	returns(t, vm, c, "label", "old")
	obj := newInstance(t, vm, c)
	cs := NewCallSite("label")

	send := func() string {
		t.Helper()
		v, err := cs.Send(vm, obj, nil)
		if err != nil {
			t.Fatal(err)
		}
		return goString(v)
	}

	if got := send(); got != "old" {
		t.Fatalf("label = %q, want old", got)
	}

	// Redefinition bumps the method serial.
	returns(t, vm, c, "label", "new")
	if got := send(); got != "new" {
		t.Errorf("label after redefinition = %q, want new", got)
	}

	// Including a module bumps the epoch.
	m := defModule(t, vm, "Override")
	returns(t, vm, m, "label", "module")
	if err := vm.Prepend(c, m); err != nil {
		t.Fatal(err)
	}
	if got := send(); got != "module" {
		t.Errorf("label after prepend = %q, want module", got)
	}

	// Removal falls through to method_missing.
	if err := vm.UndefMethod(c, "label"); err != nil {
		t.Fatal(err)
	}
	if err := vm.RemoveMethod(m, "label"); err != nil {
		t.Fatal(err)
	}
	_, err := cs.Send(vm, obj, nil)
	expectError(t, vm, err, vm.NoMethodErrorClass, "undefined method 'label'")
}

func TestCallSiteUnknownName(t *testing.T) {
	vm, _ := newTestVM(t)
	cs := NewCallSite("never_interned_anywhere")
	_, err := cs.Send(vm, Int(1), nil)
	expectError(t, vm, err, vm.NoMethodErrorClass, "undefined method 'never_interned_anywhere' for an instance of Integer")
}
