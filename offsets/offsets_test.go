package offsets_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"memscope/internal/fixture"
	"memscope/offsets"
	"memscope/process"
	"memscope/schema"
)

const arenaBase = 0x7FF700000000

type countingResolver struct {
	mu      sync.Mutex
	offsets map[string]int32
	calls   map[string]int
}

func newCountingResolver(known map[string]int32) *countingResolver {
	return &countingResolver{offsets: known, calls: map[string]int{}}
}

func (r *countingResolver) FindOffset(module, class, field string) (int32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := class + "::" + field
	r.calls[name]++
	off, ok := r.offsets[name]
	if !ok {
		return 0, &schema.LookupError{Stage: schema.StageField, Module: module, Class: class, Field: field}
	}
	return off, nil
}

func (r *countingResolver) count(name string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[name]
}

func TestCacheResolvesOnce(t *testing.T) {
	res := newCountingResolver(map[string]int32{"Entity::m_health": 0x344})
	cache := offsets.NewCache(res)
	key := offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_health"}

	// two independent call sites
	first, err := cache.Offset(key)
	if err != nil {
		t.Fatalf("Offset returned error: %v", err)
	}
	second, err := cache.Offset(offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_health"})
	if err != nil {
		t.Fatalf("Offset returned error: %v", err)
	}

	if first != 0x344 || second != first {
		t.Fatalf("offsets differ: 0x%x 0x%x", first, second)
	}
	if n := res.count("Entity::m_health"); n != 1 {
		t.Fatalf("schema walked %d times, want 1", n)
	}
}

func TestCacheConcurrentFirstUse(t *testing.T) {
	res := newCountingResolver(map[string]int32{"Entity::m_health": 0x344})
	cache := offsets.NewCache(res)
	key := offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_health"}

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if off, err := cache.Offset(key); err != nil || off != 0x344 {
				t.Errorf("Offset = 0x%x, %v", off, err)
			}
		}()
	}
	wg.Wait()

	if n := res.count("Entity::m_health"); n != 1 {
		t.Fatalf("schema walked %d times, want 1", n)
	}
	if got := cache.Resolved(); len(got) != 1 || got[0].Offset != 0x344 {
		t.Fatalf("Resolved = %+v", got)
	}
}

func TestCacheFailureIsNotStored(t *testing.T) {
	res := newCountingResolver(map[string]int32{})
	cache := offsets.NewCache(res)
	key := offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_gone"}

	for i := 0; i < 2; i++ {
		off, err := cache.Offset(key)
		var re *offsets.ResolveError
		if !errors.As(err, &re) || re.Key != key {
			t.Fatalf("expected ResolveError for %s, got %v", key.Name(), err)
		}
		if !errors.Is(err, schema.ErrSchemaLookup) {
			t.Fatalf("ResolveError does not wrap the lookup failure: %v", err)
		}
		if off != 0 {
			t.Fatalf("failed lookup returned offset 0x%x", off)
		}
	}
	if n := res.count("Entity::m_gone"); n != 2 {
		t.Fatalf("failed lookup was cached: %d walks", n)
	}
}

func TestTableRegisterAndResolve(t *testing.T) {
	res := newCountingResolver(map[string]int32{"Entity::m_health": 0x344})
	table := offsets.NewTable(offsets.NewCache(res))

	b, err := table.Register("Entity", "Health", offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_health"}, offsets.KindScalar, 4)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if got, ok := table.Binding("Entity", "Health"); !ok || got.Key != b.Key {
		t.Fatalf("Binding lookup = %v, %v", got, ok)
	}

	if _, err := table.Register("Entity", "Health", b.Key, offsets.KindScalar, 4); !errors.Is(err, offsets.ErrDuplicateBinding) {
		t.Fatalf("expected ErrDuplicateBinding, got %v", err)
	}

	if err := table.Resolve(); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}

	if _, err := table.Register("Entity", "Armor", offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_ArmorValue"}, offsets.KindScalar, 4); err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	err = table.Resolve()
	var re *offsets.ResolveError
	if !errors.As(err, &re) || re.Key.Field != "m_ArmorValue" {
		t.Fatalf("expected Resolve to name m_ArmorValue, got %v", err)
	}
}

type entity struct {
	Health    int32                        `schema:"Entity,m_health"`
	Name      [16]byte                     `schema:"Entity,m_iszPlayerName"`
	Clan      string                       `schema:"Entity,m_szClan"`
	SceneNode process.ProcessMemoryAddress `schema:"Entity,m_pGameSceneNode"`
	Pawn      offsets.Handle               `schema:"Entity,m_hPawn"`
	Origin    [3]float32                   `schema:"Entity,m_vecOrigin"`
	Cached    int                          `schema:"-"`
	Untagged  int
}

type badEntity struct {
	Children []uint64 `schema:"Entity,m_children"`
	Broken   int32    `schema:"Entity"`
}

func TestRegisterStructKinds(t *testing.T) {
	table := offsets.NewTable(offsets.NewCache(newCountingResolver(nil)))
	if err := offsets.RegisterStruct[entity](table, "client.dll"); err != nil {
		t.Fatalf("RegisterStruct returned error: %v", err)
	}

	want := map[string]struct {
		kind offsets.Kind
		size int
	}{
		"Health":    {offsets.KindScalar, 4},
		"Name":      {offsets.KindCharArray, 16},
		"Clan":      {offsets.KindCharPtr, 16},
		"SceneNode": {offsets.KindPointer, 8},
		"Pawn":      {offsets.KindHandle, 4},
		"Origin":    {offsets.KindScalar, 12},
	}

	bindings := table.Bindings()
	if len(bindings) != len(want) {
		t.Fatalf("registered %d bindings, want %d: %v", len(bindings), len(want), bindings)
	}
	for _, b := range bindings {
		w, ok := want[b.Name]
		if !ok || b.Kind != w.kind || b.Owner != "entity" || b.Key.Module != "client.dll" {
			t.Fatalf("unexpected binding %s", b)
		}
		if b.Kind != offsets.KindCharPtr && b.Size != w.size {
			t.Fatalf("binding %s has size %d, want %d", b.Name, b.Size, w.size)
		}
	}

	if err := offsets.RegisterStruct[entity](table, "client.dll"); !errors.Is(err, offsets.ErrDuplicateBinding) {
		t.Fatalf("expected ErrDuplicateBinding on re-registration, got %v", err)
	}
	if err := offsets.RegisterStruct[badEntity](table, "client.dll"); err == nil {
		t.Fatalf("expected pointer-bearing and malformed fields to be rejected")
	}
}

// world lays out a schema for Entity and one Entity object.
type world struct {
	reader *fixture.Arena
	system process.ProcessMemoryAddress
	object process.ProcessMemoryAddress
	pawn   process.ProcessMemoryAddress
}

func buildWorld(name []byte) *world {
	a := fixture.New(arenaBase)
	w := &world{reader: a}

	w.system = a.Schema(schema.DefaultLayout(), fixture.Scope{
		Module: "client.dll",
		Classes: []fixture.Class{{Name: "Entity", Size: 0x100, Fields: []fixture.Field{
			{Name: "m_health", Type: "int32", Offset: 0x10},
			{Name: "m_iszPlayerName", Type: "char[16]", Offset: 0x20},
			{Name: "m_szClan", Type: "char*", Offset: 0x30},
			{Name: "m_pGameSceneNode", Type: "CGameSceneNode*", Offset: 0x38},
			{Name: "m_hPawn", Type: "CHandle", Offset: 0x40},
			{Name: "m_vecOrigin", Type: "Vector", Offset: 0x44},
			{Name: "m_hController", Type: "CHandle", Offset: 0x50},
		}}},
	})

	w.pawn = a.Object(0x10)
	w.object = a.Object(0x100)
	a.PutInt32(w.object+0x10, 100)
	a.Put(w.object+0x20, name)
	a.PutPointer(w.object+0x30, a.CString("memscope"))
	a.PutUint32(w.object+0x40, 0x00A1_8005) // serial 0x143, index 5
	a.Put(w.object+0x44, []byte{0, 0, 0x80, 0x3F, 0, 0, 0, 0x40, 0, 0, 0x40, 0x40}) // 1, 2, 3
	a.PutUint32(w.object+0x50, uint32(offsets.InvalidHandle))
	return w
}

func (w *world) view(t *testing.T) (offsets.View, *offsets.Table) {
	t.Helper()
	r := w.reader.Blob()
	sys, err := schema.NewSystem(r, w.system, schema.DefaultLayout())
	if err != nil {
		t.Fatalf("NewSystem returned error: %v", err)
	}
	table := offsets.NewTable(offsets.NewCache(sys))
	if err := offsets.RegisterStruct[entity](table, "client.dll"); err != nil {
		t.Fatalf("RegisterStruct returned error: %v", err)
	}
	if err := table.Resolve(); err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	v, err := offsets.NewView(r, w.object, table)
	if err != nil {
		t.Fatalf("NewView returned error: %v", err)
	}
	return v, table
}

func mustBinding(t *testing.T, table *offsets.Table, name string) offsets.Binding {
	t.Helper()
	b, ok := table.Binding("entity", name)
	if !ok {
		t.Fatalf("no binding for %s", name)
	}
	return b
}

func TestCharArrayStopsAtNul(t *testing.T) {
	w := buildWorld([]byte{'h', 'i', 0, 0, 'x', 'y', 0, 0})
	v, table := w.view(t)

	s, err := v.String(mustBinding(t, table, "Name"))
	if err != nil || s != "hi" {
		t.Fatalf("String = %q, %v", s, err)
	}

	s, err = v.String(mustBinding(t, table, "Clan"))
	if err != nil || s != "memscope" {
		t.Fatalf("char pointer String = %q, %v", s, err)
	}

	if _, err := v.String(mustBinding(t, table, "Health")); err == nil {
		t.Fatalf("expected an error reading a scalar as a string")
	}
}

func TestCharArrayInvalidUTF8(t *testing.T) {
	w := buildWorld([]byte{'a', 0xFF, 'b', 0})
	v, table := w.view(t)

	s, err := v.String(mustBinding(t, table, "Name"))
	if err != nil || s != "a\uFFFDb" {
		t.Fatalf("String = %q, %v", s, err)
	}
}

func TestScalarPointerHandle(t *testing.T) {
	w := buildWorld([]byte("player"))
	v, table := w.view(t)

	health, err := offsets.Scalar[int32](v, mustBinding(t, table, "Health"))
	if err != nil || health != 100 {
		t.Fatalf("Scalar = %d, %v", health, err)
	}

	if ptr, ok, err := v.Pointer(mustBinding(t, table, "SceneNode")); err != nil || ok || ptr != 0 {
		t.Fatalf("null Pointer = %s, %v, %v", ptr.ToString(), ok, err)
	}

	entities := offsets.HandleResolverFunc(func(index uint32) (process.ProcessMemoryAddress, error) {
		if index == 5 {
			return w.pawn, nil
		}
		return 0, fmt.Errorf("no entity %d", index)
	})

	pawn, ok, err := v.Handle(mustBinding(t, table, "Pawn"), entities)
	if err != nil || !ok || pawn != w.pawn {
		t.Fatalf("Handle = %s, %v, %v", pawn.ToString(), ok, err)
	}

	pv, err := v.At(pawn)
	if err != nil || pv.Address() != w.pawn {
		t.Fatalf("At = %s, %v", pv.Address().ToString(), err)
	}
	if _, err := v.At(0); !errors.Is(err, process.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
}

func TestInvalidHandle(t *testing.T) {
	w := buildWorld([]byte("player"))
	v, table := w.view(t)

	b, err := table.Register("entity", "Controller", offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_hController"}, offsets.KindHandle, 0)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	called := false
	_, ok, err := v.Handle(b, offsets.HandleResolverFunc(func(uint32) (process.ProcessMemoryAddress, error) {
		called = true
		return 0, nil
	}))
	if err != nil || ok || called {
		t.Fatalf("invalid handle resolved: ok=%v called=%v err=%v", ok, called, err)
	}
}

func TestHandleIndex(t *testing.T) {
	if got := offsets.Handle(0x00A18005).Index(); got != 5 {
		t.Fatalf("Index = %d, want 5", got)
	}
	if got := offsets.Handle(0xFFFF).Index(); got != 0x7FFF {
		t.Fatalf("Index = %#x, want 0x7fff", got)
	}
}

func TestLoad(t *testing.T) {
	w := buildWorld([]byte{'h', 'i', 0, 'z'})
	v, _ := w.view(t)

	e, err := offsets.Load[entity](v)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if e.Health != 100 || e.Clan != "memscope" || e.SceneNode != 0 || e.Pawn.Index() != 5 {
		t.Fatalf("unexpected entity %+v", e)
	}
	if e.Name[0] != 'h' || e.Name[1] != 'i' || e.Name[3] != 0 {
		t.Fatalf("char array not trimmed: %v", e.Name)
	}
	if e.Origin != [3]float32{1, 2, 3} {
		t.Fatalf("Origin = %v", e.Origin)
	}
}

func TestNewViewRejectsNull(t *testing.T) {
	table := offsets.NewTable(offsets.NewCache(newCountingResolver(nil)))
	if _, err := offsets.NewView(fixture.New(arenaBase).Blob(), 0, table); !errors.Is(err, process.ErrNullPointer) {
		t.Fatalf("expected ErrNullPointer, got %v", err)
	}
}

func TestAccessorFailsWithoutOffset(t *testing.T) {
	table := offsets.NewTable(offsets.NewCache(newCountingResolver(nil)))
	b, _ := table.Register("Entity", "Health", offsets.Key{Module: "client.dll", Class: "Entity", Field: "m_health"}, offsets.KindScalar, 4)

	a := fixture.New(arenaBase)
	obj := a.Object(0x20)
	a.PutInt32(obj, 77)
	v, err := offsets.NewView(a.Blob(), obj, table)
	if err != nil {
		t.Fatalf("NewView returned error: %v", err)
	}

	// an unresolved field must not read offset zero
	if got, err := offsets.Scalar[int32](v, b); err == nil {
		t.Fatalf("Scalar read %d without a resolved offset", got)
	}
}

func TestKindString(t *testing.T) {
	for _, k := range []offsets.Kind{offsets.KindScalar, offsets.KindCharArray, offsets.KindCharPtr, offsets.KindPointer, offsets.KindHandle} {
		parsed, err := offsets.ParseKind(k.String())
		if err != nil || parsed != k {
			t.Fatalf("ParseKind(%q) = %v, %v", k.String(), parsed, err)
		}
	}
	if _, err := offsets.ParseKind("vector"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
