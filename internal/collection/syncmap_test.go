package collection

import "testing"

func TestSyncMap_PutGetDelete(t *testing.T) {
	m := NewSyncMap[string, int]()

	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected empty map to miss")
	}

	m.Put("a", 1)
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("got (%v, %v), want (1, true)", v, ok)
	}

	m.Put("a", 2)
	v, _ = m.Get("a")
	if v != 2 {
		t.Fatalf("put did not overwrite, got %v", v)
	}

	m.Delete("a")
	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected key to be gone after delete")
	}
}

func TestSyncMap_RangeAndLen(t *testing.T) {
	m := NewSyncMap[string, int]()
	for i, k := range []string{"a", "b", "c"} {
		m.Put(k, i)
	}
	if m.Len() != 3 {
		t.Fatalf("got len %d, want 3", m.Len())
	}

	seen := map[string]int{}
	m.Range(func(k string, v int) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 3 {
		t.Fatalf("range visited %d entries, want 3", len(seen))
	}

	var count int
	m.Range(func(k string, v int) bool {
		count++
		return false
	})
	if count != 1 {
		t.Fatalf("range did not stop early, visited %d", count)
	}
}
