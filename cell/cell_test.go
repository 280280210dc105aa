package cell

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestGetComputesOnce(t *testing.T) {
	var m Map[Name, int]
	calls := 0

	for i := 0; i < 3; i++ {
		v, err := m.Get("health", func() (int, error) {
			calls++
			return 0x344, nil
		})
		if err != nil || v != 0x344 {
			t.Fatalf("Get = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("fn called %d times, want 1", calls)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
}

func TestGetDoesNotStoreFailures(t *testing.T) {
	var m Map[Name, int]
	boom := errors.New("boom")

	if _, err := m.Get("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, ok := m.Peek("k"); ok {
		t.Fatalf("failure was stored")
	}

	v, err := m.Get("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Fatalf("retry Get = %d, %v", v, err)
	}
}

func TestGetConcurrentFirstRequests(t *testing.T) {
	var m Map[Name, int]
	var calls atomic.Int32
	release := make(chan struct{})

	const workers = 32
	var wg sync.WaitGroup
	results := make([]int, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.Get("shared", func() (int, error) {
				calls.Add(1)
				<-release
				return 42, nil
			})
			if err != nil {
				t.Errorf("Get returned error: %v", err)
			}
			results[i] = v
		}(i)
	}

	close(release)
	wg.Wait()

	for i, v := range results {
		if v != 42 {
			t.Fatalf("worker %d saw %d", i, v)
		}
	}
	if n := calls.Load(); n != 1 {
		t.Fatalf("fn ran %d times, want 1", n)
	}
	if v, ok := m.Peek("shared"); !ok || v != 42 {
		t.Fatalf("Peek = %d, %v", v, ok)
	}
}

func TestRange(t *testing.T) {
	var m Map[Name, string]
	m.Get("a", func() (string, error) { return "1", nil })
	m.Get("b", func() (string, error) { return "2", nil })

	seen := map[Name]string{}
	m.Range(func(k Name, v string) bool {
		seen[k] = v
		return true
	})
	if len(seen) != 2 || seen["a"] != "1" || seen["b"] != "2" {
		t.Fatalf("Range saw %v", seen)
	}
}
