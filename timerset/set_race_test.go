package timerset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSet_ConcurrentAddAndListExpired exercises the set's RWMutex under
// concurrent writers (Add/Cancel) racing a single reader (ListExpired),
// grounded on eventloop's *_race_test.go convention of running the real
// race detector over shared mutable state rather than only single-goroutine
// assertions.
func TestSet_ConcurrentAddAndListExpired(t *testing.T) {
	s := New(nil)

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	wg.Add(writers)
	for w := 0; w < writers; w++ {
		go func(base int64) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				timer := s.Add(base, int64(i%50), func() {}, false)
				if i%3 == 0 {
					timer.Cancel()
				}
			}
		}(int64(w * 1000))
	}

	drained := 0
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			drained += len(s.ListExpired(int64(i*100), nil))
		}
	}()

	wg.Wait()
	<-done

	require.GreaterOrEqual(t, drained, 0)
}
