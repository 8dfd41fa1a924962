package pool

import "sync"

var (
	sharedOnce sync.Once
	shared     *Bucketed[byte]
)

// Shared returns the process-wide byte pool built from DefaultOptions.
func Shared() *Bucketed[byte] {
	sharedOnce.Do(func() {
		p, err := NewBucketed[byte](DefaultOptions())
		if err != nil {
			panic(err)
		}
		shared = p
	})
	return shared
}
