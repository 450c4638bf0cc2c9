package safe

import (
	"SupportChat/logger"
)

// Go starts a goroutine that recovers from panics so a misbehaving
// fire-and-forget task cannot take the gateway down.
func Go(f func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Errorf("[safe.Go] panic recovered: %v", r)
			}
		}()
		f()
	}()
}
