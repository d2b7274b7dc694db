// Package guard forces test mode before any package init can start
// runtime side effects. Import it blank from tests that touch the app
// runtime.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GROWEASY_TEST_MODE") == "" {
			_ = os.Setenv("GROWEASY_TEST_MODE", "1")
		}
	})
}
