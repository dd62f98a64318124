package utils

import (
	"fmt"
	"os"
	"runtime/debug"
)

// GoSafe runs fn in a goroutine and recovers from panics.
func GoSafe(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "recovered from panic: %v\n%s\n", r, debug.Stack())
			}
		}()
		fn()
	}()
}

func ToPointer[T any](v T) *T {
	return &v
}
