// Package resource governs the budgets a Store draws on.
//
//   - Memory: every arena chunk is reserved before it is mapped (fail-fast)
//   - Workers: bounds the goroutines compressing image blocks
//   - IO: token bucket shared by image readers and writers
//
// # Memory
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 1 << 30,
//	})
//
//	if err := rc.AcquireMemory(256 << 10); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(256 << 10)
//
// # IO
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller: it tracks nothing and limits nothing.
package resource
