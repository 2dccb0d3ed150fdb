package exec

import "go.uber.org/zap"

// InlineContext runs every submission synchronously on the caller's
// goroutine. Recovered panics are logged and discarded, making it a safe
// lightweight default where a test needs immediate execution with no thread
// hand-off.
type InlineContext struct {
	log *zap.Logger
}

// Inline returns an inline execution context. A nil logger defaults to a
// no-op logger.
func Inline(log *zap.Logger) *InlineContext {
	if log == nil {
		log = zap.NewNop()
	}
	return &InlineContext{log: log}
}

func (c *InlineContext) Submit(work func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("inline work panicked", zap.Any("panic", r))
		}
	}()
	work()
}
