package goroutine

import (
	"context"
	"runtime/debug"

	"github.com/olegsazonov/emergency-backend/internal/logger"
)

// SafeGo запускает горутину с обработкой panic.
// Используется для асинхронной рассылки событий: упавшая нотификация
// не должна ронять процесс и тем более откатывать переход статуса.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает горутину с контекстом и обработкой panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	if r := recover(); r != nil {
		logger.WithComponent("goroutine").Errorf("panic в горутине: %v\nStack trace:\n%s", r, debug.Stack())
	}
}
