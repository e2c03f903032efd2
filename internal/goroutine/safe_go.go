package goroutine

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/ignatzorin/escrow-backend/internal/logger"
)

// SafeGo запускает функцию в горутине и перехватывает panic.
// Используется для фоновой доставки ws событий: упавшая рассылка
// не должна ронять обработку запроса, который её породил.
func SafeGo(fn func()) {
	go func() {
		defer recoverPanic()
		fn()
	}()
}

// SafeGoWithContext запускает функцию с контекстом в горутине
// и перехватывает panic.
func SafeGoWithContext(ctx context.Context, fn func(context.Context)) {
	go func() {
		defer recoverPanic()
		fn(ctx)
	}()
}

func recoverPanic() {
	r := recover()
	if r == nil {
		return
	}

	stack := debug.Stack()
	if logger.Log != nil {
		logger.Log.WithField("stack", string(stack)).Errorf("panic в горутине: %v", r)
		return
	}
	fmt.Printf("[ERROR] panic в горутине: %v\n%s\n", r, stack)
}
