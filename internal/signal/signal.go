package signal

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// InterruptHandlersDone is closed after all registered interrupt handlers
// have run following the first interrupt signal.
var InterruptHandlersDone = make(chan struct{})

var (
	mu        sync.Mutex
	handlers  []func()
	listening bool
)

// AddInterruptHandler registers a handler invoked on SIGINT/SIGTERM.
// Handlers run in LIFO order; registration after shutdown began is a no-op.
func AddInterruptHandler(handler func()) {
	mu.Lock()
	defer mu.Unlock()
	handlers = append(handlers, handler)
	if listening {
		return
	}
	listening = true

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		mu.Lock()
		hs := make([]func(), len(handlers))
		copy(hs, handlers)
		mu.Unlock()
		for i := len(hs) - 1; i >= 0; i-- {
			hs[i]()
		}
		close(InterruptHandlersDone)
	}()
}

// InterruptRequested reports whether shutdown has completed its handlers.
func InterruptRequested() bool {
	select {
	case <-InterruptHandlersDone:
		return true
	default:
		return false
	}
}
