package worker

import (
	"context"
	"fmt"
	"sync"
)

// Merge fans several sources into one. Replies are routed to the source a chat
// was last seen on. The merged channel closes when every input closes or ctx ends.
func Merge(ctx context.Context, sources ...Source) Source {
	m := &merged{
		out:    make(chan Message),
		routes: make(map[int64]Source),
	}

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(src Source) {
			defer wg.Done()
			in := src.Messages()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-in:
					if !ok {
						return
					}
					m.route(msg.ChatID, src)
					select {
					case m.out <- msg:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(m.out)
	}()
	return m
}

type merged struct {
	out chan Message

	mu     sync.RWMutex
	routes map[int64]Source
}

func (m *merged) Messages() <-chan Message {
	return m.out
}

func (m *merged) Reply(ctx context.Context, chatID int64, text string) error {
	m.mu.RLock()
	src, ok := m.routes[chatID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no source for chat %d", chatID)
	}
	return src.Reply(ctx, chatID, text)
}

func (m *merged) route(chatID int64, src Source) {
	m.mu.Lock()
	m.routes[chatID] = src
	m.mu.Unlock()
}
