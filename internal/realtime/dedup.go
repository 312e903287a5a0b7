package realtime

import "sync"

// Dedup 包装处理函数，丢弃最近 window 个事件中已处理过的事件ID
func Dedup(h Handler, window int) Handler {
	if window <= 0 {
		window = 1024
	}
	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, window)
		ring = make([]string, 0, window)
		next int
	)
	return func(e ChangeEvent) {
		mu.Lock()
		if _, ok := seen[e.ID]; ok {
			mu.Unlock()
			return
		}
		if len(ring) < window {
			ring = append(ring, e.ID)
		} else {
			delete(seen, ring[next])
			ring[next] = e.ID
			next = (next + 1) % window
		}
		seen[e.ID] = struct{}{}
		mu.Unlock()

		h(e)
	}
}
