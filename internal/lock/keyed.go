package lock

import "sync"

// KeyedMutex hands out at most one holder per key. It never blocks:
// TryLock reports false when the key is taken.
type KeyedMutex struct {
	mu   sync.Mutex
	held map[string]struct{}
}

// NewKeyedMutex creates an empty KeyedMutex.
func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{held: make(map[string]struct{})}
}

// TryLock takes key if it is free and returns the function releasing it.
// The release function is safe to call more than once.
func (k *KeyedMutex) TryLock(key string) (release func(), ok bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.held == nil {
		k.held = make(map[string]struct{})
	}
	if _, taken := k.held[key]; taken {
		return nil, false
	}
	k.held[key] = struct{}{}

	var once sync.Once
	return func() {
		once.Do(func() {
			k.mu.Lock()
			delete(k.held, key)
			k.mu.Unlock()
		})
	}, true
}

// Held reports whether key is currently taken.
func (k *KeyedMutex) Held(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	_, taken := k.held[key]
	return taken
}
