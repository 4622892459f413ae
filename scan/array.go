package scan

import (
	"fmt"
	"sync"

	"github.com/ardnew/maghand/keys"
)

// KeyArray holds every key filter behind one lock. The scheduler is its
// only writer.
type KeyArray struct {
	id *keys.Identity

	mutex sync.Mutex
	keys  [keys.MaxKeys]*keys.AnalogKey
}

// PublisherFunc returns the publisher a key's filter emits changes on.
// It may return a nil publisher for a key with no listener.
type PublisherFunc func(keys.Name) (keys.Publisher, error)

// NewKeyArray creates one filter per key in id.
func NewKeyArray(id *keys.Identity, opts keys.FilterOptions, pub PublisherFunc) (*KeyArray, error) {
	a := &KeyArray{id: id}
	for i := 0; i < id.Len(); i++ {
		name := id.Name(i)
		var p keys.Publisher
		if pub != nil {
			var err error
			if p, err = pub(name); err != nil {
				return nil, fmt.Errorf("key %s: %w", name, err)
			}
		}
		a.keys[i] = keys.NewAnalogKey(name, opts, p)
	}
	return a, nil
}

// Identity returns the key identity the array was built from.
func (a *KeyArray) Identity() *keys.Identity {
	return a.id
}

// Feed passes channel ch of every frame to the filter of name, in order.
// It returns false if name is not a key.
func (a *KeyArray) Feed(name keys.Name, frames []Frame, ch int) bool {
	i, ok := a.id.Index(name)
	if !ok {
		return false
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	k := a.keys[i]
	for f := range frames {
		k.Update(frames[f][ch])
	}
	return true
}

// With calls fn with the filter of name while holding the array lock.
func (a *KeyArray) With(name keys.Name, fn func(*keys.AnalogKey)) bool {
	i, ok := a.id.Index(name)
	if !ok {
		return false
	}
	a.mutex.Lock()
	defer a.mutex.Unlock()
	fn(a.keys[i])
	return true
}
