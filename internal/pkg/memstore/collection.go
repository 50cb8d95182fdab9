package memstore

import (
	"sort"
	"sync"

	"Parley/internal/pkg/stream"
)

type watcher[T any] struct {
	match func(T) bool
	less  func(a, b T) bool
	fn    stream.Handler[T]
}

// collection 内存文档集合。写入与推送在 deliverMu 下串行，保证每个订阅按写入顺序收到变更；
// 回调在 mu 之外执行，回调中可以读，但不能写同一个集合
type collection[T any] struct {
	mu        sync.RWMutex
	deliverMu sync.Mutex
	docs      map[string]T
	order     []string
	watchers  map[uint64]*watcher[T]
	nextID    uint64
	idOf      func(T) string
	clone     func(T) T
}

func newCollection[T any](idOf func(T) string, clone func(T) T) *collection[T] {
	return &collection[T]{
		docs:     make(map[string]T),
		watchers: make(map[uint64]*watcher[T]),
		idOf:     idOf,
		clone:    clone,
	}
}

func (c *collection[T]) get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	doc, ok := c.docs[id]
	if !ok {
		return doc, false
	}
	return c.clone(doc), true
}

func (c *collection[T]) find(match func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]T, 0)
	for _, id := range c.order {
		if doc := c.docs[id]; match == nil || match(doc) {
			out = append(out, c.clone(doc))
		}
	}
	return out
}

// insert ID 已存在时返回 false
func (c *collection[T]) insert(doc T) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	id := c.idOf(doc)
	if _, ok := c.docs[id]; ok {
		c.mu.Unlock()
		return false
	}
	var zero T
	c.docs[id] = c.clone(doc)
	c.order = append(c.order, id)
	pending := c.changesLocked(id, zero, false, doc, true)
	c.mu.Unlock()

	deliver(pending)
	return true
}

// update 在锁内修改文档，mutate 返回 false 表示没有变化
func (c *collection[T]) update(id string, mutate func(*T) bool) bool {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	prev, ok := c.docs[id]
	if !ok {
		c.mu.Unlock()
		return false
	}
	next := c.clone(prev)
	if !mutate(&next) {
		c.mu.Unlock()
		return true
	}
	c.docs[id] = next
	pending := c.changesLocked(id, prev, true, next, true)
	c.mu.Unlock()

	deliver(pending)
	return true
}

func (c *collection[T]) watch(match func(T) bool, less func(a, b T) bool, fn stream.Handler[T]) stream.Subscription {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	c.mu.Lock()
	c.nextID++
	wid := c.nextID
	w := &watcher[T]{match: match, less: less, fn: fn}
	c.watchers[wid] = w
	docs := c.matchingLocked(w)
	initial := make([]stream.Change[T], 0, len(docs))
	for _, d := range docs {
		initial = append(initial, stream.Change[T]{Type: stream.Added, ID: c.idOf(d), Doc: c.clone(d)})
	}
	c.mu.Unlock()

	fn(stream.Snapshot[T]{Docs: docs, Changes: initial})

	return stream.NewSubscription(func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.watchers, wid)
	})
}

type delivery[T any] struct {
	fn   stream.Handler[T]
	snap stream.Snapshot[T]
}

func deliver[T any](pending []delivery[T]) {
	for _, d := range pending {
		d.fn(d.snap)
	}
}

func (c *collection[T]) changesLocked(id string, prev T, hadPrev bool, next T, hasNext bool) []delivery[T] {
	var out []delivery[T]
	for _, w := range c.watchers {
		before := hadPrev && w.match(prev)
		after := hasNext && w.match(next)
		var change stream.Change[T]
		switch {
		case !before && after:
			change = stream.Change[T]{Type: stream.Added, ID: id, Doc: c.clone(next)}
		case before && after:
			change = stream.Change[T]{Type: stream.Modified, ID: id, Doc: c.clone(next)}
		case before && !after:
			change = stream.Change[T]{Type: stream.Removed, ID: id, Doc: c.clone(prev)}
		default:
			continue
		}
		out = append(out, delivery[T]{
			fn:   w.fn,
			snap: stream.Snapshot[T]{Docs: c.matchingLocked(w), Changes: []stream.Change[T]{change}},
		})
	}
	return out
}

func (c *collection[T]) matchingLocked(w *watcher[T]) []T {
	docs := make([]T, 0)
	for _, id := range c.order {
		if doc := c.docs[id]; w.match(doc) {
			docs = append(docs, c.clone(doc))
		}
	}
	if w.less != nil {
		sort.SliceStable(docs, func(i, j int) bool { return w.less(docs[i], docs[j]) })
	}
	return docs
}
