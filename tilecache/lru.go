package tilecache

import mandel "github.com/marben/mandelzoom"

// lruNode is a node in the recency list; it carries the key so the
// evicted entry can be found in the parent map.
type lruNode struct {
	key  mandel.TileKey
	prev *lruNode
	next *lruNode
}

// lruList is a doubly-linked recency list. Head is the most recently used.
// Not safe for concurrent use; the Cache mutex guards it.
type lruList struct {
	head *lruNode
	tail *lruNode
	len  int
}

func (l *lruList) Len() int { return l.len }

// PushFront inserts key as the most recently used entry.
func (l *lruList) PushFront(key mandel.TileKey) *lruNode {
	node := &lruNode{key: key}
	l.linkFront(node)
	return node
}

// MoveToFront marks node as the most recently used.
func (l *lruList) MoveToFront(node *lruNode) {
	if node == nil || node == l.head {
		return
	}
	l.unlink(node)
	l.linkFront(node)
}

// Remove takes node out of the list.
func (l *lruList) Remove(node *lruNode) {
	if node == nil {
		return
	}
	l.unlink(node)
}

// Oldest returns the least recently used key.
func (l *lruList) Oldest() (mandel.TileKey, bool) {
	if l.tail == nil {
		return mandel.TileKey{}, false
	}
	return l.tail.key, true
}

func (l *lruList) Clear() {
	l.head = nil
	l.tail = nil
	l.len = 0
}

func (l *lruList) linkFront(node *lruNode) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
	l.len++
}

// unlink detaches node and clears its links.
func (l *lruList) unlink(node *lruNode) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
	l.len--
}
