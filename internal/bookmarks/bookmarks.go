// Package bookmarks provides the bookmark tree the action handlers operate
// on: a narrow store interface, an in-memory implementation with mutation
// hooks, and a Netscape bookmark HTML renderer for push actions.
package bookmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/markvault/markvault/internal/domain"
)

// ErrNodeNotFound is returned when a bookmark or folder ID does not exist.
var ErrNodeNotFound = errors.New("bookmark node not found")

// Node is one entry in the bookmark tree. A node with an empty URL is a
// folder; its Children are ordered by Index.
type Node struct {
	ID        string  `json:"id"`
	ParentID  string  `json:"parentId,omitempty"`
	Title     string  `json:"title"`
	URL       string  `json:"url,omitempty"`
	DateAdded int64   `json:"dateAdded"`
	Index     int     `json:"index"`
	Children  []*Node `json:"children,omitempty"`
}

// IsFolder reports whether the node is a folder.
func (n *Node) IsFolder() bool {
	return n.URL == ""
}

// MutationFunc observes bookmark mutations. The dispatcher subscribes here
// to turn tree changes into event-trigger firings.
type MutationFunc func(event domain.EventKind, node *Node)

// Store is the bookmark tree capability consumed by action handlers.
type Store interface {
	// Tree returns a copy of the full bookmark forest.
	Tree(ctx context.Context) ([]*Node, error)

	// Get returns a copy of the node with the given ID.
	Get(ctx context.Context, id string) (*Node, error)

	// Create adds a bookmark (or folder, when url is empty) under parentID.
	// An empty parentID creates a root node.
	Create(ctx context.Context, parentID, title, url string) (*Node, error)

	// Move reparents the node under newParentID.
	Move(ctx context.Context, id, newParentID string) error

	// Remove deletes the node and, for folders, its whole subtree.
	Remove(ctx context.Context, id string) error

	// Rename changes the node's title.
	Rename(ctx context.Context, id, title string) error

	// Search returns copies of all non-folder nodes matching the predicate.
	Search(ctx context.Context, match func(*Node) bool) ([]*Node, error)

	// ChildCount returns the number of direct children of a folder.
	ChildCount(ctx context.Context, folderID string) (int, error)

	// ReplaceAll atomically swaps the entire forest. Restore builds the new
	// forest first and only then calls this, so an abandoned restore leaves
	// the live tree untouched.
	ReplaceAll(ctx context.Context, roots []*Node) error
}

// MemoryStore is the in-process bookmark tree.
type MemoryStore struct {
	mu    sync.RWMutex
	roots []*Node
	nodes map[string]*Node
	now   func() time.Time
	hooks []MutationFunc
}

// NewMemoryStore creates an empty bookmark tree.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes: make(map[string]*Node),
		now:   time.Now,
	}
}

// OnMutation registers fn to be called after every successful mutation.
func (s *MemoryStore) OnMutation(fn MutationFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *MemoryStore) notify(event domain.EventKind, node *Node) {
	s.mu.RLock()
	hooks := make([]MutationFunc, len(s.hooks))
	copy(hooks, s.hooks)
	s.mu.RUnlock()
	clone := cloneNode(node)
	for _, fn := range hooks {
		fn(event, clone)
	}
}

func cloneNode(n *Node) *Node {
	if n == nil {
		return nil
	}
	out := *n
	out.Children = make([]*Node, 0, len(n.Children))
	for _, c := range n.Children {
		out.Children = append(out.Children, cloneNode(c))
	}
	if len(out.Children) == 0 {
		out.Children = nil
	}
	return &out
}

// Tree returns a copy of the full forest.
func (s *MemoryStore) Tree(ctx context.Context) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Node, 0, len(s.roots))
	for _, r := range s.roots {
		out = append(out, cloneNode(r))
	}
	return out, nil
}

// Get returns a copy of the node with the given ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return cloneNode(n), nil
}

// Create adds a node under parentID (root when empty).
func (s *MemoryStore) Create(
	ctx context.Context,
	parentID, title, url string,
) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	node := &Node{
		ID:        uuid.NewString(),
		ParentID:  parentID,
		Title:     title,
		URL:       url,
		DateAdded: s.now().UnixMilli(),
	}
	if parentID == "" {
		node.Index = len(s.roots)
		s.roots = append(s.roots, node)
	} else {
		parent, ok := s.nodes[parentID]
		if !ok || !parent.IsFolder() {
			s.mu.Unlock()
			return nil, fmt.Errorf("%w: parent folder %s", ErrNodeNotFound, parentID)
		}
		node.Index = len(parent.Children)
		parent.Children = append(parent.Children, node)
	}
	s.nodes[node.ID] = node
	s.mu.Unlock()

	s.notify(domain.EventBookmarkCreated, node)
	return cloneNode(node), nil
}

func (s *MemoryStore) detach(node *Node) {
	siblings := s.siblingsOf(node)
	for i, sib := range *siblings {
		if sib.ID == node.ID {
			*siblings = append((*siblings)[:i], (*siblings)[i+1:]...)
			break
		}
	}
	for i, sib := range *siblings {
		sib.Index = i
	}
}

func (s *MemoryStore) siblingsOf(node *Node) *[]*Node {
	if node.ParentID == "" {
		return &s.roots
	}
	parent, ok := s.nodes[node.ParentID]
	if !ok {
		return &s.roots
	}
	return &parent.Children
}

// Move reparents the node under newParentID.
func (s *MemoryStore) Move(ctx context.Context, id, newParentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	if newParentID != "" {
		parent, ok := s.nodes[newParentID]
		if !ok || !parent.IsFolder() {
			s.mu.Unlock()
			return fmt.Errorf("%w: target folder %s", ErrNodeNotFound, newParentID)
		}
	}
	s.detach(node)
	node.ParentID = newParentID
	if newParentID == "" {
		node.Index = len(s.roots)
		s.roots = append(s.roots, node)
	} else {
		parent := s.nodes[newParentID]
		node.Index = len(parent.Children)
		parent.Children = append(parent.Children, node)
	}
	s.mu.Unlock()

	s.notify(domain.EventBookmarkMoved, node)
	return nil
}

// Remove deletes the node and its subtree.
func (s *MemoryStore) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	s.detach(node)
	s.forget(node)
	s.mu.Unlock()

	s.notify(domain.EventBookmarkRemoved, node)
	return nil
}

func (s *MemoryStore) forget(node *Node) {
	delete(s.nodes, node.ID)
	for _, c := range node.Children {
		s.forget(c)
	}
}

// Rename changes the node's title.
func (s *MemoryStore) Rename(ctx context.Context, id, title string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	node, ok := s.nodes[id]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	node.Title = title
	s.mu.Unlock()

	s.notify(domain.EventBookmarkChanged, node)
	return nil
}

// Search returns copies of all non-folder nodes matching the predicate.
func (s *MemoryStore) Search(
	ctx context.Context,
	match func(*Node) bool,
) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Node
	for _, n := range s.nodes {
		if n.IsFolder() {
			continue
		}
		if match(n) {
			out = append(out, cloneNode(n))
		}
	}
	return out, nil
}

// ChildCount returns the number of direct children of a folder.
func (s *MemoryStore) ChildCount(ctx context.Context, folderID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	folder, ok := s.nodes[folderID]
	if !ok || !folder.IsFolder() {
		return 0, fmt.Errorf("%w: folder %s", ErrNodeNotFound, folderID)
	}
	return len(folder.Children), nil
}

// ReplaceAll atomically swaps the entire forest.
func (s *MemoryStore) ReplaceAll(ctx context.Context, roots []*Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roots = nil
	s.nodes = make(map[string]*Node)
	for i, r := range roots {
		clone := cloneNode(r)
		clone.ParentID = ""
		clone.Index = i
		s.roots = append(s.roots, clone)
		s.index(clone)
	}
	return nil
}

func (s *MemoryStore) index(node *Node) {
	if node.ID == "" {
		node.ID = uuid.NewString()
	}
	s.nodes[node.ID] = node
	for i, c := range node.Children {
		c.ParentID = node.ID
		c.Index = i
		s.index(c)
	}
}
