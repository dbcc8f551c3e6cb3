package blocks

import (
	"golang.org/x/exp/slices"
)

// Direction is the way MoveBlock shifts a block.
type Direction int

const (
	Up Direction = iota
	Down
)

// Store is the ordered block list of one document in edit. It is a value:
// every operation returns a new Store and leaves the receiver untouched.
// Missing ids and out-of-range moves are silent no-ops.
type Store struct {
	blocks []Block
}

// NewStore wraps an existing list. The list is copied.
func NewStore(list List) Store {
	return Store{blocks: slices.Clone([]Block(list))}
}

// NewDocumentStore returns the store a brand-new document starts with: a
// single spacer block.
func NewDocumentStore() Store {
	return Store{blocks: []Block{New(TypeSpacer)}}
}

// Blocks returns a copy of the ordered list.
func (s Store) Blocks() List {
	out := slices.Clone(s.blocks)
	if out == nil {
		return List{}
	}
	return out
}

// Len returns the number of blocks.
func (s Store) Len() int {
	return len(s.blocks)
}

// IndexOf returns the position of the block with id, or -1.
func (s Store) IndexOf(id string) int {
	return slices.IndexFunc(s.blocks, func(b Block) bool { return b.ID == id })
}

// Get looks a block up by id.
func (s Store) Get(id string) (Block, bool) {
	i := s.IndexOf(id)
	if i < 0 {
		return Block{}, false
	}
	return s.blocks[i], true
}

// AddBlock inserts a new block of type t right after afterIndex and returns
// it as the active block. afterIndex -1 inserts at the start; indexes past
// the end append.
func (s Store) AddBlock(t Type, afterIndex int) (Store, Block) {
	b := New(t)
	pos := afterIndex + 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(s.blocks) {
		pos = len(s.blocks)
	}
	next := slices.Insert(slices.Clone(s.blocks), pos, b)
	return Store{blocks: next}, b
}

// UpdateBlock replaces the content of the block with id. Content of a
// different kind than the block is ignored, so a block's type never changes.
func (s Store) UpdateBlock(id string, content Content) Store {
	i := s.IndexOf(id)
	if i < 0 || content == nil || content.Kind() != s.blocks[i].Type {
		return s
	}
	next := slices.Clone(s.blocks)
	next[i].Content = content
	return Store{blocks: next}
}

// DeleteBlock removes the block with id.
func (s Store) DeleteBlock(id string) Store {
	i := s.IndexOf(id)
	if i < 0 {
		return s
	}
	next := slices.Delete(slices.Clone(s.blocks), i, i+1)
	return Store{blocks: next}
}

// MoveBlock swaps the block with id with its neighbour in direction dir.
func (s Store) MoveBlock(id string, dir Direction) Store {
	i := s.IndexOf(id)
	if i < 0 {
		return s
	}
	if dir == Up {
		return s.MoveBlockUp(i)
	}
	return s.MoveBlockDown(i)
}

// MoveBlockUp swaps the block at index with the one before it.
func (s Store) MoveBlockUp(index int) Store {
	return s.swap(index, index-1)
}

// MoveBlockDown swaps the block at index with the one after it.
func (s Store) MoveBlockDown(index int) Store {
	return s.swap(index, index+1)
}

func (s Store) swap(i, j int) Store {
	if i < 0 || j < 0 || i >= len(s.blocks) || j >= len(s.blocks) {
		return s
	}
	next := slices.Clone(s.blocks)
	next[i], next[j] = next[j], next[i]
	return Store{blocks: next}
}
