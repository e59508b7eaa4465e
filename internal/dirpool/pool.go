// Package dirpool interns directory paths as a forest of nodes keyed by
// path component, the way libsolv's Dirpool does for file-list and
// diskusage attributes. Dir 0 is the sentinel parent and dir 1 is the
// root "/"; every other dir is reached by walking down from a parent via
// AddDir, which reuses an existing sibling with a matching component
// instead of creating a duplicate.
package dirpool

import "github.com/standardbeagle/solv/internal/types"

// DirId indexes into a Pool's node table. 0 is the sentinel, 1 is "/".
type DirId int32

const (
	DirSentinel DirId = 0
	DirRoot     DirId = 1
)

type node struct {
	parent  DirId
	comp    types.Id
	child   DirId
	sibling DirId
}

// Pool is a forest of directory nodes, one tree rooted at DirRoot.
type Pool struct {
	nodes []node
}

// New returns a Pool with the sentinel and root directories already
// present.
func New() *Pool {
	p := &Pool{nodes: make([]node, 2, 256)}
	p.nodes[DirRoot] = node{parent: DirSentinel}
	return p
}

// AddDir returns the dir under parent whose component is comp, creating
// it (linked in as parent's first child) if create is true and no
// matching child already exists. With create false, a miss returns
// DirSentinel.
func (p *Pool) AddDir(parent DirId, comp types.Id, create bool) DirId {
	for child := p.nodes[parent].child; child != DirSentinel; child = p.nodes[child].sibling {
		if p.nodes[child].comp == comp {
			return child
		}
	}
	if !create {
		return DirSentinel
	}
	id := DirId(len(p.nodes))
	p.nodes = append(p.nodes, node{
		parent:  parent,
		comp:    comp,
		sibling: p.nodes[parent].child,
	})
	p.nodes[parent].child = id
	return id
}

// Parent, Child, Sibling and Compid are the four O(1) accessors the
// dataiterator and writer need to walk or materialize a path.
func (p *Pool) Parent(d DirId) DirId   { return p.nodes[d].parent }
func (p *Pool) Child(d DirId) DirId    { return p.nodes[d].child }
func (p *Pool) Sibling(d DirId) DirId  { return p.nodes[d].sibling }
func (p *Pool) Compid(d DirId) types.Id { return p.nodes[d].comp }

// Components walks d's parent chain back to the root, returning the
// sequence of component ids from root to d (DirRoot itself contributes no
// component — it's the implicit leading "/").
func (p *Pool) Components(d DirId) []types.Id {
	var rev []types.Id
	for d != DirRoot && d != DirSentinel {
		rev = append(rev, p.nodes[d].comp)
		d = p.nodes[d].parent
	}
	out := make([]types.Id, len(rev))
	for i, id := range rev {
		out[len(rev)-1-i] = id
	}
	return out
}

// NumDirs returns the number of interned directories, including the
// sentinel and root.
func (p *Pool) NumDirs() int { return len(p.nodes) }
