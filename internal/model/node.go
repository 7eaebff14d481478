package model

// NodeKind describes the level of the content tree a node sits at.
type NodeKind int

// Content node kinds, from the tree root down.
const (
	// NodeWeb is a site or subsite.
	NodeWeb NodeKind = iota

	// NodeList is a list or document library.
	NodeList

	// NodeFolder is a folder within a list.
	NodeFolder

	// NodeItem is a list item or document.
	NodeItem
)

// String returns the node kind name used in logs and output rows.
func (k NodeKind) String() string {
	switch k {
	case NodeWeb:
		return "web"
	case NodeList:
		return "list"
	case NodeFolder:
		return "folder"
	case NodeItem:
		return "item"
	default:
		return "unknown"
	}
}

// ContentNode is one node discovered during a tree walk: a web, list,
// folder, or item. Nodes are not persisted beyond the output rows
// derived from them.
type ContentNode struct {
	// ID is the node's identifier within its parent scope. Item IDs
	// are numeric and monotonically increasing within a list, which is
	// what continuation-based paging relies on.
	ID int64 `json:"id"`

	// Kind is the tree level of the node.
	Kind NodeKind `json:"kind"`

	// Title is the display title.
	Title string `json:"title"`

	// Path is the server-relative path of the node.
	Path string `json:"path"`

	// HasUniquePermissions is true when the node breaks permission
	// inheritance from its parent. Only such nodes produce
	// broken-inheritance rows and effective-access rows.
	HasUniquePermissions bool `json:"has_unique_permissions"`
}

// BrokenInheritanceItem records a content node that carries its own
// permission set instead of inheriting from its parent.
type BrokenInheritanceItem struct {
	ID    int64    `json:"id"`
	Kind  NodeKind `json:"kind"`
	Title string   `json:"title"`
	Path  string   `json:"path"`
}

// BrokenItem derives the broken-inheritance record for a node. Callers
// must only invoke it for nodes with HasUniquePermissions set.
func (n ContentNode) BrokenItem() BrokenInheritanceItem {
	return BrokenInheritanceItem{
		ID:    n.ID,
		Kind:  n.Kind,
		Title: n.Title,
		Path:  n.Path,
	}
}
