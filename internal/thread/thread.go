// Package thread assembles a flat comment list into a reply forest.
package thread

import "github.com/arihantjainmp/hackernews-clone/backend/internal/models"

// Node is one comment with its direct replies, in input order.
type Node struct {
	Comment models.Comment `json:"comment"`
	Replies []*Node        `json:"replies"`
}

// Build returns the root nodes of the forest described by comments. Deleted
// comments are kept so their replies stay attached. A comment whose parent is
// not in the batch is left out together with its subtree; use
// BuildWithOrphans to get those back.
func Build(comments []models.Comment) []*Node {
	roots, _ := BuildWithOrphans(comments)
	return roots
}

// BuildWithOrphans is Build that also returns the nodes whose parent id did
// not resolve within the batch, each still carrying its own replies.
func BuildWithOrphans(comments []models.Comment) (roots, orphans []*Node) {
	byID := make(map[int]*Node, len(comments))
	nodes := make([]*Node, len(comments))
	for i, c := range comments {
		n := &Node{Comment: c, Replies: []*Node{}}
		nodes[i] = n
		// First occurrence wins if an id repeats.
		if _, dup := byID[c.ID]; !dup {
			byID[c.ID] = n
		}
	}

	roots = []*Node{}
	for i, c := range comments {
		n := nodes[i]
		if byID[c.ID] != n {
			continue
		}
		if c.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := byID[*c.ParentID]
		if !ok || parent == n {
			orphans = append(orphans, n)
			continue
		}
		parent.Replies = append(parent.Replies, n)
	}
	return roots, orphans
}

// Tombstone marks c deleted and replaces its body. Id, parent and post links
// are left untouched.
func Tombstone(c *models.Comment) {
	c.Deleted = true
	c.Body = models.DeletedBody
}

// Count returns the number of nodes reachable from roots.
func Count(roots []*Node) int {
	n := 0
	for _, r := range roots {
		n += 1 + Count(r.Replies)
	}
	return n
}
