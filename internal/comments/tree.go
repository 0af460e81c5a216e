// Package comments reconstructs threaded reply trees from flat comment rows
// and serves enriched thread reads.
package comments

import (
	"sort"

	"github.com/campuslink/moderation/internal/domain"
)

// AnonymousName is substituted when a comment's author name is unknown.
const AnonymousName = "Anonymous"

// Assemble turns a flat row list into the thread's root comments, each with
// Children populated recursively and sorted ascending by creation time. It
// is pure and total: a parent id that does not resolve within rows demotes
// the comment to a root instead of erroring.
func Assemble(rows []*domain.Comment) []*domain.Comment {
	nodes := make(map[string]*domain.Comment, len(rows))
	order := make([]*domain.Comment, 0, len(rows))
	for _, row := range rows {
		node := *row
		node.Children = []*domain.Comment{}
		if node.UserName == "" {
			node.UserName = AnonymousName
		}
		nodes[node.ID] = &node
		order = append(order, &node)
	}

	roots := make([]*domain.Comment, 0, len(rows))
	for _, node := range order {
		if node.ParentID != nil {
			if parent, ok := nodes[*node.ParentID]; ok {
				parent.Children = append(parent.Children, node)
				continue
			}
		}
		roots = append(roots, node)
	}

	sortTree(roots)
	return roots
}

func sortTree(nodes []*domain.Comment) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	for _, n := range nodes {
		sortTree(n.Children)
	}
}

// Flatten is the inverse traversal of Assemble: a pre-order walk collecting
// every node of the given trees.
func Flatten(roots []*domain.Comment) []*domain.Comment {
	var out []*domain.Comment
	var walk func(nodes []*domain.Comment)
	walk = func(nodes []*domain.Comment) {
		for _, n := range nodes {
			out = append(out, n)
			walk(n.Children)
		}
	}
	walk(roots)
	return out
}
