package library

// Walk visits every category reachable from root in pre-order, calling fn
// with the category and its parent (nil for root). Categories reachable
// through more than one path are visited once; traversal stops early when
// fn returns false.
func Walk(root *Category, fn func(cat, parent *Category) bool) {
	if root == nil {
		return
	}

	type item struct {
		cat    *Category
		parent *Category
	}

	seen := make(map[string]struct{})
	stack := []item{{cat: root}}
	for len(stack) > 0 {
		it := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if _, ok := seen[it.cat.ID]; ok {
			continue
		}
		seen[it.cat.ID] = struct{}{}

		if !fn(it.cat, it.parent) {
			return
		}

		// Reverse push keeps siblings in their original order.
		for i := len(it.cat.SubCategories) - 1; i >= 0; i-- {
			if sub := it.cat.SubCategories[i]; sub != nil {
				stack = append(stack, item{cat: sub, parent: it.cat})
			}
		}
	}
}

// Flatten returns every category and book of the tree, each ID once, in
// pre-order.
func Flatten(root *Category) ([]*Category, []*Book) {
	var categories []*Category
	var books []*Book
	seenBooks := make(map[string]struct{})

	Walk(root, func(cat, _ *Category) bool {
		categories = append(categories, cat)
		for _, b := range cat.Books {
			if b == nil {
				continue
			}
			if _, ok := seenBooks[b.ID]; ok {
				continue
			}
			seenBooks[b.ID] = struct{}{}
			books = append(books, b)
		}
		return true
	})

	return categories, books
}

// Edges derives the parent/child relations of the tree. Each
// (parent, child) pair appears exactly once.
func Edges(root *Category) []Relation {
	type key struct{ parent, child string }

	var edges []Relation
	seen := make(map[key]struct{})
	add := func(parent, child string, t RelationType) {
		k := key{parent, child}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		edges = append(edges, Relation{ParentID: parent, ChildID: child, Type: t})
	}

	Walk(root, func(cat, parent *Category) bool {
		if parent != nil {
			add(parent.ID, cat.ID, CategoryCategory)
		}
		for _, b := range cat.Books {
			if b != nil {
				add(cat.ID, b.ID, CategoryBook)
			}
		}
		return true
	})

	return edges
}

// FindCategory returns the first category in the tree with the given ID.
func FindCategory(root *Category, id string) *Category {
	var found *Category
	Walk(root, func(cat, _ *Category) bool {
		if cat.ID == id {
			found = cat
			return false
		}
		return true
	})
	return found
}

// CollectBooks returns the books of cat and all of its descendants, each
// book once, in pre-order.
func CollectBooks(cat *Category) []*Book {
	_, books := Flatten(cat)
	return books
}
