package director

import "github.com/jake-scott/control4-bridge/internal/pkg/c4api"

type Items []c4api.Item

// ByID indexes the items that have an id
func (it Items) ByID() map[int]c4api.Item {
	out := make(map[int]c4api.Item, len(it))
	for _, i := range it {
		if id, ok := i.ItemID(); ok {
			out[id] = i
		}
	}

	return out
}

// ParentMap maps item id to parent id.  The project root (id 1) and items
// without a parent are left out.
func (it Items) ParentMap() map[int]int {
	out := make(map[int]int)
	for _, i := range it {
		id, ok := i.ItemID()
		if !ok || id <= 1 {
			continue
		}
		if parent, ok := i.Parent(); ok {
			out[id] = parent
		}
	}

	return out
}

func (it Items) OfType(typeName string) Items {
	var out Items
	for _, i := range it {
		if i.TypeName == typeName {
			out = append(out, i)
		}
	}

	return out
}
