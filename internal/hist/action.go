package hist

import "fmt"

// ActionKind is the closed set of things a caller can do with one version.
type ActionKind int

const (
	ActionPreview ActionKind = iota + 1
	ActionApply
	ActionCompare
	ActionExport
	ActionDelete
	ActionToggleFavorite
)

var actionNames = map[ActionKind]string{
	ActionPreview:        "preview",
	ActionApply:          "apply",
	ActionCompare:        "compare",
	ActionExport:         "export",
	ActionDelete:         "delete",
	ActionToggleFavorite: "favorite",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ActionKind(%d)", int(k))
}

// ParseActionKind returns the ActionKind with the given name.
func ParseActionKind(name string) (ActionKind, error) {
	for k, n := range actionNames {
		if n == name {
			return k, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown action %q", ErrInvalidArgument, name)
}

// ActionKinds returns every action in declaration order.
func ActionKinds() []ActionKind {
	return []ActionKind{
		ActionPreview,
		ActionApply,
		ActionCompare,
		ActionExport,
		ActionDelete,
		ActionToggleFavorite,
	}
}

// ActionResult carries whatever the performed action produced. Only the
// fields relevant to Kind are set.
type ActionResult struct {
	Kind       ActionKind
	Version    *Version
	Comparison *Comparison
	Favorite   bool
	Object     string
}
