package domain

// SelectorKind enumerates the three shapes a region selection can take.
type SelectorKind int

const (
	// SingleCode selects exactly one region; the code must exist.
	SingleCode SelectorKind = iota
	// CodeList selects several regions; unknown codes are dropped with a
	// warning, and an empty remainder is fatal.
	CodeList
	// AllRegions selects every region in the catalog.
	AllRegions
)

// Selector is a tagged region selection. Construct with One, Many, or All;
// consumers dispatch on Kind rather than inspecting argument types at runtime.
type Selector struct {
	Kind  SelectorKind
	Code  string   // set for SingleCode
	Codes []string // set for CodeList
}

// One selects a single region code.
func One(code string) Selector {
	return Selector{Kind: SingleCode, Code: code}
}

// Many selects a list of region codes.
func Many(codes ...string) Selector {
	return Selector{Kind: CodeList, Codes: codes}
}

// All selects every known region.
func All() Selector {
	return Selector{Kind: AllRegions}
}
