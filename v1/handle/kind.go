package handle

// Kind is a remote primitive storage shape as reported by the TYPE command.
type Kind string

const (
	KindNone   Kind = "none"
	KindString Kind = "string"
	KindList   Kind = "list"
	KindSet    Kind = "set"
	KindZSet   Kind = "zset"
	KindHash   Kind = "hash"
)

// Variant identifies the logical type a handle presents.
type Variant int

const (
	VariantString Variant = iota
	VariantInteger
	VariantBoolean
	VariantObject
	VariantSnapshot
	VariantList
	VariantSet
	VariantSortedSet
	VariantHash
	VariantMap
)

var variantNames = [...]string{
	VariantString:    "string",
	VariantInteger:   "integer",
	VariantBoolean:   "boolean",
	VariantObject:    "object",
	VariantSnapshot:  "snapshot",
	VariantList:      "list",
	VariantSet:       "set",
	VariantSortedSet: "sortedset",
	VariantHash:      "hash",
	VariantMap:       "map",
}

func (v Variant) String() string {
	if v < 0 || int(v) >= len(variantNames) {
		return "unknown"
	}
	return variantNames[v]
}

// Ranked marks a slice as a rank-ordered collection, stored as a SortedSet
// when written through a hierarchical map.
type Ranked []any

// Snapshot marks a map as a whole-map payload, stored as one opaque value
// when written through a hierarchical map.
type Snapshot map[string]any
