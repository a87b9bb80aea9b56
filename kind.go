package napigo

// ValueKind is the dynamic kind of a heap value, as reported by the
// environment's typeof-equivalent.
type ValueKind int

const (
	KindUndefined ValueKind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindSymbol
	KindObject
	KindFunction
	KindExternal
	KindBigint
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindSymbol:    "symbol",
	KindObject:    "object",
	KindFunction:  "function",
	KindExternal:  "external",
	KindBigint:    "bigint",
}

func (k ValueKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Nullish reports whether the kind is null or undefined.
func (k ValueKind) Nullish() bool {
	return k == KindNull || k == KindUndefined
}
