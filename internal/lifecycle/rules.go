package lifecycle

// Entity names a soft-deletable catalog table.
type Entity string

const (
	EntityProduct Entity = "product"
	EntityVariant Entity = "variant"
	EntityOption  Entity = "variant_option"
	EntitySKU     Entity = "sku"
)

// Kind is how a flag change on the source reaches the target.
type Kind string

const (
	// KindLockstep copies the source flag onto every related target row.
	KindLockstep Kind = "lockstep"
	// KindRollup recomputes the target flag from its children: a variant is
	// deleted iff it has no active options. Rollups never cascade further.
	KindRollup Kind = "rollup"
)

// Rule is one row of the cascade table.
type Rule struct {
	Source Entity
	Target Entity
	Kind   Kind
}

// Rules is the cascade table. Products have no outgoing rules: deleting a
// product flips the product row only.
var Rules = []Rule{
	{Source: EntitySKU, Target: EntityOption, Kind: KindLockstep},
	{Source: EntityOption, Target: EntitySKU, Kind: KindLockstep},
	{Source: EntityVariant, Target: EntityOption, Kind: KindLockstep},
	{Source: EntityOption, Target: EntityVariant, Kind: KindRollup},
}

// RulesFrom returns the rules whose source is entity, in table order.
func RulesFrom(entity Entity) []Rule {
	var out []Rule
	for _, r := range Rules {
		if r.Source == entity {
			out = append(out, r)
		}
	}
	return out
}
