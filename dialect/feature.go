package dialect

import "sort"

// Feature names a capability that statement construction may depend on.
// Capability sets are resolved once per statement, not per call.
type Feature string

// Features consulted by the statement construction layer.
const (
	// FeatureANSIJoinSyntax indicates that joins render as ANSI JOIN ... ON
	// clauses. Dialects without it receive comma-separated FROM lists with
	// join conditions folded into WHERE.
	FeatureANSIJoinSyntax Feature = "ansi-join-syntax"
	// FeatureRightOuterJoin indicates support for RIGHT OUTER JOIN.
	FeatureRightOuterJoin Feature = "right-outer-join"
	// FeatureSelectForUpdate indicates support for SELECT ... FOR UPDATE.
	FeatureSelectForUpdate Feature = "select-for-update"
	// FeatureSelectForUpdateNoWait indicates support for the NOWAIT modifier.
	FeatureSelectForUpdateNoWait Feature = "select-for-update-nowait"
	// FeatureDeferredConstraints indicates support for deferring constraint
	// checks to transaction commit.
	FeatureDeferredConstraints Feature = "deferred-constraints"
)

// Features is a capability set. The zero value supports nothing; sets are
// copied on modification and safe for concurrent reads.
type Features struct {
	set map[Feature]bool
}

// NewFeatures returns a Features set with the given features enabled.
func NewFeatures(enabled ...Feature) Features {
	set := make(map[Feature]bool, len(enabled))
	for _, feat := range enabled {
		set[feat] = true
	}
	return Features{set: set}
}

// Supports reports whether the feature is enabled.
func (f Features) Supports(feat Feature) bool {
	return f.set[feat]
}

// With returns a copy of the set with the given features enabled.
func (f Features) With(feats ...Feature) Features {
	set := make(map[Feature]bool, len(f.set)+len(feats))
	for feat := range f.set {
		set[feat] = true
	}
	for _, feat := range feats {
		set[feat] = true
	}
	return Features{set: set}
}

// Without returns a copy of the set with the given features disabled.
func (f Features) Without(feats ...Feature) Features {
	set := make(map[Feature]bool, len(f.set))
	for feat := range f.set {
		set[feat] = true
	}
	for _, feat := range feats {
		delete(set, feat)
	}
	return Features{set: set}
}

// List returns the enabled features in lexical order.
func (f Features) List() []Feature {
	feats := make([]Feature, 0, len(f.set))
	for feat := range f.set {
		feats = append(feats, feat)
	}
	sort.Slice(feats, func(i, j int) bool { return feats[i] < feats[j] })
	return feats
}

// For returns the capability set of the named dialect. Unknown dialects
// receive a conservative ANSI-only set.
func For(dialect string) Features {
	if f, ok := featureTable[dialect]; ok {
		return f
	}
	return NewFeatures(FeatureANSIJoinSyntax)
}
