package solution

// ReloadLevel is how much of a project must be re-derived from disk on the
// next build. Ordered None < Partial < Full; an
// invalidation widens the stored level monotonically, never narrows it.
type ReloadLevel int

const (
	ReloadNone ReloadLevel = iota
	ReloadPartial
	ReloadFull
)

func (r ReloadLevel) widen(other ReloadLevel) ReloadLevel {
	if other > r {
		return other
	}
	return r
}
