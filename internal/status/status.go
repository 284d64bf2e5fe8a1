package status

import (
	"fmt"
	"time"

	"github.com/tsb-dev/tsb/internal/hostfs"
	"github.com/tsb-dev/tsb/internal/projectid"
	"github.com/tsb-dev/tsb/internal/tscompiler"
)

// Kind discriminates the nine up-to-date status variants. Kept
// as a tagged union — variant and data travel together on Status, never as
// a bag of optional fields.
type Kind int

const (
	Unbuildable Kind = iota
	ContainerOnly
	UpToDate
	UpToDateWithUpstreamTypes
	OutputMissing
	OutOfDateWithSelf
	OutOfDateWithUpstream
	UpstreamOutOfDate
	UpstreamBlocked
)

// MissingFileModifiedTime is the sentinel substituted for a missing
// modification time: conceptually an epoch far older than any real file
// on disk, so a missing file always loses a newer-than comparison.
var MissingFileModifiedTime = time.Unix(0, 0)

// MaximumDate is far newer than any real file's modification time. A
// successful build that actually changed declaration-file bytes records
// this as its newest-declaration-change time, which guarantees every
// downstream project's pseudo-up-to-date check fails and falls through
// to a full rebuild instead of a timestamp-only touch.
var MaximumDate = time.Date(9999, 1, 1, 0, 0, 0, 0, time.UTC)

// Status is the up-to-date classifier's result for one project.
type Status struct {
	Kind Kind

	// Unbuildable
	Reason string

	// UpToDate / UpToDateWithUpstreamTypes
	NewestInputName                     string
	NewestInputTime                     time.Time
	OldestOutputName                    string
	OldestOutputTime                    time.Time
	NewestOutputName                    string
	NewestOutputTime                    time.Time
	NewestDeclarationFileContentChanged time.Time

	// OutputMissing
	MissingOutputFileName string

	// OutOfDateWithSelf
	NewerInputName string

	// OutOfDateWithUpstream / UpstreamOutOfDate / UpstreamBlocked
	UpstreamName string
}

func (s Status) String() string {
	switch s.Kind {
	case Unbuildable:
		return fmt.Sprintf("Unbuildable(%s)", s.Reason)
	case ContainerOnly:
		return "ContainerOnly"
	case UpToDate:
		return "UpToDate"
	case UpToDateWithUpstreamTypes:
		return "UpToDateWithUpstreamTypes"
	case OutputMissing:
		return fmt.Sprintf("OutputMissing(%s)", s.MissingOutputFileName)
	case OutOfDateWithSelf:
		return "OutOfDateWithSelf"
	case OutOfDateWithUpstream:
		return fmt.Sprintf("OutOfDateWithUpstream(%s)", s.UpstreamName)
	case UpstreamOutOfDate:
		return fmt.Sprintf("UpstreamOutOfDate(%s)", s.UpstreamName)
	case UpstreamBlocked:
		return fmt.Sprintf("UpstreamBlocked(%s)", s.UpstreamName)
	default:
		return "Unknown"
	}
}

// ProjectSource resolves a project identifier to its parsed project, the
// way the config cache does. The classifier depends on this rather than
// the cache directly so it can be tested against a plain map.
type ProjectSource interface {
	Parsed(id projectid.ID) (*tscompiler.ParsedProject, bool)
}

// Classifier computes and memoizes up-to-date status per project.
// It must never memoize through a reference at call time — every
// upstream lookup goes back through the memo, since the upstream's status
// may have just been evicted or recomputed.
type Classifier struct {
	host             hostfs.Host
	source           ProjectSource
	unchangedOutputs map[string]time.Time
	memo             map[projectid.ID]Status
}

// NewClassifier builds a classifier. unchangedOutputs is the build
// driver's shared unchanged-outputs map; it is read, never
// written, by the classifier.
func NewClassifier(host hostfs.Host, source ProjectSource, unchangedOutputs map[string]time.Time) *Classifier {
	return &Classifier{host: host, source: source, unchangedOutputs: unchangedOutputs, memo: map[projectid.ID]Status{}}
}

// Evict removes a project's memoized status, e.g. on invalidation.
func (c *Classifier) Evict(id projectid.ID) {
	delete(c.memo, id)
}

// Seed installs a status directly into the memo, bypassing recomputation.
// The build driver uses this after a successful build or a fast-rebuild
// timestamp touch, since it already knows the resulting status without
// re-reading the filesystem.
func (c *Classifier) Seed(id projectid.ID, s Status) {
	c.memo[id] = s
}

// Get returns a project's memoized status if present.
func (c *Classifier) Get(id projectid.ID) (Status, bool) {
	s, ok := c.memo[id]
	return s, ok
}

// Classify computes (or returns the memoized) status for a project.
func (c *Classifier) Classify(id projectid.ID) Status {
	if s, ok := c.memo[id]; ok {
		return s
	}
	s := c.classify(id)
	c.memo[id] = s
	return s
}

func (c *Classifier) classify(id projectid.ID) Status {
	project, ok := c.source.Parsed(id)
	if !ok {
		return Status{Kind: Unbuildable, Reason: fmt.Sprintf("%s could not be parsed", id)}
	}

	outputs := ExpectedOutputs(project)
	if len(outputs) == 0 {
		return Status{Kind: ContainerOnly}
	}

	var newestInputName string
	var newestInputTime time.Time
	for _, input := range project.FileNames {
		info := c.host.Stat(input)
		if info == nil {
			return Status{Kind: Unbuildable, Reason: fmt.Sprintf("%s does not exist", input)}
		}
		mt := info.ModTime()
		if mt.After(newestInputTime) {
			newestInputTime = mt
			newestInputName = input
		}
	}

	var missingOutputFileName string
	isOutOfDateWithInputs := false
	var oldestOutputName string
	oldestOutputTime := time.Time{}
	var newestOutputName string
	newestOutputTime := time.Time{}
	first := true
	var newestDeclChange time.Time

	for _, out := range outputs {
		info := c.host.Stat(out.Path)
		var mt time.Time
		if info == nil {
			if missingOutputFileName == "" {
				missingOutputFileName = out.Path
			}
			mt = MissingFileModifiedTime
		} else {
			mt = info.ModTime()
			if mt.Before(newestInputTime) {
				isOutOfDateWithInputs = true
			}
		}

		if first || mt.Before(oldestOutputTime) {
			oldestOutputTime, oldestOutputName = mt, out.Path
		}
		if first || mt.After(newestOutputTime) {
			newestOutputTime, newestOutputName = mt, out.Path
		}
		first = false

		if out.IsDeclaration && !out.IsDeclarationMap {
			declTime := mt
			if recorded, ok := c.unchangedOutputs[out.Path]; ok {
				declTime = recorded
			}
			if declTime.After(newestDeclChange) {
				newestDeclChange = declTime
			}
		}
	}

	pseudoUpToDate := false
	anyPrepend := false
	var pseudoUpstream string

	for _, ref := range project.References {
		if ref.Prepend {
			anyPrepend = true
		}
		upstreamID, ok := projectid.Resolve(c.host, ref.Path)
		if !ok {
			continue
		}
		upstream := c.Classify(upstreamID)

		if upstream.Kind == Unbuildable {
			return Status{Kind: UpstreamBlocked, UpstreamName: string(upstreamID)}
		}
		if upstream.Kind != UpToDate && upstream.Kind != UpToDateWithUpstreamTypes && upstream.Kind != ContainerOnly {
			return Status{Kind: UpstreamOutOfDate, UpstreamName: string(upstreamID)}
		}
		if upstream.Kind == ContainerOnly {
			continue
		}

		if !upstream.NewestInputTime.After(oldestOutputTime) {
			continue
		}
		if !upstream.NewestDeclarationFileContentChanged.After(oldestOutputTime) {
			pseudoUpToDate = true
			pseudoUpstream = string(upstreamID)
			continue
		}
		return Status{Kind: OutOfDateWithUpstream, UpstreamName: string(upstreamID)}
	}

	result := Status{
		NewestInputName:                     newestInputName,
		NewestInputTime:                     newestInputTime,
		OldestOutputName:                    oldestOutputName,
		OldestOutputTime:                    oldestOutputTime,
		NewestOutputName:                    newestOutputName,
		NewestOutputTime:                    newestOutputTime,
		NewestDeclarationFileContentChanged: newestDeclChange,
	}

	switch {
	case missingOutputFileName != "":
		result.Kind = OutputMissing
		result.MissingOutputFileName = missingOutputFileName
	case isOutOfDateWithInputs:
		result.Kind = OutOfDateWithSelf
		result.NewerInputName = newestInputName
	case anyPrepend && pseudoUpToDate:
		result.Kind = OutOfDateWithUpstream
		result.UpstreamName = pseudoUpstream
	case pseudoUpToDate:
		result.Kind = UpToDateWithUpstreamTypes
	default:
		result.Kind = UpToDate
	}
	return result
}
