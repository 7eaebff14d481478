package model

// TargetKind describes what kind of content container a scan target
// reference denotes. It is determined once by the classifier and never
// changes afterwards.
type TargetKind int

// Target kinds, in classification probe order.
const (
	// TargetSite is a site-collection root: the reference has no path
	// component beyond the site root.
	TargetSite TargetKind = iota

	// TargetSubsite is a web nested below a site-collection root.
	TargetSubsite

	// TargetLibrary is a document library whose parent folder is the
	// site root.
	TargetLibrary

	// TargetFolder is a folder nested deeper than one level below the
	// site root.
	TargetFolder

	// TargetError marks a reference that survived no classification
	// probe. Error targets are logged and skipped; they never abort
	// the batch.
	TargetError
)

// String returns the target kind name used in logs and output rows.
func (k TargetKind) String() string {
	switch k {
	case TargetSite:
		return "site"
	case TargetSubsite:
		return "subsite"
	case TargetLibrary:
		return "library"
	case TargetFolder:
		return "folder"
	case TargetError:
		return "error"
	default:
		return "unknown"
	}
}

// ScanTarget is one classified input reference. Created once per input
// line; immutable after classification.
type ScanTarget struct {
	// URL is the raw input reference.
	URL string `json:"url"`

	// Kind is the classified target kind.
	Kind TargetKind `json:"kind"`

	// Sequence is the zero-based position of the reference in the
	// input list. Checkpoints identify targets by this number, so the
	// input order must be stable across a resume.
	Sequence int `json:"sequence"`
}
