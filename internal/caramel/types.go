package caramel

// Service limits.
const (
	// MaxSampleSize is the largest target_count the service accepts in one
	// sample request. Callers chunk larger deficits.
	MaxSampleSize = 10_000

	// MaxFolders is the listing cap requested with maxhits.
	MaxFolders = 10_000

	// countFacetLimit bounds the doc.id count facet on folder reads.
	countFacetLimit = 10_000_000
)

// Folder is a sampling target inside a case. ID is the final path segment
// of the folder's URI as reported by the listing.
type Folder struct {
	Case string
	ID   string
	URI  string
}
