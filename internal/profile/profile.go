// Package profile holds the per-object upload configuration model and its
// resolver. Profiles live in the metadata store and are looked up fresh on
// every ingest call; the store is the single source of truth.
package profile

// Profile is a named bundle of storage target plus object definitions.
type Profile struct {
	Name    string                `json:"name"`
	Bucket  Bucket                `json:"bucket"`
	Objects map[string]ObjectSpec `json:"objects"`
}

// Bucket describes where a profile's uploads land.
type Bucket struct {
	Name     string `json:"name"`
	BasePath string `json:"base_path,omitempty"`
	Region   string `json:"region,omitempty"`
	// CDNURL, when set, rewrites storage URLs onto this host.
	CDNURL string `json:"cdn_url,omitempty"`
	// CDNExcludePrefix is stripped from object paths before the CDN host is
	// prepended.
	CDNExcludePrefix string `json:"cdn_exclude_prefix,omitempty"`
}

// ObjectSpec is one named upload kind within a profile.
type ObjectSpec struct {
	BucketPath   string       `json:"bucket_path,omitempty"`
	MimeTypes    []string     `json:"mime_types"`
	OutputFormat string       `json:"output_format,omitempty"`
	MaxAge       int          `json:"max_age,omitempty"`
	ACL          string       `json:"acl,omitempty"`
	Async        bool         `json:"async"`
	Constraints  *Constraints `json:"constraints,omitempty"`
	Transforms   []Transform  `json:"transforms,omitempty"`
}

// Constraints restricts acceptable source image geometry. Zero values mean
// "not constrained"; Ratio uses the "W/H" form, e.g. "3/2".
type Constraints struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	MinWidth  int    `json:"min_width,omitempty"`
	MinHeight int    `json:"min_height,omitempty"`
	Ratio     string `json:"ratio,omitempty"`
}

// Transform is one derived-image recipe. Name doubles as the filename suffix
// and must be non-empty for the entry to be applied.
type Transform struct {
	Name    string  `json:"name"`
	Width   int     `json:"width,omitempty"`
	Height  int     `json:"height,omitempty"`
	Blur    float64 `json:"blur,omitempty"`
	Quality int     `json:"quality,omitempty"`
}

// AcceptsMime reports whether the object allows the given content type.
func (s ObjectSpec) AcceptsMime(mime string) bool {
	for _, m := range s.MimeTypes {
		if m == mime {
			return true
		}
	}
	return false
}
