package scanner

// FileInfo is one file found under a project root.
type FileInfo struct {
	Path string `json:"path"` // relative to the root
	Size int64  `json:"size"`
	Lang string `json:"lang,omitempty"`
}
