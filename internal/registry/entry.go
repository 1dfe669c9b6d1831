package registry

import "time"

// Entry records what is known about one build, keyed by its tag
type Entry struct {
	// Tag is the unique identifier for this entry
	Tag string `json:"tag"`

	Version    string `json:"version"`
	Revision   string `json:"revision,omitempty"`
	TargetArch string `json:"target_arch"`

	// Directories derived from the tag
	BuildParentDir string `json:"build_parent_dir"`
	InstallDir     string `json:"install_dir"`
	CloneDir       string `json:"clone_dir"`

	Archive  string `json:"archive,omitempty"`
	Checksum string `json:"checksum,omitempty"`

	// Stages lists completed stage names in completion order
	Stages []string `json:"stages"`

	Published bool `json:"published"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasStage reports whether the named stage completed
func (e *Entry) HasStage(name string) bool {
	for _, s := range e.Stages {
		if s == name {
			return true
		}
	}

	return false
}
