package buildconf

import (
	"fmt"
	"os"

	"github.com/yugabyte/build-gcc/internal/codes"
	"github.com/yugabyte/build-gcc/internal/naming"
)

// Phase of a build identity
type Phase int

const (
	// PhaseProvisional identities carry the revision placeholder
	PhaseProvisional Phase = iota
	// PhaseResolved identities are final
	PhaseResolved
)

func (p Phase) String() string {
	if p == PhaseResolved {
		return "resolved"
	}

	return "provisional"
}

// Paths is a snapshot of everything derived from an identity
type Paths struct {
	Phase              Phase
	Revision           string
	Tag                string
	InstallDirBasename string
	BuildParentDir     string
	FinalInstallDir    string
	CloneDir           string
	BuildInfoDir       string
}

// Identity is either Provisional or Resolved. Paths carries the phase so
// callers always see which one they are looking at.
type Identity interface {
	Phase() Phase
	Paths() Paths
	Conf() *Conf
	isIdentity()
}

// Provisional is the identity of a fresh auto-suffixed build before its source revision is known
type Provisional struct {
	conf *Conf
}

func (p Provisional) Phase() Phase { return PhaseProvisional }
func (p Provisional) Paths() Paths { return p.conf.paths(PhaseProvisional, "") }
func (p Provisional) Conf() *Conf  { return p.conf }
func (Provisional) isIdentity()    {}

// Resolve returns the resolved identity for a full source revision without touching the filesystem
func (p Provisional) Resolve(revision string) (Resolved, error) {
	if len(revision) < naming.RevisionPrefixLength {
		return Resolved{}, fmt.Errorf("source revision %q is shorter than %d characters", revision, naming.RevisionPrefixLength)
	}

	return Resolved{conf: p.conf, revision: revision[:naming.RevisionPrefixLength]}, nil
}

// RenameFunc moves a directory
type RenameFunc func(oldPath, newPath string) error

// Transition resolves the identity and renames the build parent directory to
// match. On any failure the provisional identity is returned unchanged, so the
// identity held by the caller always names the directory that exists on disk.
func (p Provisional) Transition(revision string, rename RenameFunc) (Identity, error) {
	if rename == nil {
		rename = os.Rename
	}

	resolved, err := p.Resolve(revision)
	if err != nil {
		return p, err
	}

	oldDir := p.Paths().BuildParentDir
	newDir := resolved.Paths().BuildParentDir
	if err := rename(oldDir, newDir); err != nil {
		return p, fmt.Errorf("failed to rename %s -> %s: %w", oldDir, newDir, err)
	}

	return resolved, nil
}

// Resolved is a final identity. Revision is empty when the tag never depended on it.
type Resolved struct {
	conf     *Conf
	revision string
}

func (r Resolved) Phase() Phase { return PhaseResolved }
func (r Resolved) Paths() Paths { return r.conf.paths(PhaseResolved, r.revision) }
func (r Resolved) Conf() *Conf  { return r.conf }
func (Resolved) isIdentity()    {}

// Revision returns the revision prefix, if any
func (r Resolved) Revision() string { return r.revision }

// Resolve transitions id to its resolved form. Resolving twice is an invariant violation.
func Resolve(id Identity, revision string, rename RenameFunc) (Identity, error) {
	p, ok := id.(Provisional)
	if !ok {
		return id, codes.Invariantf("identity %s is already resolved", id.Paths().Tag)
	}

	return p.Transition(revision, rename)
}
