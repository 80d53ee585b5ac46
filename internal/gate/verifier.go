package gate

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Verifier resolves, approves, and re-verifies paths for file-bearing tool
// calls, implementing spec.md §4.8. The two-step split (Approve then Open)
// mirrors the orchestrator's PathVerify state: Approve happens once,
// Execute calls Open — any change to the underlying file identity between
// those two calls is caught instead of silently followed.
//
// Grounded in the teacher's internal/tools/filesystem.go resolvePath: the
// symlink/hardlink/workspace-escape checks below are that function's logic,
// restructured around an explicit ApprovedPath handoff instead of returning
// a bare string.
type Verifier struct {
	workspace string
	restrict  bool

	mu             sync.Mutex
	warnedNetworkFS bool
}

// NewVerifier builds a Verifier rooted at workspace. When restrict is
// false, paths are resolved but not confined to the workspace — used when
// the config's restrict_to_workspace is false.
func NewVerifier(workspace string, restrict bool) *Verifier {
	return &Verifier{workspace: workspace, restrict: restrict}
}

// Approve resolves path and records the identity (or, for a path that
// doesn't yet exist, its parent's identity) an ApprovedPath needs to catch
// a TOCTOU swap before Open is called.
func (v *Verifier) Approve(path string) (*ApprovedPath, error) {
	resolved, err := v.resolve(path)
	if err != nil {
		return nil, err
	}

	ap := &ApprovedPath{OriginalPath: path, ResolvedPath: resolved}

	if info, err := os.Lstat(resolved); err == nil {
		ap.ExistedAtApprove = true
		id, ok := statIdentity(resolved)
		if !ok {
			return nil, newPathErr(ErrPathChanged, path, "could not stat resolved file")
		}
		ap.Identity = id
		_ = info
	} else {
		parentDir := filepath.Dir(resolved)
		parentID, ok := statIdentity(parentDir)
		if !ok {
			return nil, newPathErr(ErrInvalidPath, path, "parent directory does not exist")
		}
		ap.ParentIdentity = parentID
		ap.ParentResolved = parentDir
	}

	ap.IsNetworkFS = v.isNetworkFS(resolved)
	if ap.IsNetworkFS {
		v.mu.Lock()
		alreadyWarned := v.warnedNetworkFS
		v.warnedNetworkFS = true
		v.mu.Unlock()
		if !alreadyWarned {
			slog.Warn("gate.verifier: path is on a network filesystem, TOCTOU guarantee is weaker", "path", resolved)
		}
	}

	return ap, nil
}

// OpenExisting re-verifies and opens an ApprovedPath for an existing file,
// per spec.md §4.8: open with no-follow protection, stat the descriptor,
// compare identity to what Approve recorded.
func (v *Verifier) OpenExisting(ap *ApprovedPath, flag int, perm os.FileMode) (*os.File, error) {
	if !ap.ExistedAtApprove {
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "path did not exist at approval time")
	}
	f, err := os.OpenFile(ap.ResolvedPath, flag|noFollowFlag, perm)
	if err != nil {
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "open failed: %v", err)
	}
	id, ok := statIdentity(ap.ResolvedPath)
	if !ok || id != ap.Identity {
		f.Close()
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "file identity changed since approval")
	}
	return f, nil
}

// CreateNew implements the new-file branch of spec.md §4.8: open the
// parent directory, compare its identity to the one recorded at Approve
// time, then create the target through that same directory with an atomic
// create-excl, so the create itself fails if something raced in.
func (v *Verifier) CreateNew(ap *ApprovedPath, perm os.FileMode) (*os.File, error) {
	if ap.ExistedAtApprove {
		return nil, newPathErr(ErrAlreadyExists, ap.OriginalPath, "file already existed at approval time")
	}
	parentID, ok := statIdentity(ap.ParentResolved)
	if !ok || parentID != ap.ParentIdentity {
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "parent directory identity changed since approval")
	}

	root, err := os.OpenRoot(ap.ParentResolved)
	if err != nil {
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "cannot open parent directory: %v", err)
	}
	defer root.Close()

	name := filepath.Base(ap.ResolvedPath)
	f, err := root.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		if os.IsExist(err) {
			return nil, newPathErr(ErrAlreadyExists, ap.OriginalPath, "file appeared between approval and creation")
		}
		return nil, newPathErr(ErrPathChanged, ap.OriginalPath, "create failed: %v", err)
	}
	return f, nil
}

// OpenAppend opens an existing file for append with the same no-follow and
// identity protections as OpenExisting.
func (v *Verifier) OpenAppend(ap *ApprovedPath, perm os.FileMode) (*os.File, error) {
	return v.OpenExisting(ap, os.O_APPEND|os.O_WRONLY, perm)
}

// resolve implements the teacher's resolvePath logic: canonicalize, and
// when restrict is set, reject any path whose canonical form escapes the
// workspace, has a mutable symlink parent, or is a hardlinked regular file.
func (v *Verifier) resolve(path string) (string, error) {
	var resolved string
	if filepath.IsAbs(path) {
		resolved = filepath.Clean(path)
	} else {
		resolved = filepath.Clean(filepath.Join(v.workspace, path))
	}

	if !v.restrict {
		return resolved, nil
	}

	absWorkspace, _ := filepath.Abs(v.workspace)
	wsReal, err := filepath.EvalSymlinks(absWorkspace)
	if err != nil {
		wsReal = absWorkspace
	}

	absResolved, _ := filepath.Abs(resolved)
	real, err := filepath.EvalSymlinks(absResolved)
	if err != nil {
		if !os.IsNotExist(err) {
			return "", newPathErr(ErrInvalidPath, path, "cannot resolve path: %v", err)
		}
		if linfo, lerr := os.Lstat(absResolved); lerr == nil && linfo.Mode()&os.ModeSymlink != 0 {
			target, readErr := os.Readlink(absResolved)
			if readErr != nil {
				return "", newPathErr(ErrSymlinkRejected, path, "cannot resolve symlink")
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(absResolved), target)
			}
			target = filepath.Clean(target)

			resolvedTarget, resolveErr := resolveThroughExistingAncestors(target)
			if resolveErr != nil {
				return "", newPathErr(ErrSymlinkRejected, path, "cannot resolve broken symlink target")
			}
			if !isPathInside(resolvedTarget, wsReal) {
				return "", newPathErr(ErrSymlinkRejected, path, "broken symlink target outside workspace")
			}
			real = resolvedTarget
		} else {
			parentReal, parentErr := filepath.EvalSymlinks(filepath.Dir(absResolved))
			if parentErr != nil {
				return "", newPathErr(ErrInvalidPath, path, "cannot resolve parent directory")
			}
			real = filepath.Join(parentReal, filepath.Base(absResolved))
		}
	}

	if !isPathInside(real, wsReal) {
		return "", newPathErr(ErrSymlinkRejected, path, "path outside workspace")
	}
	if hasMutableSymlinkParent(real) {
		return "", newPathErr(ErrSymlinkRejected, path, "path contains a mutable symlink component")
	}
	if err := checkHardlink(real); err != nil {
		return "", newPathErr(ErrSymlinkRejected, path, "%v", err)
	}

	return real, nil
}

// isPathInside reports whether child is inside or equal to parent.
func isPathInside(child, parent string) bool {
	if child == parent {
		return true
	}
	return strings.HasPrefix(child, parent+string(filepath.Separator))
}

// resolveThroughExistingAncestors walks up from target to the deepest
// existing ancestor, canonicalizes it, and rebuilds the remaining
// non-existent suffix — needed because a broken symlink's target may
// itself pass through intermediate symlinks that escape the workspace.
func resolveThroughExistingAncestors(target string) (string, error) {
	if real, err := filepath.EvalSymlinks(target); err == nil {
		return real, nil
	}
	current := target
	var tail []string
	for {
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		tail = append([]string{filepath.Base(current)}, tail...)
		current = parent
		if realParent, err := filepath.EvalSymlinks(current); err == nil {
			result := realParent
			for _, component := range tail {
				result = filepath.Join(result, component)
			}
			return result, nil
		}
	}
	return filepath.Clean(target), nil
}

// hasMutableSymlinkParent reports whether any path component is a symlink
// whose parent directory is writable — such a symlink could be rebound
// between resolution and the later open.
func hasMutableSymlinkParent(path string) bool {
	clean := filepath.Clean(path)
	components := strings.Split(clean, string(filepath.Separator))
	current := string(filepath.Separator)
	for _, comp := range components {
		if comp == "" {
			continue
		}
		current = filepath.Join(current, comp)
		info, err := os.Lstat(current)
		if err != nil {
			break
		}
		if info.Mode()&os.ModeSymlink != 0 {
			parentDir := filepath.Dir(current)
			if dirWritable(parentDir) {
				return true
			}
		}
	}
	return false
}

// checkHardlink rejects regular files with more than one hardlink.
// Directories naturally have nlink > 1 from "." entries in children and
// are exempt.
func checkHardlink(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		return nil
	}
	if nlink(info) > 1 {
		return newErr(ErrSymlinkRejected, "hardlinked file not allowed: %s", path)
	}
	return nil
}
