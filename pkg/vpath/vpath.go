// Package vpath implements the virtual-path value used to address nodes
// in a user's namespace: a slash-separated string rooted at "root/",
// where a trailing slash classifies the value as a directory and its
// absence classifies it as a file.
package vpath

import (
	"strings"
)

// Kind classifies a Path as a file or a directory.
type Kind int

const (
	// KindFile is a path with no trailing slash.
	KindFile Kind = iota
	// KindDir is a path with a trailing slash.
	KindDir
)

// ErrorCode enumerates the ways a Path can fail to parse or to be used.
type ErrorCode int

const (
	// InvalidPrefix means the string does not start with "root/" or
	// equal "root".
	InvalidPrefix ErrorCode = iota
	// EmptyPath means the string was empty.
	EmptyPath
	// InvalidCharacters means the string contains a NUL byte.
	InvalidCharacters
	// WrongPathType means an operation required a file where a
	// directory was given, or vice versa.
	WrongPathType
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidPrefix:
		return "InvalidPrefix"
	case EmptyPath:
		return "EmptyPath"
	case InvalidCharacters:
		return "InvalidCharacters"
	case WrongPathType:
		return "WrongPathType"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by this package.
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// rootName is the canonical name of the synthetic root node.
const rootName = "root"

// Path is an immutable, already-validated virtual path. The zero value
// is not a valid Path; construct one with Root or Parse.
type Path struct {
	// parts holds path components without "root", e.g. for "root/a/b"
	// parts is ["a", "b"]; for root itself, parts is empty.
	parts []string
	kind  Kind
}

// Root returns the canonical directory root, "root/".
func Root() Path {
	return Path{parts: nil, kind: KindDir}
}

// Parse validates and classifies s. Adjacent duplicate slashes are
// collapsed. The trailing slash (or its absence) determines Kind.
// Parse rejects empty strings, strings missing the "root" prefix, and
// strings containing a NUL byte.
func Parse(s string) (Path, error) {
	if s == "" {
		return Path{}, newError(EmptyPath, "path is empty")
	}
	if strings.ContainsRune(s, 0) {
		return Path{}, newError(InvalidCharacters, "path contains NUL byte")
	}

	kind := KindFile
	if strings.HasSuffix(s, "/") {
		kind = KindDir
	}

	segments := splitCollapsed(s)
	if len(segments) == 0 || segments[0] != rootName {
		return Path{}, newError(InvalidPrefix, "path must begin with \"root\"")
	}

	return Path{parts: segments[1:], kind: kind}, nil
}

// splitCollapsed splits s on "/" and drops empty segments, so adjacent
// duplicate slashes collapse away.
func splitCollapsed(s string) []string {
	raw := strings.Split(s, "/")
	out := make([]string, 0, len(raw))
	for _, seg := range raw {
		if seg != "" {
			out = append(out, seg)
		}
	}
	return out
}

// String renders the canonical textual form, always starting with
// "root", with a trailing slash iff the Kind is KindDir.
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(rootName)
	for _, seg := range p.parts {
		b.WriteByte('/')
		b.WriteString(seg)
	}
	if p.kind == KindDir {
		b.WriteByte('/')
	}
	return b.String()
}

// Kind reports whether p is a file or directory path.
func (p Path) Kind() Kind {
	return p.kind
}

// IsRoot reports whether p is the synthetic root directory.
func (p Path) IsRoot() bool {
	return len(p.parts) == 0 && p.kind == KindDir
}

// Parts returns the ordered component sequence including the synthetic
// "root" component.
func (p Path) Parts() []string {
	out := make([]string, 0, len(p.parts)+1)
	out = append(out, rootName)
	out = append(out, p.parts...)
	return out
}

// PartsWithoutRoot returns the ordered component sequence excluding the
// synthetic "root" component.
func (p Path) PartsWithoutRoot() []string {
	out := make([]string, len(p.parts))
	copy(out, p.parts)
	return out
}

// Name returns the last path component, or "root" for the root path.
func (p Path) Name() string {
	if len(p.parts) == 0 {
		return rootName
	}
	return p.parts[len(p.parts)-1]
}

// Depth returns 0 for root, 1 for "root/x", and so on.
func (p Path) Depth() int {
	return len(p.parts)
}

// Parent returns the directory containing p. Parent is undefined for
// the root path and returns WrongPathType.
func (p Path) Parent() (Path, error) {
	if len(p.parts) == 0 {
		return Path{}, newError(WrongPathType, "root has no parent")
	}
	return Path{parts: p.parts[:len(p.parts)-1], kind: KindDir}, nil
}

// PushFile appends name to p and classifies the result as a file. p
// must be a directory.
func (p Path) PushFile(name string) (Path, error) {
	if p.kind != KindDir {
		return Path{}, newError(WrongPathType, "push_file requires a directory path")
	}
	return p.push(name, KindFile)
}

// PushDir appends name to p and classifies the result as a directory.
// p must be a directory.
func (p Path) PushDir(name string) (Path, error) {
	if p.kind != KindDir {
		return Path{}, newError(WrongPathType, "push_dir requires a directory path")
	}
	return p.push(name, KindDir)
}

func (p Path) push(name string, kind Kind) (Path, error) {
	if name == "" || strings.Contains(name, "/") {
		return Path{}, newError(InvalidCharacters, "path segment must be non-empty and slash-free")
	}
	parts := make([]string, len(p.parts)+1)
	copy(parts, p.parts)
	parts[len(p.parts)] = name
	return Path{parts: parts, kind: kind}, nil
}

// AsDir returns p reclassified as a directory, preserving components.
func (p Path) AsDir() Path {
	return Path{parts: p.parts, kind: KindDir}
}

// AsFile returns p reclassified as a file, preserving components. AsFile
// on the root path is meaningless but not rejected here; callers that
// care reject it via IsRoot.
func (p Path) AsFile() Path {
	return Path{parts: p.parts, kind: KindFile}
}

// ChildOf reports whether p is strictly nested under other: other must
// be a directory, p must differ from other, and p's string must begin
// with other's string. A path is never a child of itself.
func (p Path) ChildOf(other Path) bool {
	if other.kind != KindDir {
		return false
	}
	if p.Equal(other) {
		return false
	}
	if len(p.parts) <= len(other.parts) {
		return false
	}
	for i, seg := range other.parts {
		if p.parts[i] != seg {
			return false
		}
	}
	return true
}

// Equal reports whether p and other denote the same path and kind.
func (p Path) Equal(other Path) bool {
	if p.kind != other.kind || len(p.parts) != len(other.parts) {
		return false
	}
	for i := range p.parts {
		if p.parts[i] != other.parts[i] {
			return false
		}
	}
	return true
}

// ErrIfDir returns WrongPathType if p is a directory. Used by operations
// that require a file, such as delete_file.
func (p Path) ErrIfDir() error {
	if p.kind == KindDir {
		return newError(WrongPathType, "expected a file path, got a directory path")
	}
	return nil
}

// ErrIfFile returns WrongPathType if p is a file. Used by operations
// that require a directory, such as list.
func (p Path) ErrIfFile() error {
	if p.kind == KindFile {
		return newError(WrongPathType, "expected a directory path, got a file path")
	}
	return nil
}
