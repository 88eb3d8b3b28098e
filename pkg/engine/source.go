package engine

import "fmt"

// SourceKind distinguishes where a piece of program text originated.
type SourceKind int

const (
	// SourceDefault anchors resolution at the current working directory. It
	// is the origin used for top-level file evaluation.
	SourceDefault SourceKind = iota
	// SourceFile is a concrete file on disk.
	SourceFile
	// SourceDirectory is a directory used as a resolution base.
	SourceDirectory
	// SourceVirtual is in-memory text with a display name and no filesystem
	// anchor. Snippets evaluate with a virtual origin.
	SourceVirtual
)

func (k SourceKind) String() string {
	switch k {
	case SourceDefault:
		return "default"
	case SourceFile:
		return "file"
	case SourceDirectory:
		return "directory"
	case SourceVirtual:
		return "virtual"
	}
	return fmt.Sprintf("sourcekind(%d)", int(k))
}

// Source identifies where program text came from. It is comparable and is
// used as the cache key for import resolution and evaluation.
type Source struct {
	Kind SourceKind
	Path string
}

func (s Source) String() string {
	if s.Kind == SourceDefault {
		return "<default>"
	}
	return s.Path
}

// Importer resolves and loads imported program text. Resolve maps a
// requesting origin and a relative path to a concrete source identity.
// Load returns the text for an identity previously returned by Resolve;
// implementations cache content so that a given identity is fetched at
// most once.
type Importer interface {
	Resolve(from Source, path string) (Source, error)
	Load(source Source) (string, error)
}
