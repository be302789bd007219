// Package loader reads schema documents from the filesystem.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/glimte/protoreg/schema"
	"github.com/glimte/protoreg/serialization"
)

// Document is a parsed schema document and the file it came from
type Document struct {
	Path string
	Raw  *schema.RawDocument
}

// FileError reports a schema file that could not be loaded
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("schema file %s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// Result holds the documents of one load. Files that failed are skipped
// and reported in Errors so the rest of the directory still loads.
type Result struct {
	Documents []Document
	Errors    []*FileError
}

// Raws returns the parsed documents in load order
func (r *Result) Raws() []*schema.RawDocument {
	raws := make([]*schema.RawDocument, len(r.Documents))
	for i, d := range r.Documents {
		raws[i] = d.Raw
	}
	return raws
}

// Err joins the file errors, or returns nil when every file loaded
func (r *Result) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// Loader walks schema directories and decodes every supported file
type Loader struct {
	codecs serialization.CodecRegistry
	logger *slog.Logger
}

// Option configures the loader
type Option func(*Loader)

// WithCodecs sets the codec registry used to pick a decoder per extension
func WithCodecs(codecs serialization.CodecRegistry) Option {
	return func(l *Loader) {
		l.codecs = codecs
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a loader using the global codec registry
func New(opts ...Option) *Loader {
	l := &Loader{
		codecs: serialization.GetGlobalRegistry(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads a single schema file, or every supported file below a
// directory in lexical path order. Files with unsupported extensions and
// hidden entries are ignored. Only a missing or unreadable root is an error.
func (l *Loader) Load(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat schema path %s: %w", path, err)
	}

	result := &Result{}
	if !info.IsDir() {
		raw, err := l.LoadFile(path)
		if err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, Document{Path: path, Raw: raw})
		return result, nil
	}

	l.logger.Info("searching for schemas", "dir", path)
	var matches []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == path {
				return err
			}
			l.logger.Error("skipping path", "path", p, "error", err)
			result.Errors = append(result.Errors, &FileError{Path: p, Err: err})
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if p != path && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if !d.IsDir() && l.codecs.IsSupported(p) {
			matches = append(matches, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk schema directory %s: %w", path, err)
	}
	sort.Strings(matches)

	for _, match := range matches {
		raw, err := l.LoadFile(match)
		if err != nil {
			l.logger.Error("skipping schema file", "path", match, "error", err)
			result.Errors = append(result.Errors, &FileError{Path: match, Err: err})
			continue
		}
		result.Documents = append(result.Documents, Document{Path: match, Raw: raw})
	}

	l.logger.Info("loaded schema documents", "dir", path, "documents", len(result.Documents), "failed", len(result.Errors))
	return result, nil
}

// LoadFile decodes and parses one schema file
func (l *Loader) LoadFile(path string) (*schema.RawDocument, error) {
	l.logger.Debug("loading schema", "path", path)

	obj, err := serialization.DecodeFile(l.codecs, path)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	raw, err := schema.ParseDocument(obj)
	if err != nil {
		return nil, &FileError{Path: path, Err: err}
	}
	return raw, nil
}
