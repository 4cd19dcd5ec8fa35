package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/qri-io/jsonschema"

	"github.com/garnizeh/leadscout/pkg/repository"
)

var ErrSchemaNotFound = errors.New("schema not found")

// SchemaError lists the keyword failures of a document checked against a schema.
type SchemaError struct {
	Schema   string
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("document does not match %s: %s", e.Schema, strings.Join(e.Problems, "; "))
}

// Loader loads and caches compiled JSON schemas from the repository, keyed
// by name and version.
type Loader struct {
	repo  repository.SchemaRepo
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

func NewLoader(ctx context.Context, r repository.SchemaRepo) (*Loader, error) {
	l := &Loader{
		repo:  r,
		cache: make(map[string]*jsonschema.Schema),
	}
	if err := l.Reload(ctx); err != nil {
		return nil, err
	}

	return l, nil
}

func key(name, version string) string { return name + ":" + version }

// GetSchema returns the compiled schema for name and version.
func (l *Loader) GetSchema(name, version string) (*jsonschema.Schema, bool) {
	l.mu.RLock()
	s, ok := l.cache[key(name, version)]
	l.mu.RUnlock()

	return s, ok
}

// Reload loads all schemas from the DB and compiles them. The previous cache
// is kept when any schema fails to compile.
func (l *Loader) Reload(ctx context.Context) error {
	rows, err := l.repo.ListSchemas(ctx)
	if err != nil {
		return fmt.Errorf("load schemas: %w", err)
	}

	next := make(map[string]*jsonschema.Schema, len(rows))
	for _, r := range rows {
		rs, err := Compile(r.SchemaJSON)
		if err != nil {
			return fmt.Errorf("compile schema %s: %w", key(r.Name, r.Version), err)
		}
		next[key(r.Name, r.Version)] = rs
	}

	l.mu.Lock()
	l.cache = next
	l.mu.Unlock()
	return nil
}

// Compile parses a schema document.
func Compile(schemaJSON string) (*jsonschema.Schema, error) {
	rs := &jsonschema.Schema{}
	if err := json.Unmarshal([]byte(schemaJSON), rs); err != nil {
		return nil, err
	}
	return rs, nil
}

// Validate checks doc against the named schema. Mismatches are reported as
// *SchemaError.
func (l *Loader) Validate(ctx context.Context, name, version string, doc []byte) error {
	s, ok := l.GetSchema(name, version)
	if !ok {
		return fmt.Errorf("%s: %w", key(name, version), ErrSchemaNotFound)
	}

	verrs, err := s.ValidateBytes(ctx, doc)
	if err != nil {
		return fmt.Errorf("validate against %s: %w", key(name, version), err)
	}
	if len(verrs) == 0 {
		return nil
	}

	se := &SchemaError{Schema: key(name, version)}
	for _, v := range verrs {
		msg := v.Message
		if v.PropertyPath != "" && v.PropertyPath != "/" {
			msg = v.PropertyPath + ": " + msg
		}
		se.Problems = append(se.Problems, msg)
	}
	return se
}
