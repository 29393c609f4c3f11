package gatecheck

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/workgraph/workctl/internal/domain"
	"github.com/workgraph/workctl/internal/obslog"
)

// yamlSchema is the on-disk shape of a note-schema file:
//
//	feature-task:
//	  - key: acceptance-criteria
//	    role: queue
//	    required: true
//	    description: acceptance criteria before work starts
type yamlSchema map[string][]yamlRequirement

type yamlRequirement struct {
	Key         string `yaml:"key"`
	Role        string `yaml:"role"`
	Required    bool   `yaml:"required"`
	Description string `yaml:"description"`
}

// FileSchemaService loads a note schema from a YAML file and hot-reloads it
// on write, so operators can edit required-note policy without restarting
// the server.
type FileSchemaService struct {
	path string

	mu      sync.RWMutex
	current *StaticSchemaService

	watcher *fsnotify.Watcher
	closed  atomic.Bool
}

// NewFileSchemaService loads path once and starts watching it for changes.
// Callers must call Close when the service is no longer needed.
func NewFileSchemaService(path string) (*FileSchemaService, error) {
	svc := &FileSchemaService{path: path}
	if err := svc.reload(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create schema watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watch schema file: %w", err)
	}
	svc.watcher = watcher
	go svc.watchLoop()
	return svc, nil
}

func (s *FileSchemaService) watchLoop() {
	for {
		select {
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if err := s.reload(); err != nil {
				obslog.Debugf("gatecheck: reload %s failed: %v", s.path, err)
			} else {
				obslog.Debugf("gatecheck: reloaded note schema from %s", s.path)
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			obslog.Debugf("gatecheck: schema watcher error: %v", err)
		}
	}
}

func (s *FileSchemaService) reload() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read note schema %s: %w", s.path, err)
	}
	var doc yamlSchema
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parse note schema %s: %w", s.path, err)
	}

	byTag := make(map[string][]Requirement, len(doc))
	for tag, reqs := range doc {
		converted := make([]Requirement, 0, len(reqs))
		for _, r := range reqs {
			role, err := domain.ParseRole(r.Role)
			if err != nil {
				return fmt.Errorf("note schema %s: tag %q key %q: %w", s.path, tag, r.Key, err)
			}
			converted = append(converted, Requirement{
				Key:         r.Key,
				Role:        role,
				Required:    r.Required,
				Description: r.Description,
			})
		}
		byTag[tag] = converted
	}

	s.mu.Lock()
	s.current = NewStaticSchemaService(byTag)
	s.mu.Unlock()
	return nil
}

func (s *FileSchemaService) RequirementsForTags(tags map[string]struct{}) []Requirement {
	s.mu.RLock()
	cur := s.current
	s.mu.RUnlock()
	return cur.RequirementsForTags(tags)
}

// Close stops the file watcher. Safe to call more than once.
func (s *FileSchemaService) Close() error {
	if s.closed.CompareAndSwap(false, true) && s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
