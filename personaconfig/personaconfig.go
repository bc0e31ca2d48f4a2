// Package personaconfig implements ConfigStore: the component that reads
// the orchestrator's YAML configuration documents (api_config.yaml,
// system_config.yaml, commands.yaml, persona_config.yaml), exposes typed
// and dotted-path accessors, persists writes atomically, and watches its
// directory for external edits. File watching follows fsnotify's own
// recommended pattern — a dedicated goroutine draining the watcher's
// Events channel — so observer dispatch is serialized on that one
// goroutine, much as audit.Log serializes its journal appends under a
// single mutex.
package personaconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/gomind-labs/orchestrator/logging"
)

const personaFileName = "persona_config.yaml"

// EventType classifies a persona section diff.
type EventType string

const (
	EventAdded   EventType = "added"
	EventUpdated EventType = "updated"
	EventRemoved EventType = "removed"
)

// Observer is notified of persona section changes. Exceptions (panics) a
// caller's observer raises are recovered and logged — they never abort the
// reload or take down other observers (SPEC_FULL.md §4.5).
type Observer func(personaID string, newConfig map[string]interface{}, eventType EventType)

// Store is the ConfigStore component: one directory of YAML documents,
// loaded into an in-memory map keyed by file name (without extension).
type Store struct {
	dir    string
	logger logging.Logger

	mu       sync.RWMutex
	sections map[string]map[string]interface{} // doc name -> parsed content

	watcher   *fsnotify.Watcher
	observers []Observer
	diffCh    chan diffEvent
	closeOnce sync.Once
	done      chan struct{}
}

type diffEvent struct {
	personaID string
	newConfig map[string]interface{}
	eventType EventType
}

// New loads every *.yaml/*.yml file directly under dir into memory.
func New(dir string, logger logging.Logger) (*Store, error) {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	s := &Store{dir: dir, logger: logger, sections: make(map[string]map[string]interface{})}
	if err := s.loadAll(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) loadAll() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("personaconfig: read dir: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isYAML(name) {
			continue
		}
		doc, err := s.loadFile(filepath.Join(s.dir, name))
		if err != nil {
			return err
		}
		s.sections[docKey(name)] = doc
	}
	return nil
}

func (s *Store) loadFile(path string) (map[string]interface{}, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("personaconfig: read %s: %w", path, err)
	}
	var doc map[string]interface{}
	if err := yaml.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("personaconfig: parse %s: %w", path, err)
	}
	if doc == nil {
		doc = map[string]interface{}{}
	}
	return doc, nil
}

func isYAML(name string) bool {
	return strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")
}

func docKey(fileName string) string {
	ext := filepath.Ext(fileName)
	return strings.TrimSuffix(fileName, ext)
}

// Section returns a defensive copy of one loaded document (e.g. "system_config").
func (s *Store) Section(name string) (map[string]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sections[name]
	if !ok {
		return nil, false
	}
	return cloneMap(doc), true
}

// Get resolves a dotted path ("system.debug_mode") against one section.
func (s *Store) Get(section, dottedPath string) (interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.sections[section]
	if !ok {
		return nil, false
	}
	return getPath(doc, strings.Split(dottedPath, "."))
}

func getPath(node interface{}, parts []string) (interface{}, bool) {
	if len(parts) == 0 {
		return node, true
	}
	m, ok := node.(map[string]interface{})
	if !ok {
		return nil, false
	}
	child, ok := m[parts[0]]
	if !ok {
		return nil, false
	}
	return getPath(child, parts[1:])
}

// Set writes a dotted path within section and persists that section's file
// atomically (write-temp-and-rename), the same pattern planstore.Save uses.
func (s *Store) Set(section, dottedPath string, value interface{}) error {
	s.mu.Lock()
	doc, ok := s.sections[section]
	if !ok {
		doc = map[string]interface{}{}
		s.sections[section] = doc
	}
	setPath(doc, strings.Split(dottedPath, "."), value)
	body, err := yaml.Marshal(doc)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("personaconfig: marshal %s: %w", section, err)
	}

	path := s.pathFor(section)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, body, 0o644); err != nil {
		return fmt.Errorf("personaconfig: write temp: %w", err)
	}
	return os.Rename(tmp, path)
}

func (s *Store) pathFor(section string) string {
	return filepath.Join(s.dir, section+".yaml")
}

func setPath(node map[string]interface{}, parts []string, value interface{}) {
	if len(parts) == 1 {
		node[parts[0]] = value
		return
	}
	child, ok := node[parts[0]].(map[string]interface{})
	if !ok {
		child = map[string]interface{}{}
		node[parts[0]] = child
	}
	setPath(child, parts[1:], value)
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]interface{}); ok {
			out[k] = cloneMap(nested)
		} else {
			out[k] = v
		}
	}
	return out
}

// Subscribe registers an observer for persona section changes.
func (s *Store) Subscribe(obs Observer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, obs)
}

// Watch starts an fsnotify watcher on the store's directory. On a write
// event: if the file is persona_config.yaml, only that section is
// reloaded and diffed against its previous contents, notifying observers
// with (personaId, newConfig, eventType); any other .yaml/.yml file
// triggers a full document reload with no diffing or notification
// (SPEC_FULL.md §4.5). Dispatch runs on one dedicated goroutine draining
// diffCh so observers never race each other.
func (s *Store) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("personaconfig: new watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("personaconfig: watch dir: %w", err)
	}
	s.watcher = w
	s.diffCh = make(chan diffEvent, 32)
	s.done = make(chan struct{})

	go s.dispatchLoop()
	go s.watchLoop()
	return nil
}

func (s *Store) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if !isYAML(name) {
				continue
			}
			s.handleModify(name)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.logger.Error("personaconfig: watcher error", map[string]interface{}{"error": err.Error()})
		case <-s.done:
			return
		}
	}
}

func (s *Store) handleModify(name string) {
	key := docKey(name)
	doc, err := s.loadFile(filepath.Join(s.dir, name))
	if err != nil {
		s.logger.Error("personaconfig: reload failed", map[string]interface{}{"file": name, "error": err.Error()})
		return
	}

	if name != personaFileName {
		s.mu.Lock()
		s.sections[key] = doc
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	old := s.sections[key]
	s.sections[key] = doc
	s.mu.Unlock()

	for _, ev := range diffPersonas(old, doc) {
		s.diffCh <- ev
	}
}

// diffPersonas compares old and new persona-section keys/values and
// computes one diffEvent per changed top-level persona id.
func diffPersonas(old, newDoc map[string]interface{}) []diffEvent {
	var events []diffEvent
	seen := make(map[string]bool)

	ids := make([]string, 0, len(old)+len(newDoc))
	for id := range old {
		ids = append(ids, id)
	}
	for id := range newDoc {
		if !seen[id] {
			ids = append(ids, id)
		}
		seen[id] = true
	}
	sort.Strings(ids)

	seen = make(map[string]bool)
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		oldVal, hadOld := old[id]
		newVal, hasNew := newDoc[id]
		switch {
		case !hadOld && hasNew:
			events = append(events, diffEvent{id, asMap(newVal), EventAdded})
		case hadOld && !hasNew:
			events = append(events, diffEvent{id, asMap(oldVal), EventRemoved})
		case hadOld && hasNew && !deepEqual(oldVal, newVal):
			events = append(events, diffEvent{id, asMap(newVal), EventUpdated})
		}
	}
	return events
}

func asMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}

func deepEqual(a, b interface{}) bool {
	am, aok := a.(map[string]interface{})
	bm, bok := b.(map[string]interface{})
	if aok && bok {
		if len(am) != len(bm) {
			return false
		}
		for k, av := range am {
			bv, ok := bm[k]
			if !ok || !deepEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// dispatchLoop is the single goroutine that serializes observer calls,
// recovering any panic so a misbehaving observer cannot take down reload
// processing or its peers.
func (s *Store) dispatchLoop() {
	for {
		select {
		case ev, ok := <-s.diffCh:
			if !ok {
				return
			}
			s.notify(ev)
		case <-s.done:
			return
		}
	}
}

func (s *Store) notify(ev diffEvent) {
	s.mu.RLock()
	observers := make([]Observer, len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	for _, obs := range observers {
		s.safeCall(obs, ev)
	}
}

func (s *Store) safeCall(obs Observer, ev diffEvent) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("personaconfig: observer panic", map[string]interface{}{"persona_id": ev.personaID, "recovered": fmt.Sprintf("%v", r)})
		}
	}()
	obs(ev.personaID, ev.newConfig, ev.eventType)
}

// Close stops the watcher and dispatch goroutines.
func (s *Store) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.done != nil {
			close(s.done)
		}
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	return err
}
