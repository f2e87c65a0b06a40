// Package watch reports changes to representation files in a directory.
package watch

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Op is a bit set of change operations.
type Op uint32

const (
	OpCreate Op = 1 << iota
	OpWrite
	OpRemove
	OpRename
	OpChmod
)

func (o Op) String() string {
	var parts []string
	for _, f := range []struct {
		op   Op
		name string
	}{{OpCreate, "create"}, {OpWrite, "write"}, {OpRemove, "remove"}, {OpRename, "rename"}, {OpChmod, "chmod"}} {
		if o&f.op != 0 {
			parts = append(parts, f.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "|")
}

// Event describes a change to one file.
type Event struct {
	Path string
	Op   Op
	Time time.Time
}

// Filter selects the paths a Watcher reports.
type Filter func(path string) bool

// Extensions accepts paths whose extension is one of exts, compared without
// case.
func Extensions(exts ...string) Filter {
	return func(path string) bool {
		ext := filepath.Ext(path)
		for _, e := range exts {
			if strings.EqualFold(ext, e) {
				return true
			}
		}
		return false
	}
}

// Representations accepts the file types the codec reads.
var Representations = Extensions(".json", ".yaml", ".yml")

// Watcher forwards fsnotify events for matching files.
type Watcher struct {
	w      *fsnotify.Watcher
	filter Filter
	evC    chan Event
	erC    chan error
	done   chan struct{}
	once   sync.Once
}

// New creates a watcher. A nil filter reports every path.
func New(filter Filter) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	fw := &Watcher{
		w:      w,
		filter: filter,
		evC:    make(chan Event, 128),
		erC:    make(chan error, 1),
		done:   make(chan struct{}),
	}
	go fw.loop()
	return fw, nil
}

func translate(in fsnotify.Op) Op {
	var op Op
	if in.Has(fsnotify.Create) {
		op |= OpCreate
	}
	if in.Has(fsnotify.Write) {
		op |= OpWrite
	}
	if in.Has(fsnotify.Remove) {
		op |= OpRemove
	}
	if in.Has(fsnotify.Rename) {
		op |= OpRename
	}
	if in.Has(fsnotify.Chmod) {
		op |= OpChmod
	}
	return op
}

func (fw *Watcher) loop() {
	defer close(fw.evC)
	for {
		select {
		case ev, ok := <-fw.w.Events:
			if !ok {
				return
			}
			if fw.filter != nil && !fw.filter(ev.Name) {
				continue
			}
			select {
			case fw.evC <- Event{Path: ev.Name, Op: translate(ev.Op), Time: time.Now()}:
			case <-fw.done:
				return
			}
		case err, ok := <-fw.w.Errors:
			if !ok {
				return
			}
			// keep the newest error only
			select {
			case fw.erC <- err:
			default:
			}
		case <-fw.done:
			return
		}
	}
}

// Events is closed after Close.
func (fw *Watcher) Events() <-chan Event { return fw.evC }

// Errors reports watcher failures. Errors are dropped while the channel is full.
func (fw *Watcher) Errors() <-chan error { return fw.erC }

// Add starts watching a file or directory. Directories are not recursive.
func (fw *Watcher) Add(name string) error { return fw.w.Add(name) }

// Remove stops watching name.
func (fw *Watcher) Remove(name string) error { return fw.w.Remove(name) }

// Close stops the watcher. It is safe to call more than once.
func (fw *Watcher) Close() error {
	var err error
	fw.once.Do(func() {
		close(fw.done)
		err = fw.w.Close()
	})
	return err
}
