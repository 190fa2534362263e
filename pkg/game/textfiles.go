package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Built-in fallbacks used when no text directory is configured or a
// file is missing.
const (
	defaultWelcome = "Welcome to GAIA.\r\nType \"connect <user> <password>\" to log in, or WHO to see who is on."
	defaultMotd    = "No message of the day has been set."
	defaultQuit    = "Goodbye."
)

// TextFiles holds the server's banner texts. Files in the text
// directory are reloaded when they change on disk.
type TextFiles struct {
	mu      sync.RWMutex
	dir     string
	welcome string
	motd    string
	quit    string

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewTextFiles returns a TextFiles with the built-in defaults.
func NewTextFiles() *TextFiles {
	return &TextFiles{
		welcome: defaultWelcome,
		motd:    defaultMotd,
		quit:    defaultQuit,
	}
}

// Load reads welcome.txt, motd.txt and quit.txt from dir. Missing
// files keep their current text.
func (t *TextFiles) Load(dir string) error {
	if dir == "" {
		return nil
	}
	t.mu.Lock()
	t.dir = dir
	t.mu.Unlock()

	for _, name := range []string{"welcome.txt", "motd.txt", "quit.txt"} {
		if err := t.loadFile(name); err != nil {
			return err
		}
	}
	return nil
}

func (t *TextFiles) loadFile(name string) error {
	t.mu.RLock()
	dir := t.dir
	t.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("game: read text file %s: %w", name, err)
	}
	text := strings.TrimRight(string(data), "\r\n")

	t.mu.Lock()
	switch name {
	case "welcome.txt":
		t.welcome = text
	case "motd.txt":
		t.motd = text
	case "quit.txt":
		t.quit = text
	}
	t.mu.Unlock()
	return nil
}

// Watch starts reloading text files when they change. Logf receives
// reload notices and watcher errors.
func (t *TextFiles) Watch(logf func(format string, args ...any)) error {
	t.mu.RLock()
	dir := t.dir
	t.mu.RUnlock()
	if dir == "" {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("game: text watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("game: watch %s: %w", dir, err)
	}
	t.watcher = w
	t.done = make(chan struct{})

	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				name := filepath.Base(ev.Name)
				switch name {
				case "welcome.txt", "motd.txt", "quit.txt":
					if err := t.loadFile(name); err != nil {
						logf("textfiles: reload %s: %v", name, err)
					} else {
						logf("textfiles: reloaded %s", name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logf("textfiles: watcher: %v", err)
			case <-t.done:
				return
			}
		}
	}()
	return nil
}

// Close stops the watcher if one is running.
func (t *TextFiles) Close() {
	if t.watcher != nil {
		close(t.done)
		t.watcher.Close()
		t.watcher = nil
	}
}

// Welcome is the pre-login banner.
func (t *TextFiles) Welcome() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.welcome
}

// Motd is shown after a successful login.
func (t *TextFiles) Motd() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.motd
}

// Quit is shown when a session disconnects on purpose.
func (t *TextFiles) Quit() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.quit
}
