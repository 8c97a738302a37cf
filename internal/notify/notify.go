// Package notify carries user-facing toasts and navigation requests out of the
// managers. Surfaces decide how to render them.
package notify

import (
	"sync"

	"github.com/R3E-Network/menu_layer/pkg/logger"
)

// Level is the toast variant.
type Level string

const (
	LevelInfo  Level = "info"
	LevelError Level = "destructive"
)

// Notification is one toast.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// Notifier receives toasts. Implementations must not block.
type Notifier interface {
	Notify(Notification)
}

// Navigator receives route changes, e.g. "/login" after logout.
type Navigator interface {
	Navigate(path string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// Discard drops everything.
var Discard = discard{}

type discard struct{}

func (discard) Notify(Notification) {}
func (discard) Navigate(string)     {}

// LogNotifier writes toasts to a logger.
type LogNotifier struct {
	Log *logger.Logger
}

func (l LogNotifier) Notify(n Notification) {
	entry := l.Log.WithFields(map[string]interface{}{
		"title":   n.Title,
		"message": n.Message,
	})
	if n.Level == LevelError {
		entry.Warn("notification")
		return
	}
	entry.Info("notification")
}

// Recorder keeps every toast and navigation in order. The HTTP surface uses
// one per request to return toasts alongside the response.
type Recorder struct {
	mu            sync.Mutex
	notifications []Notification
	paths         []string
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notifications = append(r.notifications, n)
	r.mu.Unlock()
}

func (r *Recorder) Navigate(path string) {
	r.mu.Lock()
	r.paths = append(r.paths, path)
	r.mu.Unlock()
}

// Notifications returns a copy of the recorded toasts.
func (r *Recorder) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.notifications...)
}

// Last returns the most recent toast.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notifications) == 0 {
		return Notification{}, false
	}
	return r.notifications[len(r.notifications)-1], true
}

// Paths returns a copy of the recorded navigations.
func (r *Recorder) Paths() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notifications = nil
	r.paths = nil
	r.mu.Unlock()
}
