package notify

import (
	"bytes"
	"strings"
	"testing"

	"github.com/R3E-Network/menu_layer/pkg/logger"
)

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	if _, ok := r.Last(); ok {
		t.Error("Last() on empty recorder should report false")
	}

	r.Notify(Notification{Title: "Cart cleared"})
	r.Notify(Notification{Level: LevelError, Title: "Login failed", Message: "Invalid email or password."})
	r.Navigate("/login")

	if got := len(r.Notifications()); got != 2 {
		t.Fatalf("len(Notifications()) = %d, want 2", got)
	}
	last, _ := r.Last()
	if last.Title != "Login failed" || last.Level != LevelError {
		t.Errorf("Last() = %+v", last)
	}
	if paths := r.Paths(); len(paths) != 1 || paths[0] != "/login" {
		t.Errorf("Paths() = %v", paths)
	}

	r.Reset()
	if len(r.Notifications()) != 0 || len(r.Paths()) != 0 {
		t.Error("Reset() should clear everything")
	}
}

func TestLogNotifierLevels(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(logger.LoggingConfig{Level: "info", Format: "json"})
	log.SetOutput(&buf)

	n := LogNotifier{Log: log}
	n.Notify(Notification{Title: "Added Soup to cart"})
	n.Notify(Notification{Level: LevelError, Title: "Request failed"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d log lines, want 2", len(lines))
	}
	if !strings.Contains(lines[0], `"level":"info"`) || !strings.Contains(lines[1], `"level":"warning"`) {
		t.Errorf("unexpected levels: %v", lines)
	}
}
