package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(Options{
		Level:    LevelDebug,
		Format:   FormatText,
		FilePath: path,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Debug("debug line")
	log.Info("info line with arg %d", 42)
	log.Warn("warn line")
	log.Error("error line")

	if err := log.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	out := string(raw)
	for _, want := range []string{"debug line", "info line with arg 42", "warn line", "error line"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(Options{Level: LevelWarn, FilePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Debug("hidden debug")
	log.Info("hidden info")
	log.Warn("visible warn")
	log.Close()

	raw, _ := os.ReadFile(path)
	out := string(raw)
	if strings.Contains(out, "hidden") {
		t.Errorf("below-threshold lines were written: %s", out)
	}
	if !strings.Contains(out, "visible warn") {
		t.Errorf("warn line missing: %s", out)
	}
}

func TestSetLevelConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(Options{Level: LevelWarn, FilePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.Info("hidden before")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			log.Debug("concurrent line %d", i)
		}
	}()
	go func() {
		defer wg.Done()
		log.SetLevel(LevelDebug)
	}()
	wg.Wait()

	log.Info("visible after")
	log.Close()

	raw, _ := os.ReadFile(path)
	out := string(raw)
	if strings.Contains(out, "hidden before") {
		t.Errorf("line below the initial level was written: %s", out)
	}
	if !strings.Contains(out, "visible after") {
		t.Errorf("line above the lowered level missing: %s", out)
	}
}

func TestJSONFormatWithFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")

	log, err := New(Options{Level: LevelInfo, Format: FormatJSON, FilePath: path})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	log.WithField("code", "600000").WithFields(Fields{"qty": 100}).Info("order filled")
	log.Close()

	raw, _ := os.ReadFile(path)
	line := strings.TrimSpace(string(raw))
	var e entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		t.Fatalf("log line is not valid JSON: %v", err)
	}
	if e.Message != "order filled" {
		t.Errorf("unexpected message %q", e.Message)
	}
	if e.Fields["code"] != "600000" {
		t.Errorf("expected code field, got %v", e.Fields)
	}
}

func TestChildLoggerDoesNotMutateParent(t *testing.T) {
	log, err := New(Options{Level: LevelInfo, Console: true})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer log.Close()

	_ = log.WithField("k", "v")
	if len(log.fields) != 0 {
		t.Errorf("parent fields mutated: %v", log.fields)
	}
}

func TestParseLevel(t *testing.T) {
	if got := ParseLevel("debug"); got != LevelDebug {
		t.Errorf("ParseLevel(debug) = %v", got)
	}
	if got := ParseLevel("nonsense"); got != LevelInfo {
		t.Errorf("ParseLevel(nonsense) = %v, want info", got)
	}
}
