package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/khanglvm/profile-qa/internal/learning"
	"github.com/khanglvm/profile-qa/internal/logging"
	"github.com/khanglvm/profile-qa/internal/storage"
)

func seedOutcomes(t *testing.T) []storage.OutcomeRecord {
	t.Helper()
	store := storage.NewStorage(filepath.Join(t.TempDir(), "history.db"), logging.Nop())
	if err := store.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	defer store.Close()

	now := time.Now()
	seed := []storage.OutcomeRecord{
		{SessionID: "s1", QueryHash: storage.HashQuery("react"), Engine: "lexical", Style: "hr", Confidence: 0.8, LatencyMs: 4, Action: "none", Timestamp: now.Add(-2 * time.Minute)},
		{SessionID: "s1", QueryHash: storage.HashQuery("vue"), Engine: "semantic", Style: "hr", Confidence: 0.3, LatencyMs: 9, FallbackUsed: true, Action: "rephrase", Timestamp: now.Add(-time.Minute)},
		{SessionID: "s2", QueryHash: storage.HashQuery("go"), Engine: "lexical", Style: "developer", Confidence: 0.6, LatencyMs: 6, Action: "none", Timestamp: now},
	}
	for _, r := range seed {
		if err := store.RecordOutcome(r); err != nil {
			t.Fatalf("RecordOutcome() failed: %v", err)
		}
	}

	records, err := store.Outcomes(time.Time{}, 0)
	if err != nil {
		t.Fatalf("Outcomes() failed: %v", err)
	}
	if len(records) != len(seed) {
		t.Fatalf("Expected %d records, got %d", len(seed), len(records))
	}
	return records
}

func TestNewHistoryCmd(t *testing.T) {
	cmd := NewHistoryCmd()

	if cmd.Use != "history" {
		t.Errorf("Expected Use='history', got %q", cmd.Use)
	}

	want := map[string]bool{"stats": false, "export": false, "clear": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("Subcommand %q not registered", name)
		}
	}
}

func TestWriteOutcomesJSONL(t *testing.T) {
	records := seedOutcomes(t)

	var buf bytes.Buffer
	if err := writeOutcomes(&buf, records, "jsonl"); err != nil {
		t.Fatalf("writeOutcomes() failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 lines, got %d", len(lines))
	}

	var first storage.OutcomeRecord
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("Line is not JSON: %v", err)
	}
	if first.QueryHash != storage.HashQuery("go") {
		t.Errorf("Expected newest outcome first, got engine=%s", first.Engine)
	}
	if strings.Contains(buf.String(), `"react"`) {
		t.Error("Export leaked a raw query")
	}
}

func TestWriteOutcomesJSON(t *testing.T) {
	records := seedOutcomes(t)

	var buf bytes.Buffer
	if err := writeOutcomes(&buf, records, "json"); err != nil {
		t.Fatalf("writeOutcomes() failed: %v", err)
	}

	var decoded []storage.OutcomeRecord
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not a JSON array: %v", err)
	}
	if len(decoded) != 3 {
		t.Errorf("Expected 3 outcomes, got %d", len(decoded))
	}

	buf.Reset()
	if err := writeOutcomes(&buf, nil, "json"); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("Expected empty array, got %q", buf.String())
	}
}

func TestWriteStats(t *testing.T) {
	summaries := learning.Summarize(seedOutcomes(t))

	var buf bytes.Buffer
	if err := writeStats(&buf, summaries, 7, false); err != nil {
		t.Fatalf("writeStats() failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"last 7 days", "lexical", "semantic", "Preferred engine: lexical"} {
		if !strings.Contains(out, want) {
			t.Errorf("Output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := writeStats(&buf, summaries, 0, true); err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Engines   []learning.EngineSummary `json:"engines"`
		Preferred string                   `json:"preferred"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("Output is not JSON: %v", err)
	}
	if decoded.Preferred != "lexical" || len(decoded.Engines) != 2 {
		t.Errorf("Unexpected stats: %+v", decoded)
	}
}

func TestWriteStatsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := writeStats(&buf, nil, 7, false); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No outcomes recorded yet.") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestRunHistoryClear(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "history.db")

	t.Run("cancelled", func(t *testing.T) {
		if err := os.WriteFile(dbPath, []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		var out bytes.Buffer
		if err := runHistoryClear(strings.NewReader("n\n"), &out, dbPath, false); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "Cancelled") {
			t.Errorf("Unexpected output: %s", out.String())
		}
		if _, err := os.Stat(dbPath); err != nil {
			t.Error("Database removed despite cancel")
		}
	})

	t.Run("confirmed", func(t *testing.T) {
		if err := os.WriteFile(dbPath+"-wal", []byte("x"), 0o600); err != nil {
			t.Fatal(err)
		}
		var out bytes.Buffer
		if err := runHistoryClear(strings.NewReader("y\n"), &out, dbPath, false); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "Outcome history cleared") {
			t.Errorf("Unexpected output: %s", out.String())
		}
		for _, p := range []string{dbPath, dbPath + "-wal"} {
			if _, err := os.Stat(p); !os.IsNotExist(err) {
				t.Errorf("%s still exists", p)
			}
		}
	})

	t.Run("nothing to clear", func(t *testing.T) {
		var out bytes.Buffer
		if err := runHistoryClear(nil, &out, dbPath, true); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), "No recorded outcomes found") {
			t.Errorf("Unexpected output: %s", out.String())
		}
	})
}

func TestSinceDays(t *testing.T) {
	if !sinceDays(0).IsZero() {
		t.Error("0 days should mean no lower bound")
	}
	got := sinceDays(7)
	want := time.Now().Add(-7 * 24 * time.Hour)
	if d := want.Sub(got); d < 0 || d > time.Second {
		t.Errorf("sinceDays(7) = %v, want about %v", got, want)
	}
}
