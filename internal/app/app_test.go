package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"intake.app/console/internal/config"
)

func TestNewWiresServices(t *testing.T) {
	dir := t.TempDir()
	flowFile := filepath.Join(dir, "flow.yaml")
	if err := os.WriteFile(flowFile, []byte("seed:\n  text: What do you need?\ndepartments: [Design, QA]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	a, err := New(context.Background(), config.Config{
		BackendURL:    "http://localhost:0",
		DatabaseURL:   filepath.Join(dir, "console.db"),
		StorageBucket: "transcripts",
		FlowFile:      flowFile,
		AutoSaveDelay: 1000,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.Flow.Seed.Text != "What do you need?" || len(a.Flow.Departments) != 2 {
		t.Fatalf("flow not loaded: %+v", a.Flow)
	}
	if a.llm != nil {
		t.Fatalf("no API key means no title generator")
	}
	conv := a.Conversations.Start(context.Background(), "")
	if v := conv.View(); v.Messages[0].Text != "What do you need?" {
		t.Fatalf("seed from flow file not used: %+v", v.Messages[0])
	}
}

func TestNewBadFlowFile(t *testing.T) {
	_, err := New(context.Background(), config.Config{DatabaseURL: ":memory:", FlowFile: filepath.Join(t.TempDir(), "missing.yaml")})
	if err == nil {
		t.Fatalf("expected error for a missing flow file")
	}
}
