package engine_test

import (
	"context"
	"strings"
	"testing"

	"github.com/dorkodu/pharpub/internal/engine"
	"github.com/dorkodu/pharpub/pkg/mocks"
)

func TestExecEffect(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		wantOutput string
		wantErr    bool
	}{
		{name: "simple", command: "echo hello", wantOutput: "hello\n"},
		{name: "compound", command: "echo one && echo two", wantOutput: "one\ntwo\n"},
		{name: "environment", command: "printenv PHARPUB_JOB", wantOutput: "tool.phar\n"},
		{name: "failure", command: "exit 3", wantErr: true},
		{name: "missing binary", command: "pharpub-no-such-binary", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := mocks.NewMockLogger()
			e := engine.NewExecEffect(context.Background(), tt.command, t.TempDir(), []string{"PHARPUB_JOB=tool.phar"}, log)
			e.Run()

			if tt.wantErr {
				if e.Err() == nil {
					t.Fatal("expected an error")
				}
				if !log.HasMessage("error", "Hook command failed") {
					t.Error("expected failure to be logged")
				}
				return
			}
			if e.Err() != nil {
				t.Fatalf("unexpected error: %v", e.Err())
			}
			if e.Output() != tt.wantOutput {
				t.Errorf("expected output %q, got %q", tt.wantOutput, e.Output())
			}
		})
	}
}

func TestExecEffect_RunsInDirectory(t *testing.T) {
	dir := t.TempDir()
	e := engine.NewExecEffect(context.Background(), "pwd", dir, nil, nil)
	e.Run()

	if e.Err() != nil {
		t.Fatal(e.Err())
	}
	if !strings.HasSuffix(strings.TrimSpace(e.Output()), strings.TrimPrefix(dir, "/private")) {
		t.Errorf("expected to run in %s, got %s", dir, e.Output())
	}
}
