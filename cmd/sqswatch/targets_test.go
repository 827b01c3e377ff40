package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/example/sqswatch/internal/watchfile"
)

func TestTargetFlags_SingleQueue(t *testing.T) {
	tf := &targetFlags{queue: "orders-queue", email: "ops@example.com"}
	targets, region, err := tf.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if region != "" {
		t.Fatalf("region=%q", region)
	}
	want := []watchfile.Target{{Queue: "orders-queue", Email: "ops@example.com"}}
	if !reflect.DeepEqual(targets, want) {
		t.Fatalf("targets=%v", targets)
	}
}

func TestTargetFlags_FlagPairsRequired(t *testing.T) {
	if _, _, err := (&targetFlags{queue: "q"}).resolve(); err == nil || !strings.Contains(err.Error(), "--queue requires --email") {
		t.Fatalf("err=%v", err)
	}
	if _, _, err := (&targetFlags{email: "a@b.example"}).resolve(); err == nil || !strings.Contains(err.Error(), "--email requires --queue") {
		t.Fatalf("err=%v", err)
	}
	tf := &targetFlags{queue: "q", email: "a@b.example", watchPath: "sqswatch.yaml"}
	if _, _, err := tf.resolve(); err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("err=%v", err)
	}
}

func TestTargetFlags_WatchFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sqswatch.yaml")
	contents := `
region: eu-central-1
defaults:
  email: ops@example.com
queues:
  - name: orders-queue
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	tf := &targetFlags{watchPath: path}
	targets, region, err := tf.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if region != "eu-central-1" || len(targets) != 1 || targets[0].Queue != "orders-queue" {
		t.Fatalf("targets=%v region=%q", targets, region)
	}
}

func TestPickRegion(t *testing.T) {
	flag := "us-east-1"
	if got := pickRegion(&flag, "eu-central-1"); got != "us-east-1" {
		t.Fatalf("got=%q", got)
	}
	empty := ""
	if got := pickRegion(&empty, "eu-central-1"); got != "eu-central-1" {
		t.Fatalf("got=%q", got)
	}
	if got := pickRegion(nil, ""); got != "" {
		t.Fatalf("got=%q", got)
	}
}
