package instance

import "testing"

func TestIDPrefersEnvironment(t *testing.T) {
	t.Setenv(EnvWorkerID, " worker-7 ")
	if got := ID("worker"); got != "worker-7" {
		t.Fatalf("expected worker-7, got %q", got)
	}
}

func TestIDFallsBack(t *testing.T) {
	t.Setenv(EnvWorkerID, "")
	if got := ID("worker"); got == "" {
		t.Fatal("expected non-empty id")
	}
}

func TestIDUsesPodName(t *testing.T) {
	t.Setenv(EnvWorkerID, "")
	t.Setenv(envPodName, "sellerhub-worker-5f7c")
	if got := ID("worker"); got != "sellerhub-worker-5f7c" {
		t.Fatalf("expected pod name, got %q", got)
	}
}
