package process

import (
	"bytes"
	"testing"
	"time"
)

func TestProcessManager_StartStop(t *testing.T) {
	pm := New("sleep")

	// Start a simple long-running command
	err := pm.Start(Spec{Path: "/bin/sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if pm.Pid() == 0 {
		t.Fatal("Process should be started")
	}

	start := time.Now()
	if err := pm.Stop(2 * time.Second); err != nil {
		t.Errorf("Stop failed: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("sleep should exit on SIGTERM without waiting for the grace period")
	}

	select {
	case <-pm.Exited():
	default:
		t.Error("Exited should be closed after Stop")
	}
}

func TestProcessManager_StopEscalates(t *testing.T) {
	pm := New("stubborn")
	err := pm.Start(Spec{
		Path:       "/bin/sh",
		Args:       []string{"-c", "trap '' TERM; sleep 10"},
		NewSession: true,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	// Let the shell install its trap.
	time.Sleep(200 * time.Millisecond)

	start := time.Now()
	if err := pm.Stop(300 * time.Millisecond); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 300*time.Millisecond {
		t.Errorf("Stop returned after %v, before the grace period", elapsed)
	}
}

func TestProcessManager_Kill(t *testing.T) {
	pm := New("sleep")
	err := pm.Start(Spec{Path: "/bin/sleep", Args: []string{"10"}})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err = pm.Kill()
	if err != nil {
		t.Errorf("Kill failed: %v", err)
	}

	err = pm.Wait()
	if err == nil {
		t.Errorf("Wait should have returned error for killed process")
	}
}

func TestProcessManager_EmptyCommand(t *testing.T) {
	pm := New("empty")
	if err := pm.Start(Spec{}); err == nil {
		t.Error("Start with an empty command should fail")
	}
	if err := pm.Stop(time.Second); err != nil {
		t.Errorf("Stop before Start should be a no-op, got %v", err)
	}
	if err := pm.Wait(); err != nil {
		t.Errorf("Wait before Start should be a no-op, got %v", err)
	}
}

func TestProcessManager_StartTwice(t *testing.T) {
	pm := New("true")
	if err := pm.Start(Spec{Path: "/bin/true"}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pm.Start(Spec{Path: "/bin/true"}); err == nil {
		t.Error("second Start should fail")
	}
	pm.Wait()
}

func TestProcessManager_EnvAndOutput(t *testing.T) {
	var out bytes.Buffer
	pm := New("env")
	err := pm.Start(Spec{
		Path:   "/bin/sh",
		Args:   []string{"-c", "echo $VIGIL_TEST"},
		Env:    []string{"VIGIL_TEST=hello"},
		Stdout: &out,
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pm.Wait(); err != nil {
		t.Fatalf("Wait failed: %v", err)
	}
	if got := out.String(); got != "hello\n" {
		t.Errorf("Expected hello, got %q", got)
	}

	// Stop after exit is harmless.
	if err := pm.Stop(time.Second); err != nil {
		t.Errorf("Stop after exit returned %v", err)
	}
}
