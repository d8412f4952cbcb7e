// services/hal/internal/echo/machine_test.go

package echo

import (
	"testing"
	"time"
)

func TestZeroMachineIsReady(t *testing.T) {
	var m Machine
	if got := m.State(); got != Ready {
		t.Fatalf("state=%v want ready", got)
	}
}

func TestEdgesOutsideACycleAreNoops(t *testing.T) {
	var m Machine
	m.OnRisingEdge(5 * time.Microsecond)
	if m.OnFallingEdge(9 * time.Microsecond) {
		t.Fatal("falling edge completed a cycle that was never armed")
	}
	if got := m.State(); got != Ready {
		t.Fatalf("state=%v want ready", got)
	}
	if got := m.Spurious(); got != 2 {
		t.Fatalf("spurious=%d want 2", got)
	}
}

func TestEdgesAfterCompleteAreNoops(t *testing.T) {
	var m Machine
	gen, _ := m.Arm(0)
	m.OnRisingEdge(10)
	if !m.OnFallingEdge(20) {
		t.Fatal("cycle did not complete")
	}
	before := m.Spurious()

	m.OnRisingEdge(30)
	if m.OnFallingEdge(40) {
		t.Fatal("falling edge completed an already complete cycle")
	}
	m.OnRisingEdge(50)

	if g, s := m.Load(); s != Complete || g != gen {
		t.Fatalf("gen=%d state=%v want %d complete", g, s, gen)
	}
	start, end, ok := m.Timestamps(gen)
	if !ok || start != 10 || end != 20 {
		t.Fatalf("timestamps=(%v,%v,%v) want (10ns,20ns,true)", start, end, ok)
	}
	if got := m.Spurious() - before; got != 3 {
		t.Fatalf("spurious grew by %d want 3", got)
	}
}

func TestCycleMeasuresEdgeDifference(t *testing.T) {
	var m Machine
	gen, ok := m.Arm(100 * time.Microsecond)
	if !ok || gen != 1 {
		t.Fatalf("Arm=(%d,%v)", gen, ok)
	}
	if got := m.State(); got != WaitingEchoStart {
		t.Fatalf("state=%v", got)
	}

	m.OnRisingEdge(400 * time.Microsecond)
	if got := m.State(); got != WaitingEchoStop {
		t.Fatalf("state=%v", got)
	}
	if !m.OnFallingEdge(1400 * time.Microsecond) {
		t.Fatal("falling edge did not complete the cycle")
	}
	if got := m.State(); got != Complete {
		t.Fatalf("state=%v", got)
	}

	start, end, ok := m.Timestamps(gen)
	if !ok {
		t.Fatal("Timestamps not ok")
	}
	if start != 400*time.Microsecond || end != 1400*time.Microsecond {
		t.Fatalf("start=%v end=%v", start, end)
	}
	if end-start != time.Millisecond {
		t.Fatalf("elapsed=%v", end-start)
	}
}

func TestFallingBeforeRisingIsIgnored(t *testing.T) {
	var m Machine
	gen, _ := m.Arm(0)
	if m.OnFallingEdge(10 * time.Microsecond) {
		t.Fatal("falling edge accepted in waiting_echo_start")
	}
	if got := m.State(); got != WaitingEchoStart {
		t.Fatalf("state=%v", got)
	}
	m.OnRisingEdge(20 * time.Microsecond)
	m.OnFallingEdge(70 * time.Microsecond)
	start, end, ok := m.Timestamps(gen)
	if !ok || end-start != 50*time.Microsecond {
		t.Fatalf("got (%v,%v,%v)", start, end, ok)
	}
}

func TestSecondRisingEdgeDoesNotMoveStart(t *testing.T) {
	var m Machine
	gen, _ := m.Arm(0)
	m.OnRisingEdge(10 * time.Microsecond)
	m.OnRisingEdge(30 * time.Microsecond)
	m.OnFallingEdge(110 * time.Microsecond)
	start, end, _ := m.Timestamps(gen)
	if start != 10*time.Microsecond || end != 110*time.Microsecond {
		t.Fatalf("start=%v end=%v", start, end)
	}
	if m.Spurious() != 1 {
		t.Fatalf("spurious=%d want 1", m.Spurious())
	}
}

func TestArmFailsWhileInFlight(t *testing.T) {
	var m Machine
	if _, ok := m.Arm(0); !ok {
		t.Fatal("first Arm failed")
	}
	if _, ok := m.Arm(1); ok {
		t.Fatal("Arm succeeded in waiting_echo_start")
	}
	m.OnRisingEdge(2)
	if _, ok := m.Arm(3); ok {
		t.Fatal("Arm succeeded in waiting_echo_stop")
	}
}

func TestResetIsIdempotent(t *testing.T) {
	var m Machine
	gen, _ := m.Arm(0)
	m.OnRisingEdge(1)
	m.Reset()
	m.Reset()
	g, s := m.Load()
	if s != Ready || g != gen {
		t.Fatalf("after reset gen=%d state=%v", g, s)
	}
	if _, _, ok := m.Timestamps(gen); ok {
		t.Fatal("timestamps exposed after reset")
	}
	if next, ok := m.Arm(5); !ok || next != gen+1 {
		t.Fatalf("re-arm=(%d,%v)", next, ok)
	}
}

func TestStaleEdgeCannotAdvanceNextCycle(t *testing.T) {
	var m Machine

	// Cycle 1 times out after its rising edge.
	g1, _ := m.Arm(0)
	m.OnRisingEdge(10 * time.Microsecond)
	m.Reset()

	// Cycle 2 is armed before the late falling edge of cycle 1 arrives.
	g2, _ := m.Arm(time.Millisecond)
	if m.OnFallingEdge(time.Millisecond + 5*time.Microsecond) {
		t.Fatal("stale falling edge completed cycle 2")
	}
	if got := m.State(); got != WaitingEchoStart {
		t.Fatalf("state=%v", got)
	}
	if _, _, ok := m.Timestamps(g1); ok {
		t.Fatal("Timestamps of an abandoned cycle reported ok")
	}

	m.OnRisingEdge(time.Millisecond + 100*time.Microsecond)
	m.OnFallingEdge(time.Millisecond + 300*time.Microsecond)
	start, end, ok := m.Timestamps(g2)
	if !ok || end-start != 200*time.Microsecond {
		t.Fatalf("cycle 2 = (%v,%v,%v)", start, end, ok)
	}
}

func TestEdgeCapturedBeforeArmIsRejected(t *testing.T) {
	var m Machine
	m.Arm(time.Millisecond)
	m.OnRisingEdge(time.Millisecond - time.Microsecond)
	if got := m.State(); got != WaitingEchoStart {
		t.Fatalf("state=%v", got)
	}
	if m.Spurious() != 1 {
		t.Fatalf("spurious=%d", m.Spurious())
	}
}

func TestForeignTagIsFenced(t *testing.T) {
	var m Machine
	gen, _ := m.Arm(0)
	m.OnRisingEdge(10)
	m.OnFallingEdge(20)
	// A slot carrying another generation's tag must not be trusted.
	m.start.Store(stamp(gen+1, 10))
	if _, _, ok := m.Timestamps(gen); ok {
		t.Fatal("Timestamps accepted a foreign tag")
	}
	if _, _, ok := m.Timestamps(gen + 1); ok {
		t.Fatal("Timestamps accepted the wrong generation")
	}
}
