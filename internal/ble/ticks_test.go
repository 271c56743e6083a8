package ble

import "testing"

func TestDiffAcrossWraparound(t *testing.T) {
	var before Ticks = 0xFFFFFFF0
	after := before.Add(0x20) // rolls over to 0x10

	if got := Diff(after, before); got != 0x20 {
		t.Errorf("Diff(after, before) = %d, want 32", got)
	}
	if got := Diff(before, after); got != -0x20 {
		t.Errorf("Diff(before, after) = %d, want -32", got)
	}
}

func TestReachedAcrossWraparound(t *testing.T) {
	var now Ticks = 0xFFFFFFFE
	deadline := now.Add(10)

	if reached(now, deadline) {
		t.Error("deadline past the rollover reported reached early")
	}
	if !reached(now.Add(10), deadline) {
		t.Error("deadline not reached at its exact tick")
	}
	if !reached(now.Add(50), deadline) {
		t.Error("deadline not reached after its tick")
	}
}
