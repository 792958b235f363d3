package usecase

import (
	"context"
	"testing"

	"TradePulse/internal/repository/memstore"
)

func TestAdminStateDefaults(t *testing.T) {
	ctx := context.Background()
	a := NewAdminState(memstore.NewStateStore(), true)

	if !a.TradeEnabled(ctx) {
		t.Fatalf("unset trade_enabled should fall back to the configured default")
	}
	if !a.NewEntryAllowed(ctx) {
		t.Fatalf("new entries should default to allowed")
	}
	if a.EmergencyStop(ctx) {
		t.Fatalf("emergency stop should default to off")
	}
	if got := a.Mode(ctx); got != "PAPER" {
		t.Fatalf("default mode: got %q want PAPER", got)
	}

	// A paused default is honored too.
	paused := NewAdminState(memstore.NewStateStore(), false)
	if paused.TradeEnabled(ctx) {
		t.Fatalf("trade_enabled default false should survive an empty store")
	}
}

func TestAdminStateKillSwitch(t *testing.T) {
	ctx := context.Background()
	a := NewAdminState(memstore.NewStateStore(), true)

	if err := a.SetTradeEnabled(ctx, false, "maintenance"); err != nil {
		t.Fatalf("SetTradeEnabled: %v", err)
	}
	if a.TradeEnabled(ctx) {
		t.Fatalf("kill switch should pause trading")
	}

	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.RunState != "PAUSED" {
		t.Fatalf("run state: got %q want PAUSED", snap.RunState)
	}
	if snap.LastControlAction != "Run=PAUSED (maintenance)" {
		t.Fatalf("last control action: got %q", snap.LastControlAction)
	}
	if snap.OverrideReason != "maintenance" {
		t.Fatalf("override reason: got %q", snap.OverrideReason)
	}

	if err := a.SetTradeEnabled(ctx, true, ""); err != nil {
		t.Fatalf("SetTradeEnabled: %v", err)
	}
	snap, err = a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.RunState != "RUNNING" {
		t.Fatalf("run state after resume: got %q want RUNNING", snap.RunState)
	}
	// The reason sticks until the next reasoned action overwrites it.
	if snap.LastControlAction != "Run=RUNNING" {
		t.Fatalf("last control action after resume: got %q", snap.LastControlAction)
	}
}

func TestAdminStateEmergencyWinsOverNewEntry(t *testing.T) {
	ctx := context.Background()
	a := NewAdminState(memstore.NewStateStore(), true)

	if err := a.SetNewEntry(ctx, true, ""); err != nil {
		t.Fatalf("SetNewEntry: %v", err)
	}
	if err := a.SetEmergency(ctx, true, "flash crash"); err != nil {
		t.Fatalf("SetEmergency: %v", err)
	}
	if a.NewEntryAllowed(ctx) {
		t.Fatalf("emergency stop must override the new-entry toggle")
	}

	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if !snap.EmergencyStop || !snap.NewEntryEnabled {
		t.Fatalf("snapshot should report both raw gates: %+v", snap)
	}

	if err := a.SetEmergency(ctx, false, ""); err != nil {
		t.Fatalf("SetEmergency: %v", err)
	}
	if !a.NewEntryAllowed(ctx) {
		t.Fatalf("clearing the emergency should reopen entries")
	}
}

func TestAdminStateMode(t *testing.T) {
	ctx := context.Background()
	a := NewAdminState(memstore.NewStateStore(), true)

	if err := a.SetMode(ctx, "LIVE", "go live"); err != nil {
		t.Fatalf("SetMode: %v", err)
	}
	if got := a.Mode(ctx); got != "LIVE" {
		t.Fatalf("mode: got %q want LIVE", got)
	}
	snap, err := a.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.LastControlAction != "Mode=LIVE (go live)" {
		t.Fatalf("last control action: got %q", snap.LastControlAction)
	}
}
