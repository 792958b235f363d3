package usecase

import (
	"context"
	"errors"
	"strings"

	domrepo "TradePulse/internal/domain/repository"
)

// Setting keys for the operator controls. All values are stored as
// strings in the state store so the admin API can read them back.
const (
	settingTradeEnabled = "trade_enabled"
	settingNewEntry     = "admin_new_entry_enabled"
	settingEmergency    = "admin_emergency_stop"
	settingMode         = "admin_mode"
	settingLastControl  = "admin_last_control_action"
	settingOverrideNote = "admin_manual_override_reason"
)

// AdminState reads and writes the operator-level gates: the kill
// switch, the new-entry gate and the emergency stop.
type AdminState struct {
	store domrepo.StateStore
	// default for trade_enabled when the store has no explicit value
	tradeDefault bool
}

func NewAdminState(store domrepo.StateStore, tradeDefault bool) *AdminState {
	return &AdminState{store: store, tradeDefault: tradeDefault}
}

func (a *AdminState) boolSetting(ctx context.Context, key string, def bool) bool {
	v, err := a.store.Setting(ctx, key)
	if err != nil {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	default:
		return false
	}
}

func boolString(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// TradeEnabled is the kill switch. Unset falls back to the configured
// default so a fresh deployment starts in the intended mode.
func (a *AdminState) TradeEnabled(ctx context.Context) bool {
	return a.boolSetting(ctx, settingTradeEnabled, a.tradeDefault)
}

func (a *AdminState) SetTradeEnabled(ctx context.Context, enabled bool, reason string) error {
	if err := a.store.SetSetting(ctx, settingTradeEnabled, boolString(enabled)); err != nil {
		return err
	}
	text := "Run=PAUSED"
	if enabled {
		text = "Run=RUNNING"
	}
	return a.recordControl(ctx, text, reason)
}

// NewEntryAllowed is the operator gate checked before every entry.
// Emergency stop wins over the new-entry toggle.
func (a *AdminState) NewEntryAllowed(ctx context.Context) bool {
	if a.boolSetting(ctx, settingEmergency, false) {
		return false
	}
	return a.boolSetting(ctx, settingNewEntry, true)
}

func (a *AdminState) SetNewEntry(ctx context.Context, enabled bool, reason string) error {
	if err := a.store.SetSetting(ctx, settingNewEntry, boolString(enabled)); err != nil {
		return err
	}
	text := "NewEntry=OFF"
	if enabled {
		text = "NewEntry=ON"
	}
	return a.recordControl(ctx, text, reason)
}

func (a *AdminState) EmergencyStop(ctx context.Context) bool {
	return a.boolSetting(ctx, settingEmergency, false)
}

func (a *AdminState) SetEmergency(ctx context.Context, active bool, reason string) error {
	if err := a.store.SetSetting(ctx, settingEmergency, boolString(active)); err != nil {
		return err
	}
	text := "Emergency=OFF"
	if active {
		text = "Emergency=ON"
	}
	return a.recordControl(ctx, text, reason)
}

// Mode is a display-only deployment label ("PAPER" | "LIVE").
func (a *AdminState) Mode(ctx context.Context) string {
	v, err := a.store.Setting(ctx, settingMode)
	if err != nil {
		return "PAPER"
	}
	return v
}

func (a *AdminState) SetMode(ctx context.Context, mode, reason string) error {
	if err := a.store.SetSetting(ctx, settingMode, mode); err != nil {
		return err
	}
	return a.recordControl(ctx, "Mode="+mode, reason)
}

func (a *AdminState) recordControl(ctx context.Context, text, reason string) error {
	if reason != "" {
		text += " (" + reason + ")"
		if err := a.store.SetSetting(ctx, settingOverrideNote, reason); err != nil {
			return err
		}
	}
	return a.store.SetSetting(ctx, settingLastControl, text)
}

// Controls is the operator-control block of the admin snapshot.
type Controls struct {
	Mode              string `json:"mode"`
	RunState          string `json:"run_state"`
	NewEntryEnabled   bool   `json:"new_entry_enabled"`
	EmergencyStop     bool   `json:"emergency_stop"`
	LastControlAction string `json:"last_control_action,omitempty"`
	OverrideReason    string `json:"manual_override_reason,omitempty"`
}

// Snapshot assembles the controls block for the admin API.
func (a *AdminState) Snapshot(ctx context.Context) (Controls, error) {
	c := Controls{
		Mode:            a.Mode(ctx),
		RunState:        "PAUSED",
		NewEntryEnabled: a.boolSetting(ctx, settingNewEntry, true),
		EmergencyStop:   a.boolSetting(ctx, settingEmergency, false),
	}
	if a.TradeEnabled(ctx) {
		c.RunState = "RUNNING"
	}
	if v, err := a.store.Setting(ctx, settingLastControl); err == nil {
		c.LastControlAction = v
	} else if !errors.Is(err, domrepo.ErrNotFound) {
		return c, err
	}
	if v, err := a.store.Setting(ctx, settingOverrideNote); err == nil {
		c.OverrideReason = v
	} else if !errors.Is(err, domrepo.ErrNotFound) {
		return c, err
	}
	return c, nil
}
