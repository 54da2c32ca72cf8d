// Package models holds the core domain types shared between the registry,
// the lifecycle engine, and the transport surfaces.
package models

import "time"

// Status is the lifecycle state of a VPS. The state machine is intentionally
// small: running <-> suspended, no terminal state.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSuspended Status = "suspended"
)

// VPS is a single provisioned instance on the hypervisor host.
type VPS struct {
	ID        string    `json:"id"`
	Memory    int       `json:"memory"`
	Cores     int       `json:"cores"`
	Storage   float64   `json:"storage"`
	Customer  string    `json:"customer"`
	Status    Status    `json:"status"`
	Sequence  int       `json:"sequence"`
	CreatedAt time.Time `json:"created_at"`
}

// IsRunning reports whether the instance is in the running state.
func (v *VPS) IsRunning() bool {
	return v != nil && v.Status == StatusRunning
}

// AntiCrypto holds the sustained-usage percentages above which a VPS is
// presumed to be mining and gets auto-suspended. Zero values disable the check.
type AntiCrypto struct {
	MaxRAMUsage float64 `json:"max_ram_usage"`
	MaxCPUUsage float64 `json:"max_cpu_usage"`
}

// Caps are optional global resource ceilings. A nil field means the
// dimension is unconstrained.
type Caps struct {
	RAM     *float64 `json:"ram"`
	CPU     *float64 `json:"cpu"`
	Storage *float64 `json:"storage"`
}

// Settings is the single persisted registry document. Every mutating
// operation rewrites it to stable storage before reporting success.
type Settings struct {
	Owners              []string        `json:"owners"`
	Admins              []string        `json:"admins"`
	VPS                 map[string]*VPS `json:"vps"`
	Sequences           map[string]int  `json:"sequences"`
	StoragePerGB        float64         `json:"storage_per_gb"`
	AntiCrypto          AntiCrypto      `json:"anti_crypto"`
	MaxResources        *Caps           `json:"max_resources,omitempty"`
	NotificationChannel string          `json:"notification_channel"`
	DiscordToken        string          `json:"discord_token"`
	// WebhookURL receives lifecycle events as webhook embeds. Works with
	// or without the gateway bot.
	WebhookURL string `json:"webhook_url,omitempty"`
	// APICredential is a bcrypt hash checked at HTTP login. Generated
	// offline with tools/credential_tool.
	APICredential string `json:"api_credential"`
}

// IsOwner reports strict owner-set membership.
func (s *Settings) IsOwner(principal string) bool {
	return containsString(s.Owners, principal)
}

// IsAdmin reports admin privilege. Owners implicitly hold admin rights.
func (s *Settings) IsAdmin(principal string) bool {
	return containsString(s.Admins, principal) || s.IsOwner(principal)
}

func containsString(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

// UsageSample is one telemetry observation for a VPS.
type UsageSample struct {
	VPSID      string    `json:"vps_id"`
	RAMPercent float64   `json:"ram_percent"`
	CPUPercent float64   `json:"cpu_percent"`
	SampledAt  time.Time `json:"sampled_at"`
}
