// Package bot implements the chat command surface. The dispatcher is
// transport-agnostic: it maps a principal, a command name, and raw
// arguments onto engine operations and returns a human-readable reply.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"vpsd/internal/engine"
	"vpsd/internal/models"
	"vpsd/internal/policy"
	"vpsd/internal/registry"
	"vpsd/internal/utils"
)

const permissionDenied = "You don't have permission to use this command."

// Dispatcher routes chat commands to the lifecycle engine.
type Dispatcher struct {
	eng *engine.Engine
	log *utils.Logger
}

// NewDispatcher creates a command dispatcher.
func NewDispatcher(eng *engine.Engine, log *utils.Logger) *Dispatcher {
	return &Dispatcher{eng: eng, log: log}
}

// Handle executes one command for the given principal and returns the
// reply text. Unknown commands return an empty string so the transport can
// ignore chatter that merely looks like a command.
func (d *Dispatcher) Handle(ctx context.Context, principal, command string, args []string) string {
	switch command {
	case "create_vps":
		return d.createVPS(ctx, principal, args)
	case "set_storage":
		return d.setStorage(principal, args)
	case "suspend_vps":
		return d.suspendVPS(ctx, principal, args)
	case "resume_vps":
		return d.resumeVPS(ctx, principal, args)
	case "vps_info":
		return d.vpsInfo(args)
	case "list_vps":
		return d.listVPS()
	default:
		return ""
	}
}

func (d *Dispatcher) createVPS(ctx context.Context, principal string, args []string) string {
	if len(args) != 3 {
		return "Usage: create_vps <memory> <cores> <customer>"
	}
	memory, err1 := strconv.Atoi(args[0])
	cores, err2 := strconv.Atoi(args[1])
	if err1 != nil || err2 != nil {
		return "Usage: create_vps <memory> <cores> <customer>"
	}
	v, err := d.eng.Create(ctx, principal, memory, cores, args[2])
	if err != nil {
		return d.errorReply("create VPS", err)
	}
	return fmt.Sprintf("✅ VPS `%s` created for customer `%s`.", v.ID, v.Customer)
}

func (d *Dispatcher) setStorage(principal string, args []string) string {
	if len(args) != 2 {
		return "Usage: set_storage <ram_gb> <per_storage_gb>"
	}
	ramGB, err1 := strconv.Atoi(args[0])
	perStorageGB, err2 := strconv.ParseFloat(args[1], 64)
	if err1 != nil || err2 != nil {
		return "Usage: set_storage <ram_gb> <per_storage_gb>"
	}
	if err := d.eng.SetStorageRatio(principal, ramGB, perStorageGB); err != nil {
		return d.errorReply("set storage", err)
	}
	return fmt.Sprintf("✅ Default storage set: %gGB per %dGB RAM.", perStorageGB, ramGB)
}

func (d *Dispatcher) suspendVPS(ctx context.Context, principal string, args []string) string {
	if len(args) < 2 {
		return "Usage: suspend_vps <id> <reason>"
	}
	id := args[0]
	reason := strings.Join(args[1:], " ")
	v, err := d.eng.Suspend(ctx, principal, id, reason)
	if err != nil {
		return d.errorReply("suspend VPS", err)
	}
	return fmt.Sprintf("✅ VPS `%s` suspended. Reason: %s", v.ID, reason)
}

func (d *Dispatcher) resumeVPS(ctx context.Context, principal string, args []string) string {
	if len(args) != 1 {
		return "Usage: resume_vps <id>"
	}
	v, err := d.eng.Resume(ctx, principal, args[0])
	if err != nil {
		return d.errorReply("resume VPS", err)
	}
	return fmt.Sprintf("✅ VPS `%s` is running.", v.ID)
}

func (d *Dispatcher) vpsInfo(args []string) string {
	if len(args) != 1 {
		return "Usage: vps_info <id>"
	}
	v, err := d.eng.Get(args[0])
	if err != nil {
		return "❌ VPS not found."
	}
	return formatVPS(v)
}

func (d *Dispatcher) listVPS() string {
	list := d.eng.List()
	if len(list) == 0 {
		return "No VPS instances exist."
	}
	var b strings.Builder
	for _, v := range list {
		fmt.Fprintf(&b, "`%s` - customer `%s`, %dGB RAM, %d cores, %s\n", v.ID, v.Customer, v.Memory, v.Cores, v.Status)
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatVPS(v *models.VPS) string {
	return fmt.Sprintf("`%s`: customer `%s`, %dGB RAM, %d cores, %gGB storage, status %s",
		v.ID, v.Customer, v.Memory, v.Cores, v.Storage, v.Status)
}

func (d *Dispatcher) errorReply(action string, err error) string {
	switch {
	case errors.Is(err, policy.ErrUnauthorized):
		return permissionDenied
	case errors.Is(err, registry.ErrNotFound):
		return "❌ VPS not found."
	case errors.Is(err, policy.ErrUnconfigured):
		return "❌ Storage ratio is not configured. Use set_storage first."
	default:
		return fmt.Sprintf("❌ Failed to %s: %v", action, err)
	}
}
