package dispatcher

import (
	"fmt"
	"strings"

	"github.com/c360/netstreams/alert"
	"github.com/c360/netstreams/errors"
	"github.com/c360/netstreams/telemetry"
)

// Rule raises an alert condition for records that look wrong even though
// they parsed and delivered cleanly.
type Rule interface {
	Name() string
	// Evaluate reports whether rec triggers the rule.
	Evaluate(rec telemetry.Record) bool
	// Condition returns the alert key and error for a triggering record.
	Condition(rec telemetry.Record) (string, error)
}

// DefaultRules returns the rules a Dispatcher runs unless WithRules is given.
func DefaultRules() []Rule {
	return []Rule{InterfaceDownRule{}}
}

// InterfaceDownRule fires for interfaces that are operationally down while
// administratively enabled. Interfaces an operator shut down are ignored.
type InterfaceDownRule struct{}

func (InterfaceDownRule) Name() string { return "interface_down" }

func (InterfaceDownRule) Evaluate(rec telemetry.Record) bool {
	iface, ok := rec.(telemetry.InterfaceRecord)
	if !ok {
		return false
	}
	return strings.EqualFold(iface.OperStatus, "down") && !adminDisabled(iface.AdminStatus)
}

func (InterfaceDownRule) Condition(rec telemetry.Record) (string, error) {
	iface := rec.(telemetry.InterfaceRecord)
	admin := iface.AdminStatus
	if admin == "" {
		admin = "unknown"
	}
	err := errors.WrapInvalid(
		fmt.Errorf("%w: %s/%s admin %s oper %s", errors.ErrInterfaceDown,
			iface.NodeName, iface.InterfaceName, admin, iface.OperStatus),
		iface.NodeName, "interface", "check oper status")
	return alert.InterfaceDown(iface.NodeName, iface.InterfaceName), alert.WithBatchID(err, iface.BatchID)
}

func adminDisabled(status string) bool {
	switch strings.ToLower(status) {
	case "down", "disable", "disabled":
		return true
	}
	return false
}
