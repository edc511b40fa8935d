package catalog

import "time"

// Sensitivity classifies how delicate a capability is.
type Sensitivity string

const (
	SensitivityLow      Sensitivity = "low"
	SensitivityNormal   Sensitivity = "normal"
	SensitivityHigh     Sensitivity = "high"
	SensitivityCritical Sensitivity = "critical"
)

// Valid reports whether the sensitivity is one of the known levels.
func (s Sensitivity) Valid() bool {
	switch s {
	case SensitivityLow, SensitivityNormal, SensitivityHigh, SensitivityCritical:
		return true
	}
	return false
}

// Capability is an atomic, named permission to perform one action on one
// resource. The dotted code is the stable external identifier; groups,
// exceptions and audit entries all reference capabilities by code so trails
// stay legible.
type Capability struct {
	ID            int64
	Code          string
	Sensitivity   Sensitivity
	RequiresAudit bool
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Function is a named system resource (menu item) grouping several
// capabilities.
type Function struct {
	ID        int64
	FullName  string
	Domain    string
	Category  string
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FunctionCapability links a capability to a function with per-link flags.
type FunctionCapability struct {
	FunctionID   int64
	CapabilityID int64
	Code         string
	Required     bool
	VisibleInUI  bool
}
