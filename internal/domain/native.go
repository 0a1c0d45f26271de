package domain

import (
	"fmt"
	"strings"
)

// NativeContext references one runtime execution context. Zero is the null handle.
type NativeContext uintptr

// NativeStatus references one runtime status object. Zero is the null handle.
type NativeStatus uintptr

// NativeOptions references one runtime context-options object. Zero is the null handle.
type NativeOptions uintptr

// IsNull reports whether h is the null handle.
func (h NativeContext) IsNull() bool { return h == 0 }

// IsNull reports whether h is the null handle.
func (h NativeStatus) IsNull() bool { return h == 0 }

// IsNull reports whether h is the null handle.
func (h NativeOptions) IsNull() bool { return h == 0 }

// Code is a runtime status code. Values match TF_Code.
type Code int

// Status codes.
const (
	CodeOK                 Code = 0
	CodeCancelled          Code = 1
	CodeUnknown            Code = 2
	CodeInvalidArgument    Code = 3
	CodeDeadlineExceeded   Code = 4
	CodeNotFound           Code = 5
	CodeAlreadyExists      Code = 6
	CodePermissionDenied   Code = 7
	CodeResourceExhausted  Code = 8
	CodeFailedPrecondition Code = 9
	CodeAborted            Code = 10
	CodeOutOfRange         Code = 11
	CodeUnimplemented      Code = 12
	CodeInternal           Code = 13
	CodeUnavailable        Code = 14
	CodeDataLoss           Code = 15
	CodeUnauthenticated    Code = 16
)

var codeNames = map[Code]string{
	CodeOK:                 "OK",
	CodeCancelled:          "CANCELLED",
	CodeUnknown:            "UNKNOWN",
	CodeInvalidArgument:    "INVALID_ARGUMENT",
	CodeDeadlineExceeded:   "DEADLINE_EXCEEDED",
	CodeNotFound:           "NOT_FOUND",
	CodeAlreadyExists:      "ALREADY_EXISTS",
	CodePermissionDenied:   "PERMISSION_DENIED",
	CodeResourceExhausted:  "RESOURCE_EXHAUSTED",
	CodeFailedPrecondition: "FAILED_PRECONDITION",
	CodeAborted:            "ABORTED",
	CodeOutOfRange:         "OUT_OF_RANGE",
	CodeUnimplemented:      "UNIMPLEMENTED",
	CodeInternal:           "INTERNAL",
	CodeUnavailable:        "UNAVAILABLE",
	CodeDataLoss:           "DATA_LOSS",
	CodeUnauthenticated:    "UNAUTHENTICATED",
}

// String returns the canonical upper-case name of the code.
func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}

	return fmt.Sprintf("CODE(%d)", int(c))
}

// DevicePlacementPolicy controls how the runtime handles tensors placed on the wrong device.
// Values match TFE_ContextDevicePlacementPolicy.
type DevicePlacementPolicy int

// Device placement policies.
const (
	// PlacementExplicit fails operations whose inputs live on another device.
	PlacementExplicit DevicePlacementPolicy = 0
	// PlacementWarn copies tensors and logs a warning.
	PlacementWarn DevicePlacementPolicy = 1
	// PlacementSilent copies tensors silently.
	PlacementSilent DevicePlacementPolicy = 2
	// PlacementSilentForInt32 copies int32 tensors silently and fails for others.
	PlacementSilentForInt32 DevicePlacementPolicy = 3
)

var placementNames = map[DevicePlacementPolicy]string{
	PlacementExplicit:       "explicit",
	PlacementWarn:           "warn",
	PlacementSilent:         "silent",
	PlacementSilentForInt32: "silent_for_int32",
}

// String returns the configuration name of the policy.
func (p DevicePlacementPolicy) String() string {
	if name, ok := placementNames[p]; ok {
		return name
	}

	return fmt.Sprintf("placement(%d)", int(p))
}

// Valid reports whether p is a known policy.
func (p DevicePlacementPolicy) Valid() bool {
	_, ok := placementNames[p]
	return ok
}

// ParseDevicePlacementPolicy converts a configuration string to a policy.
// The empty string selects PlacementSilent, the runtime default.
func ParseDevicePlacementPolicy(s string) (DevicePlacementPolicy, error) {
	if s == "" {
		return PlacementSilent, nil
	}

	for p, name := range placementNames {
		if strings.EqualFold(name, s) {
			return p, nil
		}
	}

	return 0, fmt.Errorf("unknown device placement policy %q", s)
}
