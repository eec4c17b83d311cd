package interfaces

import (
	"encoding/json"
)

// Status values for Definition.Status and RuleBasedSegment.Status.
const (
	StatusActive   = "ACTIVE"
	StatusArchived = "ARCHIVED"
)

// Definition is the stored form of a feature flag.
//
// The SDK does not interpret Conditions; they are kept in their wire form so that an evaluation
// engine can consume them.
type Definition struct {
	Name             string            `json:"name"`
	TrafficTypeName  string            `json:"trafficTypeName,omitempty"`
	Killed           bool              `json:"killed"`
	DefaultTreatment string            `json:"defaultTreatment"`
	ChangeNumber     int64             `json:"changeNumber"`
	Status           string            `json:"status,omitempty"`
	Seed             int64             `json:"seed,omitempty"`
	Sets             []string          `json:"sets,omitempty"`
	Configurations   map[string]string `json:"configurations,omitempty"`
	Conditions       json.RawMessage   `json:"conditions,omitempty"`
}

// GetName returns the definition's name.
func (d Definition) GetName() string { return d.Name }

// GetChangeNumber returns the change number of the last modification to the definition.
func (d Definition) GetChangeNumber() int64 { return d.ChangeNumber }

// IsArchived returns true if the definition has been deleted on the server.
func (d Definition) IsArchived() bool { return d.Status == StatusArchived }

// RuleBasedSegment is the stored form of a segment whose membership is computed from rules rather
// than from an explicit key list.
type RuleBasedSegment struct {
	Name            string          `json:"name"`
	TrafficTypeName string          `json:"trafficTypeName,omitempty"`
	ChangeNumber    int64           `json:"changeNumber"`
	Status          string          `json:"status,omitempty"`
	Excluded        json.RawMessage `json:"excluded,omitempty"`
	Conditions      json.RawMessage `json:"conditions,omitempty"`
}

// GetName returns the segment's name.
func (s RuleBasedSegment) GetName() string { return s.Name }

// GetChangeNumber returns the change number of the last modification to the segment.
func (s RuleBasedSegment) GetChangeNumber() int64 { return s.ChangeNumber }

// IsArchived returns true if the segment has been deleted on the server.
func (s RuleBasedSegment) IsArchived() bool { return s.Status == StatusArchived }
