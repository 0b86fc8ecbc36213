package models

import "time"

// GPUStatus is the pod status returned by the provider plus local session state.
type GPUStatus struct {
	Pod         map[string]any `json:"pod"`
	ActiveUntil *time.Time     `json:"active_until,omitempty"`
}
