package interfaces

import (
	"errors"
	"math"
	"testing"
)

// TestNetworkConfigValidate tests the Validate method of NetworkConfig.
func TestNetworkConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  NetworkConfig
		wantErr error
	}{
		{
			name:    "valid real network",
			config:  NetworkConfig{NetworkTimeout: 100},
			wantErr: nil,
		},
		{
			name:    "valid simulation with loss",
			config:  NetworkConfig{UseSimulation: true, NetworkTimeout: 50, LossRate: 1, ReorderWindow: 4},
			wantErr: nil,
		},
		{
			name:    "zero timeout",
			config:  NetworkConfig{NetworkTimeout: 0},
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative loss",
			config:  NetworkConfig{NetworkTimeout: 100, LossRate: -0.1},
			wantErr: ErrInvalidLossRate,
		},
		{
			name:    "loss above one",
			config:  NetworkConfig{NetworkTimeout: 100, LossRate: 1.5},
			wantErr: ErrInvalidLossRate,
		},
		{
			name:    "NaN loss",
			config:  NetworkConfig{NetworkTimeout: 100, LossRate: math.NaN()},
			wantErr: ErrInvalidLossRate,
		},
		{
			name:    "negative reorder window",
			config:  NetworkConfig{NetworkTimeout: 100, ReorderWindow: -1},
			wantErr: ErrInvalidReorderWindow,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
