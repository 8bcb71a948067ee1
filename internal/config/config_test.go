package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		cfg           Config
		expectedError string
	}{
		{
			name:          "empty config",
			cfg:           Config{},
			expectedError: "config cannot be empty",
		},
		{
			name: "invalid device",
			cfg: Config{
				Device: "tpu", ComputeType: ComputeInt8, BeamSize: 5,
				MinSliceLength: 5000, MinInterval: 300, HopSize: 10, MaxSilKept: 500,
				MaxTotalSlices: 50, MinConcurrent: 1, MaxConcurrentLimit: 32, SlicesPerThread: 3,
			},
			expectedError: `invalid DEVICE: "tpu"`,
		},
		{
			name: "compute type incompatible with device",
			cfg: Config{
				Device: DeviceCPU, ComputeType: ComputeFloat16, BeamSize: 5,
				MinSliceLength: 5000, MinInterval: 300, HopSize: 10, MaxSilKept: 500,
				MaxTotalSlices: 50, MinConcurrent: 1, MaxConcurrentLimit: 32, SlicesPerThread: 3,
			},
			expectedError: `COMPUTE_TYPE "float16" is not valid for device "cpu"`,
		},
		{
			name: "slicer ordering violated",
			cfg: Config{
				Device: DeviceCPU, ComputeType: ComputeInt8, BeamSize: 5,
				MinSliceLength: 100, MinInterval: 300, HopSize: 10, MaxSilKept: 500,
				MaxTotalSlices: 50, MinConcurrent: 1, MaxConcurrentLimit: 32, SlicesPerThread: 3,
			},
			expectedError: "min_length >= min_interval >= hop_size",
		},
		{
			name: "valid",
			cfg: Config{
				Device: DeviceCPU, ComputeType: ComputeInt8, BeamSize: 5,
				MinSliceLength: 5000, MinInterval: 300, HopSize: 10, MaxSilKept: 500,
				MaxTotalSlices: 50, MinConcurrent: 1, MaxConcurrentLimit: 32, SlicesPerThread: 3,
			},
			expectedError: "",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.IsValid()
			if tc.expectedError == "" {
				require.NoError(t, err)
			} else {
				require.ErrorContains(t, err, tc.expectedError)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	require.NoError(t, cfg.IsValid())
	require.Equal(t, DeviceCPU, cfg.Device)
	require.Equal(t, ComputeFloat32, cfg.ComputeType)
	require.Equal(t, 50, cfg.MaxTotalSlices)
}

func TestCoerceComputeType(t *testing.T) {
	ct, warned := CoerceComputeType(DeviceCPU, ComputeFloat16)
	require.True(t, warned)
	require.Equal(t, ComputeFloat32, ct)

	ct, warned = CoerceComputeType(DeviceCPU, ComputeInt8)
	require.False(t, warned)
	require.Equal(t, ComputeInt8, ct)
}
