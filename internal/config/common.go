package config

import "errors"

// Validation errors returned by Config.Validate, wrapped with the offending value.
var (
	ErrNoClusters          = errors.New("no clusters configured")
	ErrInvalidSamplePeriod = errors.New("sample period must be positive")
	ErrInvalidClusterID    = errors.New("cluster ids must be 0..n-1 without gaps")
	ErrInvalidCPUs         = errors.New("invalid cluster cpus")
	ErrOverlappingCPUs     = errors.New("cpu assigned to more than one cluster")
	ErrMissingTable        = errors.New("cluster has no built-in frequency table")
)
