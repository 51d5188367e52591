package analytics

import "errors"

// Sentinel errors for the analytics service layer.
var (
	ErrCampaignNotFound = errors.New("campaign not found")
)
