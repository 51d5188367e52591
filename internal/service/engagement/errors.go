package engagement

import "errors"

// Sentinel errors for the engagement service layer.
var (
	ErrNotFound        = errors.New("delivery record not found")
	ErrUnknownCampaign = errors.New("campaign not found")
)
