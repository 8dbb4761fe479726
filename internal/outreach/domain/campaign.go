package domain

// CampaignState is the process-wide on/off switch consulted once per cycle
// before claiming. It is set by operator action and never mutated by workers.
type CampaignState string

const (
	CampaignWorking CampaignState = "working"
	CampaignPaused  CampaignState = "paused"
)

// Working reports whether a cycle may claim leads.
func (s CampaignState) Working() bool {
	return s == CampaignWorking
}
