package models

type ViewName string

const (
	ViewDailyChannel    ViewName = "daily_channel_volume"
	ViewDispatchJoin    ViewName = "dispatch_lead_join"
	ViewProportional    ViewName = "proportional_comparison"
	ViewStageChannel    ViewName = "stage_channel_distribution"
	ViewAgreementVolume ViewName = "agreement_channel_volume"
)

var AllViews = []ViewName{
	ViewDailyChannel,
	ViewDispatchJoin,
	ViewProportional,
	ViewStageChannel,
	ViewAgreementVolume,
}

type DailyChannelRow struct {
	Date    string `json:"date"`
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

// JoinRow is one (agreement, category) line of the dispatch/lead table.
// Ratio is nil when no dispatch was counted for the group.
type JoinRow struct {
	Agreement string   `json:"agreement"`
	Category  Category `json:"category"`
	Quantity  int      `json:"quantity"`
	Leads     int      `json:"leads"`
	Ratio     *float64 `json:"ratio"`
}

type CategoryShare struct {
	Category      Category `json:"category"`
	Quantity      int      `json:"quantity"`
	Leads         int      `json:"leads"`
	Ratio         *float64 `json:"ratio"`
	LeadShare     *float64 `json:"lead_share"`
	DispatchShare *float64 `json:"dispatch_share"`
}

type AgreementComparison struct {
	Agreement  string          `json:"agreement"`
	Quantity   int             `json:"quantity"`
	Leads      int             `json:"leads"`
	Categories []CategoryShare `json:"categories"`
}

type StageChannelRow struct {
	Stage   string `json:"stage"`
	Channel string `json:"channel"`
	Count   int    `json:"count"`
}

type AgreementChannelRow struct {
	Agreement string `json:"agreement"`
	Channel   string `json:"channel"`
	Count     int    `json:"count"`
}

// Report carries the selected views. Unselected views stay nil (JSON null);
// a selected view with no rows is an empty array.
type Report struct {
	DatasetID        string                `json:"dataset_id,omitempty"`
	DailyChannel     []DailyChannelRow     `json:"daily_channel_volume"`
	DispatchJoin     []JoinRow             `json:"dispatch_lead_join"`
	Proportional     []AgreementComparison `json:"proportional_comparison"`
	StageChannel     []StageChannelRow     `json:"stage_channel_distribution"`
	AgreementChannel []AgreementChannelRow `json:"agreement_channel_volume"`
}
