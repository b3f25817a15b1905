package entitlement

import (
	"slices"

	"github.com/xspensesai/billingkit/pkg/catalog"
)

// Tool is a capability an account's assistant may invoke.
type Tool string

const (
	ToolExportData          Tool = "export_my_data"
	ToolDeleteData          Tool = "delete_my_data"
	ToolIngestStatement     Tool = "ingest_statement"
	ToolGenerateReport      Tool = "generate_monthly_report"
	ToolDetectAnomalies     Tool = "detect_anomalies"
	ToolMerchantLookup      Tool = "merchant_lookup"
	ToolBulkCategorize      Tool = "bulk_categorize"
	ToolSearchDocs          Tool = "search_docs"
	ToolWebResearch         Tool = "safe_web_research"
	ToolManageKnowledgePack Tool = "manage_knowledge_pack"
	ToolCreateOrg           Tool = "create_org"
	ToolInviteMember        Tool = "invite_member"
	ToolSetReminder         Tool = "set_reminder"
	ToolAdvancedAnomalies   Tool = "detect_anomalies_advanced"
)

// BaselineTools are available to every account regardless of plan or
// subscription state. Data export and deletion are a compliance requirement,
// never a monetization lever, so they must not appear in toolsByFeature.
var BaselineTools = []Tool{
	ToolExportData,
	ToolDeleteData,
}

// toolsByFeature is the closed mapping from features to the tool capabilities
// they grant. Keys are declared Feature constants only; there is no lookup
// over open strings, so a typo is a compile-time problem, not a silent grant.
var toolsByFeature = map[catalog.Feature][]Tool{
	catalog.FeatureSmartImport: {ToolIngestStatement},
	catalog.FeatureAIAssistant: {ToolMerchantLookup, ToolBulkCategorize, ToolSetReminder},
	catalog.FeatureAnalytics:   {ToolGenerateReport, ToolDetectAnomalies, ToolAdvancedAnomalies},
	catalog.FeatureTeam:        {ToolCreateOrg, ToolInviteMember},
	catalog.FeatureAPIAccess:   {ToolSearchDocs, ToolWebResearch},
	catalog.FeatureCustomReports: {
		ToolGenerateReport,
		ToolManageKnowledgePack,
	},
}

// ToolsForFeatures expands a feature set into the tools it grants, always
// including the baseline set. The result is deduplicated and sorted for
// stable snapshots.
func ToolsForFeatures(features []catalog.Feature) []Tool {
	seen := make(map[Tool]struct{}, len(BaselineTools))
	for _, t := range BaselineTools {
		seen[t] = struct{}{}
	}
	for _, f := range features {
		for _, t := range toolsByFeature[f] {
			seen[t] = struct{}{}
		}
	}

	tools := make([]Tool, 0, len(seen))
	for t := range seen {
		tools = append(tools, t)
	}
	slices.Sort(tools)
	return tools
}
