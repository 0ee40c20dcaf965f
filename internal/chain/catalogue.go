package chain

// Stage keys of the default chain, in execution order
const (
	StageEntityProfiles   = "entity_profiles"
	StageTechArchitecture = "T1_tech_architecture"
	StageHardwareMapping  = "T2_hardware_mapping"
	StageSupplierMapping  = "T3_supplier_mapping"
	StageMarketAnalysis   = "T4_market_analysis"
	StageSankeyData       = "T5_sankey_data"
	StageStrategicReport  = "strategic_report"
)

// DefaultStages returns the technical task chain followed by the
// comparative strategic report
func DefaultStages() []Stage {
	return []Stage{
		{
			Key:          StageEntityProfiles,
			Name:         "Entity_Profiles",
			UsesEvidence: true,
			Instruction: `Based on the compiled data, profile each of these robots: {{.Entities}}.
For every robot extract its official name, manufacturer, a one-sentence summary and key specifications.
Output ONLY a JSON object shaped like the example below, with no extra text or markdown.

### Compiled Data:
{{.Evidence}}`,
			Shape: `{"profiles": [{"name": "...", "manufacturer": "...", "summary": "...", "specs": {"Weight": "...", "Payload": "..."}}]}`,
		},
		{
			Key:          StageTechArchitecture,
			Name:         "T1_Tech_Architecture",
			UsesEvidence: true,
			Instruction: `Based on the provided text about '{{.Subject}}', analyze its technical architecture (Perception, Control, Locomotion).
List the key functional components for each system. Output ONLY as a JSON object.

Text: {{.Evidence}}`,
			Shape: `{"perception_components": ["..."], "control_components": ["..."], "locomotion_components": ["..."]}`,
		},
		{
			Key:          StageHardwareMapping,
			Name:         "T2_Hardware_Mapping",
			DependsOn:    []string{StageTechArchitecture},
			UsesEvidence: true,
			Instruction: `Given the text and these functional components: {{.Upstream "T1_tech_architecture"}}.
Map each function to specific hardware modules (e.g., 'object recognition' -> 'RGB cameras'). Output ONLY as a JSON object.

Text: {{.Evidence}}`,
			Shape: `{"hardware_mappings": [{"function": "...", "hardware": "...", "purpose": "..."}]}`,
		},
		{
			Key:          StageSupplierMapping,
			Name:         "T3_Supplier_Matching",
			DependsOn:    []string{StageHardwareMapping},
			UsesEvidence: true,
			Instruction: `For each hardware module: {{.Upstream "T2_hardware_mapping"}}.
Search the text for potential suppliers. If none are mentioned, list market leaders for that hardware. Output ONLY as a JSON object.

Text: {{.Evidence}}`,
			Shape: `{"supplier_mappings": [{"hardware": "...", "suppliers": [{"name": "...", "country": "..."}]}]}`,
		},
		{
			Key:          StageMarketAnalysis,
			Name:         "T4_Market_Analysis",
			UsesEvidence: true,
			Instruction: `Based on all the text, analyze the market landscape for humanoid robots like '{{.Subject}}'.
Discuss market share, leaders, and challengers. Output ONLY as a JSON object with a single key 'market_analysis_summary'.

Text: {{.Evidence}}`,
			Shape: `{"market_analysis_summary": "..."}`,
		},
		{
			Key:       StageSankeyData,
			Name:      "T5_Sankey_Data",
			DependsOn: []string{StageTechArchitecture, StageHardwareMapping, StageSupplierMapping},
			Instruction: `Synthesize the data from T1, T2, and T3 to create nodes and links for a Sankey diagram showing the flow: Function -> Hardware -> Supplier.
Output ONLY as a JSON object.

Data: T1={{.Upstream "T1_tech_architecture"}}, T2={{.Upstream "T2_hardware_mapping"}}, T3={{.Upstream "T3_supplier_mapping"}}`,
			Shape: `{"nodes": [{"id": "..."}], "links": [{"source": "...", "target": "...", "value": 10}]}`,
		},
		{
			Key:          StageStrategicReport,
			Name:         "Strategic_Report",
			DependsOn:    []string{StageEntityProfiles, StageMarketAnalysis},
			UsesEvidence: true,
			Instruction: `You are a senior market analyst. Based on the compiled data for these robots: {{.Entities}}, generate a comprehensive strategic analysis report.
The report must be a single, valid JSON object following the structure below. Do not add any text outside this JSON object.
"competitive_landscape" must hold one object for each robot, with "name", "strengths", "weaknesses" and "strategic_focus".

Entity profiles: {{.Upstream "entity_profiles"}}
Market analysis: {{.Upstream "T4_market_analysis"}}

### Compiled Data:
{{.Evidence}}

### Strategic Report (JSON):`,
			Shape:    strategicReportShape,
			Finalize: EnsureLandscape,
		},
	}
}

const strategicReportShape = `{
  "executive_summary": "...",
  "competitive_landscape": [{"name": "...", "strengths": ["..."], "weaknesses": ["..."], "strategic_focus": "..."}],
  "market_trends_and_predictions": {"key_technology_trends": ["..."], "supply_chain_insights": "...", "future_outlook_prediction": "..."},
  "data_discrepancies_and_gaps": ["..."]
}`

// EntityProfilePrompt asks for a single robot profile from search snippets
const EntityProfilePrompt = `Based on the provided search results for '%s', extract key information.
Output ONLY as a valid JSON object like this, with no extra text or markdown:
{"name": "Full official name", "manufacturer": "The manufacturer", "summary": "A one-sentence summary.", "specs": {"Weight": "...", "Payload": "..."}}

### Search Results:
%s

### JSON Output:`

// DeepAnalysisPrompt asks for a technical breakdown of text gathered from
// caller-supplied sources
const DeepAnalysisPrompt = `You are a senior robotics engineer. Analyze the comprehensive text compiled from multiple sources about a specific robot.
Your task is to perform a deep technical dive and structure your findings into a valid JSON object.
Focus on identifying and analyzing the robot's core systems. Be detailed and specific.

### Desired JSON Structure:
{
  "technical_summary": "A summary of the robot's key technical specifications and innovations based on all provided text.",
  "perception_system": {"components": ["sensor types such as 'RGB cameras', 'LiDAR', 'IMU'"], "suppliers_and_partners": ["..."], "analysis": "..."},
  "locomotion_system": {"components": ["actuators, degrees of freedom, battery system"], "suppliers_and_partners": ["..."], "analysis": "..."},
  "control_and_ai_system": {"components": ["AI models, neural networks, computational hardware"], "suppliers_and_partners": ["..."], "analysis": "..."}
}
---
### Comprehensive Text from Multiple Sources:
%s
---
### Deep Technical Analysis (JSON Output):`

// FinalReportPrompt builds a strategic report from entity data the caller
// already gathered
const FinalReportPrompt = `You are a senior market analyst. Based on the compiled JSON data for multiple robots, generate a comprehensive strategic analysis report.
The report must be a single, valid JSON object following the structure I will define. Do not add any text outside this JSON object.
The structure should include: "executive_summary", "competitive_landscape", and "market_trends_and_predictions".

### Compiled Data:
%s

### Strategic Report (JSON):`
