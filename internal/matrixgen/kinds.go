package matrixgen

import "github.com/kestrelhq/hypoengine/internal/domain"

// kindSpec is the static per-matrix-kind configuration: axis labels,
// quadrant display identity, and the item-kind name used in the
// LLM-enumeration prompt for non-intrinsic kinds.
type kindSpec struct {
	XAxisLabel string
	YAxisLabel string
	ItemKind   string // used in the prompt; empty for tree-intrinsic kinds
	Quadrants  map[domain.Quadrant]domain.QuadrantDef
}

var kindSpecs = map[domain.MatrixType]kindSpec{
	domain.MatrixHypothesisPrioritization: {
		XAxisLabel: "Effort",
		YAxisLabel: "Impact",
		Quadrants: map[domain.Quadrant]domain.QuadrantDef{
			domain.Q1: {Name: "Quick Wins", Position: "top-left", Description: "High impact, low effort", Action: "prioritize immediately", Color: "green", Priority: 1},
			domain.Q2: {Name: "Strategic Bets", Position: "top-right", Description: "High impact, high effort", Action: "plan and resource deliberately", Color: "blue", Priority: 2},
			domain.Q3: {Name: "Fill Later", Position: "bottom-left", Description: "Low impact, low effort", Action: "schedule opportunistically", Color: "gray", Priority: 3},
			domain.Q4: {Name: "Hard Slogs", Position: "bottom-right", Description: "Low impact, high effort", Action: "deprioritize or drop", Color: "red", Priority: 4},
		},
	},
	domain.MatrixRiskRegister: {
		XAxisLabel: "Impact",
		YAxisLabel: "Likelihood",
		ItemKind:   "material risks to this initiative",
		Quadrants: map[domain.Quadrant]domain.QuadrantDef{
			domain.Q1: {Name: "Watch Closely", Position: "top-left", Description: "High likelihood, low impact", Action: "monitor with lightweight controls", Color: "yellow", Priority: 2},
			domain.Q2: {Name: "Critical Risks", Position: "top-right", Description: "High likelihood, high impact", Action: "mitigate before proceeding", Color: "red", Priority: 1},
			domain.Q3: {Name: "Accept", Position: "bottom-left", Description: "Low likelihood, low impact", Action: "accept and re-check periodically", Color: "gray", Priority: 4},
			domain.Q4: {Name: "Contingency Plan", Position: "bottom-right", Description: "Low likelihood, high impact", Action: "prepare a contingency plan", Color: "orange", Priority: 3},
		},
	},
	domain.MatrixTaskPrioritization: {
		XAxisLabel: "Importance",
		YAxisLabel: "Urgency",
		ItemKind:   "concrete tasks that follow from this analysis",
		Quadrants: map[domain.Quadrant]domain.QuadrantDef{
			domain.Q1: {Name: "Delegate", Position: "top-left", Description: "High urgency, low importance", Action: "delegate or do quickly", Color: "yellow", Priority: 2},
			domain.Q2: {Name: "Do First", Position: "top-right", Description: "High urgency, high importance", Action: "do now", Color: "red", Priority: 1},
			domain.Q3: {Name: "Eliminate", Position: "bottom-left", Description: "Low urgency, low importance", Action: "eliminate or defer indefinitely", Color: "gray", Priority: 4},
			domain.Q4: {Name: "Schedule", Position: "bottom-right", Description: "Low urgency, high importance", Action: "schedule dedicated time", Color: "blue", Priority: 3},
		},
	},
	domain.MatrixMeasurementPriorities: {
		XAxisLabel: "Feasibility",
		YAxisLabel: "Strategic Value",
		ItemKind:   "metrics worth tracking for this decision",
		Quadrants: map[domain.Quadrant]domain.QuadrantDef{
			domain.Q1: {Name: "Hard To Measure", Position: "top-left", Description: "High value, low feasibility", Action: "invest in instrumentation", Color: "blue", Priority: 2},
			domain.Q2: {Name: "Core Metrics", Position: "top-right", Description: "High value, high feasibility", Action: "track from day one", Color: "green", Priority: 1},
			domain.Q3: {Name: "Skip", Position: "bottom-left", Description: "Low value, low feasibility", Action: "skip for now", Color: "gray", Priority: 4},
			domain.Q4: {Name: "Nice To Have", Position: "bottom-right", Description: "Low value, high feasibility", Action: "track opportunistically", Color: "yellow", Priority: 3},
		},
	},
}
