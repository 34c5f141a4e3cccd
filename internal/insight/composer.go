// Package insight assembles the structured, multi-section alert report
// published to the notification sink.
//
// The composer consumes already-generated natural-language text; it never
// calls the text-generation service itself. Every optional section degrades
// gracefully: absent input omits the section, and absent text is replaced by
// an explicit fallback phrase rather than silent truncation.
package insight

import (
	"fmt"
	"strings"
	"time"

	"github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"
)

// Explicit fallback phrases used when generated text is unavailable.
const (
	fallbackCauses     = "Unable to generate insights - please check manually"
	fallbackActions    = "Review CloudTrail logs for the affected time period"
	fallbackPrevention = "Implement proper monitoring and alerting"
)

// severityEmoji prefixes the notification subject so inbox triage works
// without opening the message.
var severityEmoji = map[models.SeverityLevel]string{
	models.SeverityCritical: "🔥",
	models.SeverityHigh:     "🚨",
	models.SeverityMedium:   "⚠️",
	models.SeverityLow:      "📊",
}

// Sections carries everything the composer folds into a report. Pointer
// fields are optional; nil omits the section.
type Sections struct {
	Text        models.InsightText
	Severity    models.SeverityResult
	Cost        *models.CostAnalysis
	RootCause   *models.RootCauseResult
	Correlation *models.CorrelationResult
	Usage       *models.UsageDetails
}

// Compose renders the fixed-section report for one alert: summary, severity,
// potential causes, recommended actions, then the optional cost / root-cause
// / correlation / usage sections, and prevention tips.
func Compose(alert models.AnomalyAlert, s Sections) models.Report {
	var b strings.Builder

	b.WriteString("🚨 AWS Usage Anomaly Detected - Enhanced Insights\n")

	b.WriteString("\n📊 ANOMALY SUMMARY:\n")
	b.WriteString(summaryText(alert, s.Text.Summary))
	b.WriteString("\n")

	fmt.Fprintf(&b, "\n🎯 SEVERITY: %s (%d/10)\n%s\n",
		s.Severity.Level, s.Severity.Score, s.Severity.Reasoning)

	b.WriteString("\n🔍 POTENTIAL CAUSES:\n")
	b.WriteString(textOr(s.Text.PotentialCauses, fallbackCauses))
	b.WriteString("\n")

	b.WriteString("\n💡 RECOMMENDED ACTIONS:\n")
	b.WriteString(textOr(s.Text.RecommendedActions, fallbackActions))
	b.WriteString("\n")

	if s.Cost != nil {
		writeCostSection(&b, s.Cost)
	}
	if s.RootCause != nil {
		writeRootCauseSection(&b, s.RootCause)
	}
	if s.Correlation != nil && s.Correlation.Detected {
		writeCorrelationSection(&b, s.Correlation)
	}
	if s.Usage != nil {
		writeUsageSection(&b, s.Usage)
	}

	b.WriteString("\n🛡️ PREVENTION TIPS:\n")
	b.WriteString(textOr(s.Text.PreventionTips, fallbackPrevention))
	b.WriteString("\n")

	fmt.Fprintf(&b, "\n---\nGenerated by AWS Anomaly Detector\nTime: %s\nSeverity: %s | Accounts: %d\n",
		alert.AlertTime.UTC().Format(time.RFC3339),
		s.Severity.Level,
		len(alert.AffectedAccounts))

	return models.Report{
		Subject:  subject(alert, s),
		Body:     b.String(),
		Severity: s.Severity,
	}
}

// subject builds the severity-prefixed notification subject, flagging
// organization-wide patterns.
func subject(alert models.AnomalyAlert, s Sections) string {
	prefix, ok := severityEmoji[s.Severity.Level]
	if !ok {
		prefix = "📊"
	}
	subj := fmt.Sprintf("%s %s Alert: %s Anomaly",
		prefix, s.Severity.Level, alert.Kind.DisplayName())
	if s.Correlation != nil && s.Correlation.Detected {
		subj += " (Org-wide Pattern)"
	}
	return subj
}

func summaryText(alert models.AnomalyAlert, summary string) string {
	if summary != "" {
		return summary
	}
	return fmt.Sprintf("Anomaly detected in %s with %d events",
		alert.Kind.DisplayName(), alert.AnomalyCount)
}

func textOr(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func writeCostSection(b *strings.Builder, cost *models.CostAnalysis) {
	b.WriteString("\n💰 COST IMPACT ANALYSIS:\n")
	fmt.Fprintf(b, "- Estimated Impact: %s\n", cost.EstimatedImpact)
	if cost.Breakdown != nil {
		fmt.Fprintf(b, "- Average Daily Cost: $%.2f\n", cost.Breakdown.AverageDailyUSD)
		fmt.Fprintf(b, "- Latest Daily Cost: $%.2f\n", cost.Breakdown.LatestDailyUSD)
		fmt.Fprintf(b, "- Monthly Projection: $%.2f\n", cost.Breakdown.MonthlyProjection)
	}
	for _, rec := range cost.Recommendations {
		fmt.Fprintf(b, "- %s\n", rec)
	}
}

func writeRootCauseSection(b *strings.Builder, rca *models.RootCauseResult) {
	b.WriteString("\n🔬 ROOT CAUSE ANALYSIS:\n")
	fmt.Fprintf(b, "- Likely Cause: %s\n", rca.LikelyCause)
	fmt.Fprintf(b, "- Confidence: %s\n", rca.Confidence)
	if len(rca.Evidence) > 0 {
		fmt.Fprintf(b, "- Evidence: %s\n", strings.Join(rca.Evidence, ", "))
	}
	if len(rca.Recommendations) > 0 {
		fmt.Fprintf(b, "- Recommendations: %s\n", strings.Join(rca.Recommendations, ", "))
	}
}

func writeCorrelationSection(b *strings.Builder, corr *models.CorrelationResult) {
	b.WriteString("\n🌐 ORGANIZATION-WIDE CORRELATION:\n")
	fmt.Fprintf(b, "- Pattern Type: %s\n", corr.PatternType)
	fmt.Fprintf(b, "- Affected Accounts: %d\n", len(corr.AffectedAccounts))
	fmt.Fprintf(b, "- Correlation Score: %.2f\n", corr.Score)
	fmt.Fprintf(b, "- Recommendation: %s\n", corr.Recommendation)
}

func writeUsageSection(b *strings.Builder, usage *models.UsageDetails) {
	b.WriteString("\n📈 USAGE VERIFICATION:\n")
	switch usage.Kind {
	case models.KindEC2Launch:
		fmt.Fprintf(b, "- Total Running EC2 Count: %d\n", usage.RunningInstances)
		fmt.Fprintf(b, "- EC2 RunInstances during Anomaly Period: %d\n", usage.LaunchedInWindow)
	case models.KindEBSVolume:
		fmt.Fprintf(b, "- Total Volume Count: %d\n", usage.TotalVolumes)
		fmt.Fprintf(b, "- Volumes Created during Anomaly Period: %d\n", usage.CreatedInWindow)
	case models.KindLambdaInvoke:
		b.WriteString("- Lambda Usage (FunctionName, AnomalyPeriodInvokeCount, 24HAvgInvokeCount):\n")
		for _, f := range usage.Functions {
			fmt.Fprintf(b, "  - %s\t%d\t%d\n",
				f.FunctionName, f.WindowInvocations, f.DayAvgInvocations)
		}
	}
}
