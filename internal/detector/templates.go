package detector

import "github.com/pankaj-dahiya-devops/usage-anomaly-detector/internal/models"

// DefaultTemplates returns the deployed detector set: one detector per
// monitored usage event, each categorized by account so a single detector
// covers every organization member.
func DefaultTemplates() []models.DetectorTemplate {
	return []models.DetectorTemplate{
		{
			Name:           "ec2-usage-anomaly",
			CategoryFields: []string{"recipientAccountId"},
		},
		{
			Name:           "lambda-usage-anomaly",
			CategoryFields: []string{"recipientAccountId"},
		},
		{
			Name:           "ebs-usage-anomaly",
			CategoryFields: []string{"recipientAccountId"},
		},
	}
}
