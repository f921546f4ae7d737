/*
Copyright 2025 The Alphabet Cartel.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package explain

import "github.com/The-Alphabet-Cartel/ash-nlp-sub003/pkg/aggregation"

// Decision summary templates keyed by crisis level. Placeholders {score},
// {confidence} and {level} are substituted at render time. Keeping the
// templates as data means wording can be tuned or localized without touching
// rendering logic.
var summaryTemplates = map[aggregation.Level]string{
	aggregation.LevelCritical: "CRITICAL: high-confidence crisis detected at {confidence}% confidence. Immediate intervention recommended.",
	aggregation.LevelHigh:     "HIGH: strong crisis indicators present (score {score}). Prompt outreach recommended.",
	aggregation.LevelMedium:   "MEDIUM: moderate crisis indicators present (score {score}). Monitoring and standard follow-up recommended.",
	aggregation.LevelLow:      "LOW: mild distress indicators present (score {score}). Passive monitoring is sufficient.",
	aggregation.LevelSafe:     "SAFE: no meaningful crisis indicators detected (score {score}).",
	aggregation.LevelUnknown:  "UNKNOWN: no classifier signals were available. The message was flagged for human review.",
}

// Recommended actions keyed by intervention priority.
var actionTable = map[aggregation.Priority]RecommendedAction{
	aggregation.PriorityImmediate: {
		Action:     "Page the on-call crisis responder and open a direct support channel now.",
		Escalation: "Escalate to emergency services if the member cannot be reached within minutes.",
		Rationale:  "The score or a single near-certain signal indicates acute, immediate risk.",
	},
	aggregation.PriorityHigh: {
		Action:     "Notify the moderation team and reach out to the member within the hour.",
		Escalation: "Escalate to the on-call responder if distress is confirmed.",
		Rationale:  "Strong crisis indicators warrant prompt human contact.",
	},
	aggregation.PriorityStandard: {
		Action:     "Queue the message for moderator review during the current shift.",
		Escalation: "Escalate if follow-up messages show worsening indicators.",
		Rationale:  "Moderate indicators call for human judgment without urgency.",
	},
	aggregation.PriorityLow: {
		Action:     "Keep the member on the passive watch list.",
		Escalation: "No escalation needed unless indicators recur.",
		Rationale:  "Mild indicators alone do not justify direct contact.",
	},
	aggregation.PriorityNone: {
		Action:     "No action required.",
		Escalation: "None.",
		Rationale:  "No crisis indicators were detected.",
	},
}

// Confidence narrative bands.
var confidenceBands = []struct {
	min  float64
	text string
}{
	{0.8, "The classifiers agreed with high confidence in this assessment."},
	{0.6, "The classifiers reached this assessment with moderate confidence."},
	{0.4, "Classifier confidence in this assessment is low; treat it as indicative."},
	{0.0, "Classifier confidence in this assessment is very low; human judgment is essential."},
}

func confidenceNarrative(confidence float64) string {
	for _, band := range confidenceBands {
		if confidence >= band.min {
			return band.text
		}
	}
	return confidenceBands[len(confidenceBands)-1].text
}
