package safety

import "strings"

type playbookSection struct {
	heading string
	steps   []string
}

var wellbeingPlaybooks = []playbookSection{
	{
		heading: "Grounding ideas:",
		steps: []string{
			"Name 5 things you see, 4 you can touch, 3 you hear, 2 you smell, 1 you taste.",
			"Slow exhale: breathe out for 6-8 seconds, then in for 4. Repeat 5 times.",
		},
	},
	{
		heading: "Stress reset ideas:",
		steps: []string{
			"Take a 2-minute walk if safe, stretch shoulders/neck, sip water.",
			"Define the next tiny task you can finish in 5 minutes; do only that.",
		},
	},
	{
		heading: "If this involves conflict on-site, a respectful script:",
		steps: []string{
			"Use a calm opener: \"Can we talk about the task? I want to avoid mistakes.\"",
			"State facts, not motives: describe what happened and how it affects safety/schedule.",
			"Ask for their view, then agree on one concrete next step.",
		},
	},
	{
		heading: "If sleep is an issue, consider:",
		steps: []string{
			"Avoid caffeine 6 hours before sleep; keep room dark and cool.",
			"If your mind races, write a 3-bullet list of worries and plan to revisit tomorrow.",
		},
	},
}

// PlaybookHeadings lists the section headings in reply order.
func PlaybookHeadings() []string {
	headings := make([]string, len(wellbeingPlaybooks))
	for i, s := range wellbeingPlaybooks {
		headings[i] = s.heading
	}
	return headings
}

// WellbeingResponse renders the coping playbook reply. It is deterministic.
func WellbeingResponse() string {
	parts := []string{
		"I'm here as an AI support tool, not a therapist. I can share short coping ideas.",
		"Pick what feels helpful; skip anything that doesn't.",
	}
	for _, section := range wellbeingPlaybooks {
		parts = append(parts, section.heading)
		for _, step := range section.steps {
			parts = append(parts, "- "+step)
		}
	}
	parts = append(parts, "If you feel unsafe or overwhelmed, talk to a supervisor or trusted person.")
	return strings.Join(parts, "\n")
}
