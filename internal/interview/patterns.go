package interview

// QuestionPattern is one interviewing archetype. The instruction is
// handed verbatim to the model so generated questions keep the shape of
// the archetype instead of collapsing into generic prompts.
type QuestionPattern struct {
	Name        string
	Instruction string
}

var questionPatterns = []QuestionPattern{
	{
		Name:        "Scenario-Based",
		Instruction: "Pose a realistic hypothetical scenario the candidate could face in this role and ask how they would handle it step by step.",
	},
	{
		Name:        "STAR Behavioral",
		Instruction: "Ask for a specific past situation where the candidate demonstrated a relevant skill, prompting for situation, task, action, and result.",
	},
	{
		Name:        "Problem-Solving",
		Instruction: "Present a concrete problem related to the role and ask the candidate to reason through a solution out loud.",
	},
	{
		Name:        "Opinion & Strategy",
		Instruction: "Ask for the candidate's opinion on a trade-off, practice, or trend in their field and how they would set strategy around it.",
	},
	{
		Name:        "Deep Technical",
		Instruction: "Ask a focused technical question that tests depth of understanding in one of the candidate's claimed skill areas.",
	},
	{
		Name:        "Past Achievement",
		Instruction: "Ask about the accomplishment the candidate is most proud of and dig into their personal contribution and measurable impact.",
	},
	{
		Name:        "Failure & Learning",
		Instruction: "Ask about a time something went wrong, what the candidate's role in it was, and what they changed afterward.",
	},
	{
		Name:        "Leadership & Collaboration",
		Instruction: "Ask how the candidate has led, mentored, or collaborated across teams, with a concrete example.",
	},
	{
		Name:        "Real-World Application",
		Instruction: "Ask how the candidate would apply one of their listed skills or past projects to a challenge this role would actually face.",
	},
	{
		Name:        "Compare & Contrast",
		Instruction: "Ask the candidate to compare two tools, approaches, or architectures they have used and justify when they would pick each.",
	},
}

// Patterns returns the full archetype pool.
func Patterns() []QuestionPattern {
	out := make([]QuestionPattern, len(questionPatterns))
	copy(out, questionPatterns)
	return out
}
