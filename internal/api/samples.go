package api

// SampleQuestions are served when the question service is unreachable.
func SampleQuestions() []Question {
	return []Question{
		{ID: "1", QuestionText: "Tell me about yourself and your background.", Category: "behavioral", DifficultyLevel: "easy"},
		{ID: "2", QuestionText: "What are your greatest strengths and weaknesses?", Category: "behavioral", DifficultyLevel: "medium"},
		{ID: "3", QuestionText: "Describe a challenging project you worked on and how you overcame obstacles.", Category: "behavioral", DifficultyLevel: "hard"},
		{ID: "4", QuestionText: "Why do you want to work for our company?", Category: "behavioral", DifficultyLevel: "medium"},
		{ID: "5", QuestionText: "Where do you see yourself in 5 years?", Category: "behavioral", DifficultyLevel: "easy"},
	}
}

func sampleQuestion(id ID) (*Question, bool) {
	for _, q := range SampleQuestions() {
		if q.ID == id {
			return &q, true
		}
	}
	return nil, false
}
