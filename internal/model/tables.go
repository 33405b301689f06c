package model

// Tables lists every record migrated at startup.
func Tables() []interface{} {
	return []interface{}{
		&StudySession{},
		&DocumentChunk{},
		&DocumentOutline{},
		&SessionOutline{},
		&QuizQuestion{},
		&QuizSession{},
	}
}
