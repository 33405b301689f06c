package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

const (
	QuestionOriginDocument = "document"
	QuestionOriginExternal = "external"

	QuestionOptionCount = 4
)

// Question is a generated multiple choice question.
type Question struct {
	ID                 string   `json:"id"`
	Prompt             string   `json:"prompt"`
	Options            []string `json:"options"`
	CorrectIndex       int      `json:"correct_index"`
	Explanation        string   `json:"explanation"`
	Source             string   `json:"source,omitempty"`
	Origin             string   `json:"origin"`
	ContentFingerprint string   `json:"content_fingerprint,omitempty"`
}

// QuizQuestion persists a document-grounded question served for a section.
type QuizQuestion struct {
	ID                 uint           `gorm:"primaryKey" json:"-"`
	SessionID          string         `gorm:"size:64;not null;uniqueIndex:idx_quiz_question,priority:1" json:"session_id"`
	SectionID          string         `gorm:"size:64;not null;uniqueIndex:idx_quiz_question,priority:2" json:"section_id"`
	QuestionID         string         `gorm:"size:64;not null;uniqueIndex:idx_quiz_question,priority:3" json:"question_id"`
	Prompt             string         `gorm:"type:text;not null" json:"prompt"`
	Options            datatypes.JSON `gorm:"type:json" json:"options"`
	CorrectIndex       int            `gorm:"not null" json:"correct_index"`
	Explanation        string         `gorm:"type:text" json:"explanation"`
	Source             string         `gorm:"size:255" json:"source,omitempty"`
	Difficulty         string         `gorm:"size:16" json:"difficulty"`
	Origin             string         `gorm:"size:16;not null" json:"origin"`
	ContentFingerprint string         `gorm:"size:64" json:"content_fingerprint,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

// NewQuizQuestion builds the record of q served for one section.
func NewQuizQuestion(sessionID, sectionID, difficulty string, q Question) QuizQuestion {
	opts, _ := json.Marshal(q.Options)
	return QuizQuestion{
		SessionID:          sessionID,
		SectionID:          sectionID,
		QuestionID:         q.ID,
		Prompt:             q.Prompt,
		Options:            datatypes.JSON(opts),
		CorrectIndex:       q.CorrectIndex,
		Explanation:        q.Explanation,
		Source:             q.Source,
		Difficulty:         difficulty,
		Origin:             q.Origin,
		ContentFingerprint: q.ContentFingerprint,
	}
}

// Question converts the record back into its value form.
func (r *QuizQuestion) Question() Question {
	var opts []string
	_ = json.Unmarshal(r.Options, &opts)
	return Question{
		ID:                 r.QuestionID,
		Prompt:             r.Prompt,
		Options:            opts,
		CorrectIndex:       r.CorrectIndex,
		Explanation:        r.Explanation,
		Source:             r.Source,
		Origin:             r.Origin,
		ContentFingerprint: r.ContentFingerprint,
	}
}

// QuizSession records one generation request and the question ids it served.
type QuizSession struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	SessionID         string         `gorm:"size:64;not null;index" json:"session_id"`
	SectionIDs        datatypes.JSON `gorm:"type:json" json:"-"`
	QuestionCount     int            `gorm:"not null" json:"question_count"`
	Difficulty        string         `gorm:"size:16" json:"difficulty"`
	ServedQuestionIDs datatypes.JSON `gorm:"type:json" json:"-"`
	CreatedAt         time.Time      `json:"created_at"`
}

// SectionIDList returns the requested section ids.
func (q *QuizSession) SectionIDList() []string {
	return decodeStrings(q.SectionIDs)
}

// ServedIDList returns the served question ids.
func (q *QuizSession) ServedIDList() []string {
	return decodeStrings(q.ServedQuestionIDs)
}

// SetSectionIDs stores the requested section ids as JSON.
func (q *QuizSession) SetSectionIDs(ids []string) {
	q.SectionIDs = encodeStrings(ids)
}

// SetServedIDs stores the served question ids as JSON.
func (q *QuizSession) SetServedIDs(ids []string) {
	q.ServedQuestionIDs = encodeStrings(ids)
}

func decodeStrings(raw datatypes.JSON) []string {
	if len(raw) == 0 {
		return nil
	}
	var out []string
	_ = json.Unmarshal(raw, &out)
	return out
}

func encodeStrings(values []string) datatypes.JSON {
	if len(values) == 0 {
		return datatypes.JSON("[]")
	}
	b, _ := json.Marshal(values)
	return datatypes.JSON(b)
}
