package models

import "fmt"

// Course is a single ingested course. The title doubles as the identity
// key: two documents with the same title are the same course.
type Course struct {
	Title      string   `json:"title"`
	Link       string   `json:"link,omitempty"`
	Instructor string   `json:"instructor,omitempty"`
	Lessons    []Lesson `json:"lessons"`
}

type Lesson struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Link   string `json:"link,omitempty"`
}

// Lesson returns the lesson with the given number, if the course has one.
func (c Course) Lesson(number int) (Lesson, bool) {
	for _, l := range c.Lessons {
		if l.Number == number {
			return l, true
		}
	}
	return Lesson{}, false
}

// CourseChunk is a bounded slice of a course document plus the metadata
// needed to trace it back to its (course, lesson) pair. LessonNumber is
// nil for text that precedes any lesson header.
type CourseChunk struct {
	Content      string `json:"content"`
	CourseTitle  string `json:"course_title"`
	LessonNumber *int   `json:"lesson_number,omitempty"`
	ChunkIndex   int    `json:"chunk_index"`
}

// SearchFilter narrows a content search. CourseName is a free-text fuzzy
// match target, LessonNumber an exact match.
type SearchFilter struct {
	CourseName   string
	LessonNumber *int
}

func (f SearchFilter) IsZero() bool {
	return f.CourseName == "" && f.LessonNumber == nil
}

// SearchResult is one ranked chunk. Distance is ascending-better.
type SearchResult struct {
	Content      string  `json:"content"`
	CourseTitle  string  `json:"course_title"`
	LessonNumber *int    `json:"lesson_number,omitempty"`
	ChunkIndex   int     `json:"chunk_index"`
	Link         string  `json:"link,omitempty"`
	Distance     float64 `json:"distance"`
}

// Label renders the display header for a result, e.g.
// "Intro to MCP - Lesson 1". Results without a lesson use the bare title.
func (r SearchResult) Label() string {
	if r.LessonNumber != nil {
		return fmt.Sprintf("%s - Lesson %d", r.CourseTitle, *r.LessonNumber)
	}
	return r.CourseTitle
}

// Source is the normalized citation handed back to the presentation
// boundary. Link is carried separately from the text so callers decide
// whether to render it.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Exchange is one user query paired with the assistant answer, the atomic
// unit of session history. Immutable once recorded.
type Exchange struct {
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}
