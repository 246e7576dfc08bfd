package ingest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/mohammad-safakhou/coursechat/models"
)

// ErrMalformedDocument is returned when a course title cannot be parsed.
// Ingestion skips the document and continues with the rest of the batch.
var ErrMalformedDocument = errors.New("malformed course document")

// segment is a run of body text belonging to one lesson header. Lesson is
// nil for text that precedes the first lesson header.
type segment struct {
	lesson *int
	text   string
}

var lessonHeaderRe = regexp.MustCompile(`^Lesson\s+(\d+):\s*(.*)$`)

// parseDocument reads a course document: a header block identifying the
// course (title, optional link, instructor), then zero or more lesson
// headers each optionally followed by a "Lesson Link:" line, each owning
// the body text up to the next header.
func parseDocument(r io.Reader) (models.Course, []segment, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var course models.Course
	var segments []segment
	var body strings.Builder
	var current *int
	inHeader := true

	flush := func() {
		text := strings.TrimSpace(body.String())
		body.Reset()
		if text == "" {
			return
		}
		segments = append(segments, segment{lesson: current, text: text})
	}

	for scanner.Scan() {
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)

		if m := lessonHeaderRe.FindStringSubmatch(trimmed); m != nil {
			flush()
			inHeader = false
			number, err := strconv.Atoi(m[1])
			if err != nil {
				return models.Course{}, nil, fmt.Errorf("%w: lesson number %q", ErrMalformedDocument, m[1])
			}
			course.Lessons = append(course.Lessons, models.Lesson{Number: number, Title: m[2]})
			n := number
			current = &n
			continue
		}

		if last := len(course.Lessons) - 1; last >= 0 && body.Len() == 0 {
			if link, ok := strings.CutPrefix(trimmed, "Lesson Link:"); ok && course.Lessons[last].Link == "" {
				course.Lessons[last].Link = strings.TrimSpace(link)
				continue
			}
		}

		if inHeader {
			switch {
			case strings.HasPrefix(trimmed, "Course Title:"):
				course.Title = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Title:"))
				continue
			case strings.HasPrefix(trimmed, "Course Link:"):
				course.Link = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Link:"))
				continue
			case strings.HasPrefix(trimmed, "Course Instructor:"):
				course.Instructor = strings.TrimSpace(strings.TrimPrefix(trimmed, "Course Instructor:"))
				continue
			case trimmed == "":
				continue
			}
			// First non-header line ends the header block; whatever
			// follows is course-level body text.
			inHeader = false
		}

		body.WriteString(line)
		body.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return models.Course{}, nil, fmt.Errorf("reading document: %w", err)
	}
	flush()

	if course.Title == "" {
		return models.Course{}, nil, fmt.Errorf("%w: missing course title", ErrMalformedDocument)
	}
	return course, segments, nil
}
