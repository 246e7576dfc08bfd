// Package search implements the course content search tool: semantic
// search over indexed chunks with optional course and lesson filtering.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	"github.com/mohammad-safakhou/coursechat/models"
	"github.com/mohammad-safakhou/coursechat/provider"
	"github.com/mohammad-safakhou/coursechat/tools"
)

// Name is the declared tool name the model calls.
const Name = "search_course_content"

type Tool struct {
	store      vectorstore.Store
	maxResults int
}

func New(store vectorstore.Store, maxResults int) *Tool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &Tool{store: store, maxResults: maxResults}
}

func (t *Tool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        Name,
		Description: "Search course materials with smart course name matching and lesson filtering",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "What to search for in the course content",
				},
				"course_name": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work, e.g. 'MCP', 'Introduction')",
				},
				"lesson_number": map[string]any{
					"type":        "integer",
					"description": "Specific lesson number to search within (e.g. 1, 2, 3)",
				},
			},
			"required": []string{"query"},
		},
	}
}

type searchArgs struct {
	Query        string `json:"query"`
	CourseName   string `json:"course_name"`
	LessonNumber *int   `json:"lesson_number"`
}

// Execute runs one search. A course name that resolves to nothing is a
// distinguished result payload, not an error, so the model can ask the
// user for clarification instead of silently getting nothing.
func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (tools.Result, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return tools.Result{}, fmt.Errorf("invalid search arguments: %w", err)
	}

	filter := models.SearchFilter{LessonNumber: args.LessonNumber}
	if args.CourseName != "" {
		title, found, err := t.store.ResolveCourseName(ctx, args.CourseName)
		if err != nil {
			return tools.Result{}, err
		}
		if !found {
			return tools.Result{Text: fmt.Sprintf("No course found matching '%s'", args.CourseName)}, nil
		}
		filter.CourseName = title
	}

	results, err := t.store.Search(ctx, args.Query, filter, t.maxResults)
	if err != nil {
		return tools.Result{}, err
	}
	if len(results) == 0 {
		return tools.Result{Text: emptyMessage(filter)}, nil
	}
	return t.format(ctx, results)
}

func emptyMessage(filter models.SearchFilter) string {
	var b strings.Builder
	b.WriteString("No relevant content found")
	if filter.CourseName != "" {
		fmt.Fprintf(&b, " in course '%s'", filter.CourseName)
	}
	if filter.LessonNumber != nil {
		fmt.Fprintf(&b, " in lesson %d", *filter.LessonNumber)
	}
	b.WriteString(".")
	return b.String()
}

// format renders each result as a bracketed header plus the chunk text,
// and collects the source list with links carried separately from the
// text the model sees.
func (t *Tool) format(ctx context.Context, results []models.SearchResult) (tools.Result, error) {
	courses := make(map[string]models.Course)
	var blocks []string
	var sources []any

	for _, r := range results {
		blocks = append(blocks, fmt.Sprintf("[%s]\n%s", r.Label(), r.Content))

		source := models.Source{Text: r.Label()}
		if r.LessonNumber != nil {
			course, ok := courses[r.CourseTitle]
			if !ok {
				var found bool
				var err error
				course, found, err = t.store.GetCourse(ctx, r.CourseTitle)
				if err != nil {
					return tools.Result{}, err
				}
				if found {
					courses[r.CourseTitle] = course
				}
			}
			if lesson, ok := course.Lesson(*r.LessonNumber); ok {
				source.Link = lesson.Link
			}
		}
		sources = append(sources, source)
	}

	return tools.Result{Text: strings.Join(blocks, "\n\n"), Sources: sources}, nil
}
