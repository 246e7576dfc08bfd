// Package outline implements the course outline tool: course metadata
// and the full lesson list for a fuzzily named course.
package outline

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

const Name = "get_course_outline"

type Tool struct {
	store vectorstore.Store
}

func New(store vectorstore.Store) *Tool {
	return &Tool{store: store}
}

func (t *Tool) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        Name,
		Description: "Get the outline of a course: title, link, instructor and the complete lesson list",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"course_title": map[string]any{
					"type":        "string",
					"description": "Course title (partial matches work)",
				},
			},
			"required": []string{"course_title"},
		},
	}
}

type outlineArgs struct {
	CourseTitle string `json:"course_title"`
}

func (t *Tool) Execute(ctx context.Context, raw json.RawMessage) (tools.Result, error) {
	var args outlineArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return tools.Result{}, fmt.Errorf("invalid outline arguments: %w", err)
	}

	title, found, err := t.store.ResolveCourseName(ctx, args.CourseTitle)
	if err != nil {
		return tools.Result{}, err
	}
	if !found {
		return tools.Result{Text: fmt.Sprintf("No course found matching '%s'", args.CourseTitle)}, nil
	}

	course, ok, err := t.store.GetCourse(ctx, title)
	if err != nil {
		return tools.Result{}, err
	}
	if !ok {
		return tools.Result{Text: fmt.Sprintf("No course found matching '%s'", args.CourseTitle)}, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", course.Title)
	if course.Link != "" {
		fmt.Fprintf(&b, "Course Link: %s\n", course.Link)
	}
	if course.Instructor != "" {
		fmt.Fprintf(&b, "Instructor: %s\n", course.Instructor)
	}
	fmt.Fprintf(&b, "Lessons (%d):\n", len(course.Lessons))
	for _, lesson := range course.Lessons {
		fmt.Fprintf(&b, "  %d. %s\n", lesson.Number, lesson.Title)
	}

	source := models.Source{Text: course.Title, Link: course.Link}
	return tools.Result{Text: b.String(), Sources: []any{source}}, nil
}
