package vectorstore

import (
	"context"
	"errors"

	"github.com/mohammad-safakhou/coursechat/models"
)

// ErrIndexUnavailable wraps any failure of the index backend or the
// embedding function. Fatal for the operation that hit it.
var ErrIndexUnavailable = errors.New("vector index unavailable")

// Embedder turns text into fixed-length vectors. Deterministic for
// identical input.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the vector index: a course catalog plus embedded content
// chunks. Courses and chunks are append-only; AddCourse and AddChunks are
// maintenance operations serialized against concurrent reads.
//
// Search expects filter.CourseName to already be an exact catalog title;
// free-text course names go through ResolveCourseName first.
type Store interface {
	AddCourse(ctx context.Context, course models.Course) error
	AddChunks(ctx context.Context, chunks []models.CourseChunk) error

	CourseExists(ctx context.Context, title string) (bool, error)
	ListCourseTitles(ctx context.Context) ([]string, error)
	GetCourse(ctx context.Context, title string) (models.Course, bool, error)

	// ResolveCourseName matches a free-text name against indexed course
	// titles by embedding similarity. Below the similarity floor it
	// reports found=false rather than guessing.
	ResolveCourseName(ctx context.Context, name string) (title string, found bool, err error)

	// Search returns up to k chunks ordered by ascending distance, ties
	// broken by ascending chunk index. An empty result is not an error.
	Search(ctx context.Context, query string, filter models.SearchFilter, k int) ([]models.SearchResult, error)
}
