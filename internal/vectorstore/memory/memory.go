package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	"github.com/mohammad-safakhou/coursechat/models"
)

// Store is an in-memory vector index using brute-force cosine similarity.
// It backs unit tests and single-process development; the qdrant backend
// is the persisted one.
type Store struct {
	embedder vectorstore.Embedder
	floor    float64

	mu        sync.RWMutex
	courses   map[string]models.Course
	titles    []string // insertion order
	titleVecs map[string][]float32
	chunks    []models.CourseChunk
	chunkVecs [][]float32
}

func New(embedder vectorstore.Embedder, similarityFloor float64) *Store {
	return &Store{
		embedder:  embedder,
		floor:     similarityFloor,
		courses:   make(map[string]models.Course),
		titleVecs: make(map[string][]float32),
	}
}

func (s *Store) AddCourse(ctx context.Context, course models.Course) error {
	vecs, err := s.embedder.EmbedMany(ctx, []string{course.Title})
	if err != nil {
		return fmt.Errorf("%w: embedding course title: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.courses[course.Title]; !ok {
		s.titles = append(s.titles, course.Title)
	}
	s.courses[course.Title] = course
	s.titleVecs[course.Title] = vecs[0]
	return nil
}

func (s *Store) AddChunks(ctx context.Context, chunks []models.CourseChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("%w: embedding chunks: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	s.chunkVecs = append(s.chunkVecs, vecs...)
	return nil
}

func (s *Store) CourseExists(_ context.Context, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.courses[title]
	return ok, nil
}

func (s *Store) ListCourseTitles(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.titles))
	copy(out, s.titles)
	return out, nil
}

func (s *Store) GetCourse(_ context.Context, title string) (models.Course, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.courses[title]
	return c, ok, nil
}

func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, bool, error) {
	vecs, err := s.embedder.EmbedMany(ctx, []string{name})
	if err != nil {
		return "", false, fmt.Errorf("%w: embedding course name: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	// Walk titles in insertion order so exact-score ties always resolve
	// to the same course.
	best, bestScore := "", -1.0
	for _, title := range s.titles {
		if score := cosine(vecs[0], s.titleVecs[title]); score > bestScore {
			best, bestScore = title, score
		}
	}
	if best == "" || bestScore < s.floor {
		return "", false, nil
	}
	return best, true, nil
}

func (s *Store) Search(ctx context.Context, query string, filter models.SearchFilter, k int) ([]models.SearchResult, error) {
	vecs, err := s.embedder.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var results []models.SearchResult
	for i, c := range s.chunks {
		if filter.CourseName != "" && c.CourseTitle != filter.CourseName {
			continue
		}
		if filter.LessonNumber != nil && (c.LessonNumber == nil || *c.LessonNumber != *filter.LessonNumber) {
			continue
		}
		results = append(results, models.SearchResult{
			Content:      c.Content,
			CourseTitle:  c.CourseTitle,
			LessonNumber: c.LessonNumber,
			ChunkIndex:   c.ChunkIndex,
			Distance:     1 - cosine(vecs[0], s.chunkVecs[i]),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		na += ai * ai
		nb += bi * bi
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
