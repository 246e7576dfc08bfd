package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/mohammad-safakhou/coursechat/config"
	"github.com/mohammad-safakhou/coursechat/internal/vectorstore"
	"github.com/mohammad-safakhou/coursechat/models"
)

// Store is the qdrant-backed vector index. It keeps two collections: one
// point per course in the catalog (title embedding plus course metadata)
// and one point per chunk in the content collection. Qdrant owns
// persistence, so ingested courses survive process restarts.
//
// Writes take the write lock so no reader observes a partially ingested
// course; searches share the read lock.
type Store struct {
	client   *qdrant.Client
	embedder vectorstore.Embedder
	catalog  string
	content  string
	floor    float64
	mu       sync.RWMutex
}

// New connects to qdrant and makes sure both collections exist.
func New(ctx context.Context, cfg config.VectorConfig, dimensions int, embedder vectorstore.Embedder) (*Store, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: connecting to qdrant: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s := &Store{
		client:   client,
		embedder: embedder,
		catalog:  cfg.CatalogCollection,
		content:  cfg.ContentCollection,
		floor:    cfg.SimilarityFloor,
	}
	if err := s.ensureCollections(ctx, uint64(dimensions)); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureCollections(ctx context.Context, vectorSize uint64) error {
	existing, err := s.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("%w: listing collections: %v", vectorstore.ErrIndexUnavailable, err)
	}
	have := make(map[string]bool, len(existing))
	for _, name := range existing {
		have[name] = true
	}

	for _, name := range []string{s.catalog, s.content} {
		if have[name] {
			continue
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("%w: creating collection %s: %v", vectorstore.ErrIndexUnavailable, name, err)
		}
	}
	return nil
}

func (s *Store) AddCourse(ctx context.Context, course models.Course) error {
	vecs, err := s.embedder.EmbedMany(ctx, []string{course.Title})
	if err != nil {
		return fmt.Errorf("%w: embedding course title: %v", vectorstore.ErrIndexUnavailable, err)
	}
	lessonsJSON, err := json.Marshal(course.Lessons)
	if err != nil {
		return fmt.Errorf("marshal lessons: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.catalog,
		Wait:           &wait,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vecs[0]...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"title":      course.Title,
				"link":       course.Link,
				"instructor": course.Instructor,
				"lessons":    string(lessonsJSON),
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("%w: upserting course: %v", vectorstore.ErrIndexUnavailable, err)
	}
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

	points := make([]*qdrant.PointStruct, len(chunks))
	for i, c := range chunks {
		payload := map[string]interface{}{
			"content":      c.Content,
			"course_title": c.CourseTitle,
			"chunk_index":  int64(c.ChunkIndex),
		}
		if c.LessonNumber != nil {
			payload["lesson_number"] = int64(*c.LessonNumber)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vecs[i]...),
			Payload: qdrant.NewValueMap(payload),
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	wait := true
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.content,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting chunks: %v", vectorstore.ErrIndexUnavailable, err)
	}
	return nil
}

func (s *Store) CourseExists(ctx context.Context, title string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, err := s.scrollCatalog(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("title", title)},
	}, 1)
	if err != nil {
		return false, err
	}
	return len(points) > 0, nil
}

func (s *Store) ListCourseTitles(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, err := s.scrollCatalog(ctx, nil, 1024)
	if err != nil {
		return nil, err
	}
	titles := make([]string, 0, len(points))
	for _, p := range points {
		if v, ok := p.GetPayload()["title"]; ok {
			titles = append(titles, v.GetStringValue())
		}
	}
	sort.Strings(titles)
	return titles, nil
}

func (s *Store) GetCourse(ctx context.Context, title string) (models.Course, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, err := s.scrollCatalog(ctx, &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatch("title", title)},
	}, 1)
	if err != nil {
		return models.Course{}, false, err
	}
	if len(points) == 0 {
		return models.Course{}, false, nil
	}

	payload := points[0].GetPayload()
	course := models.Course{
		Title:      payload["title"].GetStringValue(),
		Link:       payload["link"].GetStringValue(),
		Instructor: payload["instructor"].GetStringValue(),
	}
	if raw := payload["lessons"].GetStringValue(); raw != "" {
		if err := json.Unmarshal([]byte(raw), &course.Lessons); err != nil {
			return models.Course{}, false, fmt.Errorf("unmarshal lessons for %q: %w", title, err)
		}
	}
	return course, true, nil
}

func (s *Store) ResolveCourseName(ctx context.Context, name string) (string, bool, error) {
	vecs, err := s.embedder.EmbedMany(ctx, []string{name})
	if err != nil {
		return "", false, fmt.Errorf("%w: embedding course name: %v", vectorstore.ErrIndexUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := uint64(1)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.catalog,
		Query:          qdrant.NewQuery(vecs[0]...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: querying catalog: %v", vectorstore.ErrIndexUnavailable, err)
	}
	if len(hits) == 0 || float64(hits[0].GetScore()) < s.floor {
		return "", false, nil
	}
	return hits[0].GetPayload()["title"].GetStringValue(), true, nil
}

func (s *Store) Search(ctx context.Context, query string, filter models.SearchFilter, k int) ([]models.SearchResult, error) {
	vecs, err := s.embedder.EmbedMany(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", vectorstore.ErrIndexUnavailable, err)
	}

	var conditions []*qdrant.Condition
	if filter.CourseName != "" {
		conditions = append(conditions, qdrant.NewMatch("course_title", filter.CourseName))
	}
	if filter.LessonNumber != nil {
		conditions = append(conditions, qdrant.NewMatchInt("lesson_number", int64(*filter.LessonNumber)))
	}
	var qf *qdrant.Filter
	if len(conditions) > 0 {
		qf = &qdrant.Filter{Must: conditions}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := uint64(k)
	hits, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.content,
		Query:          qdrant.NewQuery(vecs[0]...),
		Limit:          &limit,
		Filter:         qf,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: querying content: %v", vectorstore.ErrIndexUnavailable, err)
	}

	results := make([]models.SearchResult, 0, len(hits))
	for _, hit := range hits {
		payload := hit.GetPayload()
		if payload == nil {
			continue
		}
		r := models.SearchResult{
			Content:     payload["content"].GetStringValue(),
			CourseTitle: payload["course_title"].GetStringValue(),
			ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
			// Cosine scores are descending-better; flip so callers see
			// ascending distance.
			Distance: 1 - float64(hit.GetScore()),
		}
		if v, ok := payload["lesson_number"]; ok {
			n := int(v.GetIntegerValue())
			r.LessonNumber = &n
		}
		results = append(results, r)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].ChunkIndex < results[j].ChunkIndex
	})
	return results, nil
}

func (s *Store) scrollCatalog(ctx context.Context, filter *qdrant.Filter, limit uint32) ([]*qdrant.RetrievedPoint, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: s.catalog,
		Filter:         filter,
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: scrolling catalog: %v", vectorstore.ErrIndexUnavailable, err)
	}
	return points, nil
}
