package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"zhiwen-go/internal/errs"
	"zhiwen-go/internal/model"
	"zhiwen-go/pkg/es"
	"zhiwen-go/pkg/llm"
	"zhiwen-go/pkg/tasks"
)

// ---- 内存版依赖实现，只实现测试用到的行为 ----

type fakeDocRepo struct {
	mu          sync.Mutex
	docs        map[string]*model.Document
	transitions []model.ProcessingStatus
}

func newFakeDocRepo(docs ...*model.Document) *fakeDocRepo {
	r := &fakeDocRepo{docs: map[string]*model.Document{}}
	for _, d := range docs {
		r.docs[d.ID] = d
	}
	return r
}

func (r *fakeDocRepo) Create(doc *model.Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *doc
	r.docs[doc.ID] = &copied
	return nil
}

func (r *fakeDocRepo) FindByID(id string) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	copied := *doc
	return &copied, nil
}

func (r *fakeDocRepo) FindAll() ([]model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var docs []model.Document
	for _, d := range r.docs {
		docs = append(docs, *d)
	}
	return docs, nil
}

func (r *fakeDocRepo) UpdateContent(id string, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if doc, ok := r.docs[id]; ok {
		doc.Content = content
	}
	return nil
}

func (r *fakeDocRepo) TransitionStatus(id string, next model.ProcessingStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	if !doc.Status.CanTransitionTo(next) {
		return errors.New("状态迁移不合法")
	}
	doc.Status = next
	r.transitions = append(r.transitions, next)
	return nil
}

func (r *fakeDocRepo) MergeMeta(id string, patch model.DocumentMeta) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, ok := r.docs[id]
	if !ok {
		return errs.ErrNotFound
	}
	doc.Meta.Merge(patch)
	return nil
}

func (r *fakeDocRepo) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return errs.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

type fakeChunkRepo struct {
	chunks []*model.Chunk
}

func (r *fakeChunkRepo) BatchCreate(chunks []*model.Chunk) error {
	r.chunks = append(r.chunks, chunks...)
	return nil
}

func (r *fakeChunkRepo) FindByDocumentID(documentID string) ([]*model.Chunk, error) {
	var out []*model.Chunk
	for _, c := range r.chunks {
		if c.DocumentID == documentID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *fakeChunkRepo) FindByDocumentAndIndex(documentID string, chunkIndex int) (*model.Chunk, error) {
	for _, c := range r.chunks {
		if c.DocumentID == documentID && c.ChunkIndex == chunkIndex {
			return c, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (r *fakeChunkRepo) UpdateStatus(_ uint, _ string) error { return nil }

func (r *fakeChunkRepo) DeleteByDocumentID(documentID string) error {
	var kept []*model.Chunk
	for _, c := range r.chunks {
		if c.DocumentID != documentID {
			kept = append(kept, c)
		}
	}
	r.chunks = kept
	return nil
}

type fakeEmbedder struct {
	err   error
	calls int
}

func (e *fakeEmbedder) CreateEmbedding(_ context.Context, _ string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return []float32{1, 0, 0, 0}, nil
}

type fakeSearcher struct {
	hits        []es.SearchHit
	err         error
	lastTopK    int
	lastDocID   string
	lastVector  []float32
	searchCount int
}

func (s *fakeSearcher) Search(_ context.Context, vector []float32, topK int, documentID string) ([]es.SearchHit, error) {
	s.searchCount++
	s.lastVector = vector
	s.lastTopK = topK
	s.lastDocID = documentID
	if s.err != nil {
		return nil, s.err
	}
	return s.hits, nil
}

type fakeConvRepo struct {
	mu       sync.Mutex
	messages map[string][]model.ChatMessage
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{messages: map[string][]model.ChatMessage{}}
}

func (r *fakeConvRepo) GetHistory(_ context.Context, conversationID string) ([]model.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ChatMessage(nil), r.messages[conversationID]...), nil
}

func (r *fakeConvRepo) AppendMessages(_ context.Context, conversationID string, messages ...model.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[conversationID] = append(r.messages[conversationID], messages...)
	return nil
}

type fakeLLM struct {
	answer       string
	err          error
	lastMessages []llm.Message
}

func (l *fakeLLM) Complete(_ context.Context, messages []llm.Message, _ *llm.GenerationParams) (string, error) {
	l.lastMessages = messages
	if l.err != nil {
		return "", l.err
	}
	return l.answer, nil
}

type fakeStore struct {
	objects map[string][]byte
	putErr  error
	removed []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, name string, reader io.Reader, _ int64) error {
	if s.putErr != nil {
		return s.putErr
	}
	data, _ := io.ReadAll(reader)
	s.objects[name] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, name string) ([]byte, error) {
	data, ok := s.objects[name]
	if !ok {
		return nil, errors.New("object not found")
	}
	return data, nil
}

func (s *fakeStore) Remove(_ context.Context, name string) error {
	s.removed = append(s.removed, name)
	delete(s.objects, name)
	return nil
}

func (s *fakeStore) PresignedURL(_ context.Context, name string, _ time.Duration) (string, error) {
	return "http://minio.local/presigned/" + name, nil
}

type fakeDeleter struct {
	deleted []string
	err     error
}

func (d *fakeDeleter) DeleteByDocumentID(_ context.Context, documentID string) error {
	if d.err != nil {
		return d.err
	}
	d.deleted = append(d.deleted, documentID)
	return nil
}

type taskRecorder struct {
	produced []tasks.DocumentIngestTask
	err      error
}

func (t *taskRecorder) produce(task tasks.DocumentIngestTask) error {
	if t.err != nil {
		return t.err
	}
	t.produced = append(t.produced, task)
	return nil
}
