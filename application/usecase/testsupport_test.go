package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/syncora/syncora/domain"
	"github.com/syncora/syncora/infrastructure/adapter/memory"
	"github.com/syncora/syncora/infrastructure/service/cache"
	"github.com/syncora/syncora/infrastructure/service/logger"
)

// fakeCanvas is an in-memory stand-in for the LMS API. Inject per-method
// failures through fail, keyed by method name.
type fakeCanvas struct {
	mu          sync.Mutex
	seq         int
	users       map[string]*domain.CanvasUser
	courses     map[string]*domain.CanvasCourse
	assignments map[string]*domain.CanvasAssignment
	submissions map[string]*domain.CanvasSubmission
	discussions map[string]*domain.CanvasDiscussion
	fail        map[string]error
}

func newFakeCanvas() *fakeCanvas {
	return &fakeCanvas{
		users:       make(map[string]*domain.CanvasUser),
		courses:     make(map[string]*domain.CanvasCourse),
		assignments: make(map[string]*domain.CanvasAssignment),
		submissions: make(map[string]*domain.CanvasSubmission),
		discussions: make(map[string]*domain.CanvasDiscussion),
		fail:        make(map[string]error),
	}
}

func (f *fakeCanvas) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeCanvas) check(method string) error {
	if err, ok := f.fail[method]; ok {
		return err
	}
	return nil
}

func notFound(system domain.System, op, id string) error {
	return &domain.PermanentExternalError{System: system, Op: op, Status: 404, Err: errors.New(id + " not found")}
}

func (f *fakeCanvas) GetUser(ctx context.Context, id string) (*domain.CanvasUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GetUser"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, notFound(domain.SystemCanvas, "GetUser", id)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeCanvas) CreateUser(ctx context.Context, user *domain.CanvasUser) (*domain.CanvasUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateUser"); err != nil {
		return nil, err
	}
	clone := *user
	if clone.ID == "" {
		clone.ID = f.nextID("cu")
	}
	f.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) UpdateUser(ctx context.Context, id string, user *domain.CanvasUser) (*domain.CanvasUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpdateUser"); err != nil {
		return nil, err
	}
	if _, ok := f.users[id]; !ok {
		return nil, notFound(domain.SystemCanvas, "UpdateUser", id)
	}
	clone := *user
	clone.ID = id
	f.users[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) GetCourse(ctx context.Context, id string) (*domain.CanvasCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GetCourse"); err != nil {
		return nil, err
	}
	c, ok := f.courses[id]
	if !ok {
		return nil, notFound(domain.SystemCanvas, "GetCourse", id)
	}
	clone := *c
	return &clone, nil
}

func (f *fakeCanvas) CreateCourse(ctx context.Context, course *domain.CanvasCourse) (*domain.CanvasCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateCourse"); err != nil {
		return nil, err
	}
	clone := *course
	if clone.ID == "" {
		clone.ID = f.nextID("cc")
	}
	f.courses[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) UpdateCourse(ctx context.Context, id string, course *domain.CanvasCourse) (*domain.CanvasCourse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.courses[id]; !ok {
		return nil, notFound(domain.SystemCanvas, "UpdateCourse", id)
	}
	clone := *course
	clone.ID = id
	f.courses[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) GetAssignment(ctx context.Context, id string) (*domain.CanvasAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assignments[id]
	if !ok {
		return nil, notFound(domain.SystemCanvas, "GetAssignment", id)
	}
	clone := *a
	return &clone, nil
}

func (f *fakeCanvas) CreateAssignment(ctx context.Context, assignment *domain.CanvasAssignment) (*domain.CanvasAssignment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateAssignment"); err != nil {
		return nil, err
	}
	clone := *assignment
	if clone.ID == "" {
		clone.ID = f.nextID("ca")
	}
	f.assignments[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) GetSubmission(ctx context.Context, id string) (*domain.CanvasSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.submissions[id]
	if !ok {
		return nil, notFound(domain.SystemCanvas, "GetSubmission", id)
	}
	clone := *s
	return &clone, nil
}

func (f *fakeCanvas) CreateSubmission(ctx context.Context, submission *domain.CanvasSubmission) (*domain.CanvasSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateSubmission"); err != nil {
		return nil, err
	}
	clone := *submission
	if clone.ID == "" {
		clone.ID = f.nextID("cs")
	}
	f.submissions[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeCanvas) GradeSubmission(ctx context.Context, grade *domain.CanvasGrade) (*domain.CanvasGrade, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GradeSubmission"); err != nil {
		return nil, err
	}
	clone := *grade
	out := clone
	return &out, nil
}

func (f *fakeCanvas) GetDiscussion(ctx context.Context, id string) (*domain.CanvasDiscussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.discussions[id]
	if !ok {
		return nil, notFound(domain.SystemCanvas, "GetDiscussion", id)
	}
	clone := *d
	return &clone, nil
}

func (f *fakeCanvas) CreateDiscussion(ctx context.Context, discussion *domain.CanvasDiscussion) (*domain.CanvasDiscussion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateDiscussion"); err != nil {
		return nil, err
	}
	clone := *discussion
	if clone.ID == "" {
		clone.ID = f.nextID("cd")
	}
	f.discussions[clone.ID] = &clone
	out := clone
	return &out, nil
}

// fakeDiscourse is the forum-side counterpart.
type fakeDiscourse struct {
	mu         sync.Mutex
	seq        int
	users      map[string]*domain.DiscourseUser
	categories map[string]*domain.DiscourseCategory
	topics     map[string]*domain.DiscourseTopic
	posts      map[string]*domain.DiscoursePost
	archived   map[string]bool
	fail       map[string]error
}

func newFakeDiscourse() *fakeDiscourse {
	return &fakeDiscourse{
		users:      make(map[string]*domain.DiscourseUser),
		categories: make(map[string]*domain.DiscourseCategory),
		topics:     make(map[string]*domain.DiscourseTopic),
		posts:      make(map[string]*domain.DiscoursePost),
		archived:   make(map[string]bool),
		fail:       make(map[string]error),
	}
}

func (f *fakeDiscourse) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s-%d", prefix, f.seq)
}

func (f *fakeDiscourse) check(method string) error {
	if err, ok := f.fail[method]; ok {
		return err
	}
	return nil
}

func (f *fakeDiscourse) GetUser(ctx context.Context, id string) (*domain.DiscourseUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GetUser"); err != nil {
		return nil, err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, notFound(domain.SystemDiscourse, "GetUser", id)
	}
	clone := *u
	return &clone, nil
}

func (f *fakeDiscourse) CreateUser(ctx context.Context, user *domain.DiscourseUser) (*domain.DiscourseUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateUser"); err != nil {
		return nil, err
	}
	clone := *user
	if clone.ID == "" {
		clone.ID = f.nextID("du")
	}
	f.users[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) UpdateUser(ctx context.Context, id string, user *domain.DiscourseUser) (*domain.DiscourseUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpdateUser"); err != nil {
		return nil, err
	}
	if _, ok := f.users[id]; !ok {
		return nil, notFound(domain.SystemDiscourse, "UpdateUser", id)
	}
	clone := *user
	clone.ID = id
	f.users[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) GetCategory(ctx context.Context, id string) (*domain.DiscourseCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.categories[id]
	if !ok {
		return nil, notFound(domain.SystemDiscourse, "GetCategory", id)
	}
	clone := *c
	return &clone, nil
}

func (f *fakeDiscourse) CreateCategory(ctx context.Context, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateCategory"); err != nil {
		return nil, err
	}
	clone := *category
	if clone.ID == "" {
		clone.ID = f.nextID("dc")
	}
	f.categories[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) UpdateCategory(ctx context.Context, id string, category *domain.DiscourseCategory) (*domain.DiscourseCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return nil, notFound(domain.SystemDiscourse, "UpdateCategory", id)
	}
	clone := *category
	clone.ID = id
	f.categories[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) GetTopic(ctx context.Context, id string) (*domain.DiscourseTopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.topics[id]
	if !ok {
		return nil, notFound(domain.SystemDiscourse, "GetTopic", id)
	}
	clone := *t
	return &clone, nil
}

func (f *fakeDiscourse) CreateTopic(ctx context.Context, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreateTopic"); err != nil {
		return nil, err
	}
	clone := *topic
	if clone.ID == "" {
		clone.ID = f.nextID("dt")
	}
	f.topics[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) UpdateTopic(ctx context.Context, id string, topic *domain.DiscourseTopic) (*domain.DiscourseTopic, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[id]; !ok {
		return nil, notFound(domain.SystemDiscourse, "UpdateTopic", id)
	}
	clone := *topic
	clone.ID = id
	f.topics[id] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) GetPost(ctx context.Context, id string) (*domain.DiscoursePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("GetPost"); err != nil {
		return nil, err
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, notFound(domain.SystemDiscourse, "GetPost", id)
	}
	clone := *p
	return &clone, nil
}

func (f *fakeDiscourse) CreatePost(ctx context.Context, post *domain.DiscoursePost) (*domain.DiscoursePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("CreatePost"); err != nil {
		return nil, err
	}
	clone := *post
	if clone.ID == "" {
		clone.ID = f.nextID("dp")
	}
	f.posts[clone.ID] = &clone
	out := clone
	return &out, nil
}

func (f *fakeDiscourse) UpdatePost(ctx context.Context, id string, update *domain.DiscoursePostUpdate) (*domain.DiscoursePost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.check("UpdatePost"); err != nil {
		return nil, err
	}
	p, ok := f.posts[id]
	if !ok {
		return nil, notFound(domain.SystemDiscourse, "UpdatePost", id)
	}
	p.Raw = update.Raw
	clone := *p
	return &clone, nil
}

func (f *fakeDiscourse) DeactivateUser(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return notFound(domain.SystemDiscourse, "DeactivateUser", id)
	}
	u.Active = false
	return nil
}

func (f *fakeDiscourse) ArchiveCategory(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.categories[id]; !ok {
		return notFound(domain.SystemDiscourse, "ArchiveCategory", id)
	}
	f.archived[id] = true
	return nil
}

func (f *fakeDiscourse) DeleteTopic(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.topics[id]; !ok {
		return notFound(domain.SystemDiscourse, "DeleteTopic", id)
	}
	delete(f.topics, id)
	return nil
}

func (f *fakeDiscourse) DeletePost(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return notFound(domain.SystemDiscourse, "DeletePost", id)
	}
	delete(f.posts, id)
	return nil
}

// testEngine bundles a fully wired orchestrator over in-memory adapters.
type testEngine struct {
	orchestrator *SyncOrchestrator
	mapper       *EntityMapper
	mappings     *memory.MappingRepository
	states       *memory.SyncStateRepository
	transactions *memory.TransactionRepository
	queue        *memory.EventQueue
	canvas       *fakeCanvas
	discourse    *fakeDiscourse
}

func newTestEngine() *testEngine {
	log := logger.NewNopLogger()
	mappings := memory.NewMappingRepository()
	states := memory.NewSyncStateRepository()
	transactions := memory.NewTransactionRepository()
	queue := memory.NewEventQueue()
	canvas := newFakeCanvas()
	discourse := newFakeDiscourse()
	mapper := NewEntityMapper(mappings, cache.NewMappingCache(), log)
	orchestrator := NewSyncOrchestrator(mapper, states, transactions, queue, canvas, discourse, log)
	return &testEngine{
		orchestrator: orchestrator,
		mapper:       mapper,
		mappings:     mappings,
		states:       states,
		transactions: transactions,
		queue:        queue,
		canvas:       canvas,
		discourse:    discourse,
	}
}
