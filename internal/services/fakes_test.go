package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"expertene/internal/cache"
	"expertene/internal/events"
	"expertene/internal/models"
	"expertene/internal/platform"
	"expertene/internal/repositories"
)

// ===============================
// REPOSITORIES
// ===============================

type fakeDocs struct {
	mu      sync.Mutex
	nextID  int64
	docs    map[int64]*models.Document
	authors []*models.LeaderboardEntry
	failOn  string
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{docs: map[int64]*models.Document{}}
}

func (f *fakeDocs) put(d *models.Document) *models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	if d.ID == 0 {
		f.nextID++
		d.ID = f.nextID
	} else if d.ID > f.nextID {
		f.nextID = d.ID
	}
	cp := *d
	f.docs[d.ID] = &cp
	return d
}

func (f *fakeDocs) get(id int64) (*models.Document, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok {
		return nil, false
	}
	cp := *d
	return &cp, true
}

func (f *fakeDocs) Create(_ context.Context, doc *models.Document) error {
	if f.failOn == "create" {
		return errors.New("insert failed")
	}
	doc.CreatedAt = time.Now()
	doc.UpdatedAt = doc.CreatedAt
	f.put(doc)
	return nil
}

func (f *fakeDocs) Update(_ context.Context, doc *models.Document) error {
	if _, ok := f.get(doc.ID); !ok {
		return repositories.ErrNotFound
	}
	doc.UpdatedAt = time.Now()
	f.put(doc)
	return nil
}

func (f *fakeDocs) GetByID(_ context.Context, id int64) (*models.Document, error) {
	d, ok := f.get(id)
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocs) GetForAuthor(_ context.Context, id, authorID int64) (*models.Document, error) {
	d, ok := f.get(id)
	if !ok || d.AuthorID != authorID {
		return nil, repositories.ErrNotFound
	}
	return d, nil
}

func (f *fakeDocs) GetByShareToken(_ context.Context, token string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.ShareToken != nil && *d.ShareToken == token {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeDocs) GetPublishedBySlug(_ context.Context, slug string) (*models.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, d := range f.docs {
		if d.Slug == slug && d.IsPubliclyVisible() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeDocs) SlugExists(_ context.Context, slug string, excludeID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, d := range f.docs {
		if id != excludeID && d.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeDocs) SetShareToken(_ context.Context, id, authorID int64, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.AuthorID != authorID {
		return repositories.ErrNotFound
	}
	d.ShareToken = &token
	return nil
}

func (f *fakeDocs) SetArchived(_ context.Context, id int64, authorID *int64, archived bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || (authorID != nil && d.AuthorID != *authorID) {
		return repositories.ErrNotFound
	}
	d.IsArchived = archived
	return nil
}

func (f *fakeDocs) Delete(_ context.Context, id, authorID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.docs[id]
	if !ok || d.AuthorID != authorID {
		return repositories.ErrNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *fakeDocs) filter(keep func(*models.Document) bool) []*models.Document {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Document{}
	for _, d := range f.docs {
		if keep(d) {
			cp := *d
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func page[T any](items []T, params models.PaginationParams) *models.PaginatedResponse[T] {
	total := len(items)
	start := min(params.Offset, total)
	end := min(start+params.Limit, total)
	return models.NewPaginatedResponse(items[start:end], params, int64(total))
}

func (f *fakeDocs) ListByAuthor(_ context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return page(f.filter(func(d *models.Document) bool { return d.AuthorID == authorID }), params), nil
}

func (f *fakeDocs) ListPublishedByAuthor(_ context.Context, authorID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return page(f.filter(func(d *models.Document) bool {
		return d.AuthorID == authorID && d.IsPubliclyVisible()
	}), params), nil
}

func (f *fakeDocs) ListFeed(_ context.Context, _ *int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return page(f.filter((*models.Document).IsPubliclyVisible), params), nil
}

func (f *fakeDocs) ListPublishedSince(_ context.Context, since time.Time, limit int) ([]*models.Document, error) {
	if f.failOn == "since" {
		return nil, errors.New("query failed")
	}
	out := f.filter(func(d *models.Document) bool {
		return d.IsPubliclyVisible() && d.PublishedAt != nil && !d.PublishedAt.Before(since)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocs) ListAll(_ context.Context, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	return page(f.filter(func(*models.Document) bool { return true }), params), nil
}

func (f *fakeDocs) GetCounts(_ context.Context, id int64) (models.EngagementCounts, error) {
	d, ok := f.get(id)
	if !ok {
		return models.EngagementCounts{}, repositories.ErrNotFound
	}
	return d.Counts, nil
}

func (f *fakeDocs) AuthorTotals(_ context.Context, limit int) ([]*models.LeaderboardEntry, error) {
	out := make([]*models.LeaderboardEntry, 0, len(f.authors))
	for _, a := range f.authors {
		cp := *a
		out = append(out, &cp)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type pair struct{ a, b int64 }

type fakeEngagement struct {
	mu        sync.Mutex
	docs      *fakeDocs
	likes     map[pair]bool
	bookmarks map[pair]bool
	follows   map[pair]bool
	fail      error
}

func newFakeEngagement(docs *fakeDocs) *fakeEngagement {
	return &fakeEngagement{
		docs:      docs,
		likes:     map[pair]bool{},
		bookmarks: map[pair]bool{},
		follows:   map[pair]bool{},
	}
}

func (f *fakeEngagement) bump(documentID int64, fn func(*models.EngagementCounts)) {
	f.docs.mu.Lock()
	defer f.docs.mu.Unlock()
	if d, ok := f.docs.docs[documentID]; ok {
		fn(&d.Counts)
	}
}

func (f *fakeEngagement) set(m map[pair]bool, key pair, on bool, counter func(*models.EngagementCounts) *int) error {
	if f.fail != nil {
		return f.fail
	}
	f.mu.Lock()
	changed := m[key] != on
	if on {
		m[key] = true
	} else {
		delete(m, key)
	}
	f.mu.Unlock()
	if changed {
		f.bump(key.b, func(c *models.EngagementCounts) {
			if on {
				*counter(c)++
			} else {
				*counter(c)--
			}
		})
	}
	return nil
}

func likesOf(c *models.EngagementCounts) *int     { return &c.Likes }
func bookmarksOf(c *models.EngagementCounts) *int { return &c.Bookmarks }

func (f *fakeEngagement) Like(_ context.Context, userID, documentID int64) error {
	return f.set(f.likes, pair{userID, documentID}, true, likesOf)
}

func (f *fakeEngagement) Unlike(_ context.Context, userID, documentID int64) error {
	return f.set(f.likes, pair{userID, documentID}, false, likesOf)
}

func (f *fakeEngagement) Bookmark(_ context.Context, userID, documentID int64) error {
	return f.set(f.bookmarks, pair{userID, documentID}, true, bookmarksOf)
}

func (f *fakeEngagement) Unbookmark(_ context.Context, userID, documentID int64) error {
	return f.set(f.bookmarks, pair{userID, documentID}, false, bookmarksOf)
}

func (f *fakeEngagement) Follow(_ context.Context, followerID, followingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.follows[pair{followerID, followingID}] = true
	return nil
}

func (f *fakeEngagement) Unfollow(_ context.Context, followerID, followingID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.follows, pair{followerID, followingID})
	return nil
}

func (f *fakeEngagement) IsFollowing(_ context.Context, followerID, followingID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.follows[pair{followerID, followingID}], nil
}

func (f *fakeEngagement) ViewerState(_ context.Context, documentID, userID int64) (models.ViewerState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	state := models.ViewerState{
		Liked:      f.likes[pair{userID, documentID}],
		Bookmarked: f.bookmarks[pair{userID, documentID}],
	}
	if d, ok := f.docs.docs[documentID]; ok {
		state.FollowsAuthor = f.follows[pair{userID, d.AuthorID}]
	}
	return state, nil
}

func (f *fakeEngagement) IncrementViewCount(_ context.Context, documentID int64, _ *int64) (int, error) {
	if _, ok := f.docs.get(documentID); !ok {
		return 0, repositories.ErrNotFound
	}
	var views int
	f.bump(documentID, func(c *models.EngagementCounts) {
		c.Views++
		views = c.Views
	})
	return views, nil
}

func (f *fakeEngagement) ListBookmarked(_ context.Context, userID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Document], error) {
	f.mu.Lock()
	marked := map[int64]bool{}
	for k := range f.bookmarks {
		if k.a == userID {
			marked[k.b] = true
		}
	}
	f.mu.Unlock()
	return page(f.docs.filter(func(d *models.Document) bool { return marked[d.ID] }), params), nil
}

type fakeUsers struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]*models.User
}

func newFakeUsers(users ...*models.User) *fakeUsers {
	f := &fakeUsers{users: map[int64]*models.User{}}
	for _, u := range users {
		_ = f.Create(context.Background(), u)
	}
	return f
}

func (f *fakeUsers) find(match func(*models.User) bool) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (f *fakeUsers) Create(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Username, user.Username) || u.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	if user.ID == 0 {
		f.nextID++
		user.ID = f.nextID
	} else if user.ID > f.nextID {
		f.nextID = user.ID
	}
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUsers) GetByID(_ context.Context, id int64) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.ID == id })
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.Email == email })
}

func (f *fakeUsers) GetByUsername(_ context.Context, username string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return strings.EqualFold(u.Username, username) })
}

func (f *fakeUsers) GetByGoogleID(_ context.Context, googleID string) (*models.User, error) {
	return f.find(func(u *models.User) bool { return u.GoogleID != nil && *u.GoogleID == googleID })
}

func (f *fakeUsers) LinkGoogle(_ context.Context, userID int64, googleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[userID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.GoogleID = &googleID
	return nil
}

func (f *fakeUsers) UpdateProfile(_ context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[user.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	u.DisplayName = user.DisplayName
	u.Bio = user.Bio
	u.AvatarURL = user.AvatarURL
	return nil
}

func (f *fakeUsers) EmailForUsername(ctx context.Context, username string) (string, error) {
	u, err := f.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	return u.Email, nil
}

func (f *fakeUsers) SuggestUsernames(_ context.Context, prefix string, limit int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []string{}
	for _, u := range f.users {
		if !u.IsSuspended && strings.HasPrefix(strings.ToLower(u.Username), prefix) {
			out = append(out, u.Username)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeUsers) List(_ context.Context, search string, params models.PaginationParams) (*models.PaginatedResponse[*models.User], error) {
	f.mu.Lock()
	out := []*models.User{}
	for _, u := range f.users {
		if search == "" || strings.Contains(u.Username, search) {
			cp := *u
			out = append(out, &cp)
		}
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params), nil
}

func (f *fakeUsers) SetRole(_ context.Context, id int64, role string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.Role = role
	return nil
}

func (f *fakeUsers) SetSuspended(_ context.Context, id int64, suspended bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.IsSuspended = suspended
	return nil
}

type fakeComments struct {
	mu       sync.Mutex
	nextID   int64
	comments map[int64]*models.Comment
}

func newFakeComments() *fakeComments {
	return &fakeComments{comments: map[int64]*models.Comment{}}
}

func (f *fakeComments) Create(_ context.Context, c *models.Comment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	c.ID = f.nextID
	c.CreatedAt = time.Now()
	cp := *c
	f.comments[c.ID] = &cp
	return nil
}

func (f *fakeComments) GetByID(_ context.Context, id int64) (*models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.comments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeComments) ListByDocument(_ context.Context, documentID int64, params models.PaginationParams) (*models.PaginatedResponse[*models.Comment], error) {
	f.mu.Lock()
	out := []*models.Comment{}
	for _, c := range f.comments {
		if c.DocumentID == documentID {
			cp := *c
			out = append(out, &cp)
		}
	}
	f.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return page(out, params), nil
}

func (f *fakeComments) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.comments[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.comments, id)
	return nil
}

type fakeAnnouncements struct {
	mu     sync.Mutex
	nextID int64
	items  map[int64]*models.Announcement
}

func newFakeAnnouncements() *fakeAnnouncements {
	return &fakeAnnouncements{items: map[int64]*models.Announcement{}}
}

func (f *fakeAnnouncements) Create(_ context.Context, a *models.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAnnouncements) Update(_ context.Context, a *models.Announcement) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[a.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAnnouncements) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeAnnouncements) GetByID(_ context.Context, id int64) (*models.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAnnouncements) List(_ context.Context, activeOnly bool) ([]*models.Announcement, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*models.Announcement{}
	for _, a := range f.items {
		if !activeOnly || a.IsActive {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

type fakeGamification struct {
	mu      sync.Mutex
	streaks map[int64]*models.Streak
	tasks   map[string]int
	fail    error
}

func newFakeGamification() *fakeGamification {
	return &fakeGamification{streaks: map[int64]*models.Streak{}, tasks: map[string]int{}}
}

func (f *fakeGamification) UpdateStreak(_ context.Context, userID int64) (*models.Streak, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streaks[userID]
	if !ok {
		s = &models.Streak{UserID: userID}
		f.streaks[userID] = s
	}
	s.Current++
	s.Longest = max(s.Longest, s.Current)
	cp := *s
	return &cp, nil
}

func (f *fakeGamification) GetStreak(_ context.Context, userID int64) (*models.Streak, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.streaks[userID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeGamification) UpdateTaskProgress(_ context.Context, userID int64, task string, delta int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[task] += delta
	return f.tasks[task], nil
}

// ===============================
// PLATFORM
// ===============================

// recordingBus dispatches synchronously to subscribers and remembers every
// event, sync or async.
type recordingBus struct {
	mu       sync.Mutex
	events   []events.Event
	handlers map[string][]events.EventHandler
}

func newRecordingBus() *recordingBus {
	return &recordingBus{handlers: map[string][]events.EventHandler{}}
}

func (b *recordingBus) Publish(ctx context.Context, event events.Event) error {
	b.mu.Lock()
	b.events = append(b.events, event)
	handlers := append([]events.EventHandler(nil), b.handlers[event.GetEventType()]...)
	b.mu.Unlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (b *recordingBus) PublishAsync(ctx context.Context, event events.Event) error {
	return b.Publish(ctx, event)
}

func (b *recordingBus) Subscribe(eventType string, handler events.EventHandler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
	return nil
}

func (b *recordingBus) SubscribePattern(string, events.EventHandler) error { return nil }
func (b *recordingBus) Unsubscribe(string, events.EventHandler) error      { return nil }
func (b *recordingBus) Start(context.Context) error                        { return nil }
func (b *recordingBus) Stop(context.Context) error                         { return nil }
func (b *recordingBus) Health() error                                      { return nil }
func (b *recordingBus) Stats() *events.EventBusStats                       { return &events.EventBusStats{} }

func (b *recordingBus) ofType(eventType string) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.Event
	for _, e := range b.events {
		if e.GetEventType() == eventType {
			out = append(out, e)
		}
	}
	return out
}

type publishedChange struct {
	channel string
	change  platform.Change
}

type recordingFeed struct {
	mu      sync.Mutex
	changes []publishedChange
}

func (f *recordingFeed) Publish(_ context.Context, channel string, change platform.Change) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, publishedChange{channel: channel, change: change})
	return nil
}

func (f *recordingFeed) Subscribe(context.Context, string) (platform.Subscription, error) {
	return nil, errors.New("not supported")
}

func (f *recordingFeed) Close() error { return nil }

func (f *recordingFeed) on(channel string) []platform.Change {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []platform.Change
	for _, c := range f.changes {
		if c.channel == channel {
			out = append(out, c.change)
		}
	}
	return out
}

type fakeSlugs struct {
	slug string
	err  error
}

func (f fakeSlugs) GenerateSlug(context.Context, string) (string, error) {
	return f.slug, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []platform.AnalyticsEvent
}

func (s *recordingSink) Track(_ context.Context, e platform.AnalyticsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) Close() error { return nil }

// ===============================
// FIXTURE
// ===============================

type fixture struct {
	docs          *fakeDocs
	engagement    *fakeEngagement
	users         *fakeUsers
	comments      *fakeComments
	announcements *fakeAnnouncements
	gamification  *fakeGamification
	bus           *recordingBus
	feed          *recordingFeed
	cache         cache.Cache
	sink          *recordingSink
	logger        *zap.Logger
}

func newFixture(users ...*models.User) *fixture {
	docs := newFakeDocs()
	return &fixture{
		docs:          docs,
		engagement:    newFakeEngagement(docs),
		users:         newFakeUsers(users...),
		comments:      newFakeComments(),
		announcements: newFakeAnnouncements(),
		gamification:  newFakeGamification(),
		bus:           newRecordingBus(),
		feed:          &recordingFeed{},
		cache:         cache.NewMemoryCache(cache.DefaultConfig(), zap.NewNop()),
		sink:          &recordingSink{},
		logger:        zap.NewNop(),
	}
}

func ptr[T any](v T) *T { return &v }
